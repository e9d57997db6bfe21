package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/draftpact/nda-negotiation/internal/repository"
	"github.com/draftpact/nda-negotiation/internal/workflow"
)

// linkInvalidMessage is the one user-facing message for every token
// failure. The status code carries the kind for machine consumers; the
// body never says whether the link is unknown, expired, spent or
// merely out of scope.
const linkInvalidMessage = "this link is no longer valid"

// writeWorkflowError maps the workflow error taxonomy onto HTTP.
func writeWorkflowError(c echo.Context, err error) error {
	var verr *workflow.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, workflow.ErrTokenNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": linkInvalidMessage})
	case errors.Is(err, workflow.ErrTokenExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": linkInvalidMessage})
	case errors.Is(err, workflow.ErrTokenConsumed):
		return c.JSON(http.StatusConflict, echo.Map{"error": linkInvalidMessage})
	case errors.Is(err, workflow.ErrTokenScope):
		return c.JSON(http.StatusForbidden, echo.Map{"error": linkInvalidMessage})
	case errors.Is(err, workflow.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "action not allowed in current status"})
	case errors.Is(err, workflow.ErrConcurrentModification):
		return c.JSON(http.StatusConflict, echo.Map{"error": "document changed concurrently, reload and retry"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
