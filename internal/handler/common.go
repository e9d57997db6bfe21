package handler

import (
	"github.com/labstack/echo/v4"
)

// getUserID extracts the authenticated user's ID placed in the
// context by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case float64:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	}
	return 0, echo.ErrUnauthorized
}

// getOrgID extracts the organization claim set by the JWT middleware.
func getOrgID(c echo.Context) (uint64, error) {
	v := c.Get("org_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case float64:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	}
	return 0, echo.ErrUnauthorized
}
