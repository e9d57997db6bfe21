package service

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/draftpact/nda-negotiation/internal/diff"
	"github.com/draftpact/nda-negotiation/internal/model"
	"github.com/draftpact/nda-negotiation/internal/queue"
	"github.com/draftpact/nda-negotiation/internal/render"
	"github.com/draftpact/nda-negotiation/internal/storage"
)

// Notification describes one message owed to a party after a
// transition committed.
type Notification struct {
	Kind          model.AuditEventType
	Document      model.Document
	To            string
	RecipientName string
	// Link is the capability URL minted for the addressee, empty when
	// the transition minted nothing for them.
	Link    string
	Message string
	// Changes summarizes the revision that triggered the message.
	Changes []diff.FieldChange
	// AttachArtifact ships the rendered document with the message
	// (used for the fully-executed copy).
	AttachArtifact bool
}

// Dispatcher turns committed transitions into e-mail: it renders the
// document artifact, archives it, and publishes the composed message
// to the notification queue. Everything here is best-effort by
// contract; callers log the returned error and move on.
type Dispatcher struct {
	Renderer     render.Renderer
	Store        storage.ObjectStore // nil disables archiving
	AppURL       string
	SignedURLTTL time.Duration
}

func NewDispatcher(r render.Renderer, store storage.ObjectStore, appURL string, signedURLTTL time.Duration) *Dispatcher {
	return &Dispatcher{Renderer: r, Store: store, AppURL: appURL, SignedURLTTL: signedURLTTL}
}

// LinkFor builds the public URL a capability token is delivered as.
func (d *Dispatcher) LinkFor(scope model.TokenScope, rawToken string) string {
	base := strings.TrimRight(d.AppURL, "/")
	switch scope {
	case model.ScopeEdit:
		return fmt.Sprintf("%s/d/edit/%s", base, rawToken)
	case model.ScopeSign:
		return fmt.Sprintf("%s/d/sign/%s", base, rawToken)
	case model.ScopeReview:
		return fmt.Sprintf("%s/d/review/%s", base, rawToken)
	default:
		return fmt.Sprintf("%s/d/view/%s", base, rawToken)
	}
}

// Notify renders and archives the document, then queues the message.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	ev := queue.NotificationEvent{
		EventID:    uuid.NewString(),
		Kind:       string(n.Kind),
		DocumentID: n.Document.ID,
		Title:      n.Document.Title,
		To:         n.To,
		Subject:    subjectFor(n.Kind, n.Document.Title),
		QueuedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	var artifact []byte
	if d.Renderer != nil {
		rendered, err := d.Renderer.Render(ctx, n.Document.Content, n.Document.TemplateID)
		if err != nil {
			log.Printf("dispatch: render document %d: %v", n.Document.ID, err)
		} else {
			artifact = rendered
		}
	}
	if artifact != nil && d.Store != nil {
		key := storage.ArtifactKey(n.Document.ID, string(n.Kind))
		if err := d.Store.Put(ctx, key, artifact, "text/html; charset=utf-8"); err != nil {
			log.Printf("dispatch: archive document %d: %v", n.Document.ID, err)
		} else if url, err := d.Store.SignedURL(ctx, key, d.SignedURLTTL); err == nil {
			ev.ArtifactURL = url
		}
	}
	if n.AttachArtifact && artifact != nil {
		ev.Attachments = append(ev.Attachments, queue.EmailAttachment{
			Filename:    fmt.Sprintf("%s.html", sanitizeFilename(n.Document.Title)),
			ContentType: "text/html; charset=utf-8",
			Data:        artifact,
		})
	}

	ev.Body = bodyFor(n, ev.ArtifactURL)
	return queue.PublishNotification(ctx, ev)
}

func subjectFor(kind model.AuditEventType, title string) string {
	switch kind {
	case model.AuditSent:
		return fmt.Sprintf("%s: review and sign requested", title)
	case model.AuditRecipientSubmittedChanges:
		return fmt.Sprintf("%s: changes proposed", title)
	case model.AuditOwnerApproved:
		return fmt.Sprintf("%s: approved, ready to sign", title)
	case model.AuditOwnerApprovedAndSigned, model.AuditSigned:
		return fmt.Sprintf("%s: fully signed", title)
	case model.AuditOwnerRequestedChanges:
		return fmt.Sprintf("%s: further changes requested", title)
	case model.AuditCancelled:
		return fmt.Sprintf("%s: cancelled", title)
	default:
		return title
	}
}

// bodyFor composes the HTML message. Kept deliberately plain: a
// greeting, the optional personal message, the change summary, the
// action link.
func bodyFor(n Notification, artifactURL string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	name := n.RecipientName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(name))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(introFor(n.Kind, n.Document.Title)))

	if n.Message != "" {
		fmt.Fprintf(&b, "<blockquote>%s</blockquote>", html.EscapeString(n.Message))
	}
	if len(n.Changes) > 0 {
		b.WriteString("<p>Proposed changes:</p><ul>")
		for _, c := range n.Changes {
			fmt.Fprintf(&b, "<li><b>%s</b> (%s)</li>",
				html.EscapeString(diff.FormatFieldPath(c.Path)), c.Kind)
		}
		b.WriteString("</ul>")
	}
	if n.Link != "" {
		fmt.Fprintf(&b, `<p><a href="%s">Open the document</a></p>`, n.Link)
	}
	if artifactURL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">Download a copy</a> (link expires)</p>`, artifactURL)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func introFor(kind model.AuditEventType, title string) string {
	switch kind {
	case model.AuditSent:
		return fmt.Sprintf("You have been asked to review and sign %q.", title)
	case model.AuditRecipientSubmittedChanges:
		return fmt.Sprintf("The counterparty proposed changes to %q.", title)
	case model.AuditOwnerApproved:
		return fmt.Sprintf("Your changes to %q were approved. The document is ready for your signature.", title)
	case model.AuditOwnerApprovedAndSigned, model.AuditSigned:
		return fmt.Sprintf("%q has been signed by all parties.", title)
	case model.AuditOwnerRequestedChanges:
		return fmt.Sprintf("Further changes were requested on %q.", title)
	case model.AuditCancelled:
		return fmt.Sprintf("%q was cancelled by its owner.", title)
	default:
		return fmt.Sprintf("There is an update on %q.", title)
	}
}

func sanitizeFilename(title string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, title)
	if mapped == "" {
		return "document"
	}
	return mapped
}
