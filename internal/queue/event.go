// Package queue defines message payloads exchanged over the message
// broker, plus the publisher and the background consumer. The broker
// decouples workflow transactions from e-mail delivery: transitions
// commit first, notifications drain asynchronously and best-effort.
package queue

// NotificationQueueName is the durable queue notifications flow over.
const NotificationQueueName = "document.notifications"

// EmailAttachment is an artifact shipped with a notification.
type EmailAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	// Data is the raw artifact; encoding/json base64s it on the wire.
	Data []byte `json:"data"`
}

// NotificationEvent is published after a workflow transition commits.
// It carries the fully composed message so the consumer never has to
// query the primary database.
type NotificationEvent struct {
	// EventID correlates publisher and consumer log lines.
	EventID string `json:"event_id"`
	// Kind mirrors the audit event type of the transition that
	// triggered the notification (SENT, RECIPIENT_SUBMITTED_CHANGES,
	// OWNER_APPROVED, ...). Used for logging and routing only.
	Kind        string            `json:"kind"`
	DocumentID  uint64            `json:"document_id"`
	Title       string            `json:"title"`
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"` // HTML
	Attachments []EmailAttachment `json:"attachments,omitempty"`
	// ArtifactURL is a presigned download link for the stored rendered
	// artifact, when archiving is configured.
	ArtifactURL string `json:"artifact_url,omitempty"`
	QueuedAt    string `json:"queued_at"`
}
