// Package mail delivers workflow notifications. Delivery is strictly
// best-effort: a failed send is logged by the caller and never fails
// the workflow action that triggered it.
package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Attachment is an inline artifact shipped with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Mailer is the notification collaborator contract.
type Mailer interface {
	Send(to, subject, htmlBody string, attachments []Attachment) error
}

// SMTPMailer sends through a plain SMTP relay. No auth: the relay is
// expected to be a local or VPC-internal smarthost.
type SMTPMailer struct {
	Addr string // host:port
	From string
}

func NewSMTPMailer(addr, from string) *SMTPMailer {
	return &SMTPMailer{Addr: addr, From: from}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string, attachments []Attachment) error {
	msg, err := buildMessage(m.From, to, subject, htmlBody, attachments)
	if err != nil {
		return err
	}
	if err := smtp.SendMail(m.Addr, nil, m.From, []string{to}, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

// buildMessage assembles a MIME message, multipart when attachments
// are present.
func buildMessage(from, to, subject, htmlBody string, attachments []Attachment) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(htmlBody)
		return []byte(b.String()), nil
	}

	const boundary = "workflow-notification-boundary"
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	for _, a := range attachments {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s\r\n", a.ContentType)
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n\r\n", a.Filename)
		b.Write(a.Data)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String()), nil
}

// LogMailer is the fallback when no SMTP relay is configured: it
// records what would have been sent so local runs stay observable.
type LogMailer struct{}

func (LogMailer) Send(to, subject, _ string, attachments []Attachment) error {
	log.Printf("mail: (dry-run) to=%s subject=%q attachments=%d", to, subject, len(attachments))
	return nil
}
