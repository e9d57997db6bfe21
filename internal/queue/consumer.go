package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/draftpact/nda-negotiation/internal/mail"
)

// StartNotificationConsumer connects to RabbitMQ, declares the durable
// document.notifications queue, and delivers each queued message through
// the given mailer. The function runs a reconnect loop with exponential
// backoff and keeps running across broker failures; failed deliveries
// are logged and the message is rejected without requeue so a poison
// message cannot stall the queue.
func StartNotificationConsumer(m mail.Mailer) error {
	url := brokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("notify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, m); err != nil {
			log.Printf("notify-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, m mail.Mailer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notify-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(NotificationQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(NotificationQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, m); err != nil {
			log.Printf("notify-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, m mail.Mailer) error {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	attachments := make([]mail.Attachment, 0, len(ev.Attachments))
	for _, a := range ev.Attachments {
		attachments = append(attachments, mail.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Data:        a.Data,
		})
	}

	if err := m.Send(ev.To, ev.Subject, ev.Body, attachments); err != nil {
		return fmt.Errorf("send %s notification for document %d: %w", ev.Kind, ev.DocumentID, err)
	}
	if err := appendDeliveryLog(ev); err != nil {
		log.Printf("notify-consumer: write delivery log: %v", err)
	}
	return nil
}

// appendDeliveryLog records each delivered notification in a
// single-line, human-friendly format under logs/notifications.log.
func appendDeliveryLog(ev NotificationEvent) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "notifications.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Notification delivered | event_id=%s | kind=%s | document_id=%d | title=%q | to=%s | attachments=%d\n",
		ev.QueuedAt, ev.EventID, ev.Kind, ev.DocumentID, ev.Title, ev.To, len(ev.Attachments))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
