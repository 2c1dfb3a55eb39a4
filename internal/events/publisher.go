// Package events broadcasts committed alert-log entries over NATS so
// other systems (dashboards, pagers) can react without polling the
// database. Publishing is best effort and never blocks a cycle commit.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mehdichamani/HikStatus/internal/data"
)

type Publisher struct {
	conn       *nats.Conn
	subject    string
	maxRetries int
}

func NewPublisher(conn *nats.Conn, subject string, maxRetries int) *Publisher {
	return &Publisher{
		conn:       conn,
		subject:    subject,
		maxRetries: maxRetries,
	}
}

// Publish sends one entry. A nil publisher is a no-op so the monitor
// can run without a broker.
func (p *Publisher) Publish(e *data.AlertLogEntry) error {
	if p == nil || p.conn == nil {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var last error
	for i := 0; i <= p.maxRetries; i++ {
		if last = p.conn.Publish(p.subject, payload); last == nil {
			return nil
		}
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}
	return fmt.Errorf("publish failed after %d retries: %w", p.maxRetries, last)
}
