// Package mailer delivers the digest email. Delivery is a single
// pass/fail call; the monitor decides what to do with the outcome.
package mailer

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/mehdichamani/HikStatus/internal/config"
)

// Every delivery, dial included, must finish inside this window so a
// stalled relay cannot hold the monitor cycle open.
const sendTimeout = 30 * time.Second

// Transport attempts one delivery and reports success or failure.
type Transport interface {
	Send(recipients []string, subject, htmlBody string) error
}

// SMTPTransport sends through a plain SMTP relay, with STARTTLS when
// the server offers it.
type SMTPTransport struct {
	cfg     config.MailConfig
	timeout time.Duration

	// sendMail is swapped out by tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(cfg config.MailConfig) *SMTPTransport {
	t := &SMTPTransport{cfg: cfg, timeout: sendTimeout}
	t.sendMail = t.sendMailBounded
	return t
}

func (t *SMTPTransport) Send(recipients []string, subject, htmlBody string) error {
	if t.cfg.Host == "" || t.cfg.From == "" || len(recipients) == 0 {
		return fmt.Errorf("smtp: missing host, sender or recipients")
	}

	port := t.cfg.Port
	if port == 0 {
		if t.cfg.UseTLS {
			port = 587
		} else {
			port = 25
		}
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", t.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if t.cfg.Username != "" && t.cfg.Password != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, port)
	if err := t.sendMail(addr, auth, t.cfg.From, recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// sendMailBounded is smtp.SendMail with a connection deadline covering
// the whole conversation.
func (t *SMTPTransport) sendMailBounded(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", addr, t.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		return err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
