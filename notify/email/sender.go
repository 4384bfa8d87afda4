package email

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Mail is a rendered plain-text email.
type Mail struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Bytes returns the RFC 5322 encoding of m.
func (m Mail) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.From)
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerSafe(m.Subject)))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}

// headerSafe collapses line breaks so a value cannot inject headers.
func headerSafe(s string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(s)), " ")
}

// Sender delivers a rendered mail.
type Sender interface {
	Send(ctx context.Context, m Mail) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, m Mail) error

func (f SenderFunc) Send(ctx context.Context, m Mail) error {
	return f(ctx, m)
}

// SMTPSender sends mail through an SMTP relay with optional PLAIN auth.
type SMTPSender struct {
	addr string
	auth smtp.Auth
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates a sender for addr ("host:port"). Auth is used
// only when username is set.
func NewSMTPSender(addr, username, password string) (*SMTPSender, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("email: invalid smtp address %q: %w", addr, err)
	}
	s := &SMTPSender{addr: addr}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s, nil
}

// Send delivers m. net/smtp has no context support, so ctx is only
// checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return smtp.SendMail(s.addr, s.auth, m.From, []string{m.To}, m.Bytes())
}
