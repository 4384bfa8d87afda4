// Package email delivers privmsg notifications to recipients by email.
//
// Only recipient-directed kinds (messages_received and
// messages_reply_received) produce mail; the author is not emailed about
// their own message. Addresses come from a privmsg.ContactResolver.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/rbaliyan/privmsg"
	"github.com/rbaliyan/privmsg/retry"
	"github.com/rbaliyan/privmsg/store"
	"golang.org/x/time/rate"
)

// Default templates. Data is TemplateData.
const (
	DefaultSubjectTemplate = `{{if .Reply}}New reply{{else}}New message{{end}}: {{.Message.GetSubject}}`
	DefaultBodyTemplate    = `Hello {{.Recipient.Name}},

{{.Message.GetSender}} {{if .Reply}}replied to your message{{else}}sent you a message{{end}} "{{.Message.GetSubject}}":

{{.Message.GetBody}}
`
)

// Defaults for throttling.
const (
	DefaultRatePerSecond = 10
	DefaultBurst         = 10
)

// TemplateData is passed to the subject and body templates.
type TemplateData struct {
	Kind      privmsg.NotificationKind
	Reply     bool
	Recipient privmsg.Contact
	Message   store.Message
}

type options struct {
	from            string
	limiter         *rate.Limiter
	subjectTemplate string
	bodyTemplate    string
	logger          *slog.Logger
}

// Option configures the email notifier.
type Option func(*options)

// WithFrom sets the envelope and header sender address.
func WithFrom(addr string) Option {
	return func(o *options) {
		if addr != "" {
			o.from = addr
		}
	}
}

// WithRateLimit throttles outgoing mail to perSecond with the given burst.
// Notify blocks until a token is available or ctx ends.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		if perSecond > 0 && burst > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithSubjectTemplate overrides the subject template.
func WithSubjectTemplate(tmpl string) Option {
	return func(o *options) {
		if tmpl != "" {
			o.subjectTemplate = tmpl
		}
	}
}

// WithBodyTemplate overrides the body template.
func WithBodyTemplate(tmpl string) Option {
	return func(o *options) {
		if tmpl != "" {
			o.bodyTemplate = tmpl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Notifier emails recipients about new messages and replies.
type Notifier struct {
	contacts privmsg.ContactResolver
	sender   Sender
	from     string
	limiter  *rate.Limiter
	subject  *template.Template
	body     *template.Template
	logger   *slog.Logger
}

var _ privmsg.Notifier = (*Notifier)(nil)

// New creates an email notifier. It fails if a template does not parse.
func New(contacts privmsg.ContactResolver, sender Sender, opts ...Option) (*Notifier, error) {
	if contacts == nil || sender == nil {
		return nil, errors.New("email: contact resolver and sender are required")
	}
	o := &options{
		from:            "noreply@localhost",
		limiter:         rate.NewLimiter(DefaultRatePerSecond, DefaultBurst),
		subjectTemplate: DefaultSubjectTemplate,
		bodyTemplate:    DefaultBodyTemplate,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	subject, err := template.New("subject").Parse(o.subjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("email: parse subject template: %w", err)
	}
	body, err := template.New("body").Parse(o.bodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("email: parse body template: %w", err)
	}

	return &Notifier{
		contacts: contacts,
		sender:   sender,
		from:     o.from,
		limiter:  o.limiter,
		subject:  subject,
		body:     body,
		logger:   o.logger,
	}, nil
}

// Notify emails the recipient for recipient-directed kinds and ignores
// the rest. A recipient without an address is a permanent failure.
func (n *Notifier) Notify(ctx context.Context, note privmsg.Notification) error {
	if !note.Kind.ToRecipient() {
		return nil
	}

	contact, err := n.contacts.Contact(ctx, note.To)
	if err != nil {
		if errors.Is(err, privmsg.ErrNoContact) || errors.Is(err, privmsg.ErrPrincipalNotFound) {
			return retry.Permanent(err)
		}
		return fmt.Errorf("resolve contact %s: %w", note.To, err)
	}
	if contact.Email == "" {
		return retry.Permanent(fmt.Errorf("%w: %s", privmsg.ErrNoContact, note.To))
	}

	mail, err := n.render(note, *contact)
	if err != nil {
		return retry.Permanent(err)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if err := n.sender.Send(ctx, mail); err != nil {
		return fmt.Errorf("send mail to %s: %w", contact.Email, err)
	}

	n.logger.Debug("notification email sent",
		"kind", note.Kind,
		"to", note.To.String(),
		"message_id", note.Message.GetID(),
	)
	return nil
}

func (n *Notifier) render(note privmsg.Notification, contact privmsg.Contact) (Mail, error) {
	data := TemplateData{
		Kind:      note.Kind,
		Reply:     note.Kind == privmsg.KindReplyReceived,
		Recipient: contact,
		Message:   note.Message,
	}
	var subject, body bytes.Buffer
	if err := n.subject.Execute(&subject, data); err != nil {
		return Mail{}, fmt.Errorf("email: render subject: %w", err)
	}
	if err := n.body.Execute(&body, data); err != nil {
		return Mail{}, fmt.Errorf("email: render body: %w", err)
	}
	return Mail{
		From:    n.from,
		To:      contact.Email,
		Subject: subject.String(),
		Body:    body.String(),
	}, nil
}
