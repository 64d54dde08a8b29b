// Package mail sends transactional email: contact form messages to the
// site owner and verification links to new readers. Messages are rendered
// from embedded templates and delivered over SMTP, either directly from a
// background goroutine or through a RabbitMQ queue.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	gomail "github.com/go-mail/mail/v2"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names.
const (
	TemplateContact = "contact"
	TemplateVerify  = "verify"
)

// Message is one email to send. Data is passed to the template and must
// survive a JSON round trip, hence the string map.
type Message struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

// Dialer delivers a rendered message. *gomail.Dialer implements it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// TemplateParser renders the subject, plain text and HTML parts of a message.
type TemplateParser interface {
	ParseTemplate(name string, data any) (subject, plain, html *bytes.Buffer, err error)
}

// Templates renders the embedded templates.
type Templates struct{}

// ParseTemplate executes the "subject", "plainBody" and "htmlBody" blocks
// of templates/<name>.tmpl.
func (Templates) ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error) {
	t, err := template.New("email").ParseFS(templateFS, "templates/"+name+".tmpl")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse mail template %s: %w", name, err)
	}

	parts := make([]*bytes.Buffer, 3)
	for i, block := range []string{"subject", "plainBody", "htmlBody"} {
		parts[i] = new(bytes.Buffer)
		if err := t.ExecuteTemplate(parts[i], block, data); err != nil {
			return nil, nil, nil, fmt.Errorf("execute mail template %s/%s: %w", name, block, err)
		}
	}
	return parts[0], parts[1], parts[2], nil
}

// Sender renders and delivers messages.
type Sender struct {
	mu     sync.Mutex
	dialer Dialer
	parser TemplateParser
	from   string
}

// NewSender creates an SMTP sender.
func NewSender(host string, port int, username, password, from string) *Sender {
	d := gomail.NewDialer(host, port, username, password)
	d.Timeout = 5 * time.Second
	return &Sender{dialer: d, parser: Templates{}, from: from}
}

// NewLogSender creates a sender that logs messages instead of delivering
// them. Used when no SMTP host is configured.
func NewLogSender(from string) *Sender {
	return &Sender{dialer: logDialer{}, parser: Templates{}, from: from}
}

// Send renders msg and delivers it synchronously.
func (s *Sender) Send(msg Message) error {
	subject, plain, html, err := s.parser.ParseTemplate(msg.Template, msg.Data)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subject.String())
	m.SetBody("text/plain", plain.String())
	m.AddAlternative("text/html", html.String())

	if email, ok := msg.Data["Email"]; ok && msg.Template == TemplateContact {
		m.SetHeader("Reply-To", email)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send %s mail: %w", msg.Template, err)
	}
	return nil
}

type logDialer struct{}

func (logDialer) DialAndSend(msgs ...*gomail.Message) error {
	for _, m := range msgs {
		var buf bytes.Buffer
		if _, err := m.WriteTo(&buf); err != nil {
			return err
		}
		slog.Info("mail not sent (no SMTP host configured)", "to", m.GetHeader("To"), "subject", m.GetHeader("Subject"), "size", buf.Len())
	}
	return nil
}

// Dispatcher accepts a message for delivery without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}
