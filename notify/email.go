package notify

import (
	"context"
	"fmt"
	"html"
	"strconv"

	"github.com/wneessen/go-mail"

	"attendance-backend/models"
)

type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// EmailSender sends confirmation mail through an SMTP relay.
type EmailSender struct {
	cfg  EmailConfig
	send func(ctx context.Context, msg *mail.Msg) error
}

func NewEmailSender(cfg EmailConfig) *EmailSender {
	s := &EmailSender{cfg: cfg}
	s.send = s.dialAndSend
	return s
}

func (s *EmailSender) Channel() string { return "email" }

func (s *EmailSender) Send(ctx context.Context, rec models.AttendanceRecord) error {
	return s.SendEmail(ctx, rec.ContactEmail, emailSubject, confirmationText(rec))
}

// SendEmail sends body as both plain text and HTML.
func (s *EmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("email: recipient required")
	}

	msg, err := buildMessage(s.cfg.From, to, subject, body)
	if err != nil {
		return fmt.Errorf("email: build message: %w", err)
	}
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}

func (s *EmailSender) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	port, err := strconv.Atoi(s.cfg.Port)
	if err != nil {
		return fmt.Errorf("invalid smtp port %q: %w", s.cfg.Port, err)
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func buildMessage(from, to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, err
	}
	if err := msg.To(to); err != nil {
		return nil, err
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, body)
	msg.AddAlternativeString(mail.TypeTextHTML, "<p>"+html.EscapeString(body)+"</p>")
	return msg, nil
}
