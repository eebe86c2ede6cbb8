package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"attendance-backend/models"
)

type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// messageCreator is the part of the Twilio REST API the sender uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSSender sends text messages through the Twilio Messages API.
type SMSSender struct {
	cfg      SMSConfig
	messages messageCreator
}

func NewSMSSender(cfg SMSConfig) *SMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMSSender{cfg: cfg, messages: client.Api}
}

func (s *SMSSender) Channel() string { return "sms" }

func (s *SMSSender) Send(ctx context.Context, rec models.AttendanceRecord) error {
	return s.SendSMS(ctx, rec.ContactPhone, confirmationText(rec))
}

// SendSMS sends body to one number. The Twilio client has no context
// support, so ctx only bounds how long the caller waits.
func (s *SMSSender) SendSMS(ctx context.Context, to, body string) error {
	if to == "" {
		return fmt.Errorf("sms: recipient required")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.cfg.From)
	params.SetBody(body)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.messages.CreateMessage(params)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			var apiErr *twilioclient.TwilioRestError
			if errors.As(err, &apiErr) {
				return fmt.Errorf("sms: status %d: %s", apiErr.Status, apiErr.Message)
			}
			return fmt.Errorf("sms: send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sms: %w", ctx.Err())
	}
}
