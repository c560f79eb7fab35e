// Package emailapi implements a Sink that sends the canonical message through
// a transactional email API as a long-running send operation.
package emailapi

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shineum/smtp2webhook/internal/email"
	"github.com/shineum/smtp2webhook/internal/sink"
)

const (
	// DefaultTimeout bounds submission plus polling.
	DefaultTimeout = 60 * time.Second

	// DefaultPollInterval is the delay between status polls.
	DefaultPollInterval = time.Second
)

// Config holds the email API sink settings.
type Config struct {
	SenderAddress string

	// CredentialSetting names the setting that carries the API credential,
	// reported when no client could be built.
	CredentialSetting string

	Timeout      time.Duration
	PollInterval time.Duration
}

// Sink sends messages through an email API Client.
type Sink struct {
	cfg    Config
	client Client
	log    *zap.Logger
}

// New creates an email API sink. A nil client means the credential is not
// configured; deliveries then fail without calling out.
func New(cfg Config, client Client, log *zap.Logger) *Sink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Sink{
		cfg:    cfg,
		client: client,
		log:    log.Named("emailapi"),
	}
}

// Name returns the sink name.
func (s *Sink) Name() string {
	return "emailapi"
}

// Deliver submits one send operation and waits for its terminal status.
func (s *Sink) Deliver(ctx context.Context, msg *email.CanonicalMessage) email.Outcome {
	if missing := s.missingSettings(); len(missing) > 0 {
		err := &sink.ConfigurationError{Sink: s.Name(), Missing: missing}
		s.log.Error("email API sink not configured", zap.Strings("missing", missing))
		return email.Failed(err)
	}

	req := BuildRequest(s.cfg.SenderAddress, msg)
	if len(req.Recipients.To) == 0 {
		s.log.Error("no recipients for email API send")
		return email.Failed(sink.ErrNoRecipients)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	poller, err := s.client.BeginSend(ctx, req)
	if err != nil {
		return s.fail(err)
	}

	result, err := PollUntilDone(ctx, poller, s.cfg.PollInterval)
	if err != nil {
		return s.fail(err)
	}

	if result.Status != StatusSucceeded {
		s.log.Error("email send did not succeed",
			zap.String("provider", s.client.Name()),
			zap.String("status", string(result.Status)),
			zap.String("id", result.ID),
			zap.String("error", result.Error),
		)
		return email.Failed(&sink.DeliveryError{
			Sink: s.Name(),
			Err:  &StatusError{ID: result.ID, Status: result.Status, Detail: result.Error},
		})
	}

	s.log.Info("email sent successfully",
		zap.String("provider", s.client.Name()),
		zap.String("id", result.ID),
		zap.Int("recipients", len(req.Recipients.To)),
	)
	return email.Delivered(result.ID)
}

func (s *Sink) fail(err error) email.Outcome {
	derr := &sink.DeliveryError{Sink: s.Name(), Err: err}
	s.log.Error("failed to send email",
		zap.String("provider", s.client.Name()),
		zap.Bool("timeout", derr.Timeout()),
		zap.Error(err),
	)
	return email.Failed(derr)
}

func (s *Sink) missingSettings() []string {
	var missing []string
	if s.cfg.SenderAddress == "" {
		missing = append(missing, "SENDER_ADDRESS")
	}
	if s.client == nil {
		setting := s.cfg.CredentialSetting
		if setting == "" {
			setting = "credential"
		}
		missing = append(missing, setting)
	}
	return missing
}

// BuildRequest converts a canonical message into a send request. The joined
// To field is split back into recipients, and the HTML body falls back to
// the plain text body so it is never empty.
func BuildRequest(sender string, msg *email.CanonicalMessage) *SendRequest {
	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	return &SendRequest{
		SenderAddress: sender,
		Content: Content{
			Subject:   msg.Subject,
			PlainText: msg.Body,
			HTML:      html,
		},
		Recipients: Recipients{
			To: sink.SplitRecipients(msg.To),
		},
	}
}
