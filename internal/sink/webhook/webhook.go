// Package webhook implements a Sink that POSTs the canonical message as a
// flat JSON document to a configured URL.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/shineum/smtp2webhook/internal/email"
	"github.com/shineum/smtp2webhook/internal/sink"
)

// DefaultTimeout bounds a single POST when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Config holds the webhook endpoint settings.
type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Sink posts canonical messages to a webhook.
type Sink struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

// New creates a webhook Sink. An empty URL is accepted here; each delivery
// then fails with a configuration error.
func New(cfg Config, log *zap.Logger) *Sink {
	return NewWithClient(cfg, &http.Client{}, log)
}

// NewWithClient creates a webhook Sink using the given HTTP client.
func NewWithClient(cfg Config, client *http.Client, log *zap.Logger) *Sink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Sink{
		cfg:    cfg,
		client: client,
		log:    log.Named("webhook"),
	}
}

// Name returns the sink name.
func (s *Sink) Name() string {
	return "webhook"
}

// Deliver POSTs the message once. Any HTTP response counts as delivered and
// the status code is the reference; transport errors and timeouts fail.
func (s *Sink) Deliver(ctx context.Context, msg *email.CanonicalMessage) email.Outcome {
	if s.cfg.URL == "" {
		err := &sink.ConfigurationError{Sink: s.Name(), Missing: []string{"WEBHOOK_URL"}}
		s.log.Error("WEBHOOK_URL not configured")
		return email.Failed(err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("failed to encode webhook payload", zap.Error(err))
		return email.Failed(&sink.DeliveryError{Sink: s.Name(), Err: fmt.Errorf("encode payload: %w", err)})
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		s.log.Error("failed to create webhook request", zap.Error(err))
		return email.Failed(&sink.DeliveryError{Sink: s.Name(), Err: err})
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		derr := &sink.DeliveryError{Sink: s.Name(), Err: err}
		s.log.Error("failed to send webhook",
			zap.Bool("timeout", derr.Timeout()),
			zap.Error(err),
		)
		return email.Failed(derr)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Warn("webhook responded with non-success status", zap.Int("status", resp.StatusCode))
	} else {
		s.log.Info("webhook sent successfully", zap.Int("status", resp.StatusCode))
	}

	return email.Delivered(strconv.Itoa(resp.StatusCode))
}
