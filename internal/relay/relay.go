// Package relay turns a completed SMTP transaction into exactly one sink
// delivery attempt.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shineum/smtp2webhook/internal/email"
	"github.com/shineum/smtp2webhook/internal/extract"
	"github.com/shineum/smtp2webhook/internal/metrics"
	"github.com/shineum/smtp2webhook/internal/parser"
	"github.com/shineum/smtp2webhook/internal/sink"
)

// Options tunes a Coordinator. Zero values select the production defaults.
type Options struct {
	Parse   func(raw []byte) (*email.ParsedMessage, error)
	Now     func() time.Time
	Log     *zap.Logger
	Metrics *metrics.Recorder
}

// Coordinator owns the parse, extract, deliver sequence for each message.
// It is safe for concurrent use when its sink is.
type Coordinator struct {
	sink    sink.Sink
	parse   func(raw []byte) (*email.ParsedMessage, error)
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Recorder
}

// New returns a Coordinator delivering to s.
func New(s sink.Sink, opts Options) *Coordinator {
	c := &Coordinator{
		sink:    s,
		parse:   opts.Parse,
		now:     opts.Now,
		log:     opts.Log,
		metrics: opts.Metrics,
	}
	if c.parse == nil {
		c.parse = parser.Parse
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// OnMessageComplete handles one message. It returns a *ParseError when raw
// cannot be parsed; in every other case, including sink failure, it returns
// nil and the transport acknowledges the message.
func (c *Coordinator) OnMessageComplete(ctx context.Context, raw []byte, env email.Envelope) error {
	log := c.log.With(zap.String("message_id", uuid.NewString()))
	c.metrics.MessageReceived()

	parsed, err := c.parse(raw)
	if err != nil {
		c.metrics.MessageRejected("parse")
		log.Warn("rejecting unparseable message", zap.Error(err), zap.Int("bytes", len(raw)))
		return &ParseError{Err: err}
	}

	msg := extract.Canonicalize(parsed, &env, c.now())
	from := orUnknown(msg.From)
	log.Info("Received email: "+msg.Subject+" from "+from,
		zap.String("subject", msg.Subject),
		zap.String("from", from),
		zap.String("to", orUnknown(msg.To)),
	)

	start := time.Now()
	outcome := c.deliver(ctx, &msg)
	elapsed := time.Since(start)

	if outcome.Delivered() {
		c.metrics.Delivery(c.sink.Name(), "delivered", elapsed)
		log.Info("message delivered",
			zap.String("sink", c.sink.Name()),
			zap.String("reference", outcome.Reference),
			zap.Duration("elapsed", elapsed),
		)
		return nil
	}

	c.metrics.Delivery(c.sink.Name(), sink.Classify(outcome.Err), elapsed)
	log.Error("message delivery failed",
		zap.String("sink", c.sink.Name()),
		zap.String("reason", outcome.Reason()),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// deliver calls the sink once, converting a panic into a failed outcome.
func (c *Coordinator) deliver(ctx context.Context, msg *email.CanonicalMessage) (out email.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = email.Failed(&sink.DeliveryError{Sink: c.sink.Name(), Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	return c.sink.Deliver(ctx, msg)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
