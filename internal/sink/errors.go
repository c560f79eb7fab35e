package sink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrNotConfigured marks a sink that is missing required settings.
	ErrNotConfigured = errors.New("sink not configured")

	// ErrNoRecipients is returned when a message has no usable recipient
	// for a sink that requires one.
	ErrNoRecipients = errors.New("no recipients")
)

// ConfigurationError names the settings a sink is missing. No delivery call
// is attempted when it is returned.
type ConfigurationError struct {
	Sink    string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: missing %s", e.Sink, ErrNotConfigured, strings.Join(e.Missing, ", "))
}

func (e *ConfigurationError) Unwrap() error {
	return ErrNotConfigured
}

// DeliveryError wraps a network or API failure during a delivery call.
type DeliveryError struct {
	Sink string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call failed because its deadline elapsed.
func (e *DeliveryError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Classify returns a short label for an outcome error, for metrics.
func Classify(err error) string {
	var derr *DeliveryError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotConfigured):
		return "configuration"
	case errors.Is(err, ErrNoRecipients):
		return "no_recipients"
	case errors.As(err, &derr) && derr.Timeout():
		return "timeout"
	default:
		return "delivery"
	}
}
