// Package sink defines the delivery capability that forwards canonical
// messages to an external system.
package sink

import (
	"context"
	"strings"

	"github.com/shineum/smtp2webhook/internal/email"
)

// Sink delivers canonical messages to one external system. Exactly one sink
// is selected at startup.
type Sink interface {
	// Deliver makes a single delivery attempt. It never returns an error
	// value and never retries: every failure is reported as a failed
	// Outcome.
	Deliver(ctx context.Context, msg *email.CanonicalMessage) email.Outcome

	// Name returns the sink name used in logs and metrics.
	Name() string
}

// SplitRecipients reverses the ", " join of a canonical To field into
// individual recipients. Blank entries are dropped.
func SplitRecipients(to string) []email.Address {
	var out []email.Address
	for _, part := range strings.Split(to, ",") {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}
		out = append(out, email.Address{Address: addr})
	}
	return out
}
