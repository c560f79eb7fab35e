// Package stdout implements a Sink that prints canonical messages, for local
// development.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/shineum/smtp2webhook/internal/email"
	"github.com/shineum/smtp2webhook/internal/sink"
)

// Sink writes messages to a writer in a readable format.
type Sink struct {
	mu     sync.Mutex
	writer io.Writer
}

// New creates a Sink that writes to os.Stdout.
func New() *Sink {
	return &Sink{writer: os.Stdout}
}

// NewWithWriter creates a Sink that writes to w.
func NewWithWriter(w io.Writer) *Sink {
	return &Sink{writer: w}
}

// Deliver prints the message. A write error fails the delivery.
func (s *Sink) Deliver(_ context.Context, msg *email.CanonicalMessage) email.Outcome {
	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", msg.Timestamp)
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	b.WriteString("Body:\n")
	b.WriteString(msg.Body + "\n")
	b.WriteString("========================================\n")

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := io.WriteString(s.writer, b.String())
	if err != nil {
		return email.Failed(&sink.DeliveryError{Sink: s.Name(), Err: err})
	}
	return email.Delivered(fmt.Sprintf("%d bytes", n))
}

// Name returns the sink name.
func (s *Sink) Name() string {
	return "stdout"
}
