package emailapi

import (
	"context"

	"github.com/shineum/smtp2webhook/internal/email"
)

// Status is the provider's status of a send operation.
type Status string

const (
	StatusNotStarted Status = "NotStarted"
	StatusRunning    Status = "Running"
	StatusSucceeded  Status = "Succeeded"
	StatusFailed     Status = "Failed"
	StatusCanceled   Status = "Canceled"
)

// Terminal reports whether no further status change will happen.
func (s Status) Terminal() bool {
	return s != StatusNotStarted && s != StatusRunning && s != ""
}

// SendRequest is the provider-neutral send request. The JSON encoding is
// the REST request body.
type SendRequest struct {
	SenderAddress string     `json:"senderAddress"`
	Content       Content    `json:"content"`
	Recipients    Recipients `json:"recipients"`
}

// Content holds the subject and both body renditions.
type Content struct {
	Subject   string `json:"subject"`
	PlainText string `json:"plainText"`
	HTML      string `json:"html"`
}

// Recipients holds the recipient list.
type Recipients struct {
	To []email.Address `json:"to"`
}

// SendResult is the state of a send operation at one point in time.
type SendResult struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Error  string `json:"-"`
}

// Client submits send operations.
type Client interface {
	// BeginSend submits the request and returns a poller for the
	// resulting operation.
	BeginSend(ctx context.Context, req *SendRequest) (Poller, error)

	// Name identifies the provider in logs.
	Name() string
}

// Poller reports the current status of one send operation.
type Poller interface {
	Poll(ctx context.Context) (*SendResult, error)
}
