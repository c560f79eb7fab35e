// Package email defines the message model shared by the parser, the field
// extractor, the sinks and the intake coordinator.
package email

// Envelope holds the SMTP transaction addresses negotiated with MAIL FROM and
// RCPT TO. They are independent of the message headers.
type Envelope struct {
	// MailFrom is nil when the transport has no reverse path to report.
	MailFrom *Address
	RcptTo   []Address
}

// ParsedMessage is the structured decoding of one raw RFC 5322 message.
// Optional scalar fields are nil when the header or body part is absent.
type ParsedMessage struct {
	Subject *string
	Text    *string
	HTML    *string
	From    AddressField
	To      AddressField
}

// CanonicalMessage is the normalized representation handed to a sink.
// The JSON encoding is the webhook payload.
type CanonicalMessage struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp"`

	// HTML is the decoded text/html part, kept for sinks that send a
	// separate HTML body. It is never part of the webhook payload.
	HTML string `json:"-"`
}

// String returns a pointer to s, for building ParsedMessage values.
func String(s string) *string {
	return &s
}
