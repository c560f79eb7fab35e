// Package extract resolves the canonical sender, recipients, subject and body
// of an inbound message from its parsed form and SMTP envelope.
//
// Every function is pure: no I/O, no errors, deterministic for its inputs.
// Unresolvable fields degrade to "" rather than failing the message.
package extract

import (
	"time"

	"github.com/shineum/smtp2webhook/internal/email"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// From resolves the sender. The envelope reverse path wins, then the header
// display text, then the first decoded header address, then a plain string
// header.
func From(p *email.ParsedMessage, env *email.Envelope) string {
	if env != nil && env.MailFrom != nil && env.MailFrom.Address != "" {
		return env.MailFrom.Address
	}
	if p == nil {
		return ""
	}
	if text, ok := p.From.Text(); ok && text != "" {
		return text
	}
	if addrs, ok := p.From.Values(); ok && len(addrs) > 0 && addrs[0].Address != "" {
		return addrs[0].Address
	}
	if s, ok := p.From.Plain(); ok {
		return s
	}
	return ""
}

// To resolves the recipients as one ", "-joined string. RCPT TO addresses
// take precedence over the To header, which may name mailboxes that were
// never submitted or be missing for BCC-only delivery.
func To(p *email.ParsedMessage, env *email.Envelope) string {
	if env != nil && len(env.RcptTo) > 0 {
		return email.JoinAddresses(env.RcptTo)
	}
	if p == nil {
		return ""
	}

	f := p.To
	if f.IsAbsent() {
		return ""
	}
	if s, ok := f.Plain(); ok {
		return s
	}
	if text, ok := f.Text(); ok && text != "" {
		return text
	}
	if addrs, ok := f.Values(); ok {
		return email.JoinAddresses(addrs)
	}
	if addrs, ok := f.List(); ok {
		return email.JoinAddresses(addrs)
	}
	return ""
}

// Subject returns the decoded subject or "".
func Subject(p *email.ParsedMessage) string {
	if p == nil || p.Subject == nil {
		return ""
	}
	return *p.Subject
}

// Body prefers the plain text part and falls back to HTML.
func Body(p *email.ParsedMessage) string {
	if p == nil {
		return ""
	}
	if p.Text != nil && *p.Text != "" {
		return *p.Text
	}
	if p.HTML != nil {
		return *p.HTML
	}
	return ""
}

// Canonicalize builds the canonical message, stamping it with now.
func Canonicalize(p *email.ParsedMessage, env *email.Envelope, now time.Time) email.CanonicalMessage {
	msg := email.CanonicalMessage{
		From:      From(p, env),
		To:        To(p, env),
		Subject:   Subject(p),
		Body:      Body(p),
		Timestamp: now.UTC().Format(TimestampLayout),
	}
	if p != nil && p.HTML != nil {
		msg.HTML = *p.HTML
	}
	return msg
}
