// Package parser decodes raw RFC 5322 messages, including MIME multipart
// bodies, into the ParsedMessage model.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/shineum/smtp2webhook/internal/email"
)

// Parse parses a raw message. Header values are decoded (RFC 2047 words,
// declared charsets) and the first inline text/plain and text/html parts
// become the text and HTML bodies. Attachments are skipped.
//
// Only a message whose header block cannot be read is an error. A body
// that breaks off midway keeps whatever was decoded before the break, and
// a part with an invalid transfer encoding is left unset.
func Parse(raw []byte) (*email.ParsedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		if !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("failed to parse message: %w", err)
		}
		zap.L().Warn("unknown charset in message, using raw bytes", zap.Error(err))
	}
	defer mr.Close()

	result := &email.ParsedMessage{
		From: addressField(mr.Header, "From"),
		To:   addressField(mr.Header, "To"),
	}

	if mr.Header.Has("Subject") {
		subject, err := mr.Header.Subject()
		if err != nil {
			subject = mr.Header.Get("Subject")
		}
		result.Subject = email.String(subject)
	}

	readBodies(mr, result)

	return result, nil
}

// readBodies walks every part of the message, nested multiparts included.
// Body errors never fail the message: the walk stops at a broken
// structure, and a part that fails to decode is left unset.
func readBodies(mr *mail.Reader, result *email.ParsedMessage) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil && !message.IsUnknownCharset(err) {
			zap.L().Warn("unreadable message body, keeping decoded parts",
				zap.Error(err),
				zap.Bool("has_text", result.Text != nil),
				zap.Bool("has_html", result.HTML != nil),
			)
			return
		}
		if err != nil {
			zap.L().Warn("unknown charset in part, using raw bytes", zap.Error(err))
		}
		if part == nil {
			continue
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			// *mail.AttachmentHeader
			continue
		}

		mediaType, _, err := h.ContentType()
		if err != nil || mediaType == "" {
			mediaType = "text/plain"
		}
		mediaType = strings.ToLower(mediaType)

		switch mediaType {
		case "text/plain":
			if result.Text == nil {
				result.Text = readPart(part.Body, mediaType)
			}
		case "text/html":
			if result.HTML == nil {
				result.HTML = readPart(part.Body, mediaType)
			}
		}
	}
}

// readPart returns nil when the part body cannot be decoded.
func readPart(r io.Reader, mediaType string) *string {
	body, err := io.ReadAll(r)
	if err != nil {
		zap.L().Warn("failed to decode body part, skipping it",
			zap.String("content_type", mediaType),
			zap.Error(err),
		)
		return nil
	}
	return email.String(string(body))
}

// addressField decodes an address header. A well-formed header becomes an
// object with display text and decoded list; one that does not parse as an
// address list is kept as a plain string.
func addressField(h mail.Header, key string) email.AddressField {
	if !h.Has(key) {
		return email.NoAddress()
	}

	list, err := h.AddressList(key)
	if err != nil {
		text, textErr := h.Text(key)
		if textErr != nil {
			text = h.Get(key)
		}
		return email.AddressString(strings.TrimSpace(text))
	}

	addrs := make([]email.Address, 0, len(list))
	display := make([]string, 0, len(list))
	for _, a := range list {
		addrs = append(addrs, email.Address{Address: a.Address})
		display = append(display, formatAddress(a))
	}

	return email.AddressObject(strings.Join(display, ", "), addrs)
}

func formatAddress(a *mail.Address) string {
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}
