package smtp

import (
	"context"
	"errors"
	"io"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/shineum/smtp2webhook/internal/email"
	"github.com/shineum/smtp2webhook/internal/relay"
)

var (
	errUnparseable = &gosmtp.SMTPError{
		Code:         554,
		EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
		Message:      "Message could not be parsed",
	}
	errLocal = &gosmtp.SMTPError{
		Code:         451,
		EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
		Message:      "Requested action aborted: local error in processing",
	}
)

type backend struct {
	ctx     context.Context
	handler MessageHandler
	log     *zap.Logger
}

func (b *backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	remote := ""
	if addr := c.Conn().RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	b.log.Debug("session opened", zap.String("remote", remote))

	return &session{
		ctx:     b.ctx,
		handler: b.handler,
		log:     b.log.With(zap.String("remote", remote)),
	}, nil
}

// session collects one envelope per transaction. It does not implement
// AuthSession, so AUTH is never advertised.
type session struct {
	ctx     context.Context
	handler MessageHandler
	log     *zap.Logger

	env email.Envelope
}

func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.env.MailFrom = nil
	if from != "" {
		s.env.MailFrom = &email.Address{Address: from}
	}
	return nil
}

func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	s.env.RcptTo = append(s.env.RcptTo, email.Address{Address: to})
	return nil
}

func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.log.Warn("failed to read message data", zap.Error(err))
		return err
	}

	env := s.env
	s.env = email.Envelope{}

	return replyFor(s.handler.OnMessageComplete(s.ctx, raw, env))
}

func (s *session) Reset() {
	s.env = email.Envelope{}
}

func (s *session) Logout() error {
	s.log.Debug("session closed")
	return nil
}

// replyFor maps a handler error onto the SMTP reply sent after DATA.
func replyFor(err error) error {
	if err == nil {
		return nil
	}
	var perr *relay.ParseError
	if errors.As(err, &perr) {
		return errUnparseable
	}
	return errLocal
}
