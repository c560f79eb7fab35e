// Package smtp accepts mail over SMTP and passes each completed message on.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/shineum/smtp2webhook/internal/email"
)

// shutdownTimeout is the maximum time to wait for in-flight sessions
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

// MessageHandler receives each completed DATA transaction. A non-nil error
// refuses the message; see replyFor for the SMTP reply chosen.
type MessageHandler interface {
	OnMessageComplete(ctx context.Context, raw []byte, env email.Envelope) error
}

// ServerConfig holds the configuration for an SMTP server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., "0.0.0.0:25").
	ListenAddr string

	// Domain is announced in the greeting and EHLO responses.
	Domain string

	// TLSConfig enables STARTTLS when non-nil.
	TLSConfig *tls.Config

	MaxMessageBytes int64
	MaxRecipients   int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// Server accepts SMTP connections and hands every completed message to a
// MessageHandler. It never offers AUTH.
type Server struct {
	config  ServerConfig
	handler MessageHandler
	log     *zap.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new SMTP Server with the given configuration.
func New(cfg ServerConfig, handler MessageHandler, log *zap.Logger) *Server {
	if cfg.Domain == "" {
		cfg.Domain = "localhost"
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Server{
		config:  cfg,
		handler: handler,
		log:     log.Named("smtp"),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. On cancellation
// it stops accepting and waits up to 30 seconds for in-flight sessions.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := s.newServer(ctx)

	s.log.Info("SMTP server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("domain", s.config.Domain),
		zap.Bool("tls_enabled", s.config.TLSConfig != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, gosmtp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down SMTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("shutdown timeout reached, forcing close", zap.Error(err))
		_ = srv.Close()
	} else {
		s.log.Info("all sessions completed")
	}
	// Shutdown can win the race against Serve registering ln.
	_ = ln.Close()

	if err := <-errCh; err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) newServer(ctx context.Context) *gosmtp.Server {
	be := &backend{
		ctx:     context.WithoutCancel(ctx),
		handler: s.handler,
		log:     s.log,
	}

	srv := gosmtp.NewServer(be)
	srv.Addr = s.config.ListenAddr
	srv.Domain = s.config.Domain
	srv.TLSConfig = s.config.TLSConfig
	srv.MaxMessageBytes = s.config.MaxMessageBytes
	srv.MaxRecipients = s.config.MaxRecipients
	srv.ReadTimeout = s.config.ReadTimeout
	srv.WriteTimeout = s.config.WriteTimeout
	srv.ErrorLog = zap.NewStdLog(s.log)
	return srv
}
