package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	gosmtp "github.com/emersion/go-smtp"

	"github.com/shineum/smtp2webhook/internal/email"
	"github.com/shineum/smtp2webhook/internal/relay"
	smtptls "github.com/shineum/smtp2webhook/internal/tls"
)

// recordingHandler captures every message handed over by the server.
type recordingHandler struct {
	mu   sync.Mutex
	raws []string
	envs []email.Envelope
	err  error
}

func (h *recordingHandler) OnMessageComplete(_ context.Context, raw []byte, env email.Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.raws = append(h.raws, string(raw))
	h.envs = append(h.envs, env)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.raws)
}

// startServer serves on an ephemeral port until the test ends.
func startServer(t *testing.T, cfg ServerConfig, h MessageHandler) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(cfg, h, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv
}

func dial(t *testing.T, addr string) *gosmtp.Client {
	t.Helper()
	c, err := gosmtp.Dial(addr)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Hello("client.test"); err != nil {
		t.Fatalf("EHLO: %v", err)
	}
	return c
}

const testMessage = "From: a@x.com\r\nTo: b@y.com\r\nSubject: Hi\r\n\r\nHello\r\n"

func send(c *gosmtp.Client, from string, to []string, body string) error {
	if err := c.Mail(from, nil); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return err
	}
	return w.Close()
}

func smtpCode(err error) int {
	var serr *gosmtp.SMTPError
	if errors.As(err, &serr) {
		return serr.Code
	}
	return 0
}

func TestServer_HandsOverMessage(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	srv := startServer(t, ServerConfig{Domain: "relay.test"}, h)
	c := dial(t, srv.Addr())

	if err := send(c, "a@x.com", []string{"b@y.com", "c@y.com"}, testMessage); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := c.Quit(); err != nil {
		t.Errorf("QUIT: %v", err)
	}

	if h.count() != 1 {
		t.Fatalf("messages: got %d, want 1", h.count())
	}
	if !strings.Contains(h.raws[0], "Subject: Hi") {
		t.Errorf("raw message missing subject: %q", h.raws[0])
	}
	env := h.envs[0]
	if env.MailFrom == nil || env.MailFrom.Address != "a@x.com" {
		t.Errorf("MailFrom: got %+v, want a@x.com", env.MailFrom)
	}
	if len(env.RcptTo) != 2 || env.RcptTo[0].Address != "b@y.com" || env.RcptTo[1].Address != "c@y.com" {
		t.Errorf("RcptTo: got %+v, want [b@y.com c@y.com]", env.RcptTo)
	}
}

func TestServer_EnvelopeResetBetweenTransactions(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	srv := startServer(t, ServerConfig{}, h)
	c := dial(t, srv.Addr())

	if err := send(c, "a@x.com", []string{"b@y.com"}, testMessage); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := send(c, "", []string{"d@z.com"}, testMessage); err != nil {
		t.Fatalf("second send: %v", err)
	}

	if h.count() != 2 {
		t.Fatalf("messages: got %d, want 2", h.count())
	}
	second := h.envs[1]
	if second.MailFrom != nil {
		t.Errorf("MailFrom: got %+v, want nil for null reverse path", second.MailFrom)
	}
	if len(second.RcptTo) != 1 || second.RcptTo[0].Address != "d@z.com" {
		t.Errorf("RcptTo: got %+v, want [d@z.com]", second.RcptTo)
	}
}

func TestServer_ParseErrorRejected(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{err: &relay.ParseError{Err: errors.New("bad header")}}
	srv := startServer(t, ServerConfig{}, h)
	c := dial(t, srv.Addr())

	err := send(c, "a@x.com", []string{"b@y.com"}, testMessage)
	if got := smtpCode(err); got != 554 {
		t.Errorf("reply code: got %d (%v), want 554", got, err)
	}
}

func TestServer_OtherHandlerErrorIsTransient(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{err: errors.New("unexpected")}
	srv := startServer(t, ServerConfig{}, h)
	c := dial(t, srv.Addr())

	err := send(c, "a@x.com", []string{"b@y.com"}, testMessage)
	if got := smtpCode(err); got != 451 {
		t.Errorf("reply code: got %d (%v), want 451", got, err)
	}
}

func TestServer_NoAuthAdvertised(t *testing.T) {
	t.Parallel()

	srv := startServer(t, ServerConfig{}, &recordingHandler{})
	c := dial(t, srv.Addr())

	if ok, _ := c.Extension("AUTH"); ok {
		t.Error("AUTH advertised, want none")
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		t.Error("STARTTLS advertised without TLS config")
	}
}

func TestServer_StartTLS(t *testing.T) {
	t.Parallel()

	tlsConfig, err := smtptls.LoadOrGenerateTLS("", "", "localhost")
	if err != nil {
		t.Fatalf("tls config: %v", err)
	}

	h := &recordingHandler{}
	srv := startServer(t, ServerConfig{TLSConfig: tlsConfig}, h)
	c := dial(t, srv.Addr())

	if ok, _ := c.Extension("STARTTLS"); !ok {
		t.Fatal("STARTTLS not advertised")
	}
	if err := c.StartTLS(&tls.Config{InsecureSkipVerify: true}); err != nil {
		t.Fatalf("STARTTLS: %v", err)
	}
	if err := send(c, "a@x.com", []string{"b@y.com"}, testMessage); err != nil {
		t.Fatalf("send over TLS: %v", err)
	}
	if h.count() != 1 {
		t.Errorf("messages: got %d, want 1", h.count())
	}
}

func TestServer_MaxRecipients(t *testing.T) {
	t.Parallel()

	srv := startServer(t, ServerConfig{MaxRecipients: 1}, &recordingHandler{})
	c := dial(t, srv.Addr())

	if err := c.Mail("a@x.com", nil); err != nil {
		t.Fatalf("MAIL: %v", err)
	}
	if err := c.Rcpt("b@y.com", nil); err != nil {
		t.Fatalf("first RCPT: %v", err)
	}
	err := c.Rcpt("c@y.com", nil)
	if got := smtpCode(err); got != 452 {
		t.Errorf("second RCPT: got %d (%v), want 452", got, err)
	}
}

func TestServer_MaxMessageBytes(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	srv := startServer(t, ServerConfig{MaxMessageBytes: 64}, h)
	c := dial(t, srv.Addr())

	body := testMessage + strings.Repeat("x", 256) + "\r\n"
	err := send(c, "a@x.com", []string{"b@y.com"}, body)
	if got := smtpCode(err); got != 552 {
		t.Errorf("reply code: got %d (%v), want 552", got, err)
	}
	if h.count() != 0 {
		t.Errorf("messages: got %d, want 0", h.count())
	}
}

func TestServer_Addr(t *testing.T) {
	t.Parallel()

	srv := New(ServerConfig{}, &recordingHandler{}, nil)
	if got := srv.Addr(); got != "" {
		t.Errorf("Addr before serve: got %q, want empty", got)
	}
}

func TestServer_ShutdownStopsAccepting(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(ServerConfig{}, &recordingHandler{}, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: got %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		conn.Close()
		t.Error("dial after shutdown succeeded, want refusal")
	}
}
