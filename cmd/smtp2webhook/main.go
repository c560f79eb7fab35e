// Package main is the entry point for the smtp2webhook relay.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shineum/smtp2webhook/internal/config"
	"github.com/shineum/smtp2webhook/internal/logging"
	"github.com/shineum/smtp2webhook/internal/metrics"
	"github.com/shineum/smtp2webhook/internal/relay"
	"github.com/shineum/smtp2webhook/internal/smtp"
	smtptls "github.com/shineum/smtp2webhook/internal/tls"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var (
		configPath string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:          "smtp2webhook",
		Short:        "Relay inbound SMTP mail to a webhook or a transactional email API",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			zap.ReplaceGlobals(log)

			return run(cmd.Context(), cfg, log)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to YAML configuration file (optional)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(parent context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	serverCfg := smtp.ServerConfig{
		ListenAddr:      cfg.ListenAddr(),
		Domain:          cfg.SMTP.Domain,
		MaxMessageBytes: cfg.SMTP.MaxMessageSize,
		MaxRecipients:   cfg.SMTP.MaxRecipients,
		ReadTimeout:     cfg.ReadTimeout(),
		WriteTimeout:    cfg.WriteTimeout(),
	}

	tlsMode := "disabled"
	if cfg.TLS.Enabled {
		tlsConfig, err := smtptls.LoadOrGenerateTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.SMTP.Domain)
		if err != nil {
			return fmt.Errorf("failed to setup TLS: %w", err)
		}
		serverCfg.TLSConfig = tlsConfig
		tlsMode = "self-signed"
		if cfg.TLS.CertFile != "" {
			tlsMode = "file"
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(reg)

	s := selectSink(ctx, cfg, http.DefaultClient, log)
	logBanner(cfg, s.Name(), tlsMode, log)

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, metrics.Handler(reg), log); err != nil {
				log.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	coordinator := relay.New(s, relay.Options{
		Log:     log.Named("relay"),
		Metrics: recorder,
	})
	server := smtp.New(serverCfg, coordinator, log)

	// Blocks until ctx is cancelled.
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("SMTP server: %w", err)
	}

	log.Info("smtp2webhook stopped")
	return nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// logBanner reports what the relay is about to do. Missing sink settings
// are errors in the log but never stop startup.
func logBanner(cfg *config.Config, sinkName, tlsMode string, log *zap.Logger) {
	log.Info("starting smtp2webhook",
		zap.String("version", version),
		zap.String("listen", cfg.ListenAddr()),
		zap.String("domain", cfg.SMTP.Domain),
		zap.String("sink", sinkName),
		zap.String("tls_mode", tlsMode),
		zap.String("metrics", cfg.Metrics.Listen),
	)

	for _, name := range []string{config.SinkWebhook, config.SinkEmailAPI} {
		status := "configured"
		if !cfg.Configured(name) {
			status = "NOT CONFIGURED"
		}
		log.Info("sink status", zap.String("sink", name), zap.String("status", status))
	}

	for _, problem := range cfg.SinkProblems() {
		log.Error("selected sink is not fully configured; deliveries will fail",
			zap.String("sink", cfg.Sink),
			zap.String("problem", problem),
		)
	}
}
