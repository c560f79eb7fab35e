package main

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/shineum/smtp2webhook/internal/config"
	"github.com/shineum/smtp2webhook/internal/sink"
	"github.com/shineum/smtp2webhook/internal/sink/emailapi"
	"github.com/shineum/smtp2webhook/internal/sink/emailapi/acs"
	"github.com/shineum/smtp2webhook/internal/sink/emailapi/graph"
	"github.com/shineum/smtp2webhook/internal/sink/emailapi/ses"
	"github.com/shineum/smtp2webhook/internal/sink/stdout"
	"github.com/shineum/smtp2webhook/internal/sink/webhook"
)

// selectSink builds the one sink used for the life of the process. A sink
// whose credential cannot be built is still returned; its deliveries fail
// with a configuration error.
func selectSink(ctx context.Context, cfg *config.Config, httpClient *http.Client, log *zap.Logger) sink.Sink {
	switch cfg.Sink {
	case config.SinkEmailAPI:
		return emailapi.New(emailapi.Config{
			SenderAddress:     cfg.EmailAPI.SenderAddress,
			CredentialSetting: credentialSetting(cfg),
			Timeout:           cfg.EmailAPITimeout(),
			PollInterval:      cfg.EmailAPIPollInterval(),
		}, emailClient(ctx, cfg, httpClient, log), log)

	case config.SinkStdout:
		return stdout.New()

	default:
		return webhook.NewWithClient(webhook.Config{
			URL:       cfg.Webhook.URL,
			Timeout:   cfg.WebhookTimeout(),
			UserAgent: "smtp2webhook/" + version,
		}, httpClient, log)
	}
}

func credentialSetting(cfg *config.Config) string {
	switch cfg.EmailAPI.Provider {
	case config.ProviderSES:
		return "SES_REGION"
	case config.ProviderGraph:
		return strings.Join(cfg.EmailAPI.Graph.Missing(), ", ")
	default:
		return "COMMUNICATION_SERVICES_CONNECTION_STRING"
	}
}

// emailClient returns nil when the provider credential is missing or
// unusable.
func emailClient(ctx context.Context, cfg *config.Config, httpClient *http.Client, log *zap.Logger) emailapi.Client {
	switch cfg.EmailAPI.Provider {
	case config.ProviderSES:
		if cfg.EmailAPI.SES.Region == "" {
			return nil
		}
		c, err := ses.New(ctx, ses.Config{
			Region:          cfg.EmailAPI.SES.Region,
			AccessKeyID:     cfg.EmailAPI.SES.AccessKeyID,
			SecretAccessKey: cfg.EmailAPI.SES.SecretAccessKey,
		})
		if err != nil {
			log.Error("failed to create SES client", zap.Error(err))
			return nil
		}
		return c

	case config.ProviderGraph:
		if len(cfg.EmailAPI.Graph.Missing()) > 0 {
			return nil
		}
		return graph.New(graph.Config{
			TenantID:     cfg.EmailAPI.Graph.TenantID,
			ClientID:     cfg.EmailAPI.Graph.ClientID,
			ClientSecret: cfg.EmailAPI.Graph.ClientSecret,
		}, httpClient)

	default:
		if cfg.EmailAPI.ConnectionString == "" {
			return nil
		}
		c, err := acs.New(cfg.EmailAPI.ConnectionString, httpClient)
		if err != nil {
			log.Error("invalid COMMUNICATION_SERVICES_CONNECTION_STRING", zap.Error(err))
			return nil
		}
		return c
	}
}
