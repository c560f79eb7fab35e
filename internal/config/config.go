// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the relay.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Sink names accepted by SINK.
const (
	SinkWebhook  = "webhook"
	SinkEmailAPI = "emailapi"
	SinkStdout   = "stdout"
)

// Email API providers accepted by EMAIL_API_PROVIDER.
const (
	ProviderACS   = "acs"
	ProviderSES   = "ses"
	ProviderGraph = "graph"
)

// defaultMaxMessageSize is 25 MB in bytes.
const defaultMaxMessageSize = 26214400

// Config holds the complete application configuration.
type Config struct {
	SMTP     SMTPConfig     `yaml:"smtp"`
	Sink     string         `yaml:"sink" validate:"oneof=webhook emailapi stdout"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	EmailAPI EmailAPIConfig `yaml:"email_api"`
	TLS      TLSConfig      `yaml:"tls"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SMTPConfig holds SMTP server configuration. Timeouts are in seconds.
type SMTPConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port" validate:"min=1,max=65535"`
	Domain              string `yaml:"domain" validate:"required"`
	MaxMessageSize      int64  `yaml:"max_message_size" validate:"min=1"`
	MaxRecipients       int    `yaml:"max_recipients" validate:"min=1"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout" validate:"min=1"`
	WriteTimeoutSeconds int    `yaml:"write_timeout" validate:"min=1"`
}

// WebhookConfig holds the webhook sink settings. The timeout is in
// milliseconds.
type WebhookConfig struct {
	URL       string `yaml:"url" validate:"omitempty,http_url"`
	TimeoutMS int    `yaml:"timeout_ms" validate:"min=1"`
}

// EmailAPIConfig holds the transactional email API sink settings.
type EmailAPIConfig struct {
	Provider         string      `yaml:"provider" validate:"oneof=acs ses graph"`
	SenderAddress    string      `yaml:"sender_address" validate:"omitempty,email"`
	ConnectionString string      `yaml:"connection_string"`
	SES              SESConfig   `yaml:"ses"`
	Graph            GraphConfig `yaml:"graph"`
	TimeoutMS        int         `yaml:"timeout_ms" validate:"min=1"`
	PollIntervalMS   int         `yaml:"poll_interval_ms" validate:"min=1"`
}

// SESConfig holds AWS SES settings. Keys may be left empty to use the
// default AWS credential chain.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GraphConfig holds the Microsoft Graph app registration. Mail is sent as
// SENDER_ADDRESS.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// TLSConfig controls STARTTLS. With no files a self-signed certificate is
// generated.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file" validate:"required_with=KeyFile"`
	KeyFile  string `yaml:"key_file" validate:"required_with=CertFile"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// MetricsConfig holds the optional metrics listener. Empty disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// Validate checks value shapes and ranges. Missing sink settings are not
// errors here; see SinkProblems.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SinkProblems lists the settings the selected sink still needs. The relay
// starts regardless and each delivery then fails with a configuration error.
func (c *Config) SinkProblems() []string {
	return c.problemsFor(c.Sink)
}

// Configured reports whether the named sink has everything it needs.
func (c *Config) Configured(sink string) bool {
	return len(c.problemsFor(sink)) == 0
}

func (c *Config) problemsFor(sink string) []string {
	var problems []string
	switch sink {
	case SinkWebhook:
		if c.Webhook.URL == "" {
			problems = append(problems, "WEBHOOK_URL is not set")
		}
	case SinkEmailAPI:
		if c.EmailAPI.SenderAddress == "" {
			problems = append(problems, "SENDER_ADDRESS is not set")
		}
		switch c.EmailAPI.Provider {
		case ProviderACS:
			if c.EmailAPI.ConnectionString == "" {
				problems = append(problems, "COMMUNICATION_SERVICES_CONNECTION_STRING is not set")
			}
		case ProviderSES:
			if c.EmailAPI.SES.Region == "" {
				problems = append(problems, "SES_REGION is not set")
			}
		case ProviderGraph:
			for _, v := range c.EmailAPI.Graph.Missing() {
				problems = append(problems, v+" is not set")
			}
		}
	}
	return problems
}

// Missing names the unset Graph settings.
func (g GraphConfig) Missing() []string {
	var missing []string
	if g.TenantID == "" {
		missing = append(missing, "GRAPH_TENANT_ID")
	}
	if g.ClientID == "" {
		missing = append(missing, "GRAPH_CLIENT_ID")
	}
	if g.ClientSecret == "" {
		missing = append(missing, "GRAPH_CLIENT_SECRET")
	}
	return missing
}

// ListenAddr returns the SMTP host:port to listen on.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.SMTP.Host, strconv.Itoa(c.SMTP.Port))
}

// ReadTimeout returns the SMTP read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.SMTP.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the SMTP write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.SMTP.WriteTimeoutSeconds) * time.Second
}

// WebhookTimeout returns the webhook request timeout.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhook.TimeoutMS) * time.Millisecond
}

// EmailAPITimeout returns the bound on one email API send, polling included.
func (c *Config) EmailAPITimeout() time.Duration {
	return time.Duration(c.EmailAPI.TimeoutMS) * time.Millisecond
}

// EmailAPIPollInterval returns the delay between status polls.
func (c *Config) EmailAPIPollInterval() time.Duration {
	return time.Duration(c.EmailAPI.PollIntervalMS) * time.Millisecond
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.SMTP.Host = "0.0.0.0"
	c.SMTP.Port = 25
	c.SMTP.Domain = "localhost"
	c.SMTP.MaxMessageSize = defaultMaxMessageSize
	c.SMTP.MaxRecipients = 100
	c.SMTP.ReadTimeoutSeconds = 60
	c.SMTP.WriteTimeoutSeconds = 60
	c.Sink = SinkWebhook
	c.Webhook.TimeoutMS = 10000
	c.EmailAPI.Provider = ProviderACS
	c.EmailAPI.TimeoutMS = 60000
	c.EmailAPI.PollIntervalMS = 1000
	c.TLS.Enabled = true
	c.Logging.Level = "info"
	c.Logging.Format = "json"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values, and
// malformed or non-positive numbers are ignored.
func (c *Config) applyEnvVars() {
	envString("SMTP_HOST", &c.SMTP.Host)
	envInt("SMTP_PORT", &c.SMTP.Port)
	envString("SMTP_DOMAIN", &c.SMTP.Domain)
	if v := os.Getenv("SMTP_MAX_MESSAGE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil && size > 0 {
			c.SMTP.MaxMessageSize = size
		}
	}
	envInt("SMTP_MAX_RECIPIENTS", &c.SMTP.MaxRecipients)
	envInt("SMTP_READ_TIMEOUT", &c.SMTP.ReadTimeoutSeconds)
	envInt("SMTP_WRITE_TIMEOUT", &c.SMTP.WriteTimeoutSeconds)

	if v := os.Getenv("SINK"); v != "" {
		c.Sink = strings.ToLower(v)
	}

	envString("WEBHOOK_URL", &c.Webhook.URL)
	envInt("WEBHOOK_TIMEOUT", &c.Webhook.TimeoutMS)

	if v := os.Getenv("EMAIL_API_PROVIDER"); v != "" {
		c.EmailAPI.Provider = strings.ToLower(v)
	}
	envString("SENDER_ADDRESS", &c.EmailAPI.SenderAddress)
	envString("COMMUNICATION_SERVICES_CONNECTION_STRING", &c.EmailAPI.ConnectionString)
	envString("SES_REGION", &c.EmailAPI.SES.Region)
	envString("SES_ACCESS_KEY_ID", &c.EmailAPI.SES.AccessKeyID)
	envString("SES_SECRET_ACCESS_KEY", &c.EmailAPI.SES.SecretAccessKey)
	envString("GRAPH_TENANT_ID", &c.EmailAPI.Graph.TenantID)
	envString("GRAPH_CLIENT_ID", &c.EmailAPI.Graph.ClientID)
	envString("GRAPH_CLIENT_SECRET", &c.EmailAPI.Graph.ClientSecret)
	envInt("EMAIL_API_TIMEOUT", &c.EmailAPI.TimeoutMS)
	envInt("EMAIL_API_POLL_INTERVAL", &c.EmailAPI.PollIntervalMS)

	if v := os.Getenv("TLS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.TLS.Enabled = enabled
		}
	}
	envString("TLS_CERT_FILE", &c.TLS.CertFile)
	envString("TLS_KEY_FILE", &c.TLS.KeyFile)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}

	envString("METRICS_LISTEN", &c.Metrics.Listen)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}
