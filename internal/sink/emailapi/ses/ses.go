// Package ses is an emailapi.Client backed by AWS SES v2. SendEmail is
// synchronous, so the returned operation is already terminal.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/smtp2webhook/internal/sink/emailapi"
)

// Config holds the settings for creating a Client.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SendEmailAPI is the subset of the SES v2 client used here.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Client sends email through SES.
type Client struct {
	api SendEmailAPI
}

// New creates a Client. Static credentials are used when both keys are set,
// otherwise the default AWS credential chain applies. SDK retries are
// disabled so each message is submitted at most once.
func New(ctx context.Context, cfg Config) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{api: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewWithClient creates a Client around an existing SES API, used for testing.
func NewWithClient(api SendEmailAPI) *Client {
	return &Client{api: api}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "ses"
}

// BeginSend sends the message and reports a completed operation.
func (c *Client) BeginSend(ctx context.Context, req *emailapi.SendRequest) (emailapi.Poller, error) {
	out, err := c.api.SendEmail(ctx, buildInput(req))
	if err != nil {
		return nil, fmt.Errorf("SES SendEmail failed: %w", err)
	}

	return emailapi.Completed(emailapi.SendResult{
		ID:     aws.ToString(out.MessageId),
		Status: emailapi.StatusSucceeded,
	}), nil
}

// buildInput converts a send request into a simple-content SES request.
func buildInput(req *emailapi.SendRequest) *sesv2.SendEmailInput {
	to := make([]string, 0, len(req.Recipients.To))
	for _, r := range req.Recipients.To {
		to = append(to, r.Address)
	}

	body := &types.Body{
		Text: &types.Content{
			Data:    aws.String(req.Content.PlainText),
			Charset: aws.String("UTF-8"),
		},
	}
	if req.Content.HTML != "" {
		body.Html = &types.Content{
			Data:    aws.String(req.Content.HTML),
			Charset: aws.String("UTF-8"),
		}
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(req.SenderAddress),
		Destination: &types.Destination{
			ToAddresses: to,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(req.Content.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: body,
			},
		},
	}
}
