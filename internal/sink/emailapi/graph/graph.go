// Package graph is an emailapi.Client backed by the Microsoft Graph
// sendMail endpoint. Graph accepts a send synchronously with 202, so the
// returned operation is already terminal.
package graph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/shineum/smtp2webhook/internal/sink/emailapi"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Config holds the app registration used for client-credentials auth.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Client sends mail as the request's sender address.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      *tokenCache
}

// New creates a Client against the public Graph and login endpoints.
func New(cfg Config, httpClient *http.Client) *Client {
	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID))
	return newWithURLs(cfg, graphBaseURL, tokenURL, httpClient)
}

func newWithURLs(cfg Config, baseURL, tokenURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, httpClient),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "graph"
}

// BeginSend posts the message once. A 401 refreshes the token and posts
// again; the rejected attempt was never accepted, so at most one send
// goes through.
func (c *Client) BeginSend(ctx context.Context, req *emailapi.SendRequest) (emailapi.Poller, error) {
	body, err := json.Marshal(buildSendMailRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := c.baseURL + "/users/" + url.PathEscape(req.SenderAddress) + "/sendMail"
	requestID := uuid.NewString()

	token, err := c.token.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	status, data, err := c.post(ctx, endpoint, token, requestID, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if token, err = c.token.ForceRefresh(ctx); err != nil {
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}
		if status, data, err = c.post(ctx, endpoint, token, requestID, body); err != nil {
			return nil, err
		}
	}

	if status != http.StatusAccepted && status != http.StatusOK {
		return nil, newAPIError(status, data)
	}

	return emailapi.Completed(emailapi.SendResult{
		ID:     requestID,
		Status: emailapi.StatusSucceeded,
	}), nil
}

func (c *Client) post(ctx context.Context, endpoint, token, requestID string, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("client-request-id", requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("sendMail request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data, nil
}
