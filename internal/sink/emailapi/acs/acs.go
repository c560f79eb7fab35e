// Package acs is an emailapi.Client for a communication-services style REST
// email API: a send is accepted with 202 and an Operation-Location that is
// polled until the operation reaches a terminal status.
package acs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/shineum/smtp2webhook/internal/sink/emailapi"
)

// APIVersion is the REST API version requested.
const APIVersion = "2023-03-31"

// Client sends email through the REST API.
type Client struct {
	cred       *Credential
	httpClient *http.Client
	now        func() time.Time
}

// New creates a Client from a connection string.
func New(connectionString string, httpClient *http.Client) (*Client, error) {
	cred, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		cred:       cred,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "acs"
}

// BeginSend submits the send request.
func (c *Client) BeginSend(ctx context.Context, req *emailapi.SendRequest) (emailapi.Poller, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	u := *c.cred.Endpoint
	u.Path += "/emails:send"
	u.RawQuery = "api-version=" + APIVersion

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	now := c.now()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("repeatability-request-id", uuid.NewString())
	httpReq.Header.Set("repeatability-first-sent", now.UTC().Format(http.TimeFormat))
	c.cred.sign(httpReq, body, now)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, data)
	}

	var op operationStatus
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("failed to decode send response: %w", err)
	}

	location := resp.Header.Get("Operation-Location")
	if location == "" {
		if op.ID == "" {
			return nil, fmt.Errorf("send response has neither Operation-Location nor id")
		}
		loc := *c.cred.Endpoint
		loc.Path += "/emails/operations/" + op.ID
		loc.RawQuery = "api-version=" + APIVersion
		location = loc.String()
	}

	return &poller{client: c, location: location, last: op.result()}, nil
}

// poller follows one operation through its Operation-Location.
type poller struct {
	client   *Client
	location string
	last     *emailapi.SendResult
	polled   bool
}

// Poll returns the status from the submit response first, then fetches the
// operation on every subsequent call.
func (p *poller) Poll(ctx context.Context) (*emailapi.SendResult, error) {
	if !p.polled && p.last != nil && p.last.Status.Terminal() {
		p.polled = true
		return p.last, nil
	}
	p.polled = true

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}
	p.client.cred.sign(req, nil, p.client.now())

	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, data)
	}

	var op operationStatus
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("failed to decode operation status: %w", err)
	}
	p.last = op.result()
	return p.last, nil
}
