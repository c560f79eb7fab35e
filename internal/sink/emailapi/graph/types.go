package graph

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/shineum/smtp2webhook/internal/sink/emailapi"
)

type sendMailRequest struct {
	Message         sendMailMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

type sendMailMessage struct {
	Subject      string      `json:"subject"`
	Body         messageBody `json:"body"`
	ToRecipients []recipient `json:"toRecipients"`
}

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-success response from the sendMail endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Graph API error (HTTP %d): %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.StatusCode, e.Message)
}

func newAPIError(statusCode int, body []byte) *APIError {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error.Message != "" {
		return &APIError{StatusCode: statusCode, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return &APIError{StatusCode: statusCode, Message: string(body)}
}

// buildSendMailRequest maps a send request onto the sendMail body. HTML is
// sent when it differs from the plain text rendition.
func buildSendMailRequest(req *emailapi.SendRequest) *sendMailRequest {
	body := messageBody{ContentType: "text", Content: req.Content.PlainText}
	if req.Content.HTML != "" && req.Content.HTML != req.Content.PlainText {
		body = messageBody{ContentType: "html", Content: req.Content.HTML}
	}

	to := make([]recipient, 0, len(req.Recipients.To))
	for _, a := range req.Recipients.To {
		to = append(to, recipient{EmailAddress: emailAddress{Address: a.Address}})
	}

	return &sendMailRequest{
		Message: sendMailMessage{
			Subject:      req.Content.Subject,
			Body:         body,
			ToRecipients: to,
		},
	}
}
