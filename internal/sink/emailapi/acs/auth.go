package acs

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credential is the endpoint and access key of a communication resource.
type Credential struct {
	Endpoint  *url.URL
	AccessKey []byte
}

// ParseConnectionString parses "endpoint=https://...;accesskey=<base64>".
// Keys are case-insensitive and may appear in any order.
func ParseConnectionString(s string) (*Credential, error) {
	var endpoint, key string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid connection string segment %q", part)
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "endpoint":
			endpoint = strings.TrimSpace(v)
		case "accesskey":
			key = strings.TrimSpace(v)
		}
	}

	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("connection string requires endpoint and accesskey")
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", endpoint)
	}

	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("access key is not valid base64: %w", err)
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	return &Credential{Endpoint: u, AccessKey: decoded}, nil
}

// sign adds the x-ms-date, x-ms-content-sha256 and HMAC-SHA256
// Authorization headers to req.
func (c *Credential) sign(req *http.Request, body []byte, now time.Time) {
	sum := sha256.Sum256(body)
	contentHash := base64.StdEncoding.EncodeToString(sum[:])
	date := now.UTC().Format(http.TimeFormat)

	pathAndQuery := req.URL.EscapedPath()
	if req.URL.RawQuery != "" {
		pathAndQuery += "?" + req.URL.RawQuery
	}

	stringToSign := req.Method + "\n" + pathAndQuery + "\n" + date + ";" + req.URL.Host + ";" + contentHash

	mac := hmac.New(sha256.New, c.AccessKey)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-content-sha256", contentHash)
	req.Header.Set("Authorization", "HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="+signature)
}
