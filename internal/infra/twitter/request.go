// Package twitter opens signed streaming connections to the firehose
// endpoint.
//
// This package contains:
//   - Credentials and RequestBuilder: OAuth 1.0a request signing
//   - Source: a domain.Dialer yielding raw body chunks
//   - failure mapping from net/http errors to domain.TransportError
package twitter

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

// Credentials holds the OAuth 1.0a application and user keys.
type Credentials struct {
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	AccessToken    string `yaml:"access_token"`
	AccessSecret   string `yaml:"access_secret"`
}

// Validate checks that every key is present.
func (c Credentials) Validate() error {
	var missing []string
	if c.ConsumerKey == "" {
		missing = append(missing, "consumer_key")
	}
	if c.ConsumerSecret == "" {
		missing = append(missing, "consumer_secret")
	}
	if c.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if c.AccessSecret == "" {
		missing = append(missing, "access_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequestBuilder builds streaming requests and signs them on the way out.
// The signature (nonce, timestamp) is computed per request, so every
// reconnect carries a fresh one.
type RequestBuilder struct {
	client *http.Client
}

// NewRequestBuilder creates a RequestBuilder whose client signs with creds.
func NewRequestBuilder(creds Credentials) *RequestBuilder {
	base := &http.Client{
		// No overall timeout: the response body never ends.
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)

	return &RequestBuilder{client: config.Client(ctx, token)}
}

// Build creates the request for endpoint. For POST, params travel as a
// form body; otherwise they are appended to the query string.
func (b *RequestBuilder) Build(
	ctx context.Context,
	method string,
	endpoint string,
	params url.Values,
) (*http.Request, error) {
	if method == "" {
		method = http.MethodGet
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(params.Encode()))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		if len(params) > 0 {
			q := u.Query()
			for k, vs := range params {
				for _, v := range vs {
					q.Add(k, v)
				}
			}
			u.RawQuery = q.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
	}
	req.Header.Set("User-Agent", "firehose/1.0")
	return req, nil
}

// Client returns the signing HTTP client.
func (b *RequestBuilder) Client() *http.Client {
	return b.client
}

// Close releases idle connections.
func (b *RequestBuilder) Close() {
	b.client.CloseIdleConnections()
}
