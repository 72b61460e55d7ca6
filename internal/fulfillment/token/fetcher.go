package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

// Fetcher obtains a fresh access token from the provider.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// HTTPFetcher requests tokens with HTTP basic credentials.
type HTTPFetcher struct {
	client       *http.Client
	url          string
	clientID     string
	clientSecret string
}

// NewHTTPFetcher builds a fetcher for the token endpoint at url.
func NewHTTPFetcher(client *http.Client, url, clientID, clientSecret string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		client:       client,
		url:          url,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Fetch performs one token request. Every failure is reported as
// errorbank.KindUnauthorized carrying the raw body.
func (f *HTTPFetcher) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", errorbank.Unauthorized("build access token request", errorbank.WithCause(err))
	}
	req.SetBasicAuth(f.clientID, f.clientSecret)
	req.Header.Set("Accept", "application/json")

	res, err := f.client.Do(req)
	if err != nil {
		return "", errorbank.Unauthorized("request access token", errorbank.WithCause(err))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", errorbank.Unauthorized("read access token response", errorbank.WithCause(err))
	}

	if res.StatusCode != http.StatusOK {
		return "", errorbank.Unauthorized(
			fmt.Sprintf("access token request rejected with status %d", res.StatusCode),
			errorbank.WithResponse(string(body)),
			errorbank.WithDetail("status", res.StatusCode),
		)
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", errorbank.Unauthorized("decode access token response",
			errorbank.WithCause(err), errorbank.WithResponse(string(body)))
	}
	if payload.AccessToken == "" {
		return "", errorbank.Unauthorized("access token missing from response", errorbank.WithResponse(string(body)))
	}

	return payload.AccessToken, nil
}
