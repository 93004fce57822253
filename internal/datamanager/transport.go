// Package datamanager connects to a Fronius Datamanager over HTTP and
// binds the Solar API dialect it speaks.
package datamanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/resident-x/go-fronius/internal/solarapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 4 << 20

var errInvalidJSON = errors.New("response is not valid JSON")

// Transport fetches Solar API documents with HTTP GET. The Datamanager is
// a small embedded device, so requests are paced by a limiter shared by
// every caller of the transport.
type Transport struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *Transport) {
		t.client = client
	}
}

// WithMinInterval spaces requests at least d apart. Zero disables pacing.
func WithMinInterval(d time.Duration) TransportOption {
	return func(t *Transport) {
		if d <= 0 {
			t.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		t.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewTransport creates a transport with the given per-request timeout.
func NewTransport(timeout time.Duration, opts ...TransportOption) *Transport {
	t := &Transport{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  log.With().Str("component", "datamanager").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fetch implements solarapi.Fetcher. Non-200 answers are logged but still
// decoded, since the device reports errors inside the JSON envelope. The
// Content-Type header is ignored: firmware labels JSON as text/javascript.
func (t *Transport) Fetch(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	target, err := withQuery(endpoint, params)
	if err != nil {
		return nil, &solarapi.TransportError{Endpoint: endpoint, Err: err}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &solarapi.TransportError{Endpoint: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &solarapi.TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json, text/javascript")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &solarapi.TransportError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.logger.Error().
			Str("url", target).
			Int("status", resp.StatusCode).
			Str("reason", http.StatusText(resp.StatusCode)).
			Msg("error response")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &solarapi.TransportError{Endpoint: endpoint, Err: fmt.Errorf("reading body: %w", err)}
	}

	if !json.Valid(body) {
		t.logger.Error().Str("url", target).Bytes("content", body).Msg("cannot parse json")
		return nil, &solarapi.TransportError{Endpoint: endpoint, Body: body, Err: errInvalidJSON}
	}

	return json.RawMessage(body), nil
}

func withQuery(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", endpoint, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("url %q is not absolute", endpoint)
	}
	if len(params) == 0 {
		return u.String(), nil
	}

	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
