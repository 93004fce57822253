package solarapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
)

// APIVersion names a Solar API dialect.
type APIVersion string

const (
	V0 APIVersion = "0"
	V1 APIVersion = "1"
)

// Negotiation is the outcome of version discovery.
type Negotiation struct {
	Version APIVersion
	BaseURL *url.URL
	// Fallback is set when discovery failed and V0 was assumed.
	Fallback bool
	// CompatibilityRange is reported by V1 devices, e.g. "1.5-9".
	CompatibilityRange string
}

type versionInfo struct {
	APIVersion         interface{} `json:"APIVersion"`
	BaseURL            *string     `json:"BaseURL"`
	CompatibilityRange string      `json:"CompatibilityRange"`
}

// Negotiate queries GetAPIVersion once. When the endpoint cannot be reached
// or its answer cannot be parsed, V0 at the unchanged base is assumed, as
// older firmware lacks the endpoint. An unknown version string fails with
// ErrUnsupportedAPIVersion; the caller reconnects rather than retrying here.
func Negotiate(ctx context.Context, fetcher Fetcher, base *url.URL) (Negotiation, error) {
	logger := log.With().Str("component", "solarapi").Str("api_base", base.String()).Logger()

	ref, _ := url.Parse(EndpointAPIVersion)
	target := base.ResolveReference(ref).String()

	fallback := Negotiation{Version: V0, BaseURL: base, Fallback: true}

	raw, err := fetcher.Fetch(ctx, target, nil)
	if err != nil {
		if ctx.Err() != nil {
			return Negotiation{}, &TransportError{Endpoint: EndpointAPIVersion, Err: ctx.Err()}
		}
		logger.Warn().Err(err).Msg("cannot fetch API version, assuming V0")
		return fallback, nil
	}

	var info versionInfo
	if err := json.Unmarshal(raw, &info); err != nil || info.APIVersion == nil {
		logger.Warn().Err(err).Bytes("api_info", raw).Msg("cannot parse API version, assuming V0")
		return fallback, nil
	}

	logger.Debug().RawJSON("api_info", raw).Msg("api information")

	version := APIVersion(versionString(info.APIVersion))
	switch version {
	case V0, V1:
	default:
		logger.Error().Str("version", string(version)).Msg("no dialect for Solar API version")
		return Negotiation{}, &VersionError{Version: string(version), Raw: raw}
	}

	resolved := base
	if info.BaseURL != nil && *info.BaseURL != "" {
		ref, err := url.Parse(*info.BaseURL)
		if err != nil {
			return Negotiation{}, &EnvelopeError{Endpoint: EndpointAPIVersion, Reason: fmt.Sprintf("invalid BaseURL %q", *info.BaseURL), Raw: raw}
		}
		resolved = base.ResolveReference(ref)
	}

	return Negotiation{
		Version:            version,
		BaseURL:            resolved,
		CompatibilityRange: info.CompatibilityRange,
	}, nil
}

// Connect negotiates the version and binds the matching dialect to the
// resolved base URL.
func Connect(ctx context.Context, cfg Config) (Dialect, Negotiation, error) {
	if cfg.Fetcher == nil || cfg.BaseURL == nil {
		return nil, Negotiation{}, fmt.Errorf("solar api connect requires a fetcher and a base URL")
	}

	n, err := Negotiate(ctx, cfg.Fetcher, cfg.BaseURL)
	if err != nil {
		return nil, Negotiation{}, err
	}

	cfg.BaseURL = n.BaseURL
	d, err := NewDialect(n.Version, cfg)
	if err != nil {
		return nil, Negotiation{}, err
	}
	return d, n, nil
}

func versionString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
