package datamanager

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/resident-x/go-fronius/internal/datastore"
	"github.com/resident-x/go-fronius/internal/solarapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// VersionObserver is told about every successful negotiation.
type VersionObserver interface {
	ObserveVersion(version solarapi.APIVersion, fallback bool)
}

// Client is one connection to a Datamanager. The Solar API dialect is
// negotiated on first use and kept for the lifetime of the client.
type Client struct {
	base     *url.URL
	fetcher  solarapi.Fetcher
	store    *datastore.Store
	observer solarapi.Observer
	versions VersionObserver
	now      func() time.Time
	logger   zerolog.Logger

	mu          sync.Mutex
	dialect     solarapi.Dialect
	negotiation solarapi.Negotiation
}

// Option configures a Client.
type Option func(*Client)

// WithStore writes unpacked points into store instead of a private one.
func WithStore(store *datastore.Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithObserver reports every API request to o. When o also implements
// VersionObserver it is told about negotiations.
func WithObserver(o solarapi.Observer) Option {
	return func(c *Client) {
		c.observer = o
		if v, ok := o.(VersionObserver); ok {
			c.versions = v
		}
	}
}

// WithClock overrides the clock used to stamp data points.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client for the Datamanager at base.
func NewClient(base *url.URL, fetcher solarapi.Fetcher, opts ...Option) (*Client, error) {
	if base == nil || !base.IsAbs() {
		return nil, errors.New("datamanager url must be absolute")
	}
	if fetcher == nil {
		return nil, errors.New("datamanager client requires a fetcher")
	}

	c := &Client{
		base:    base,
		fetcher: fetcher,
		now:     time.Now,
		logger:  log.With().Str("component", "datamanager").Str("api_base", base.String()).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = datastore.New()
	}
	return c, nil
}

// SolarAPI returns the dialect spoken by the device, negotiating it on the
// first call. Failed negotiations are not cached.
func (c *Client) SolarAPI(ctx context.Context) (solarapi.Dialect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialect != nil {
		return c.dialect, nil
	}

	logger := c.logger
	d, n, err := solarapi.Connect(ctx, solarapi.Config{
		Fetcher:  c.fetcher,
		BaseURL:  c.base,
		Store:    c.store,
		Observer: c.observer,
		Logger:   &logger,
		Now:      c.now,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("cannot load Solar API dialect")
		return nil, err
	}

	c.dialect = d
	c.negotiation = n
	if c.versions != nil {
		c.versions.ObserveVersion(n.Version, n.Fallback)
	}

	c.logger.Info().
		Str("api_version", string(n.Version)).
		Str("base_url", n.BaseURL.String()).
		Bool("fallback", n.Fallback).
		Msg("attaching Solar API dialect")

	return d, nil
}

// Negotiation returns the negotiated version, if any.
func (c *Client) Negotiation() (solarapi.Negotiation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negotiation, c.dialect != nil
}

// Data returns the store the dialect writes into.
func (c *Client) Data() *datastore.Store {
	return c.store
}

// Close ends the connection: the negotiated dialect is dropped and the
// store is reset, so a later SolarAPI call negotiates afresh.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dialect = nil
	c.negotiation = solarapi.Negotiation{}
	c.store.Reset()
}
