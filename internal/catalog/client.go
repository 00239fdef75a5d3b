// SPDX-License-Identifier: MIT

// Package catalog resolves the recordable streams of a country from
// the radio.garden content API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tonband/aircheck/internal/cache"
	xglog "github.com/tonband/aircheck/internal/log"
	"github.com/tonband/aircheck/internal/metrics"
	"github.com/tonband/aircheck/internal/netutil"
	"github.com/tonband/aircheck/internal/ratelimit"
)

// Options tune the catalog client. Zero values fall back to defaults.
type Options struct {
	Timeout  time.Duration
	Limiter  *ratelimit.Limiter
	Cache    cache.Cache
	CacheTTL time.Duration
}

// Client talks to the two catalog endpoints and assembles streams.
type Client struct {
	base     string
	http     *http.Client
	limiter  *ratelimit.Limiter
	cache    cache.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// New creates a catalog client for the given API base URL.
func New(base string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(5, 5)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNoop()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 6 * time.Hour
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:  opts.Limiter,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   xglog.WithComponent("catalog"),
	}
}

// Places returns every location the catalog knows.
func (c *Client) Places(ctx context.Context) ([]Place, error) {
	var p placesResponse
	if err := c.getJSON(ctx, "places", c.base+"/places", &p); err != nil {
		return nil, err
	}
	return p.Data.List, nil
}

// Channels returns the playable streams listed for one place. Items
// without a page and items whose constructed URL fails validation are
// skipped with a log line.
func (c *Client) Channels(ctx context.Context, placeID string) ([]Stream, error) {
	endpoint := fmt.Sprintf("%s/page/%s/channels", c.base, url.PathEscape(placeID))
	var p channelsResponse
	if err := c.getJSON(ctx, "channels", endpoint, &p); err != nil {
		return nil, err
	}

	var streams []Stream
	for _, content := range p.Data.Content {
		for _, item := range content.Items {
			if item.Page == nil {
				c.logger.Debug().
					Str("place", placeID).
					Msg("skipping channel item without page")
				continue
			}
			id := channelID(item.Page.URL)
			if id == "" {
				c.logger.Warn().
					Str("place", placeID).
					Str("page_url", item.Page.URL).
					Msg("skipping channel with empty id")
				continue
			}
			raw := StreamURL(c.base, id)
			validated, err := netutil.ValidateURL(raw)
			if err != nil {
				c.logger.Warn().
					Err(err).
					Str("place", placeID).
					Str("channel", item.Page.Title).
					Msg("skipping channel with invalid stream url")
				continue
			}
			streams = append(streams, Stream{Name: item.Page.Title, URL: validated})
		}
	}
	return streams, nil
}

// ResolveStreams returns the streams of every place whose country
// matches exactly. Any catalog failure aborts the resolution.
func (c *Client) ResolveStreams(ctx context.Context, country string) ([]Stream, error) {
	c.logger.Info().Str("country", country).Msg("resolving streams")

	places, err := c.Places(ctx)
	if err != nil {
		return nil, err
	}

	var matched []Place
	for _, place := range places {
		if place.Country == country {
			matched = append(matched, place)
		}
	}
	c.logger.Info().
		Str("country", country).
		Int("places", len(matched)).
		Msg("catalog places matched")

	var streams []Stream
	for _, place := range matched {
		chs, err := c.Channels(ctx, place.ID)
		if err != nil {
			return nil, err
		}
		c.logger.Debug().
			Str("place", place.Title).
			Int("channels", len(chs)).
			Msg("place resolved")
		streams = append(streams, chs...)
	}

	c.logger.Info().
		Str("country", country).
		Int("streams", len(streams)).
		Msg("stream resolution complete")
	return streams, nil
}

// StreamURL builds the playable channel URL for a channel id.
func StreamURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/listen/" + url.PathEscape(id) + "/channel.mp3"
}

// channelID extracts the channel id from a listen page URL. The id is
// the last path segment; a value without slashes is taken as-is.
func channelID(pageURL string) string {
	if idx := strings.LastIndex(pageURL, "/"); idx >= 0 {
		return pageURL[idx+1:]
	}
	return pageURL
}

// fetch returns the response body for rawURL, serving from cache when
// possible. Fresh responses are cached best-effort.
func (c *Client) fetch(ctx context.Context, operation, rawURL string) ([]byte, error) {
	if data, ok := c.cache.Get(rawURL); ok {
		metrics.IncCatalogCache(true)
		c.logger.Debug().
			Str("operation", operation).
			Str("url", netutil.SanitizeURL(rawURL)).
			Msg("catalog cache hit")
		return data, nil
	}
	metrics.IncCatalogCache(false)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Sentinel: ErrUnreachable, Operation: operation, Endpoint: rawURL, Err: err}
	}

	start := time.Now()
	body, err := c.doRequest(ctx, operation, rawURL)
	metrics.ObserveCatalogRequest(operation, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(rawURL, body, c.cacheTTL); err != nil {
		c.logger.Warn().
			Err(err).
			Str("operation", operation).
			Msg("catalog cache write failed")
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, operation, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Sentinel: ErrUnreachable, Operation: operation, Endpoint: rawURL, Err: err}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Sentinel: ErrUnreachable, Operation: operation, Endpoint: rawURL, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, &Error{
			Sentinel:  ErrStatus,
			Operation: operation,
			Endpoint:  rawURL,
			Status:    res.StatusCode,
			Body:      strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &Error{Sentinel: ErrUnreachable, Operation: operation, Endpoint: rawURL, Err: err}
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, operation, rawURL string, v any) error {
	body, err := c.fetch(ctx, operation, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{Sentinel: ErrDecode, Operation: operation, Endpoint: rawURL, Err: err}
	}
	return nil
}
