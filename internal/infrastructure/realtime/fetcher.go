// Package realtime reads the realtime context endpoints (kits, alerts,
// stats) that feed the query pipeline's first stage.  Responses are cached
// for a short TTL so a burst of questions costs one round trip per endpoint.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

// Endpoint paths relative to the context base URL.
const (
	PathKits   = "/kits"
	PathAlerts = "/alerts"
	PathStats  = "/stats"
)

const cacheKeyPrefix = "ctx:"

// Fetcher implements the query engine's ContextFetcher over HTTP.
type Fetcher struct {
	http   *resty.Client
	cache  redis.Cache
	ttl    time.Duration
	logger logging.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache caches each endpoint's body for the configured TTL.
func WithCache(c redis.Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithRestyClient replaces the underlying client; the base URL is kept.
func WithRestyClient(c *resty.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.http = c
		}
	}
}

// NewFetcher reads from cfg.ContextBaseURL.  An empty URL is a config error.
func NewFetcher(cfg config.QueryConfig, logger logging.Logger, opts ...Option) (*Fetcher, error) {
	base := strings.TrimRight(cfg.ContextBaseURL, "/")
	if base == "" {
		return nil, errors.Wrap(errors.ErrInvalidConfig, errors.ErrCodeValidation, "realtime context base URL is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	timeout := cfg.ContextTimeout
	if timeout <= 0 {
		timeout = config.DefaultQueryContextTimeout
	}

	f := &Fetcher{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		ttl:    cfg.ContextCacheTTL,
		logger: logger.Named("realtime"),
	}
	for _, o := range opts {
		o(f)
	}
	f.http.SetBaseURL(base)
	if cfg.APIKey != "" {
		f.http.SetAuthToken(cfg.APIKey)
	}
	return f, nil
}

// FetchKits returns the live kit records.
func (f *Fetcher) FetchKits(ctx context.Context) ([]map[string]interface{}, error) {
	return f.list(ctx, PathKits, "kits", "trackers")
}

// FetchAlerts returns the live alert records.
func (f *Fetcher) FetchAlerts(ctx context.Context) ([]map[string]interface{}, error) {
	return f.list(ctx, PathAlerts, "alerts")
}

// FetchStats returns the live fleet statistics object.
func (f *Fetcher) FetchStats(ctx context.Context) (map[string]interface{}, error) {
	body, err := f.body(ctx, PathStats)
	if err != nil {
		return nil, err
	}
	obj, ok := unwrap(body).(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrCodeQueryContextFailed, "%s: expected a JSON object", PathStats)
	}
	return obj, nil
}

func (f *Fetcher) list(ctx context.Context, path string, keys ...string) ([]map[string]interface{}, error) {
	body, err := f.body(ctx, path)
	if err != nil {
		return nil, err
	}
	v := unwrap(body)
	if obj, ok := v.(map[string]interface{}); ok {
		v = nil
		for _, k := range append(keys, "items", "results") {
			if arr, ok := obj[k].([]interface{}); ok {
				v = arr
				break
			}
		}
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrCodeQueryContextFailed, "%s: expected a JSON array", path)
	}
	out := make([]map[string]interface{}, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// body returns the decoded JSON of path, through the cache when present.
func (f *Fetcher) body(ctx context.Context, path string) (interface{}, error) {
	if f.cache == nil || f.ttl <= 0 {
		return f.get(ctx, path)
	}
	var raw json.RawMessage
	err := f.cache.GetOrSet(ctx, cacheKeyPrefix+strings.TrimPrefix(path, "/"), &raw, f.ttl,
		func(ctx context.Context) (interface{}, error) {
			v, err := f.get(ctx, path)
			if err != nil {
				return nil, err
			}
			return v, nil
		})
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeQueryContextFailed, "cached context body is not JSON")
	}
	return v, nil
}

func (f *Fetcher) get(ctx context.Context, path string) (interface{}, error) {
	start := time.Now()
	resp, err := f.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeQueryContextFailed, "GET "+path+" failed")
	}
	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeQueryContextFailed, "GET %s returned HTTP %d", path, resp.StatusCode())
	}
	var v interface{}
	if err := json.Unmarshal(resp.Body(), &v); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeQueryContextFailed, "GET "+path+" returned malformed JSON")
	}
	f.logger.Debug("realtime context fetched",
		logging.String("path", path),
		logging.Int("status", resp.StatusCode()),
		logging.Duration("elapsed", time.Since(start)))
	return v, nil
}

// unwrap strips a {"success": ..., "data": ...} envelope.
func unwrap(v interface{}) interface{} {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	if data, ok := obj["data"]; ok {
		if _, hasFlag := obj["success"]; hasFlag {
			return data
		}
	}
	return v
}

//Personal.AI order the ending
