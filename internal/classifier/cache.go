package classifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sales-dashboard/internal/observability"
)

// Source opens the raw classification CSV.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

type FileSource struct {
	Path string
}

func (s FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open classifier file: %w", err)
	}
	return f, nil
}

type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch classifier csv: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch classifier csv: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// SourceFor picks an HTTP source for http(s) URLs and a file source otherwise.
// An empty location yields nil.
func SourceFor(location string) Source {
	switch {
	case location == "":
		return nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return HTTPSource{URL: location}
	default:
		return FileSource{Path: location}
	}
}

const (
	loadKey   = "load"
	reloadKey = "reload"
)

const (
	defaultRetryInterval = 30 * time.Second
	defaultFetchTimeout  = time.Minute
)

// Cache loads the classification table once and shares it. Concurrent
// callers of Load wait on the same in-flight fetch, which is bound by the
// cache's fetch timeout rather than any caller's context. A caller that gives
// up early gets its own context error and the fetch carries on for the rest.
// After a failed fetch, Load returns the failure without refetching until the
// retry interval has passed.
type Cache struct {
	source        Source
	logger        *slog.Logger
	group         singleflight.Group
	retryInterval time.Duration
	fetchTimeout  time.Duration

	mu       sync.RWMutex
	table    Table
	lastErr  error
	failedAt time.Time
}

type CacheOption func(*Cache)

func WithRetryInterval(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.retryInterval = d
	}
}

func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.fetchTimeout = d
	}
}

func NewCache(source Source, logger *slog.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		source:        source,
		logger:        logger,
		retryInterval: defaultRetryInterval,
		fetchTimeout:  defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Table returns the cached table, or nil before the first successful load.
func (c *Cache) Table() Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table
}

func (c *Cache) Load(ctx context.Context) (Table, error) {
	c.mu.RLock()
	table, lastErr, failedAt := c.table, c.lastErr, c.failedAt
	c.mu.RUnlock()

	if table != nil {
		return table, nil
	}
	if lastErr != nil && time.Since(failedAt) < c.retryInterval {
		return nil, lastErr
	}
	return c.load(ctx, loadKey)
}

// Reload refetches the table even if one is cached.
func (c *Cache) Reload(ctx context.Context) (Table, error) {
	return c.load(ctx, reloadKey)
}

func (c *Cache) load(ctx context.Context, key string) (Table, error) {
	if c.source == nil {
		return nil, nil
	}

	// The fetch is shared, so it must outlive the caller that started it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// a caller that missed the previous flight must not refetch
		if t := c.Table(); key == loadKey && t != nil {
			return t, nil
		}

		ctx, cancel := context.WithTimeout(fetchCtx, c.fetchTimeout)
		defer cancel()

		table, err := c.fetch(ctx)
		observability.CountClassifierLoad(err == nil)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.lastErr = fmt.Errorf("load classifier: %w", err)
			c.failedAt = time.Now()
			return nil, c.lastErr
		}
		c.table, c.lastErr = table, nil

		c.logger.Info("product classifier loaded", "products", len(table))
		return table, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("classifier load shared with concurrent caller")
		}
		return res.Val.(Table), nil
	}
}

func (c *Cache) fetch(ctx context.Context) (Table, error) {
	rc, err := c.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return Parse(rc)
}
