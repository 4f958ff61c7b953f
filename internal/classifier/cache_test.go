package classifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	opens   atomic.Int32
	release chan struct{}
	err     error
}

func (s *countingSource) Open(_ context.Context) (io.ReadCloser, error) {
	s.opens.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(sampleCSV)), nil
}

func TestCache_ConcurrentLoadFetchesOnce(t *testing.T) {
	src := &countingSource{release: make(chan struct{})}
	cache := NewCache(src, nil)

	const callers = 16
	var wg sync.WaitGroup
	tables := make([]Table, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tables[i], errs[i] = cache.Load(context.Background())
		}()
	}

	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.opens.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Len(t, tables[i], 4)
	}
	assert.Len(t, cache.Table(), 4)
}

func TestCache_LoadReturnsCached(t *testing.T) {
	src := &countingSource{}
	cache := NewCache(src, nil)

	_, err := cache.Load(context.Background())
	require.NoError(t, err)
	_, err = cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.opens.Load())

	_, err = cache.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.opens.Load())
}

func TestCache_FailureIsRetried(t *testing.T) {
	src := &countingSource{err: errors.New("unreachable")}
	cache := NewCache(src, nil, WithRetryInterval(0))

	_, err := cache.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unreachable")
	assert.Nil(t, cache.Table())

	src.err = nil
	table, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 4)
	assert.Equal(t, int32(2), src.opens.Load())
}

func TestCache_FailureBacksOff(t *testing.T) {
	src := &countingSource{err: errors.New("unreachable")}
	cache := NewCache(src, nil, WithRetryInterval(time.Hour))

	_, err := cache.Load(context.Background())
	require.Error(t, err)

	src.err = nil
	_, err = cache.Load(context.Background())
	assert.ErrorContains(t, err, "unreachable", "failure is replayed inside the retry interval")
	assert.Equal(t, int32(1), src.opens.Load())

	table, err := cache.Reload(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 4)
}

type blockingSource struct {
	opens   atomic.Int32
	release chan struct{}
}

func (s *blockingSource) Open(ctx context.Context) (io.ReadCloser, error) {
	s.opens.Add(1)
	select {
	case <-s.release:
		return io.NopCloser(strings.NewReader(sampleCSV)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCache_CancelledCallerDoesNotPoisonLoad(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	cache := NewCache(src, nil, WithRetryInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cache.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(src.release)
	table, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 4)
	assert.Equal(t, int32(1), src.opens.Load(), "the abandoned fetch is reused")
}

func TestCache_FetchTimeoutIsAFailure(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	defer close(src.release)
	cache := NewCache(src, nil, WithFetchTimeout(20*time.Millisecond), WithRetryInterval(time.Hour))

	_, err := cache.Load(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "load classifier")

	_, err = cache.Load(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded, "timed out fetch backs off like any failure")
	assert.Equal(t, int32(1), src.opens.Load())
}

func TestCache_NoSource(t *testing.T) {
	cache := NewCache(nil, nil)

	table, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classification.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	table, err := NewCache(SourceFor(path), nil).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 4)

	_, err = NewCache(FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}, nil).Load(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classification.csv" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, sampleCSV)
	}))
	defer srv.Close()

	src := SourceFor(srv.URL + "/classification.csv")
	require.IsType(t, HTTPSource{}, src)

	table, err := NewCache(src, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 4)

	_, err = NewCache(HTTPSource{URL: srv.URL + "/missing"}, nil).Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "status 404")
}

func TestSourceFor(t *testing.T) {
	assert.Nil(t, SourceFor(""))
	assert.Equal(t, FileSource{Path: "data/classification.csv"}, SourceFor("data/classification.csv"))
	assert.Equal(t, HTTPSource{URL: "https://example.com/c.csv"}, SourceFor("https://example.com/c.csv"))
}
