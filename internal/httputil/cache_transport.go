package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMaxEntries = 1000
	defaultTTL        = 10 * time.Minute
)

// CacheTransport is an http.RoundTripper that caches successful GET
// responses by URL. Review links can repeat across listing pages; the cache
// keeps a repeated link from hitting the site twice within one run. Entries
// are evicted by LRU when MaxEntries is reached and expire after TTL.
// Concurrent requests do not block each other; duplicate in-flight requests
// for the same key may both reach the backend.
type CacheTransport struct {
	Base http.RoundTripper

	// MaxEntries is the cache capacity; zero means defaultMaxEntries.
	MaxEntries int
	// TTL is how long entries stay valid; zero means defaultTTL.
	TTL time.Duration

	initOnce sync.Once
	cache    *expirable.LRU[string, *cachedResponse]
}

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// RoundTrip implements http.RoundTripper.
func (t *CacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.initOnce.Do(func() {
		maxEntries := t.MaxEntries
		if maxEntries <= 0 {
			maxEntries = defaultMaxEntries
		}
		ttl := t.TTL
		if ttl <= 0 {
			ttl = defaultTTL
		}
		t.cache = expirable.NewLRU[string, *cachedResponse](maxEntries, nil, ttl)
	})

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Method != http.MethodGet {
		return base.RoundTrip(req)
	}

	key := req.URL.String()
	if entry, ok := t.cache.Get(key); ok {
		return entry.response(req), nil
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	t.cache.Add(key, &cachedResponse{
		status: resp.StatusCode,
		header: resp.Header.Clone(),
		body:   body,
	})
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

func (e *cachedResponse) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        http.StatusText(e.status),
		StatusCode:    e.status,
		Header:        e.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.body)),
		ContentLength: int64(len(e.body)),
		Request:       req,
	}
}
