package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit_CacheTransport_ServesRepeatedGETsFromCache(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("body"))
	}))
	t.Cleanup(server.Close)

	client := &http.Client{Transport: &CacheTransport{Base: server.Client().Transport}}

	for i := 0; i < 3; i++ {
		resp, err := client.Get(server.URL + "/film/film-1/critiques/?page=1")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, "body", string(body))
	}
	assert.Equal(t, 1, hits, "repeated links fetch once")
}

func TestUnit_CacheTransport_DistinctURLsMiss(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	t.Cleanup(server.Close)

	client := &http.Client{Transport: &CacheTransport{Base: server.Client().Transport}}

	for _, path := range []string{"/a", "/b"} {
		resp, err := client.Get(server.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, path, string(body))
	}
	assert.Equal(t, 2, hits)
}

func TestUnit_CacheTransport_SkipsErrorResponses(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := &http.Client{Transport: &CacheTransport{Base: server.Client().Transport}}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}
	assert.Equal(t, 2, hits, "non-2xx responses are never cached")
}
