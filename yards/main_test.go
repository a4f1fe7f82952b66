package yards

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, opts ClientOptions) Client {
	t.Helper()
	c, err := NewClient(opts)
	require.NoError(t, err)
	return c
}

func TestFetch(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`<html><body><h1 class="title"> Hello </h1></body></html>`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`<html></html>`))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, ClientOptions{
		Timeout:    50 * time.Millisecond,
		Identities: NewRoundRobinPool([]string{"agent-a", "agent-b"}),
	})

	t.Run("parses a 200 response", func(t *testing.T) {
		doc, err := c.Fetch(context.Background(), srv.URL+"/ok")
		require.NoError(t, err)
		assert.Equal(t, " Hello ", doc.Find("h1.title").Text())
		require.NotNil(t, doc.Url)
		assert.Equal(t, "/ok", doc.Url.Path)
	})

	t.Run("non-2xx is a fetch error", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), srv.URL+"/missing")
		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, http.StatusNotFound, fe.StatusCode)
		assert.Equal(t, srv.URL+"/missing", fe.URL)
	})

	t.Run("timeout is a fetch error", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), srv.URL+"/slow")
		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "timeout", fe.Reason)
	})

	t.Run("transport error is a fetch error", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")
		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.NotEmpty(t, fe.Reason)
	})

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(agents), 2)
	assert.Equal(t, "agent-a", agents[0])
	assert.Equal(t, "agent-b", agents[1])
}

func TestGallery(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		c := newTestClient(t, ClientOptions{})
		_, err := c.Gallery(context.Background(), "123")
		assert.ErrorIs(t, err, ErrNoGalleryAPI)
	})

	t.Run("posts the project id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			b, _ := io.ReadAll(r.Body)
			assert.Equal(t, "projectId=123", string(b))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":{"images":[],"videos":[]}}`))
		}))
		defer srv.Close()

		c := newTestClient(t, ClientOptions{GalleryURL: srv.URL})
		b, err := c.Gallery(context.Background(), "123")
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":{"images":[],"videos":[]}}`, string(b))
	})

	t.Run("client error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		c := newTestClient(t, ClientOptions{GalleryURL: srv.URL})
		_, err := c.Gallery(context.Background(), "123")
		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	})
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "https://x.test/list?page=3", PageURL("https://x.test/list?page={page}", 3))
	assert.Equal(t, "https://x.test/list?page=7", PageURL("https://x.test/list?page=", 7))
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://x.test/list?page=1", "/project/alpha", "https://x.test/project/alpha"},
		{"https://x.test/list?page=1", "https://cdn.test/a.jpg", "https://cdn.test/a.jpg"},
		{"https://x.test/list?page=1", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveURL(tt.base, tt.ref))
	}
}

func TestIdentityPools(t *testing.T) {
	rr := NewRoundRobinPool([]string{"a", "b", "c"})
	var got []string
	for range 4 {
		got = append(got, rr.Next())
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)

	p1 := NewRandomPool(DefaultIdentities, 7)
	p2 := NewRandomPool(DefaultIdentities, 7)
	for range 10 {
		id := p1.Next()
		assert.Contains(t, DefaultIdentities, id)
		assert.Equal(t, id, p2.Next())
	}

	assert.Equal(t, "", NewRoundRobinPool(nil).Next())
}
