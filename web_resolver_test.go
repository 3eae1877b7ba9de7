package ddns_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/Travis-Britz/ddns/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServers starts one server per body and returns their URLs.
func echoServers(t *testing.T, bodies ...string) []string {
	t.Helper()
	var srvs []string
	for _, body := range bodies {
		body := body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		}))
		t.Cleanup(srv.Close)
		srvs = append(srvs, srv.URL)
	}
	return srvs
}

func TestNewWebResolver(t *testing.T) {
	_, err := ddns.NewWebResolver()
	assert.ErrorIs(t, err, ddns.ErrConfiguration)

	_, err = ddns.NewWebResolver("http://[::1")
	assert.ErrorIs(t, err, ddns.ErrConfiguration)
}

func TestLookup(t *testing.T) {
	cacheControl := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cacheControl <- r.Header.Get("Cache-Control")
		io.WriteString(w, "192.168.2.1\nsome trailing text")
	}))
	defer srv.Close()

	wr, err := ddns.NewWebResolver(srv.URL)
	require.NoError(t, err)
	res, err := wr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.2.1"), res)
	assert.Equal(t, "no-cache", <-cacheControl)
}

func TestLookupIPv6(t *testing.T) {
	wr, err := ddns.NewWebResolver(echoServers(t, "2001:db8::1\n")...)
	require.NoError(t, err)
	res, err := wr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("2001:db8::1"), res)
}

func TestLookupBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "192.168.2.1")
	}))
	defer srv.Close()

	wr, err := ddns.NewWebResolver(srv.URL)
	require.NoError(t, err)
	_, err = wr.Resolve(context.Background())
	assert.ErrorIs(t, err, ddns.ErrUnableToResolvePublicIP)
}

func TestMismatch(t *testing.T) {
	wr, err := ddns.NewWebResolver(echoServers(t, "192.168.2.1", "10.0.0.10", "127.0.0.1")...)
	require.NoError(t, err)
	res, err := wr.Resolve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ddns.ErrUnableToResolvePublicIP)
	assert.Contains(t, err.Error(), "did not agree")
	assert.False(t, res.IsValid())
}

func TestOneFailure(t *testing.T) {
	wr, err := ddns.NewWebResolver(echoServers(t, "192.168.2.1", "invalid ip", "192.168.2.1")...)
	require.NoError(t, err)
	res, err := wr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.2.1"), res)
}

func TestTwoFailures(t *testing.T) {
	wr, err := ddns.NewWebResolver(echoServers(t, "192.168.2.1", "a", "a")...)
	require.NoError(t, err)
	res, err := wr.Resolve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ddns.ErrUnableToResolvePublicIP)
	assert.Contains(t, err.Error(), "not enough services")
	assert.False(t, res.IsValid())
}

func TestConcurrency(t *testing.T) {
	var srvs []string
	for i := 0; i < 3; i++ {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			io.WriteString(w, "192.168.2.1")
		}))
		defer srv.Close()
		srvs = append(srvs, srv.URL)
	}

	wr, err := ddns.NewWebResolver(srvs...)
	require.NoError(t, err)
	// sequential lookups would take at least 200ms
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Millisecond)
	defer cancel()
	res, err := wr.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.2.1"), res)
}

func TestHitCount(t *testing.T) {
	var mu sync.Mutex
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		// every request fails, so the resolver can never return early
		io.WriteString(w, "invalid ip")
	}))
	defer srv.Close()

	for n := 1; n <= 5; n++ {
		var urls []string
		for i := 0; i < n; i++ {
			urls = append(urls, srv.URL)
		}
		wr, err := ddns.NewWebResolver(urls...)
		require.NoError(t, err)

		mu.Lock()
		hits = 0
		mu.Unlock()

		_, err = wr.Resolve(context.Background())
		require.Error(t, err)

		mu.Lock()
		h := hits
		mu.Unlock()
		assert.Equal(t, min(n, 3), h, "services queried with %d configured", n)
	}
}
