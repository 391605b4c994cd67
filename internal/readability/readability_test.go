package readability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html><head>
<title>Jazz Night at The Chapel</title>
<meta property="og:description" content="Friday March 14, doors at 7pm">
<style>.x { color: red }</style>
<script>var tracking = "ignore me";</script>
</head>
<body>
<nav>Home | Events | About</nav>
<article>
  <h1>Jazz Night</h1>
  <p>Live music   with the
  Sunset Trio.</p>
  <p>777 Valencia St, San Francisco</p>
</article>
<footer>© 2025</footer>
</body></html>`

func TestExtractText(t *testing.T) {
	text := ExtractText(page)

	assert.Contains(t, text, "Jazz Night at The Chapel")
	assert.Contains(t, text, "Friday March 14, doors at 7pm")
	assert.Contains(t, text, "Live music with the Sunset Trio.")
	assert.Contains(t, text, "777 Valencia St, San Francisco")
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "Home | Events")
	assert.NotContains(t, text, "© 2025")
}

// localClient fetches directly like New("", 0) but may dial httptest servers.
func localClient() *Client {
	return newClient("", 0, func(string, string, syscall.RawConn) error { return nil })
}

func TestClient_FetchesPageDirectly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	text, err := localClient().Text(context.Background(), srv.URL+"/events/jazz")
	require.NoError(t, err)
	assert.Contains(t, text, "Sunset Trio")
}

func TestClient_UsesExtractionEndpoint(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		_, _ = w.Write([]byte("  Jazz Night\n\n  Friday 7pm  "))
	}))
	defer srv.Close()

	text, err := New(srv.URL+"/", 0).Text(context.Background(), "https://example.com/e?id=1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/e?id=1", gotURL)
	assert.Equal(t, "Jazz Night\nFriday 7pm", text)
}

func TestClient_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><script>x()</script></body></html>"))
	}))
	defer srv.Close()

	text, err := localClient().Text(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := localClient().Text(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	_, err = New("", 0).Text(context.Background(), "ftp://example.com/file")
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = New("", 0).Text(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestClient_RefusesNonPublicAddresses(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("<html><body><p>internal</p></body></html>"))
	}))
	defer srv.Close()

	client := New("", 0)
	for _, target := range []string{
		srv.URL + "/admin",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]:9/",
		"http://10.0.0.5/",
	} {
		t.Run(target, func(t *testing.T) {
			_, err := client.Text(context.Background(), target)
			assert.ErrorIs(t, err, ErrBlockedAddress)
		})
	}
	assert.Zero(t, hits)
}

func TestClient_RefusesRedirectToLoopback(t *testing.T) {
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secret"))
	}))
	defer internal.Close()

	var (
		mu     sync.Mutex
		dialed []string
	)
	client := newClient("", 0, func(_, address string, c syscall.RawConn) error {
		mu.Lock()
		defer mu.Unlock()
		dialed = append(dialed, address)
		if len(dialed) == 1 {
			// the first hop stands in for a public site
			return nil
		}
		return publicOnly("tcp", address, c)
	})
	public := httptest.NewServer(http.RedirectHandler(internal.URL+"/", http.StatusFound))
	defer public.Close()

	_, err := client.Text(context.Background(), public.URL)
	assert.ErrorIs(t, err, ErrBlockedAddress)
	assert.Len(t, dialed, 2)
}

func TestIsPublic(t *testing.T) {
	tests := map[string]bool{
		"93.184.216.34":    true,
		"2606:4700::1111":  true,
		"127.0.0.1":        false,
		"::1":              false,
		"10.1.2.3":         false,
		"172.16.0.1":       false,
		"192.168.1.1":      false,
		"169.254.169.254":  false,
		"fe80::1":          false,
		"fd00::1":          false,
		"100.64.0.1":       false,
		"0.0.0.0":          false,
		"::ffff:127.0.0.1": false,
		"224.0.0.1":        false,
	}
	for addr, want := range tests {
		assert.Equal(t, want, IsPublic(netip.MustParseAddr(addr)), addr)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "abc", truncate("abc", 10))
}
