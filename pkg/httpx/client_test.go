package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return New(Options{Timeout: 5 * time.Second, UserAgent: "test-agent"})
}

func TestResolveRedirect(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/relative":
			w.Header().Set("Location", "/target/clip.mp4")
			w.WriteHeader(http.StatusFound)
		case "/a/relative-dotted":
			w.Header().Set("Location", "../media/clip.mp4")
			w.WriteHeader(http.StatusMovedPermanently)
		case "/absolute":
			http.Redirect(w, r, server.URL+"/target/clip.mp4", http.StatusFound)
		case "/plain":
			w.Write([]byte("no redirect here"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := testClient()

	tests := []struct {
		name string
		path string
		want string
	}{
		{"relative location resolves against request url", "/relative", server.URL + "/target/clip.mp4"},
		{"dotted relative location", "/a/relative-dotted", server.URL + "/media/clip.mp4"},
		{"absolute location passes through", "/absolute", server.URL + "/target/clip.mp4"},
		{"non-redirect returns original url", "/plain", server.URL + "/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ResolveRedirect(context.Background(), server.URL+tt.path)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRedirect_SingleHopOnly(t *testing.T) {
	var hops int
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, server.URL+"/next", http.StatusFound)
	}))
	defer server.Close()

	got, err := testClient().ResolveRedirect(context.Background(), server.URL+"/start")
	require.NoError(t, err)
	require.Equal(t, server.URL+"/next", got)
	require.Equal(t, 1, hops)
}

func TestGetBody_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient().GetBody(context.Background(), server.URL+"/x", nil)
	require.Error(t, err)
}

func TestDo_SetsDefaultUserAgent(t *testing.T) {
	var sawUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	_, err := testClient().GetBody(context.Background(), server.URL+"/x", nil)
	require.NoError(t, err)
	require.Equal(t, "test-agent", sawUA)
}
