package hls

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mediagrab/internal/domain"
	"mediagrab/pkg/httpx"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClient() *httpx.Client {
	return httpx.New(httpx.Options{Timeout: 5 * time.Second, UserAgent: "test-agent"})
}

const masterManifest = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=500000,RESOLUTION=640x360,CODECS="avc1.4d401e"
HLS_360.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=1280x720,CODECS="avc1.4d401f"
HLS_720.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=900000,RESOLUTION=854x480,CODECS="avc1.4d401e"
HLS_480.m3u8
`

func TestResolve_PicksHighestBandwidth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterManifest))
	}))
	defer server.Close()

	r := NewResolver(testClient(), testLogger())
	variant, err := r.Resolve(context.Background(), server.URL+"/video/HLSPlaylist.m3u8")
	require.NoError(t, err)

	require.Equal(t, server.URL+"/video/HLS_720.mp4", variant.URL)
	require.Equal(t, 1280, variant.Width)
	require.Equal(t, 720, variant.Height)
}

func TestResolve_CarriesMasterQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterManifest))
	}))
	defer server.Close()

	r := NewResolver(testClient(), testLogger())
	variant, err := r.Resolve(context.Background(), server.URL+"/video/HLSPlaylist.m3u8?token=abc123")
	require.NoError(t, err)
	require.Equal(t, server.URL+"/video/HLS_720.mp4?token=abc123", variant.URL)
}

func TestResolve_TieGoesToFirstSeen(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=900000,RESOLUTION=854x480
first.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=900000,RESOLUTION=854x480
second.m3u8
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifest))
	}))
	defer server.Close()

	r := NewResolver(testClient(), testLogger())
	variant, err := r.Resolve(context.Background(), server.URL+"/master.m3u8")
	require.NoError(t, err)
	require.Equal(t, server.URL+"/first.mp4", variant.URL)
}

func TestResolve_NoVariant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n#EXT-X-VERSION:3\n"))
	}))
	defer server.Close()

	r := NewResolver(testClient(), testLogger())
	_, err := r.Resolve(context.Background(), server.URL+"/master.m3u8")
	require.ErrorIs(t, err, domain.ErrNoVariant)
}

func TestResolve_AbsoluteVariantURI(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=1280x720
https://cdn.example.com/streams/HLS_720.m3u8
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifest))
	}))
	defer server.Close()

	r := NewResolver(testClient(), testLogger())
	variant, err := r.Resolve(context.Background(), server.URL+"/master.m3u8")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/streams/HLS_720.mp4", variant.URL)
}
