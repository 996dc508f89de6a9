package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"mediagrab/internal/config"
	"mediagrab/internal/domain"
	"mediagrab/internal/downloader"
	"mediagrab/internal/hls"
	"mediagrab/pkg/httpx"
)

func newTestProvider(instances []string) *Provider {
	client := httpx.New(httpx.Options{Timeout: 5 * time.Second, UserAgent: "test-agent"})
	dl := downloader.New(client, 1<<20, testLogger())
	resolver := hls.NewResolver(client, testLogger())
	cfg := config.RedditConfig{Instances: instances, PassPath: testPassPath}
	return New(cfg, client, dl, resolver, testLogger())
}

func TestExtractURLs(t *testing.T) {
	p := newTestProvider(nil)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "canonical comments link",
			text: "see https://www.reddit.com/r/pics/comments/abc123/a_title/",
			want: []string{"https://www.reddit.com/r/pics/comments/abc123/a_title/"},
		},
		{
			name: "old subdomain",
			text: "https://old.reddit.com/r/videos/comments/xyz/thing/",
			want: []string{"https://old.reddit.com/r/videos/comments/xyz/thing/"},
		},
		{
			name: "short redd it link",
			text: "https://redd.it/abc123",
			want: []string{"https://redd.it/abc123"},
		},
		{
			name: "mirror hostnames",
			text: "https://safereddit.com/r/pics/comments/abc/x/ and https://redlib.example.org/r/pics/comments/abc/x/",
			want: []string{
				"https://safereddit.com/r/pics/comments/abc/x/",
				"https://redlib.example.org/r/pics/comments/abc/x/",
			},
		},
		{
			name: "unrelated host",
			text: "https://example.com/r/pics/comments/abc123/",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, p.ExtractURLs(tt.text))
		})
	}
}

func videoPostHTML(serverURL string) string {
	return fmt.Sprintf(`<html><head><title>post</title></head><body>
		<h1>A great video</h1>
		<a class="post_author" href="/user/someone">u/someone</a>
		<video poster="%s/thumb.jpg">
			<source type="application/vnd.apple.mpegurl" src="%s/hls/video.m3u8">
		</video>
	</body></html>`, serverURL, serverURL)
}

const masterManifest = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=450000,RESOLUTION=640x360
HLS_360.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=1280x720
HLS_720.m3u8
`

// Two blocked mirrors whose challenges never clear, then a clean third
// mirror with a video post. The solver must be tried at most once per
// blocked instance before falling through.
func TestFetch_FallsThroughBlockedMirrors(t *testing.T) {
	const postPath = "/r/videos/comments/abc123/a_great_video/"
	var passHits atomic.Int32

	blocked := func() *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == testPassPath {
				passHits.Add(1)
			}
			fmt.Fprint(w, challengeHTML("fast", "abc123", 1))
		}))
	}
	blockedA := blocked()
	defer blockedA.Close()
	blockedB := blocked()
	defer blockedB.Close()

	var clean *httptest.Server
	clean = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case postPath:
			fmt.Fprint(w, videoPostHTML(clean.URL))
		case "/hls/video.m3u8":
			fmt.Fprint(w, masterManifest)
		case "/hls/HLS_720.mp4":
			w.Write([]byte("720p-video-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer clean.Close()

	p := newTestProvider([]string{blockedA.URL, blockedB.URL, clean.URL})

	post, err := p.Fetch(context.Background(), "https://www.reddit.com"+postPath)
	require.NoError(t, err)
	require.NotNil(t, post)

	require.Equal(t, "someone", post.AuthorHandle)
	require.Equal(t, "A great video", post.Text)
	require.Len(t, post.Media, 1)
	require.Equal(t, domain.KindVideo, post.Media[0].Kind)
	require.Equal(t, []byte("720p-video-bytes"), post.Media[0].Data)

	require.LessOrEqual(t, passHits.Load(), int32(2))
}

func TestFetch_GalleryPost(t *testing.T) {
	const postPath = "/r/pics/comments/abc123/gallery/"

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case postPath:
			fmt.Fprintf(w, `<html><body>
				<h1>Some pictures</h1>
				<a class="post_author">u/poster</a>
				<div class="gallery">
					<img src="/img/one.jpg">
					<img src="/img/two.jpg">
					<img src="/img/one.jpg">
				</div>
			</body></html>`)
		case "/img/one.jpg", "/img/two.jpg":
			fmt.Fprintf(w, "bytes of %s", r.URL.Path)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := newTestProvider([]string{server.URL})

	post, err := p.Fetch(context.Background(), "https://reddit.com"+postPath)
	require.NoError(t, err)
	require.NotNil(t, post)

	// The duplicated gallery entry collapses to one source.
	require.Len(t, post.Media, 2)
	require.Equal(t, "one.jpg", post.Media[0].Filename)
	require.Equal(t, "two.jpg", post.Media[1].Filename)
}

func TestFetch_ShortLinkResolvesFirst(t *testing.T) {
	const postPath = "/r/pics/comments/abc123/a_photo/"

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/s/abc123":
			http.Redirect(w, r, server.URL+postPath, http.StatusMovedPermanently)
		case postPath:
			fmt.Fprintf(w, `<html><head>
				<meta property="og:image" content="%s/img/photo.jpg">
				<meta property="og:title" content="A photo">
			</head><body></body></html>`, server.URL)
		case "/img/photo.jpg":
			w.Write([]byte("photo-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := newTestProvider([]string{server.URL})

	// A /s/ share link hides the post path behind a redirect.
	post, err := p.Fetch(context.Background(), server.URL+"/s/abc123")
	require.NoError(t, err)
	require.NotNil(t, post)
	require.Equal(t, "A photo", post.Text)
	require.Len(t, post.Media, 1)
	require.Equal(t, []byte("photo-bytes"), post.Media[0].Data)
}

func TestParseMirrorPage_AuthorFallbackIgnoresCommenters(t *testing.T) {
	html := `<html><body>
		<nav><a href="/user/moderator">u/moderator</a></nav>
		<div class="post">
			<div class="post_header"><a href="/user/poster">u/poster</a></div>
			<h1>Title</h1>
		</div>
		<div class="comment"><a href="/user/commenter">u/commenter</a></div>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	page := parseMirrorPage(doc, html, "https://mirror.example/r/pics/comments/abc/title/")
	require.Equal(t, "u/poster", page.author)
}

func TestParseMirrorPage_NoPostHeaderMeansNoAuthor(t *testing.T) {
	html := `<html><body>
		<h1>Title</h1>
		<div class="comment"><a href="/user/commenter">u/commenter</a></div>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	page := parseMirrorPage(doc, html, "https://mirror.example/r/pics/comments/abc/title/")
	require.Empty(t, page.author)
}

func TestFetch_TextOnlyPostIsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Just text</h1><p>no media here</p></body></html>`)
	}))
	defer server.Close()

	p := newTestProvider([]string{server.URL})

	post, err := p.Fetch(context.Background(), "https://reddit.com/r/ask/comments/abc/just_text/")
	require.NoError(t, err)
	require.Nil(t, post)
}

func TestFetch_AllMirrorsDownIsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))
	defer server.Close()

	p := newTestProvider([]string{server.URL, server.URL})

	post, err := p.Fetch(context.Background(), "https://reddit.com/r/pics/comments/abc/x/")
	require.NoError(t, err)
	require.Nil(t, post)
}

func TestPostPath_RootIsRejected(t *testing.T) {
	p := newTestProvider(nil)
	_, ok := p.postPath(context.Background(), "https://www.reddit.com/")
	require.False(t, ok)
	path, ok := p.postPath(context.Background(), "https://www.reddit.com/r/pics/comments/abc/x/")
	require.True(t, ok)
	require.Equal(t, "/r/pics/comments/abc/x/", path)
}
