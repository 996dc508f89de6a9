package reddit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mediagrab/internal/domain"
	"mediagrab/pkg/httpx"
)

// powBudget caps the proof-of-work search. A challenge that cannot be
// solved inside this window is reported as failed, never retried.
const powBudget = 20 * time.Second

// blockMarkers identify a challenge interstitial instead of content.
var blockMarkers = []string{
	`id="anubis_challenge"`,
	`id="preact_info"`,
	"Making sure you're not a bot",
}

func isBlocked(html string) bool {
	for _, marker := range blockMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

// challengeInfo is one parsed challenge, consumed immediately to
// compute a solution and then discarded.
type challengeInfo struct {
	Algorithm   string
	Difficulty  int
	ChallengeID string
	RandomData  string
	PassURL     string
	Redir       string
}

// solver defeats the interactive challenge some mirror instances
// interpose before serving content.
type solver struct {
	client   *httpx.Client
	passPath string
	logger   *slog.Logger
}

func newSolver(client *httpx.Client, passPath string, logger *slog.Logger) *solver {
	return &solver{client: client, passPath: passPath, logger: logger}
}

// Solve parses the challenge embedded in a blocked page, computes the
// required answer, and submits it. It returns the unblocked page body,
// or ErrChallengeFailed when the mirror keeps serving the challenge.
func (s *solver) Solve(ctx context.Context, pageURL, html string) (string, error) {
	start := time.Now()

	info, err := parseChallenge(pageURL, html, s.passPath)
	if err != nil {
		return "", err
	}
	s.logger.Debug("solving challenge",
		"algorithm", info.Algorithm,
		"difficulty", info.Difficulty,
	)

	params := url.Values{}
	switch info.Algorithm {
	case "metarefresh":
		if err := sleepCtx(ctx, time.Duration(float64(info.Difficulty)*0.8*float64(time.Second))+100*time.Millisecond); err != nil {
			return "", err
		}
		params.Set("result", info.RandomData)

	case "preact":
		if err := sleepCtx(ctx, time.Duration(float64(info.Difficulty)*0.125*float64(time.Second))+50*time.Millisecond); err != nil {
			return "", err
		}
		sum := sha256.Sum256([]byte(info.RandomData))
		params.Set("result", hex.EncodeToString(sum[:]))

	case "fast", "slow":
		powCtx, cancel := context.WithTimeout(ctx, powBudget)
		hash, nonce, err := proofOfWork(powCtx, info.RandomData, info.Difficulty)
		cancel()
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrChallengeFailed, err)
		}
		params.Set("response", hash)
		params.Set("nonce", strconv.Itoa(nonce))

	default:
		return "", fmt.Errorf("%w: unknown algorithm %q", domain.ErrChallengeFailed, info.Algorithm)
	}

	if info.ChallengeID != "" {
		params.Set("id", info.ChallengeID)
	}
	params.Set("redir", info.Redir)
	params.Set("elapsedTime", strconv.FormatInt(time.Since(start).Milliseconds(), 10))

	body, err := s.client.GetBody(ctx, info.PassURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("submit challenge: %w", err)
	}
	if isBlocked(string(body)) {
		return "", domain.ErrChallengeFailed
	}
	return string(body), nil
}

// challengePayload is the JSON embedded in the challenge page. Newer
// versions wrap the challenge in an object; older ones inline a string.
type challengePayload struct {
	Rules struct {
		Algorithm  string `json:"algorithm"`
		Difficulty int    `json:"difficulty"`
	} `json:"rules"`
	Challenge json.RawMessage `json:"challenge"`
}

func parseChallenge(pageURL, html, passPath string) (*challengeInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse challenge page: %v", domain.ErrChallengeFailed, err)
	}

	raw := doc.Find("script#anubis_challenge").First().Text()
	if raw == "" {
		raw = doc.Find("script#preact_info").First().Text()
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: no challenge payload in page", domain.ErrChallengeFailed)
	}

	var payload challengePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode challenge payload: %v", domain.ErrChallengeFailed, err)
	}

	info := &challengeInfo{
		Algorithm:  payload.Rules.Algorithm,
		Difficulty: payload.Rules.Difficulty,
		Redir:      pageURL,
	}

	var wrapped struct {
		ID         string `json:"id"`
		RandomData string `json:"randomData"`
	}
	if err := json.Unmarshal(payload.Challenge, &wrapped); err == nil && wrapped.RandomData != "" {
		info.ChallengeID = wrapped.ID
		info.RandomData = wrapped.RandomData
	} else {
		var plain string
		if err := json.Unmarshal(payload.Challenge, &plain); err != nil {
			return nil, fmt.Errorf("%w: unrecognized challenge shape", domain.ErrChallengeFailed)
		}
		info.RandomData = plain
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse page url: %v", domain.ErrChallengeFailed, err)
	}
	info.PassURL = base.Scheme + "://" + base.Host + passPath

	// A meta-refresh target overrides the derived endpoint.
	if target := metaRefreshTarget(doc); target != "" {
		if ref, err := url.Parse(target); err == nil {
			resolved := base.ResolveReference(ref)
			resolved.RawQuery = ""
			info.PassURL = resolved.String()
		}
	}
	return info, nil
}

// metaRefreshTarget extracts the url= target of a meta refresh tag.
func metaRefreshTarget(doc *goquery.Document) string {
	content, ok := doc.Find(`meta[http-equiv="refresh"]`).First().Attr("content")
	if !ok {
		return ""
	}
	for _, part := range strings.Split(content, ";") {
		part = strings.TrimSpace(part)
		if rest, found := strings.CutPrefix(part, "url="); found {
			return strings.Trim(rest, `'"`)
		}
	}
	return ""
}

// proofOfWork searches for a nonce whose sha256(randomData + nonce) hex
// digest starts with difficulty zeros. The search runs on its own
// goroutine so the CPU-bound loop never blocks the calling scheduler
// thread; the context carries the wall-clock budget.
func proofOfWork(ctx context.Context, randomData string, difficulty int) (string, int, error) {
	type answer struct {
		hash  string
		nonce int
	}
	found := make(chan answer, 1)

	go func() {
		prefix := strings.Repeat("0", difficulty)
		for nonce := 0; ; nonce++ {
			if nonce%1024 == 0 && ctx.Err() != nil {
				return
			}
			sum := sha256.Sum256([]byte(randomData + strconv.Itoa(nonce)))
			digest := hex.EncodeToString(sum[:])
			if strings.HasPrefix(digest, prefix) {
				found <- answer{hash: digest, nonce: nonce}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return "", 0, fmt.Errorf("proof of work budget exhausted: %w", ctx.Err())
	case a := <-found:
		return a.hash, a.nonce, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
