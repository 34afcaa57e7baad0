package webpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const maxBodyBytes = 2 << 20 // readability gets at most 2MB of HTML

var linkPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// ExtractLinks returns the http(s) URLs found in a piece of text, capped at max.
func ExtractLinks(text string, max int) []string {
	links := linkPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(links))
	var out []string
	for _, l := range links {
		l = strings.TrimRight(l, ".,;:!?")
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// Fetcher downloads pages and extracts their readable text.
type Fetcher struct {
	HTTPClient *http.Client
	MaxChars   int // extracted text is truncated to this many runes
}

// NewFetcher creates a page fetcher with sane bounds.
func NewFetcher(timeout time.Duration, maxChars int) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 4000
	}
	return &Fetcher{
		HTTPClient: &http.Client{Timeout: timeout},
		MaxChars:   maxChars,
	}
}

// ExtractText fetches the page and runs readability extraction over it.
func (f *Fetcher) ExtractText(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", pageURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s failed: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s failed: %s", pageURL, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("fetch %s: not html (%s)", pageURL, ct)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodyBytes), u)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed for %s: %w", pageURL, err)
	}
	text := strings.TrimSpace(article.TextContent)
	runes := []rune(text)
	if len(runes) > f.MaxChars {
		text = string(runes[:f.MaxChars])
	}
	return text, nil
}
