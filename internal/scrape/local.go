package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
)

// LocalScraper fetches HTML via net/http and extracts readable text with
// go-readability. Free, no API calls; the last resort in the chain.
type LocalScraper struct {
	client *http.Client
}

// NewLocalScraper creates a LocalScraper. A non-positive timeout falls back
// to 15 seconds per fetch.
func NewLocalScraper(timeout time.Duration) *LocalScraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LocalScraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches a URL, detects bot challenges, and extracts readable text.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LeadgenBot/1.0)")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	if blocked, kind := detectBlock(body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", kind)
	}

	if len(body) < 100 {
		return nil, eris.New("local_http: empty page")
	}

	text, title := extractText(body, targetURL)
	if len(text) < 100 {
		return nil, eris.New("local_http: no readable content")
	}

	return &Result{
		Page: Page{
			URL:        targetURL,
			Title:      title,
			Content:    text,
			StatusCode: resp.StatusCode,
		},
		Source: "local_http",
	}, nil
}

// extractText runs readability extraction, falling back to a crude tag strip
// when the page has no article-like structure.
func extractText(body []byte, pageURL string) (text, title string) {
	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err == nil {
		title = strings.TrimSpace(article.Title)
		text = collapseWhitespace(article.TextContent)
		if len(text) >= 100 {
			return text, title
		}
	}

	if title == "" {
		title = extractTitle(body)
	}
	return stripHTML(string(body)), title
}

var titleRe = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)

// extractTitle pulls the <title> from HTML.
func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

// detectBlock looks for bot-challenge pages that come back with a 200.
func detectBlock(body []byte) (bool, string) {
	if len(body) > 4096 {
		body = body[:4096]
	}
	lower := strings.ToLower(string(body))
	signatures := map[string]string{
		"checking your browser": "cloudflare_challenge",
		"just a moment":         "cloudflare_challenge",
		"attention required":    "cloudflare_challenge",
		"captcha":               "captcha",
		"access denied":         "access_denied",
	}
	for sig, kind := range signatures {
		if strings.Contains(lower, sig) {
			return true, kind
		}
	}
	return false, ""
}

// stripHTML removes scripts/styles/nav/footer, strips tags, decodes entities,
// and collapses whitespace. The result is plaintext suitable for extraction.
func stripHTML(html string) string {
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	tagRe := regexp.MustCompile(`<[^>]+>`)
	html = tagRe.ReplaceAllString(html, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	return collapseWhitespace(html)
}

var spaceRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
