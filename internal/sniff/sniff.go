// Package sniff scrapes a web page for embedded media references.
//
// Extraction is heuristic. Real players hidden behind scripts are missed and
// decoy URLs in the markup are accepted; callers treat a result as a candidate
// to try, not as a guarantee.
package sniff

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/glebovdev/vidres/internal/classify"
	"github.com/glebovdev/vidres/internal/video"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	DefaultTimeout = 6 * time.Second
	DefaultRPS     = 2.0

	// DefaultUserAgent is a desktop browser identifier; many hosts refuse obvious bots.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	srcSelector = "video[src], source[src], iframe[src]"
)

// ErrNotFound is returned when a page contains no media reference.
var ErrNotFound = errors.New("no embedded media found")

// FetchError reports that the page itself could not be retrieved.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: page returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result is a media reference discovered on a page.
type Result struct {
	Format video.FormatTag `json:"format"`
	URL    string          `json:"url"`
}

var extractPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://[^\s"'<>\\]+?\.m3u8(?:\?[^\s"'<>\\]*)?`),
	regexp.MustCompile(`https?://[^\s"'<>\\]+?\.mp4(?:\?[^\s"'<>\\]*)?`),
}

// Sniffer fetches pages and extracts media URLs from them.
type Sniffer struct {
	client  *resty.Client
	limiter *hostLimiter
}

// NewSniffer creates a Sniffer. Zero values select the defaults; a negative
// rps disables rate limiting.
func NewSniffer(timeout time.Duration, userAgent string, rps float64) *Sniffer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if rps == 0 {
		rps = DefaultRPS
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &Sniffer{
		client:  client,
		limiter: newHostLimiter(rps),
	}
}

// Sniff returns the first media reference found for pageURL. A URL that is
// already a direct media file is returned without any network access.
func (s *Sniffer) Sniff(ctx context.Context, pageURL string) (Result, error) {
	pageURL = strings.TrimSpace(pageURL)

	if tag, ok := classify.DirectTag(pageURL); ok {
		return Result{Format: tag, URL: pageURL}, nil
	}

	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return Result{}, err
	}

	candidates := Extract(pageURL, body)
	if len(candidates) == 0 {
		log.Debug().Str("url", pageURL).Msg("Sniff found no media references")
		return Result{}, ErrNotFound
	}

	log.Debug().Str("url", pageURL).Int("candidates", len(candidates)).Str("picked", candidates[0]).Msg("Sniff complete")
	return Result{Format: classify.Classify(candidates[0]), URL: candidates[0]}, nil
}

func (s *Sniffer) fetch(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("not an http(s) URL")}
	}

	if err := s.limiter.Wait(ctx, parsed.Hostname()); err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}

	resp, err := s.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	if !resp.IsSuccess() {
		return "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode(), Err: errors.New(resp.Status())}
	}

	return resp.String(), nil
}

// Extract returns the distinct media references in body in discovery order:
// bare .m3u8 URLs, then bare .mp4 URLs, then src attributes of video, source
// and iframe elements resolved against pageURL. data: URIs are skipped.
func Extract(pageURL, body string) []string {
	var found []string

	for _, re := range extractPatterns {
		for _, m := range re.FindAllString(body, -1) {
			found = append(found, html.UnescapeString(m))
		}
	}
	found = append(found, srcAttributes(pageURL, body)...)

	found = lo.Filter(found, func(u string, _ int) bool {
		return u != "" && !strings.HasPrefix(strings.ToLower(u), "data:")
	})
	return lo.Uniq(found)
}

func srcAttributes(pageURL, body string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	base, _ := url.Parse(pageURL)

	var srcs []string
	doc.Find(srcSelector).Each(func(_ int, sel *goquery.Selection) {
		src := strings.TrimSpace(sel.AttrOr("src", ""))
		if src == "" {
			return
		}
		srcs = append(srcs, resolveRef(base, src))
	})
	return srcs
}

func resolveRef(base *url.URL, ref string) string {
	if base == nil || strings.HasPrefix(strings.ToLower(ref), "data:") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
