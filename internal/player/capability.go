package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/glebovdev/vidres/internal/video"
	"github.com/rs/zerolog/log"
)

const (
	ReadTimeout = 5 * time.Second
	probeBytes  = 1024
)

// Source is what the selector hands to a Capability for one attempt.
type Source struct {
	URL      string
	Strategy Strategy
	Format   video.FormatTag
}

// Capability loads a source into an external player. Load returns nil once the
// source starts producing frames and an error on decode, network or format
// failure. Implementations must return when ctx is done.
type Capability interface {
	Load(ctx context.Context, src Source) error
}

// Relies on context cancellation to clean up the spawned read goroutine.
type contextReader struct {
	reader  io.Reader
	ctx     context.Context
	timeout time.Duration
}

func (cr *contextReader) Read(p []byte) (n int, err error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}

	timer := time.NewTimer(cr.timeout)
	defer timer.Stop()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := cr.reader.Read(p)
		select {
		case done <- result{n, err}:
		case <-cr.ctx.Done():
		}
	}()

	select {
	case res := <-done:
		return res.n, res.err
	case <-timer.C:
		return 0, fmt.Errorf("read timeout: no data received for %v", cr.timeout)
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	}
}

// HTTPCapability checks that a source is reachable and looks like the media
// its strategy expects, without decoding it. It is used when no real player is
// attached, e.g. from the command line.
type HTTPCapability struct {
	httpClient *http.Client
	userAgent  string
}

func NewHTTPCapability(userAgent string) *HTTPCapability {
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			DisableCompression:    true,
		},
	}

	return &HTTPCapability{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (c *HTTPCapability) Load(ctx context.Context, src Source) error {
	log.Debug().Msgf("Probing %s source: %s", src.Strategy, src.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if src.Strategy == StrategyDirect || src.Strategy == StrategyProxiedFetch {
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probeBytes-1))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().Msgf("Source response status: %d, Content-Type: %s", resp.StatusCode, resp.Header.Get("Content-Type"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &httpStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if src.Strategy == StrategyIframe {
		return nil
	}

	head := make([]byte, probeBytes)
	n, err := io.ReadAtLeast(&contextReader{reader: resp.Body, ctx: ctx, timeout: ReadTimeout}, head, 1)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	head = head[:n]

	return checkSignature(src.Strategy, resp.Header.Get("Content-Type"), head)
}

func checkSignature(strategy Strategy, contentType string, head []byte) error {
	switch strategy {
	case StrategyHLS:
		if !bytes.HasPrefix(bytes.TrimLeft(head, "\ufeff \t\r\n"), []byte("#EXTM3U")) {
			return fmt.Errorf("%w: response is not an HLS playlist", ErrPlaybackUnsupported)
		}
	case StrategyFLV:
		if !bytes.HasPrefix(head, []byte("FLV")) {
			return fmt.Errorf("%w: response is not an FLV stream", ErrPlaybackUnsupported)
		}
	default:
		if strings.HasPrefix(strings.ToLower(contentType), "text/html") {
			return fmt.Errorf("%w: response is an HTML page, not media", ErrPlaybackUnsupported)
		}
	}
	return nil
}
