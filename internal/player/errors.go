package player

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrPlaybackUnsupported means the source cannot be played with any strategy
	// available for it.
	ErrPlaybackUnsupported = errors.New("playback unsupported")
	// ErrRetryBudgetExceeded means every automatic retry failed.
	ErrRetryBudgetExceeded = errors.New("retry budget exceeded")
	// ErrStopped is returned by Session.Wait when the session was abandoned.
	ErrStopped = errors.New("playback stopped")
)

// PlaybackError is the terminal error of a failed session. It keeps the first
// and the last underlying cause so the original failure is never lost.
type PlaybackError struct {
	Reason      error
	URL         string
	First       error
	Last        error
	CrossOrigin bool
	Remediation string
}

func (e *PlaybackError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "playback of %s failed: %v", e.URL, e.Reason)
	if e.Last != nil {
		fmt.Fprintf(&b, ": %v", e.Last)
	}
	if e.First != nil && e.First != e.Last {
		fmt.Fprintf(&b, " (first error: %v)", e.First)
	}
	if e.CrossOrigin {
		b.WriteString(" (likely cross-origin restriction)")
	}
	return b.String()
}

func (e *PlaybackError) Unwrap() []error {
	errs := []error{e.Reason}
	if e.First != nil {
		errs = append(errs, e.First)
	}
	if e.Last != nil && e.Last != e.First {
		errs = append(errs, e.Last)
	}
	return errs
}

type httpStatusError struct {
	StatusCode int
	Status     string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("source returned status %d: %s", e.StatusCode, e.Status)
}

func isNonRetryableError(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
			return true
		}
	}
	return false
}

func remediation(reason, last error, crossOrigin bool, strategy Strategy) string {
	switch {
	case strategy == StrategyIframe:
		return "Check that the video id in the URL is valid and the video is embeddable, or open it on the platform site."
	case isNonRetryableError(last):
		return "The server refused the request; the link may have expired or require a login. Get a fresh URL and retry."
	case crossOrigin:
		return "The host likely blocks cross-origin playback. Configure a working proxy endpoint or download the file and play it locally."
	case errors.Is(reason, ErrPlaybackUnsupported):
		return "The format may not be supported by the player. Try the original page URL or another source."
	default:
		return "Check the URL and your network connection, then retry."
	}
}
