// Package player selects and drives a playback strategy for a playlist entry,
// falling back through a fixed chain when the external player fails.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebovdev/vidres/internal/classify"
	"github.com/glebovdev/vidres/internal/proxy"
	"github.com/glebovdev/vidres/internal/sniff"
	"github.com/glebovdev/vidres/internal/video"
	"github.com/rs/zerolog/log"
)

const (
	MaxRetries         = 3
	DefaultRetryDelay  = time.Second
	DefaultLoadTimeout = 15 * time.Second
	eventBufferSize    = 32
)

// State is the lifecycle position of a playback session.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StatePlaying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAttempting:
		return "ATTEMPTING"
	case StatePlaying:
		return "PLAYING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Strategy names the player adapter requested for a source.
type Strategy string

const (
	StrategyDirect       Strategy = "direct-mp4"
	StrategyHLS          Strategy = "hls"
	StrategyFLV          Strategy = "flv"
	StrategyIframe       Strategy = "iframe"
	StrategyProxiedFetch Strategy = "proxied-fetch"
)

// StrategyFor is the only place a format tag is turned into playback behavior.
func StrategyFor(tag video.FormatTag) Strategy {
	switch tag {
	case video.FormatM3U8:
		return StrategyHLS
	case video.FormatFLV:
		return StrategyFLV
	case video.FormatBilibili, video.FormatYouTube:
		return StrategyIframe
	default:
		return StrategyDirect
	}
}

// EventType names a session lifecycle event.
type EventType string

const (
	EventLoadStart EventType = "loadstart"
	EventError     EventType = "error"
	EventPlay      EventType = "play"
	EventWarning   EventType = "warning"
)

// Event is emitted on every state transition of a session. EventError is only
// sent once, on the terminal failure; recoverable problems are EventWarning.
type Event struct {
	Type       EventType
	Generation uint64
	RefID      string
	State      State
	RetryCount int
	Strategy   Strategy
	URL        string
	Err        error
	Message    string
	Time       time.Time
}

// Sniffer finds a media reference on a web page.
type Sniffer interface {
	Sniff(ctx context.Context, pageURL string) (sniff.Result, error)
}

// ProxyResolver rewrites cross-origin URLs through proxy endpoints.
type ProxyResolver interface {
	NeedsProxy(rawURL string) bool
	Proxied(rawURL string, attempt int) string
	Len() int
}

// Recorder receives playback counters.
type Recorder interface {
	AttemptStarted(strategy string)
	AttemptFailed(strategy string)
	SessionFinished(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) AttemptStarted(string)  {}
func (noopRecorder) AttemptFailed(string)   {}
func (noopRecorder) SessionFinished(string) {}

// Option configures a Selector.
type Option func(*Selector)

func WithSniffer(s Sniffer) Option {
	return func(sel *Selector) { sel.sniffer = s }
}

func WithProxyResolver(p ProxyResolver) Option {
	return func(sel *Selector) { sel.proxies = p }
}

func WithRecorder(r Recorder) Option {
	return func(sel *Selector) {
		if r != nil {
			sel.recorder = r
		}
	}
}

// WithRetryDelay sets the pause between attempts. Zero disables it.
func WithRetryDelay(d time.Duration) Option {
	return func(sel *Selector) {
		if d >= 0 {
			sel.retryDelay = d
		}
	}
}

// WithLoadTimeout caps a single Load call.
func WithLoadTimeout(d time.Duration) Option {
	return func(sel *Selector) {
		if d > 0 {
			sel.loadTimeout = d
		}
	}
}

// Selector runs at most one playback session at a time. Starting a new session
// invalidates the previous one: results that arrive for an old generation are
// discarded.
type Selector struct {
	capability  Capability
	sniffer     Sniffer
	proxies     ProxyResolver
	recorder    Recorder
	retryDelay  time.Duration
	loadTimeout time.Duration

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	current *Session
}

// NewSelector creates a Selector that loads sources through capability.
func NewSelector(capability Capability, opts ...Option) *Selector {
	s := &Selector{
		capability:  capability,
		recorder:    noopRecorder{},
		retryDelay:  DefaultRetryDelay,
		loadTimeout: DefaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin starts playback of ref and abandons any session in progress.
func (s *Selector) Begin(ctx context.Context, ref video.VideoRef) *Session {
	s.mu.Lock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	sess := newSession(s.gen, ref)
	s.current = sess
	s.mu.Unlock()

	log.Debug().Str("ref", ref.ID).Uint64("gen", sess.gen).Msgf("Beginning playback: %s", ref.URL)

	go s.run(runCtx, sess)
	return sess
}

// Restart is the manual retry: it begins a fresh session for the current
// entry with the retry count reset. It returns nil when nothing was started.
func (s *Selector) Restart(ctx context.Context) *Session {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	if cur == nil {
		return nil
	}
	return s.Begin(ctx, cur.ref)
}

// Stop abandons the current session, which ends in StateIdle.
func (s *Selector) Stop() {
	s.mu.Lock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

// Current returns the most recently started session, or nil.
func (s *Selector) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Selector) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

type stage int

const (
	stageSimpleCheck stage = iota
	stageSniff
	stageProxy
)

// fallback is the per-session cursor over simple-check, sniff and proxy.
type fallback struct {
	stage         stage
	base          string
	proxyAttempts int
}

var errAbandoned = errors.New("session abandoned")

func (s *Selector) run(ctx context.Context, sess *Session) {
	tag := classify.Classify(sess.ref.URL)
	cand := candidate{url: sess.ref.URL, strategy: StrategyFor(tag), format: tag}

	if cand.strategy == StrategyIframe {
		s.runEmbed(ctx, sess, cand)
		return
	}

	fb := fallback{stage: stageSimpleCheck, base: sess.ref.URL}
	var firstErr, lastErr error

	for {
		if !s.isCurrent(sess.gen) {
			s.abandon(sess)
			return
		}
		sess.attempting(cand)
		s.recorder.AttemptStarted(string(cand.strategy))

		err := s.load(ctx, cand)
		if ctx.Err() != nil || !s.isCurrent(sess.gen) {
			s.abandon(sess)
			return
		}
		if err == nil {
			s.recorder.SessionFinished("playing")
			sess.playing()
			return
		}

		s.recorder.AttemptFailed(string(cand.strategy))
		if firstErr == nil {
			firstErr = err
		}
		lastErr = err

		next := sess.RetryCount() + 1
		if next > MaxRetries {
			s.fail(sess, ErrRetryBudgetExceeded, firstErr, lastErr, cand.strategy)
			return
		}

		nextCand, reason := s.nextCandidate(ctx, sess, &fb, next)
		if errors.Is(reason, errAbandoned) {
			s.abandon(sess)
			return
		}
		if reason != nil {
			s.fail(sess, reason, firstErr, lastErr, cand.strategy)
			return
		}

		sess.retrying(next, err)
		log.Warn().Err(err).Str("ref", sess.ref.ID).
			Msgf("Attempt failed, retrying with %s in %v... (%d/%d)", nextCand.strategy, s.retryDelay, next, MaxRetries)

		if !s.sleep(ctx) {
			s.abandon(sess)
			return
		}
		cand = nextCand
	}
}

// nextCandidate walks the fallback chain from its current stage until one
// stage produces a source. The returned error is the terminal reason when the
// chain is exhausted.
func (s *Selector) nextCandidate(ctx context.Context, sess *Session, fb *fallback, retry int) (candidate, error) {
	for {
		switch fb.stage {
		case stageSimpleCheck:
			fb.stage = stageSniff
			if tag, ok := classify.DirectTag(sess.ref.URL); ok {
				return candidate{url: sess.ref.URL, strategy: StrategyFor(tag), format: tag}, nil
			}

		case stageSniff:
			fb.stage = stageProxy
			if s.sniffer == nil {
				continue
			}
			res, err := s.sniffer.Sniff(ctx, sess.ref.URL)
			if ctx.Err() != nil || !s.isCurrent(sess.gen) {
				return candidate{}, errAbandoned
			}
			if err != nil {
				sess.warn(fmt.Sprintf("Sniffing found nothing playable: %v", err), err)
				continue
			}
			cand, err := fromSniff(res)
			if err != nil {
				sess.warn(fmt.Sprintf("Sniffed reference is not playable: %v", err), err)
				continue
			}
			if cand.strategy != StrategyIframe {
				fb.base = cand.url
			}
			return cand, nil

		case stageProxy:
			if s.proxies == nil || !s.proxies.NeedsProxy(fb.base) {
				return candidate{}, ErrPlaybackUnsupported
			}
			if fb.proxyAttempts >= s.proxies.Len() {
				return candidate{}, proxy.ErrExhausted
			}
			fb.proxyAttempts++
			return candidate{
				url:      s.proxies.Proxied(fb.base, retry),
				strategy: StrategyProxiedFetch,
				format:   classify.Classify(fb.base),
			}, nil
		}
	}
}

func fromSniff(res sniff.Result) (candidate, error) {
	strategy := StrategyFor(res.Format)
	if strategy != StrategyIframe {
		return candidate{url: res.URL, strategy: strategy, format: res.Format}, nil
	}
	embedURL, err := EmbedURL(res.Format, res.URL)
	if err != nil {
		return candidate{}, err
	}
	return candidate{url: embedURL, strategy: StrategyIframe, format: res.Format}, nil
}

// runEmbed plays platform entries through their embed page. There is no
// fallback: a missing id or a failed load ends the session.
func (s *Selector) runEmbed(ctx context.Context, sess *Session, cand candidate) {
	embedURL, err := EmbedURL(cand.format, cand.url)
	if err != nil {
		s.fail(sess, ErrPlaybackUnsupported, err, err, StrategyIframe)
		return
	}
	cand.url = embedURL

	sess.attempting(cand)
	s.recorder.AttemptStarted(string(StrategyIframe))

	err = s.load(ctx, cand)
	if ctx.Err() != nil || !s.isCurrent(sess.gen) {
		s.abandon(sess)
		return
	}
	if err != nil {
		s.recorder.AttemptFailed(string(StrategyIframe))
		s.fail(sess, ErrPlaybackUnsupported, err, err, StrategyIframe)
		return
	}
	s.recorder.SessionFinished("playing")
	sess.playing()
}

func (s *Selector) load(ctx context.Context, cand candidate) error {
	loadCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	err := s.capability.Load(loadCtx, Source{URL: cand.url, Strategy: cand.strategy, Format: cand.format})
	if err != nil && errors.Is(loadCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("load timeout after %v: %w", s.loadTimeout, err)
	}
	return err
}

func (s *Selector) sleep(ctx context.Context) bool {
	if s.retryDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Selector) fail(sess *Session, reason, first, last error, strategy Strategy) {
	crossOrigin := s.proxies != nil && s.proxies.NeedsProxy(sess.ref.URL)
	perr := &PlaybackError{
		Reason:      reason,
		URL:         sess.ref.URL,
		First:       first,
		Last:        last,
		CrossOrigin: crossOrigin,
		Remediation: remediation(reason, last, crossOrigin, strategy),
	}

	log.Error().Err(perr).Str("ref", sess.ref.ID).Int("retries", sess.RetryCount()).Msg("Playback failed")
	s.recorder.SessionFinished("failed")
	sess.failed(perr)
}

func (s *Selector) abandon(sess *Session) {
	log.Debug().Str("ref", sess.ref.ID).Uint64("gen", sess.gen).Msg("Discarding result of abandoned session")
	s.recorder.SessionFinished("abandoned")
	sess.abandoned()
}
