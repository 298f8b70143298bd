package player

import (
	"sync"
	"time"

	"github.com/glebovdev/vidres/internal/video"
	"github.com/rs/zerolog/log"
)

type candidate struct {
	url      string
	strategy Strategy
	format   video.FormatTag
}

// Session is one playback attempt chain for one entry. Only the selector's run
// goroutine for this session writes to it.
type Session struct {
	gen uint64
	ref video.VideoRef

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.RWMutex
	state      State
	target     string
	strategy   Strategy
	retryCount int
	err        error
}

func newSession(gen uint64, ref video.VideoRef) *Session {
	return &Session{
		gen:    gen,
		ref:    ref,
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
		state:  StateIdle,
		target: ref.URL,
	}
}

// Events delivers lifecycle events in order. The channel is closed once the
// session reaches a terminal state or is abandoned.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session ends. It returns nil when playback started,
// a *PlaybackError on failure and ErrStopped when the session was abandoned.
func (s *Session) Wait() error {
	<-s.done
	return s.Err()
}

func (s *Session) Generation() uint64 {
	return s.gen
}

func (s *Session) Ref() video.VideoRef {
	return s.ref
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) RetryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retryCount
}

// Target returns the URL and strategy of the latest attempt.
func (s *Session) Target() (string, Strategy) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target, s.strategy
}

func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Session) attempting(c candidate) {
	s.mu.Lock()
	s.state = StateAttempting
	s.target = c.url
	s.strategy = c.strategy
	s.mu.Unlock()

	s.emit(EventLoadStart, nil, "")
}

func (s *Session) retrying(retryCount int, cause error) {
	s.mu.Lock()
	s.retryCount = retryCount
	s.mu.Unlock()

	s.emit(EventWarning, cause, "Playback failed, retrying")
}

func (s *Session) warn(msg string, cause error) {
	s.emit(EventWarning, cause, msg)
}

func (s *Session) playing() {
	s.mu.Lock()
	s.state = StatePlaying
	s.mu.Unlock()

	s.emit(EventPlay, nil, "")

	s.mu.Lock()
	s.retryCount = 0
	s.mu.Unlock()

	s.finish()
}

func (s *Session) failed(err *PlaybackError) {
	s.mu.Lock()
	s.state = StateFailed
	s.err = err
	s.mu.Unlock()

	s.emit(EventError, err, err.Remediation)
	s.finish()
}

func (s *Session) abandoned() {
	s.mu.Lock()
	s.state = StateIdle
	s.err = ErrStopped
	s.mu.Unlock()

	s.finish()
}

func (s *Session) emit(typ EventType, err error, msg string) {
	s.mu.RLock()
	ev := Event{
		Type:       typ,
		Generation: s.gen,
		RefID:      s.ref.ID,
		State:      s.state,
		RetryCount: s.retryCount,
		Strategy:   s.strategy,
		URL:        s.target,
		Err:        err,
		Message:    msg,
		Time:       time.Now(),
	}
	s.mu.RUnlock()

	select {
	case s.events <- ev:
	default:
		log.Warn().Str("ref", s.ref.ID).Msgf("Event buffer full, dropping %s event", typ)
	}
}

func (s *Session) finish() {
	s.closeOnce.Do(func() {
		close(s.events)
		close(s.done)
	})
}
