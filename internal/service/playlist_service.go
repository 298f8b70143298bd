// Package service provides the playlist store and its background enrichment.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/glebovdev/vidres/internal/classify"
	"github.com/glebovdev/vidres/internal/video"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const enrichTimeout = 15 * time.Second

var (
	ErrEmptyURL = errors.New("url is empty")
	ErrNotFound = errors.New("entry not found")
)

// MetadataResolver is the enrichment source. Resolve never fails.
type MetadataResolver interface {
	Resolve(ctx context.Context, rawURL string) video.Metadata
	ResolveAll(ctx context.Context, urls []string) []video.Metadata
}

// PlaylistService owns the ordered list of entries. Entries are only changed
// through Add, Enrich, UpdateURL and Remove.
type PlaylistService struct {
	resolver MetadataResolver
	refs     []video.VideoRef
	mu       sync.RWMutex
	wg       sync.WaitGroup
	onChange func(video.VideoRef)
	now      func() time.Time
}

// NewPlaylistService creates a service. A nil resolver disables enrichment.
func NewPlaylistService(resolver MetadataResolver) *PlaylistService {
	return &PlaylistService{
		resolver: resolver,
		now:      time.Now,
	}
}

// SetOnChange registers a callback invoked after an entry is enriched.
func (s *PlaylistService) SetOnChange(callback func(video.VideoRef)) {
	s.mu.Lock()
	s.onChange = callback
	s.mu.Unlock()
}

// Add appends a new entry and starts enriching it in the background. A
// non-empty title is treated as user-supplied and is never replaced.
func (s *PlaylistService) Add(rawURL, title string) (video.VideoRef, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return video.VideoRef{}, ErrEmptyURL
	}

	title = strings.TrimSpace(title)
	ref := video.VideoRef{
		ID:        uuid.NewString(),
		Title:     title,
		URL:       rawURL,
		Format:    classify.Classify(rawURL),
		AddedAt:   s.now(),
		UserTitle: title != "",
	}

	s.mu.Lock()
	s.refs = append(s.refs, ref)
	s.mu.Unlock()

	log.Debug().Str("id", ref.ID).Str("format", ref.Format.String()).Msgf("Added entry: %s", rawURL)

	s.enrichInBackground(ref.ID, ref.URL)
	return ref, nil
}

// UpdateURL replaces the entry with a new one for rawURL at the same position.
// The replacement gets a new id and a freshly derived format.
func (s *PlaylistService) UpdateURL(id, rawURL string) (video.VideoRef, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return video.VideoRef{}, ErrEmptyURL
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return video.VideoRef{}, ErrNotFound
	}

	old := s.refs[idx]
	ref := video.VideoRef{
		ID:      uuid.NewString(),
		URL:     rawURL,
		Format:  classify.Classify(rawURL),
		AddedAt: s.now(),
	}
	if old.UserTitle {
		ref.Title = old.Title
		ref.UserTitle = true
	}
	s.refs[idx] = ref
	s.mu.Unlock()

	log.Debug().Str("old", id).Str("new", ref.ID).Msgf("Replaced entry URL: %s", rawURL)

	s.enrichInBackground(ref.ID, ref.URL)
	return ref, nil
}

// Enrich merges meta into the entry with the given id. It reports false when
// the entry no longer exists.
func (s *PlaylistService) Enrich(id string, meta video.Metadata) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.refs[idx].ApplyMetadata(meta)
	ref := s.refs[idx]
	callback := s.onChange
	s.mu.Unlock()

	if callback != nil {
		callback(ref)
	}
	return true
}

// EnrichAll resolves every entry in batches and applies the results.
func (s *PlaylistService) EnrichAll(ctx context.Context) {
	if s.resolver == nil {
		return
	}

	refs := s.List()
	urls := make([]string, len(refs))
	for i, ref := range refs {
		urls[i] = ref.URL
	}

	results := s.resolver.ResolveAll(ctx, urls)
	for i, meta := range results {
		s.Enrich(refs[i].ID, meta)
	}

	log.Debug().Int("count", len(refs)).Msg("Playlist enriched")
}

func (s *PlaylistService) enrichInBackground(id, rawURL string) {
	if s.resolver == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
		defer cancel()

		meta := s.resolver.Resolve(ctx, rawURL)
		if !s.Enrich(id, meta) {
			log.Debug().Str("id", id).Msg("Entry removed before enrichment finished")
		}
	}()
}

// Wait blocks until all background enrichment has finished.
func (s *PlaylistService) Wait() {
	s.wg.Wait()
}

func (s *PlaylistService) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.refs = append(s.refs[:idx], s.refs[idx+1:]...)
	return true
}

// List returns a copy of the entries in order.
func (s *PlaylistService) List() []video.VideoRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]video.VideoRef, len(s.refs))
	copy(result, s.refs)
	return result
}

// Get returns a copy of the entry at index, or nil if out of bounds.
func (s *PlaylistService) Get(index int) *video.VideoRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.refs) {
		return nil
	}
	ref := s.refs[index]
	return &ref
}

func (s *PlaylistService) GetByID(id string) (video.VideoRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.indexLocked(id); idx >= 0 {
		return s.refs[idx], true
	}
	return video.VideoRef{}, false
}

func (s *PlaylistService) FindIndexByID(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(id)
}

func (s *PlaylistService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refs)
}

func (s *PlaylistService) indexLocked(id string) int {
	for i, ref := range s.refs {
		if ref.ID == id {
			return i
		}
	}
	return -1
}
