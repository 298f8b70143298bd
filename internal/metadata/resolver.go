// Package metadata resolves best-effort titles, durations and thumbnails for video URLs.
package metadata

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/glebovdev/vidres/internal/api"
	"github.com/glebovdev/vidres/internal/cache"
	"github.com/glebovdev/vidres/internal/classify"
	"github.com/glebovdev/vidres/internal/video"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// PlaceholderTitle is used when nothing usable can be derived from a URL.
	PlaceholderTitle = "Untitled video"
	// DefaultBatchLimit bounds concurrent resolutions in ResolveAll.
	DefaultBatchLimit = 5

	youTubeThumbnailTemplate = "https://img.youtube.com/vi/%s/hqdefault.jpg"
)

// BilibiliAPI looks up Bilibili video details by BV or AV id.
type BilibiliAPI interface {
	GetVideoInfo(ctx context.Context, id string) (*api.VideoInfo, error)
}

// Resolver enriches video URLs. Resolve never fails; partial results are normal.
type Resolver struct {
	bilibili     BilibiliAPI
	prober       Prober
	probeTimeout time.Duration
	cache        *cache.Cache[video.Metadata]
	batchLimit   int
}

type Option func(*Resolver)

// WithProber enables media probing for direct-file URLs.
func WithProber(p Prober) Option {
	return func(r *Resolver) { r.prober = p }
}

// WithProbeTimeout bounds each media probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.probeTimeout = d
		}
	}
}

// WithCache memoizes complete results in c.
func WithCache(c *cache.Cache[video.Metadata]) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithBatchLimit sets how many URLs ResolveAll resolves at once.
func WithBatchLimit(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.batchLimit = n
		}
	}
}

// NewResolver creates a Resolver. bilibili may be nil, in which case only the
// provisional title is produced for Bilibili URLs.
func NewResolver(bilibili BilibiliAPI, opts ...Option) *Resolver {
	r := &Resolver{
		bilibili:     bilibili,
		probeTimeout: DefaultProbeTimeout,
		batchLimit:   DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve gathers metadata for rawURL. Any internal failure leaves the
// corresponding fields empty.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) video.Metadata {
	rawURL = strings.TrimSpace(rawURL)

	if r.cache != nil {
		if meta, ok := r.cache.Get(rawURL); ok {
			log.Debug().Str("url", rawURL).Msg("Metadata loaded from cache")
			return meta
		}
	}

	var (
		meta     video.Metadata
		complete bool
	)

	switch tag := classify.Classify(rawURL); tag {
	case video.FormatBilibili:
		meta, complete = r.resolveBilibili(ctx, rawURL)
	case video.FormatYouTube:
		meta, complete = resolveYouTube(rawURL)
	default:
		meta, complete = r.resolveGeneric(ctx, rawURL, tag)
	}

	if complete && r.cache != nil {
		r.cache.Set(rawURL, meta)
	}

	return meta
}

// ResolveAll resolves urls with at most the batch limit in flight and returns
// results in input order.
func (r *Resolver) ResolveAll(ctx context.Context, urls []string) []video.Metadata {
	results := make([]video.Metadata, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchLimit)

	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = r.Resolve(gCtx, u)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (r *Resolver) resolveBilibili(ctx context.Context, rawURL string) (video.Metadata, bool) {
	id := classify.BilibiliID(rawURL)
	if id == "" {
		// Short links carry no id until they are followed.
		return video.Metadata{Title: TitleFromURL(rawURL)}, false
	}

	meta := video.Metadata{Title: "Bilibili video " + id}
	if r.bilibili == nil {
		return meta, false
	}

	info, err := r.bilibili.GetVideoInfo(ctx, id)
	if err != nil {
		log.Debug().Err(err).Str("id", id).Msg("Bilibili lookup failed, keeping provisional title")
		return meta, false
	}

	meta.Title = info.Title
	meta.Description = info.Desc
	meta.Thumbnail = info.ThumbnailURL()
	if info.Duration > 0 {
		meta.Duration = time.Duration(info.Duration) * time.Second
	}
	return meta, true
}

func resolveYouTube(rawURL string) (video.Metadata, bool) {
	id := classify.YouTubeID(rawURL)
	if id == "" {
		return video.Metadata{Title: TitleFromURL(rawURL)}, true
	}
	return video.Metadata{
		Title:     "YouTube video " + id,
		Thumbnail: fmt.Sprintf(youTubeThumbnailTemplate, id),
	}, true
}

func (r *Resolver) resolveGeneric(ctx context.Context, rawURL string, tag video.FormatTag) (video.Metadata, bool) {
	meta := video.Metadata{Title: TitleFromURL(rawURL)}

	if !tag.IsDirect() || r.prober == nil {
		return meta, true
	}

	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	probe, err := r.prober.Probe(ctx, rawURL)
	if err != nil {
		log.Debug().Err(err).Str("url", rawURL).Msg("Media probe failed, using title only")
		return meta, false
	}

	meta.Duration = probe.Duration
	meta.Width = probe.Width
	meta.Height = probe.Height
	return meta, true
}

// TitleFromURL derives a display title from the last path segment of rawURL,
// falling back to the hostname and then to PlaceholderTitle.
func TitleFromURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return PlaceholderTitle
	}

	segment := path.Base(parsed.EscapedPath())
	if segment == "/" || segment == "." {
		segment = ""
	}
	segment = strings.TrimSuffix(segment, path.Ext(segment))
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	segment = strings.NewReplacer("_", " ", "-", " ").Replace(segment)
	segment = strings.Join(strings.Fields(segment), " ")
	if segment != "" {
		return segment
	}

	if host := strings.TrimPrefix(parsed.Hostname(), "www."); host != "" {
		return host
	}
	return PlaceholderTitle
}
