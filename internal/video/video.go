// Package video defines playlist entries and the closed set of delivery formats.
package video

import (
	"strings"
	"time"
)

// FormatTag describes how a video URL is delivered.
type FormatTag string

const (
	FormatMP4      FormatTag = "mp4"
	FormatM3U8     FormatTag = "m3u8"
	FormatFLV      FormatTag = "flv"
	FormatWebM     FormatTag = "webm"
	FormatBilibili FormatTag = "bilibili"
	FormatYouTube  FormatTag = "youtube"
	FormatUnknown  FormatTag = "unknown"
)

// AllFormats lists every tag in classification table order.
var AllFormats = []FormatTag{
	FormatMP4,
	FormatM3U8,
	FormatFLV,
	FormatWebM,
	FormatBilibili,
	FormatYouTube,
	FormatUnknown,
}

// ParseFormatTag maps a string to a known tag, defaulting to FormatUnknown.
func ParseFormatTag(s string) FormatTag {
	tag := FormatTag(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllFormats {
		if tag == known {
			return known
		}
	}
	return FormatUnknown
}

// IsDirect reports whether the tag names a media file or manifest rather than a platform page.
func (f FormatTag) IsDirect() bool {
	switch f {
	case FormatMP4, FormatM3U8, FormatFLV, FormatWebM:
		return true
	}
	return false
}

// IsPlatform reports whether the tag names a hosting platform that is played through an embed.
func (f FormatTag) IsPlatform() bool {
	return f == FormatBilibili || f == FormatYouTube
}

func (f FormatTag) String() string {
	if f == "" {
		return string(FormatUnknown)
	}
	return string(f)
}

// Metadata is best-effort enrichment for a playlist entry. Every field may be empty.
type Metadata struct {
	Title       string        `json:"title"`
	Duration    time.Duration `json:"duration"`
	Thumbnail   string        `json:"thumbnail"`
	Description string        `json:"description"`
	Width       int           `json:"width,omitempty"`
	Height      int           `json:"height,omitempty"`
}

// IsZero reports whether no field has been populated.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// VideoRef is a single playlist entry.
type VideoRef struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	URL         string        `json:"url"`
	Format      FormatTag     `json:"format"`
	Duration    time.Duration `json:"duration,omitempty"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	Description string        `json:"description,omitempty"`
	AddedAt     time.Time     `json:"added_at"`

	// UserTitle marks a title typed by the user; enrichment never replaces it.
	UserTitle bool `json:"user_title,omitempty"`
}

// ApplyMetadata merges enrichment into the entry. Empty fields in m never clear
// existing values, so applying the same metadata twice is a no-op.
func (v *VideoRef) ApplyMetadata(m Metadata) {
	if m.Title != "" && !v.UserTitle {
		v.Title = m.Title
	}
	if m.Duration > 0 {
		v.Duration = m.Duration
	}
	if m.Thumbnail != "" {
		v.Thumbnail = m.Thumbnail
	}
	if m.Description != "" {
		v.Description = m.Description
	}
}

// DisplayTitle returns the title, or the URL when no title is known yet.
func (v *VideoRef) DisplayTitle() string {
	if v.Title != "" {
		return v.Title
	}
	return v.URL
}
