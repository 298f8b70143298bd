// Package classify maps bare video URLs to a delivery format using an ordered pattern table.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/glebovdev/vidres/internal/video"
	"github.com/kkdai/youtube/v2"
)

type group int

const (
	groupDirect group = iota
	groupPlatform
)

type rule struct {
	tag      video.FormatTag
	group    group
	patterns []*regexp.Regexp
}

// Rules are evaluated in declaration order and the first tag with any matching
// pattern wins. Direct-file groups come before platform groups, so a URL that
// carries both a file extension and a platform domain resolves to the file tag.
// Host names match case-insensitively; bilibili ids do not.
var rules = []rule{
	{
		tag:   video.FormatMP4,
		group: groupDirect,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\.(mp4|m4v|mov|avi)([?#]|$)`),
		},
	},
	{
		tag:   video.FormatM3U8,
		group: groupDirect,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\.m3u8([?#]|$)`),
			regexp.MustCompile(`(?i)/playlist\.m3u8`),
			regexp.MustCompile(`(?i)hls[^?#]*\.m3u8`),
		},
	},
	{
		tag:   video.FormatFLV,
		group: groupDirect,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\.flv([?#]|$)`),
			regexp.MustCompile(`(?i)/live/[^?#]*\.flv`),
			regexp.MustCompile(`(?i)/live-flv/`),
		},
	},
	{
		tag:   video.FormatWebM,
		group: groupDirect,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\.(webm|ogv)([?#]|$)`),
		},
	},
	{
		tag:   video.FormatBilibili,
		group: groupPlatform,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^(?i:https?://([a-z0-9-]+\.)*bilibili\.com)/.*(BV[a-zA-Z0-9]+|\bav\d+)`),
			regexp.MustCompile(`(?i)^https?://player\.bilibili\.com/`),
			regexp.MustCompile(`(?i)^https?://b23\.tv/[a-zA-Z0-9]+`),
		},
	},
	{
		tag:   video.FormatYouTube,
		group: groupPlatform,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^https?://([a-z0-9-]+\.)*youtube(-nocookie)?\.com/(watch\?([^#]*&)?v=|embed/|shorts/|live/|v/)`),
			regexp.MustCompile(`(?i)^https?://youtu\.be/[a-zA-Z0-9_-]+`),
		},
	},
}

var (
	bvIDPattern      = regexp.MustCompile(`BV[a-zA-Z0-9]+`)
	avIDPattern      = regexp.MustCompile(`(?i)\bav(\d+)`)
	youTubeIDPattern = regexp.MustCompile(`(?:v=|/embed/|/shorts/|/live/|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	youTubeIDCharset = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// Classify returns the format tag for raw. It never fails: URLs that are not
// absolute http(s) URLs, or that match no rule, classify as video.FormatUnknown.
func Classify(raw string) video.FormatTag {
	raw = strings.TrimSpace(raw)
	if !isValidURL(raw) {
		return video.FormatUnknown
	}
	for _, r := range rules {
		if r.matches(raw) {
			return r.tag
		}
	}
	return video.FormatUnknown
}

// DirectTag runs only the direct-file groups of the table. It is the "simple
// check" used when a page is sniffed or a failed playback is retried.
func DirectTag(raw string) (video.FormatTag, bool) {
	raw = strings.TrimSpace(raw)
	if !isValidURL(raw) {
		return video.FormatUnknown, false
	}
	for _, r := range rules {
		if r.group != groupDirect {
			continue
		}
		if r.matches(raw) {
			return r.tag, true
		}
	}
	return video.FormatUnknown, false
}

func (r rule) matches(raw string) bool {
	for _, p := range r.patterns {
		if p.MatchString(raw) {
			return true
		}
	}
	return false
}

func isValidURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return false
	}
	return parsed.Host != ""
}

// BilibiliID extracts a BV id ("BV1xx411c7mD") or an AV id ("av170001") from raw.
// It returns an empty string when neither is present.
func BilibiliID(raw string) string {
	if id := bvIDPattern.FindString(raw); id != "" {
		return id
	}
	if m := avIDPattern.FindStringSubmatch(raw); len(m) > 1 {
		return "av" + m[1]
	}
	return ""
}

// YouTubeID extracts the 11-character video id from watch, embed and youtu.be
// URLs. Other YouTube URL shapes fall back to the youtube library's extractor.
func YouTubeID(raw string) string {
	if m := youTubeIDPattern.FindStringSubmatch(raw); len(m) > 1 {
		return m[1]
	}
	if Classify(raw) != video.FormatYouTube {
		return ""
	}
	id, err := youtube.ExtractVideoID(raw)
	if err != nil || !youTubeIDCharset.MatchString(id) {
		return ""
	}
	return id
}
