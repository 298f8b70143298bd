package player

import (
	"fmt"
	"html"
	"strings"

	"github.com/glebovdev/vidres/internal/classify"
	"github.com/glebovdev/vidres/internal/video"
)

const (
	bilibiliEmbedBase = "https://player.bilibili.com/player.html"
	youTubeEmbedBase  = "https://www.youtube.com/embed/"

	iframeTemplate = `<iframe src="%s" title="%s" width="100%%" height="100%%" frameborder="0" ` +
		`allow="autoplay; encrypted-media; fullscreen; picture-in-picture" allowfullscreen></iframe>`
)

// Embed is a platform player page and the markup that hosts it.
type Embed struct {
	URL  string
	HTML string
}

// EmbedURL builds the platform player URL for raw.
func EmbedURL(tag video.FormatTag, raw string) (string, error) {
	switch tag {
	case video.FormatBilibili:
		id := classify.BilibiliID(raw)
		switch {
		case strings.HasPrefix(id, "BV"):
			return bilibiliEmbedBase + "?bvid=" + id, nil
		case id != "":
			return bilibiliEmbedBase + "?aid=" + id[2:], nil
		}
		return "", fmt.Errorf("%w: no bilibili video id in %s", ErrPlaybackUnsupported, raw)

	case video.FormatYouTube:
		if id := classify.YouTubeID(raw); id != "" {
			return youTubeEmbedBase + id, nil
		}
		return "", fmt.Errorf("%w: no youtube video id in %s", ErrPlaybackUnsupported, raw)
	}

	return "", fmt.Errorf("%w: %s is not an embeddable platform", ErrPlaybackUnsupported, tag)
}

// EmbedDocument returns the embed for a platform entry.
func EmbedDocument(ref video.VideoRef) (Embed, error) {
	embedURL, err := EmbedURL(classify.Classify(ref.URL), ref.URL)
	if err != nil {
		return Embed{}, err
	}

	return Embed{
		URL:  embedURL,
		HTML: fmt.Sprintf(iframeTemplate, html.EscapeString(embedURL), html.EscapeString(ref.DisplayTitle())),
	}, nil
}
