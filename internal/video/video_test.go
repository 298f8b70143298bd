package video

import (
	"testing"
	"time"
)

func TestParseFormatTag(t *testing.T) {
	tests := []struct {
		input    string
		expected FormatTag
	}{
		{"mp4", FormatMP4},
		{" M3U8 ", FormatM3U8},
		{"bilibili", FormatBilibili},
		{"YouTube", FormatYouTube},
		{"", FormatUnknown},
		{"mkv", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormatTag(tt.input); got != tt.expected {
				t.Errorf("ParseFormatTag(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatGroups(t *testing.T) {
	for _, f := range AllFormats {
		if f.IsDirect() && f.IsPlatform() {
			t.Errorf("%s is both direct and platform", f)
		}
	}

	direct := []FormatTag{FormatMP4, FormatM3U8, FormatFLV, FormatWebM}
	for _, f := range direct {
		if !f.IsDirect() {
			t.Errorf("%s.IsDirect() = false", f)
		}
	}
	if !FormatBilibili.IsPlatform() || !FormatYouTube.IsPlatform() {
		t.Error("platform tags not reported as platform")
	}
	if FormatUnknown.IsDirect() || FormatUnknown.IsPlatform() {
		t.Error("unknown should be neither direct nor platform")
	}
}

func TestFormatTagStringEmpty(t *testing.T) {
	var f FormatTag
	if f.String() != "unknown" {
		t.Errorf("String() = %q, want unknown", f.String())
	}
}

func TestApplyMetadata(t *testing.T) {
	ref := VideoRef{URL: "https://cdn.example/a.mp4", Title: "a"}
	meta := Metadata{Title: "Clip", Duration: time.Minute, Thumbnail: "https://img/t.jpg"}

	ref.ApplyMetadata(meta)
	first := ref
	ref.ApplyMetadata(meta)

	if ref != first {
		t.Errorf("applying metadata twice changed the entry: %+v vs %+v", ref, first)
	}
	if ref.Title != "Clip" || ref.Duration != time.Minute || ref.Thumbnail != "https://img/t.jpg" {
		t.Errorf("metadata not applied: %+v", ref)
	}
}

func TestApplyMetadataKeepsExistingValues(t *testing.T) {
	ref := VideoRef{Title: "Old", Duration: time.Second, Description: "keep"}
	ref.ApplyMetadata(Metadata{})

	if ref.Title != "Old" || ref.Duration != time.Second || ref.Description != "keep" {
		t.Errorf("empty metadata cleared fields: %+v", ref)
	}
}

func TestApplyMetadataUserTitle(t *testing.T) {
	ref := VideoRef{Title: "Mine", UserTitle: true}
	ref.ApplyMetadata(Metadata{Title: "Theirs", Duration: time.Second})

	if ref.Title != "Mine" {
		t.Errorf("Title = %q, want user title kept", ref.Title)
	}
	if ref.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", ref.Duration)
	}
}

func TestDisplayTitle(t *testing.T) {
	ref := VideoRef{URL: "https://cdn.example/a.mp4"}
	if ref.DisplayTitle() != ref.URL {
		t.Errorf("DisplayTitle() = %q, want URL", ref.DisplayTitle())
	}
	ref.Title = "A"
	if ref.DisplayTitle() != "A" {
		t.Errorf("DisplayTitle() = %q, want A", ref.DisplayTitle())
	}
}

func TestMetadataIsZero(t *testing.T) {
	if !(Metadata{}).IsZero() {
		t.Error("empty Metadata should be zero")
	}
	if (Metadata{Width: 1}).IsZero() {
		t.Error("populated Metadata should not be zero")
	}
}
