package metadata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// DefaultProbeTimeout caps how long a media probe may take.
const DefaultProbeTimeout = 5 * time.Second

// ProbeResult holds the technical details read from a media resource.
type ProbeResult struct {
	Duration time.Duration
	Width    int
	Height   int
}

// Prober reads technical metadata from a media URL.
type Prober interface {
	Probe(ctx context.Context, url string) (ProbeResult, error)
}

// FFProbe probes media with the ffprobe binary.
type FFProbe struct {
	timeout time.Duration
	run     func(url string, timeout time.Duration) (string, error)
}

// NewFFProbe creates an ffprobe-backed Prober.
func NewFFProbe(timeout time.Duration) *FFProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &FFProbe{
		timeout: timeout,
		run: func(url string, timeout time.Duration) (string, error) {
			return ffmpeg.ProbeWithTimeout(url, timeout, ffmpeg.KwArgs{})
		},
	}
}

// Probe runs ffprobe against url. It returns when the probe finishes, the
// timeout elapses or ctx is done, whichever comes first.
func (p *FFProbe) Probe(ctx context.Context, url string) (ProbeResult, error) {
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := p.run(url, p.timeout)
		done <- result{out, err}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return ProbeResult{}, fmt.Errorf("ffprobe failed: %w", res.err)
		}
		return parseProbeOutput(res.out)
	case <-timer.C:
		return ProbeResult{}, fmt.Errorf("probe timeout after %v", p.timeout)
	case <-ctx.Done():
		return ProbeResult{}, ctx.Err()
	}
}

func parseProbeOutput(out string) (ProbeResult, error) {
	if !gjson.Valid(out) {
		return ProbeResult{}, errors.New("ffprobe returned invalid JSON")
	}

	var res ProbeResult

	if raw := gjson.Get(out, "format.duration").String(); raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds > 0 {
			res.Duration = time.Duration(seconds * float64(time.Second))
		}
	}

	stream := gjson.Get(out, `streams.#(codec_type=="video")`)
	if stream.Exists() {
		res.Width = int(stream.Get("width").Int())
		res.Height = int(stream.Get("height").Int())
	}

	return res, nil
}
