// Package probe inspects remote media with ffprobe so the stream
// planner can decide between copying and re-encoding streams.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"

	"onyxstream/internal/streamplan"
)

// ErrProbeFailed reports that ffprobe could not analyze the input.
// Callers treat it as non-fatal and fall back to a full transcode.
var ErrProbeFailed = errors.New("probe failed")

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Channels  int    `json:"channels"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	PixFmt    string `json:"pix_fmt"`
	Profile   string `json:"profile"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// Prober runs ffprobe against unrestricted download URLs.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

func NewProber(ffprobePath string, timeout time.Duration) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Prober{ffprobePath: ffprobePath, timeout: timeout}
}

// Probe analyzes the stream at url and returns codec details for the
// primary video and audio streams. All failures wrap ErrProbeFailed.
func (p *Prober) Probe(ctx context.Context, url string) (*streamplan.ProbeResult, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-analyzeduration", "0",
		"-probesize", "32M",
		"-i", url,
	}

	cmd := exec.CommandContext(probeCtx, p.ffprobePath, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: ffprobe timeout after %s", ErrProbeFailed, p.timeout)
		}
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return nil, fmt.Errorf("%w: %s", ErrProbeFailed, errMsg)
		}
		return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	parsed, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	log.Printf("[Probe] video=%s pix_fmt=%s audio=%s", parsed.VideoCodec, parsed.PixelFormat, parsed.AudioCodec)
	return parsed, nil
}

func parseProbeOutput(data []byte) (*streamplan.ProbeResult, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe output: %v", ErrProbeFailed, err)
	}

	result := &streamplan.ProbeResult{}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if result.VideoCodec == "" {
				result.VideoCodec = s.CodecName
				result.PixelFormat = s.PixFmt
			}
		case "audio":
			if result.AudioCodec == "" {
				result.AudioCodec = s.CodecName
			}
		}
	}
	if result.VideoCodec == "" && result.AudioCodec == "" {
		return nil, fmt.Errorf("%w: no media streams reported", ErrProbeFailed)
	}
	return result, nil
}
