// Package streamplan decides how a resolved source reaches the client:
// direct byte proxy, container remux, or per-stream transcode. Decisions are
// pure functions of the resolution and probe results so they can be tested
// without a pipeline process.
package streamplan

import (
	"strconv"
	"strings"
)

// Action is the per-stream handling decision.
type Action string

const (
	ActionCopy      Action = "copy"
	ActionTranscode Action = "transcode"
)

// ProbeResult classifies the primary video and audio streams of a source.
type ProbeResult struct {
	VideoCodec  string
	AudioCodec  string
	PixelFormat string
}

// Plan tells the delivery layer what to run. Passthrough means no pipeline
// process at all: bytes are proxied with native range support. Otherwise a
// pipeline is built with the given per-stream actions, emitting fragmented
// MP4 with no known length.
type Plan struct {
	Passthrough bool
	Video       Action
	Audio       Action
	SeekOffset  float64
}

// Build produces the delivery plan. MP4 sources are proxied directly without
// probing. Non-MP4 sources require a probe; a nil probe means probing failed
// and both streams are transcoded since compatibility cannot be assumed.
func Build(containerIsMP4 bool, probe *ProbeResult, seekOffset float64) Plan {
	if containerIsMP4 {
		return Plan{Passthrough: true}
	}

	plan := Plan{
		Video:      ActionTranscode,
		Audio:      ActionTranscode,
		SeekOffset: seekOffset,
	}
	if probe == nil {
		return plan
	}

	if VideoCopySafe(probe.VideoCodec, probe.PixelFormat) {
		plan.Video = ActionCopy
	}
	if AudioCopySafe(probe.AudioCodec) {
		plan.Audio = ActionCopy
	}
	return plan
}

// VideoCopySafe reports whether the video stream can be copied into an MP4
// container for browser playback. Only 8-bit 4:2:0 H.264 qualifies; HEVC,
// VP9 and 10-bit variants all need a re-encode.
func VideoCopySafe(codec, pixelFormat string) bool {
	c := strings.ToLower(strings.TrimSpace(codec))
	if c != "h264" && !strings.HasPrefix(c, "avc") {
		return false
	}
	return strings.ToLower(strings.TrimSpace(pixelFormat)) == "yuv420p"
}

// AudioCopySafe reports whether the audio stream plays natively in browsers.
func AudioCopySafe(codec string) bool {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "aac", "mp3":
		return true
	}
	return false
}

// EncodeOptions carries the tunable encoder parameters from settings.
type EncodeOptions struct {
	Preset                   string
	CRF                      int
	MaxRateKbps              int
	AudioBitrateKbps         int
	ReconnectDelayMaxSeconds int
}

// Args builds the ffmpeg argument vector for a non-passthrough plan. Input
// options enable auto-reconnect to the upstream HTTP source; output is
// always streaming-friendly fragmented MP4 on stdout.
func Args(plan Plan, inputURL string, opts EncodeOptions) []string {
	args := []string{
		"-nostdin",
		"-loglevel", "error",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", strconv.Itoa(reconnectDelayMax(opts)),
		"-user_agent", "Mozilla/5.0",
		"-analyzeduration", "0",
		"-probesize", "32M",
	}

	// Input seeking: cheap keyframe seek before the decoder opens the stream.
	if plan.SeekOffset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(plan.SeekOffset, 'f', 3, 64))
	}

	args = append(args, "-i", inputURL)

	if plan.Video == ActionTranscode {
		maxRate := opts.MaxRateKbps
		if maxRate <= 0 {
			maxRate = 8000
		}
		crf := opts.CRF
		if crf <= 0 {
			crf = 23
		}
		preset := opts.Preset
		if preset == "" {
			preset = "ultrafast"
		}
		args = append(args,
			"-c:v", "libx264",
			"-preset", preset,
			"-crf", strconv.Itoa(crf),
			"-tune", "zerolatency",
			"-maxrate", strconv.Itoa(maxRate)+"k",
			"-bufsize", strconv.Itoa(2*maxRate)+"k",
			"-pix_fmt", "yuv420p",
		)
	} else {
		args = append(args, "-c:v", "copy")
	}

	if plan.Audio == ActionTranscode {
		bitrate := opts.AudioBitrateKbps
		if bitrate <= 0 {
			bitrate = 192
		}
		args = append(args,
			"-c:a", "aac",
			"-b:a", strconv.Itoa(bitrate)+"k",
			"-ac", "2",
		)
	} else {
		args = append(args, "-c:a", "copy")
	}

	args = append(args,
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4",
		"pipe:1",
	)
	return args
}

func reconnectDelayMax(opts EncodeOptions) int {
	if opts.ReconnectDelayMaxSeconds > 0 {
		return opts.ReconnectDelayMaxSeconds
	}
	return 5
}
