package streamplan

import (
	"slices"
	"strings"
	"testing"
)

func TestBuildMP4AlwaysPassthrough(t *testing.T) {
	probes := []*ProbeResult{
		nil,
		{VideoCodec: "hevc", AudioCodec: "dts", PixelFormat: "yuv420p10le"},
		{VideoCodec: "h264", AudioCodec: "aac", PixelFormat: "yuv420p"},
	}
	for _, probe := range probes {
		plan := Build(true, probe, 0)
		if !plan.Passthrough {
			t.Fatalf("mp4 container with probe=%+v: expected passthrough plan", probe)
		}
	}
}

func TestBuildProbeFailureTranscodesBoth(t *testing.T) {
	plan := Build(false, nil, 0)
	if plan.Passthrough {
		t.Fatal("failed probe must not produce a passthrough plan")
	}
	if plan.Video != ActionTranscode || plan.Audio != ActionTranscode {
		t.Fatalf("got video=%s audio=%s, want transcode/transcode", plan.Video, plan.Audio)
	}
}

func TestBuildVideoDecision(t *testing.T) {
	tests := []struct {
		codec  string
		pixFmt string
		want   Action
	}{
		{"h264", "yuv420p", ActionCopy},
		{"H264", "YUV420P", ActionCopy},
		{"h264", "yuv420p10le", ActionTranscode},
		{"hevc", "yuv420p", ActionTranscode},
		{"h265", "yuv420p", ActionTranscode},
		{"vp9", "yuv420p", ActionTranscode},
		{"", "", ActionTranscode},
		{"h264", "", ActionTranscode},
	}
	for _, tt := range tests {
		plan := Build(false, &ProbeResult{VideoCodec: tt.codec, PixelFormat: tt.pixFmt, AudioCodec: "aac"}, 0)
		if plan.Video != tt.want {
			t.Errorf("codec=%q pixfmt=%q: got %s, want %s", tt.codec, tt.pixFmt, plan.Video, tt.want)
		}
	}
}

func TestBuildAudioDecision(t *testing.T) {
	tests := []struct {
		codec string
		want  Action
	}{
		{"aac", ActionCopy},
		{"mp3", ActionCopy},
		{"AAC", ActionCopy},
		{"ac3", ActionTranscode},
		{"eac3", ActionTranscode},
		{"dts", ActionTranscode},
		{"flac", ActionTranscode},
		{"", ActionTranscode},
	}
	for _, tt := range tests {
		plan := Build(false, &ProbeResult{VideoCodec: "h264", PixelFormat: "yuv420p", AudioCodec: tt.codec}, 0)
		if plan.Audio != tt.want {
			t.Errorf("codec=%q: got %s, want %s", tt.codec, plan.Audio, tt.want)
		}
	}
}

func TestArgsFullTranscode(t *testing.T) {
	plan := Build(false, &ProbeResult{VideoCodec: "hevc", AudioCodec: "ac3", PixelFormat: "yuv420p10le"}, 0)
	args := Args(plan, "https://cdn.example.com/video.mkv", EncodeOptions{
		Preset: "ultrafast", CRF: 23, MaxRateKbps: 8000, AudioBitrateKbps: 192,
	})

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-c:v libx264",
		"-c:a aac",
		"-ac 2",
		"-movflags frag_keyframe+empty_moov+default_base_moof",
		"-reconnect 1",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if !slices.Equal(args[len(args)-3:], []string{"-f", "mp4", "pipe:1"}) {
		t.Errorf("args must end with fragmented mp4 to stdout, got %v", args[len(args)-3:])
	}
}

func TestArgsRemuxCopiesBothStreams(t *testing.T) {
	plan := Build(false, &ProbeResult{VideoCodec: "h264", AudioCodec: "aac", PixelFormat: "yuv420p"}, 0)
	args := Args(plan, "https://cdn.example.com/video.mkv", EncodeOptions{})

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-c:v copy") || !strings.Contains(joined, "-c:a copy") {
		t.Fatalf("remux plan must copy both streams: %s", joined)
	}
	if strings.Contains(joined, "libx264") {
		t.Fatalf("remux plan must not include an encoder: %s", joined)
	}
}

func TestArgsSeekBeforeInput(t *testing.T) {
	plan := Build(false, nil, 42.5)
	args := Args(plan, "https://cdn.example.com/video.mkv", EncodeOptions{})

	ssIdx := slices.Index(args, "-ss")
	inIdx := slices.Index(args, "-i")
	if ssIdx == -1 {
		t.Fatal("expected -ss for non-zero seek offset")
	}
	if ssIdx > inIdx {
		t.Fatalf("-ss at %d must precede -i at %d for input seeking", ssIdx, inIdx)
	}
	if args[ssIdx+1] != "42.500" {
		t.Fatalf("got seek value %q, want 42.500", args[ssIdx+1])
	}
}

func TestArgsNoSeekWhenZero(t *testing.T) {
	args := Args(Build(false, nil, 0), "https://cdn.example.com/video.mkv", EncodeOptions{})
	if slices.Contains(args, "-ss") {
		t.Fatal("zero seek offset must not emit -ss")
	}
}
