package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"onyxstream/internal/streamplan"
	"onyxstream/models"
)

// runPipeline launches ffmpeg for a non-passthrough plan and relays its
// stdout to the client as fragmented MP4. The process is killed on every
// exit path so a client disconnect never leaves an encoder running.
func (h *StreamHandler) runPipeline(w http.ResponseWriter, r *http.Request, res models.MagnetResolution, plan streamplan.Plan) {
	ctx := r.Context()
	session := uuid.NewString()[:8]

	ffmpegPath := h.settings.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	args := streamplan.Args(plan, res.URL, streamplan.EncodeOptions{
		Preset:                   h.settings.Preset,
		CRF:                      h.settings.CRF,
		MaxRateKbps:              h.settings.MaxRateKbps,
		AudioBitrateKbps:         h.settings.AudioBitrateKbps,
		ReconnectDelayMaxSeconds: h.settings.ReconnectDelayMaxSeconds,
	})

	log.Printf("[stream] session=%s video=%s audio=%s seek=%.3f file=%q",
		session, plan.Video, plan.Audio, plan.SeekOffset, res.Filename)

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "pipeline setup failed")
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "pipeline setup failed")
		return
	}

	if err := cmd.Start(); err != nil {
		log.Printf("[stream] session=%s ffmpeg start failed: %v", session, err)
		writeJSONError(w, http.StatusInternalServerError, "pipeline start failed")
		return
	}

	// Drain stderr so ffmpeg never blocks on a full pipe; keep the tail
	// for the session log on abnormal exit.
	var g errgroup.Group
	var stderrTail strings.Builder
	g.Go(func() error {
		buf := make([]byte, 4096)
		for {
			n, readErr := stderr.Read(buf)
			if n > 0 {
				if stderrTail.Len() > 8192 {
					stderrTail.Reset()
				}
				stderrTail.Write(buf[:n])
			}
			if readErr != nil {
				return nil
			}
		}
	})

	kill := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}

	writeCommonHeaders(w)
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "none")
	if res.Filename != "" {
		w.Header().Set("X-Filename", res.Filename)
	}

	started := false
	flusher, _ := w.(http.Flusher)
	var total int64
	buf := make([]byte, 256*1024)
	flushCounter := 0
	const flushInterval = 2

relay:
	for {
		select {
		case <-ctx.Done():
			kill()
			log.Printf("[stream] session=%s client disconnected total=%d", session, total)
			break relay
		default:
		}

		n, readErr := stdout.Read(buf)
		if n > 0 {
			if !started {
				w.WriteHeader(http.StatusOK)
				started = true
			}
			written, writeErr := w.Write(buf[:n])
			if writeErr != nil {
				kill()
				if !isClientGone(writeErr) {
					log.Printf("[stream] session=%s write error total=%d err=%v", session, total, writeErr)
				}
				break relay
			}
			total += int64(written)
			flushCounter++
			if flusher != nil && flushCounter >= flushInterval {
				flusher.Flush()
				flushCounter = 0
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if flusher != nil {
					flusher.Flush()
				}
				break relay
			}
			kill()
			log.Printf("[stream] session=%s read error total=%d err=%v", session, total, readErr)
			break relay
		}
	}

	waitErr := cmd.Wait()
	_ = g.Wait()

	if waitErr != nil && ctx.Err() == nil && !started {
		tail := strings.TrimSpace(stderrTail.String())
		log.Printf("[stream] session=%s ffmpeg failed before output: %v stderr=%q", session, waitErr, tail)
		writeJSONError(w, http.StatusInternalServerError, "pipeline failed")
		return
	}

	if waitErrMsg := waitErrString(waitErr); waitErrMsg != "" && ctx.Err() == nil {
		log.Printf("[stream] session=%s ffmpeg exited: %s total=%d", session, waitErrMsg, total)
	} else {
		log.Printf("[stream] session=%s complete total=%d", session, total)
	}
}

func waitErrString(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "signal") || strings.Contains(msg, "broken pipe") {
		return ""
	}
	return err.Error()
}
