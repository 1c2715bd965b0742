package handlers

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"onyxstream/models"
)

// passthroughForwardHeaders are relayed verbatim from the upstream
// response so Range semantics survive the proxy hop.
var passthroughForwardHeaders = []string{
	"Content-Length",
	"Content-Range",
	"Content-Type",
	"Accept-Ranges",
}

// proxyPassthrough streams an MP4 source directly, forwarding the client
// Range header upstream and the upstream status and byte-range headers back.
func (h *StreamHandler) proxyPassthrough(w http.ResponseWriter, r *http.Request, res models.MagnetResolution) {
	ctx := r.Context()

	upReq, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "invalid upstream URL")
		return
	}
	upReq.Header.Set("User-Agent", "Mozilla/5.0")
	upReq.Header.Set("Accept-Encoding", "identity")
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		upReq.Header.Set("Range", rangeHeader)
	}

	client := &http.Client{Timeout: 30 * time.Minute}
	resp, err := client.Do(upReq)
	if err != nil {
		log.Printf("[stream] passthrough request failed file=%q err=%v", res.Filename, err)
		writeJSONError(w, http.StatusBadGateway, "upstream fetch failed")
		return
	}
	defer resp.Body.Close()

	// 416 carries Range semantics the player needs to see; other upstream
	// failures are the proxy's fault from the client's point of view.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		log.Printf("[stream] passthrough upstream error file=%q status=%d", res.Filename, resp.StatusCode)
		writeJSONError(w, http.StatusBadGateway, "upstream stream error")
		return
	}

	writeCommonHeaders(w)
	for _, header := range passthroughForwardHeaders {
		if value := resp.Header.Get(header); value != "" {
			w.Header().Set(header, value)
		}
	}
	if res.Filename != "" {
		w.Header().Set("X-Filename", res.Filename)
	}

	// Sniff a prefix when upstream omits the content type.
	var sniffed []byte
	if resp.Header.Get("Content-Type") == "" {
		buf := make([]byte, 3072)
		n, _ := io.ReadFull(resp.Body, buf)
		sniffed = buf[:n]
		w.Header().Set("Content-Type", mimetype.Detect(sniffed).String())
	}

	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return
	}

	flusher, _ := w.(http.Flusher)
	var total int64

	if len(sniffed) > 0 {
		written, writeErr := w.Write(sniffed)
		if writeErr != nil {
			return
		}
		total += int64(written)
	}

	buf := make([]byte, 512*1024)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[stream] passthrough cancelled file=%q total=%d", res.Filename, total)
			return
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			written, writeErr := w.Write(buf[:n])
			if writeErr != nil {
				if !isClientGone(writeErr) {
					log.Printf("[stream] passthrough write error file=%q total=%d err=%v", res.Filename, total, writeErr)
				}
				return
			}
			total += int64(written)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				log.Printf("[stream] passthrough read error file=%q total=%d err=%v", res.Filename, total, readErr)
			}
			return
		}
	}
}
