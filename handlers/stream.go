// Package handlers implements the HTTP surface: stream delivery,
// subtitle lookup and conversion, and the generic API proxy.
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"onyxstream/config"
	"onyxstream/internal/streamplan"
	"onyxstream/models"
	"onyxstream/services/debrid"
)

// Resolver turns a magnet plus file selector into a playable resolution.
type Resolver interface {
	Resolve(ctx context.Context, magnet string, sel models.FileSelector) (models.MagnetResolution, error)
}

// Prober classifies the primary streams of a remote source.
type Prober interface {
	Probe(ctx context.Context, url string) (*streamplan.ProbeResult, error)
}

// StreamHandler serves GET /stream: resolve, plan, deliver.
type StreamHandler struct {
	resolver Resolver
	prober   Prober
	settings config.TranscodeSettings
}

func NewStreamHandler(resolver Resolver, prober Prober, settings config.TranscodeSettings) *StreamHandler {
	return &StreamHandler{
		resolver: resolver,
		prober:   prober,
		settings: settings,
	}
}

// StreamVideo handles GET /stream?magnet=...&index=...&season=...&episode=...&startTime=...
func (h *StreamHandler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	magnet := strings.TrimSpace(query.Get("magnet"))
	if magnet == "" {
		writeJSONError(w, http.StatusBadRequest, "magnet parameter is required")
		return
	}

	sel := parseSelector(query.Get("index"), query.Get("season"), query.Get("episode"))
	startTime, _ := strconv.ParseFloat(strings.TrimSpace(query.Get("startTime")), 64)
	if startTime < 0 {
		startTime = 0
	}

	resolution, err := h.resolver.Resolve(r.Context(), magnet, sel)
	if err != nil {
		status, message := mapResolveError(err)
		log.Printf("[stream] resolve failed selector=%s status=%d err=%v", sel, status, err)
		writeJSONError(w, status, message)
		return
	}

	log.Printf("[stream] resolved file=%q mp4=%v selector=%s", resolution.Filename, resolution.ContainerIsMP4, sel)

	if resolution.ContainerIsMP4 {
		h.proxyPassthrough(w, r, resolution)
		return
	}

	// Probe failure is tolerated: the planner falls back to a full transcode.
	probe, probeErr := h.prober.Probe(r.Context(), resolution.URL)
	if probeErr != nil {
		log.Printf("[stream] probe failed, transcoding both streams: %v", probeErr)
		probe = nil
	}

	plan := streamplan.Build(false, probe, startTime)
	h.runPipeline(w, r, resolution, plan)
}

func parseSelector(indexStr, seasonStr, episodeStr string) models.FileSelector {
	var sel models.FileSelector
	if v, err := strconv.Atoi(strings.TrimSpace(indexStr)); err == nil && v >= 0 {
		sel.Index = &v
		return sel
	}
	if s, err := strconv.Atoi(strings.TrimSpace(seasonStr)); err == nil && s > 0 {
		if e, err := strconv.Atoi(strings.TrimSpace(episodeStr)); err == nil && e > 0 {
			sel.Season = s
			sel.Episode = e
		}
	}
	return sel
}

func mapResolveError(err error) (int, string) {
	switch {
	case errors.Is(err, debrid.ErrProviderAuth):
		return http.StatusBadGateway, "debrid provider rejected credentials"
	case errors.Is(err, debrid.ErrProviderUnavailable):
		return http.StatusBadGateway, "debrid provider unavailable"
	case errors.Is(err, debrid.ErrResolutionTimeout):
		return http.StatusBadGateway, "torrent metadata not ready, try again shortly"
	case errors.Is(err, debrid.ErrNoLinksGenerated):
		return http.StatusBadGateway, "no download links generated for torrent"
	case errors.Is(err, debrid.ErrNoFilesAvailable):
		return http.StatusBadGateway, "no playable files in torrent"
	}
	return http.StatusInternalServerError, "stream resolution failed"
}
