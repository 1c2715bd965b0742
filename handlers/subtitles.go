package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const openSubtitlesBase = "https://opensubtitles-v3.strem.io"

// srtTimestampPattern matches SRT cue times (comma millisecond separator).
var srtTimestampPattern = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}),(\d{3})`)

type subtitleEntry struct {
	ID    string `json:"id"`
	Lang  string `json:"lang"`
	URL   string `json:"url"`
	Label string `json:"label"`
}

type openSubtitlesResponse struct {
	Subtitles []struct {
		ID   string `json:"id"`
		Lang string `json:"lang"`
		URL  string `json:"url"`
	} `json:"subtitles"`
}

// SubtitlesHandler looks up subtitles on the OpenSubtitles Stremio addon
// and converts SRT payloads to WebVTT for browser playback.
type SubtitlesHandler struct {
	languages  map[string]bool
	httpClient *http.Client
	baseURL    string
}

func NewSubtitlesHandler(languages []string) *SubtitlesHandler {
	langs := make(map[string]bool, len(languages))
	for _, l := range languages {
		langs[strings.ToLower(strings.TrimSpace(l))] = true
	}
	return &SubtitlesHandler{
		languages:  langs,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    openSubtitlesBase,
	}
}

// List handles GET /subtitles?imdb=tt1234567&season=1&episode=2.
// Lookup failures degrade to an empty list rather than an error.
func (h *SubtitlesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeCommonHeaders(w)
	w.Header().Set("Content-Type", "application/json")

	query := r.URL.Query()
	imdb := strings.TrimSpace(query.Get("imdb"))
	if imdb == "" {
		_ = json.NewEncoder(w).Encode([]subtitleEntry{})
		return
	}

	cleanID := strings.TrimPrefix(imdb, "tt")
	season := strings.TrimSpace(query.Get("season"))
	episode := strings.TrimSpace(query.Get("episode"))

	var lookupURL string
	if season != "" && episode != "" {
		lookupURL = fmt.Sprintf("%s/subtitles/series/tt%s:%s:%s.json", h.baseURL, cleanID, season, episode)
	} else {
		lookupURL = fmt.Sprintf("%s/subtitles/movie/tt%s.json", h.baseURL, cleanID)
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, lookupURL, nil)
	if err != nil {
		_ = json.NewEncoder(w).Encode([]subtitleEntry{})
		return
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		log.Printf("[subtitles] lookup failed imdb=%s: %v", imdb, err)
		_ = json.NewEncoder(w).Encode([]subtitleEntry{})
		return
	}
	defer resp.Body.Close()

	var parsed openSubtitlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("[subtitles] decode failed imdb=%s: %v", imdb, err)
		_ = json.NewEncoder(w).Encode([]subtitleEntry{})
		return
	}

	entries := make([]subtitleEntry, 0, len(parsed.Subtitles))
	for _, s := range parsed.Subtitles {
		if !h.languages[strings.ToLower(s.Lang)] {
			continue
		}
		entries = append(entries, subtitleEntry{
			ID:    s.ID,
			Lang:  s.Lang,
			URL:   s.URL,
			Label: strings.ToUpper(s.Lang),
		})
	}
	_ = json.NewEncoder(w).Encode(entries)
}

// Convert handles GET /subtitle-proxy?url=...: fetches the subtitle file
// and rewrites SRT timing to WebVTT.
func (h *SubtitlesHandler) Convert(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeJSONError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid subtitle URL")
		return
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		log.Printf("[subtitles] proxy fetch failed url=%q: %v", target, err)
		writeJSONError(w, http.StatusBadGateway, "subtitle fetch failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("subtitle source returned %d", resp.StatusCode))
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "subtitle read failed")
		return
	}

	writeCommonHeaders(w)
	w.Header().Set("Content-Type", "text/vtt")
	_, _ = w.Write([]byte(srtToVTT(string(body))))
}

// srtToVTT makes an SRT payload playable as WebVTT: the header is added
// when missing and comma millisecond separators become dots.
func srtToVTT(content string) string {
	if !strings.HasPrefix(strings.TrimSpace(content), "WEBVTT") {
		content = "WEBVTT\n\n" + content
	}
	return srtTimestampPattern.ReplaceAllString(content, "$1.$2")
}
