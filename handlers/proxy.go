package handlers

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProxyHandler tunnels GET requests to metadata APIs that block direct
// browser requests, presenting browser-like headers.
type ProxyHandler struct {
	httpClient *http.Client
}

func NewProxyHandler() *ProxyHandler {
	return &ProxyHandler{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Forward handles GET /api/proxy?url=...
func (h *ProxyHandler) Forward(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeJSONError(w, http.StatusBadRequest, "url parameter is required")
		return
	}
	if _, err := url.ParseRequestURI(target); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid url parameter")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid url parameter")
		return
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	log.Printf("[proxy] requesting %s", target)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		log.Printf("[proxy] request failed url=%q: %v", target, err)
		writeJSONError(w, http.StatusBadGateway, "proxy request failed")
		return
	}
	defer resp.Body.Close()

	writeCommonHeaders(w)
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && !isClientGone(err) {
		log.Printf("[proxy] relay error url=%q: %v", target, err)
	}
}
