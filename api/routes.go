// Package api wires the HTTP handlers onto a gorilla/mux router.
package api

import (
	"encoding/json"
	"net/http"

	"onyxstream/handlers"

	"github.com/gorilla/mux"
)

// corsMiddleware handles CORS for all routes, including preflight.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range, Content-Type, Accept, Origin, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// NewRouter mounts the streaming, subtitle and proxy endpoints.
func NewRouter(
	streamHandler *handlers.StreamHandler,
	subtitlesHandler *handlers.SubtitlesHandler,
	proxyHandler *handlers.ProxyHandler,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stream", streamHandler.StreamVideo).Methods(http.MethodGet, http.MethodHead, http.MethodOptions)
	r.HandleFunc("/subtitles", subtitlesHandler.List).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/subtitle-proxy", subtitlesHandler.Convert).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/proxy", proxyHandler.Forward).Methods(http.MethodGet, http.MethodOptions)

	return r
}
