package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"onyxstream/api"
	"onyxstream/config"
	"onyxstream/handlers"
	"onyxstream/internal/ratelimit"
	"onyxstream/internal/rescache"
	"onyxstream/services/debrid"
	"onyxstream/services/probe"

	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	configPath := os.Getenv("ONYXSTREAM_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			slog.SetDefault(slog.New(slog.NewTextHandler(multiWriter, nil)))
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	if settings.Debrid.APIKey == "" {
		slog.Warn("no debrid API key configured, stream resolution will fail",
			"config", configPath)
	}

	limiter := ratelimit.NewCallLimiter(settings.Debrid.MinCallInterval())
	client := debrid.NewClient(
		settings.Debrid.APIKey,
		settings.Debrid.BaseURL,
		limiter,
		settings.Debrid.RetryAttempts,
		settings.Debrid.RetryBackoff(),
	)
	cache := rescache.New(settings.Cache.Capacity, settings.Cache.TTL())
	resolver := debrid.NewResolver(client, cache, settings.Debrid.PollAttempts, settings.Debrid.PollDelay())
	prober := probe.NewProber(settings.Transcode.FFprobePath, settings.Transcode.ProbeTimeout())

	streamHandler := handlers.NewStreamHandler(resolver, prober, settings.Transcode)
	subtitlesHandler := handlers.NewSubtitlesHandler(settings.Subtitles.Languages)
	proxyHandler := handlers.NewProxyHandler()

	router := api.NewRouter(streamHandler, subtitlesHandler, proxyHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	slog.Info("server starting", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout for streaming
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	slog.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	slog.Info("shutdown complete")
}
