package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Debrid    DebridSettings    `json:"debrid"`
	Cache     CacheSettings     `json:"cache"`
	Transcode TranscodeSettings `json:"transcode"`
	Subtitles SubtitleSettings  `json:"subtitles"`
	Log       LogSettings       `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DebridSettings configures the debrid provider client. The polling and retry
// numbers are tunable; the defaults match the provider's documented quotas.
type DebridSettings struct {
	APIKey            string `json:"apiKey"`
	BaseURL           string `json:"baseUrl"`
	PollAttempts      int    `json:"pollAttempts"`
	PollDelayMS       int    `json:"pollDelayMs"`
	MinCallIntervalMS int    `json:"minCallIntervalMs"`
	RetryAttempts     int    `json:"retryAttempts"`
	RetryBackoffMS    int    `json:"retryBackoffMs"`
}

// PollDelay returns the inter-poll delay as a duration.
func (d DebridSettings) PollDelay() time.Duration {
	return time.Duration(d.PollDelayMS) * time.Millisecond
}

// MinCallInterval returns the minimum spacing between provider API calls.
func (d DebridSettings) MinCallInterval() time.Duration {
	return time.Duration(d.MinCallIntervalMS) * time.Millisecond
}

// RetryBackoff returns the fixed backoff applied after a transient provider error.
func (d DebridSettings) RetryBackoff() time.Duration {
	return time.Duration(d.RetryBackoffMS) * time.Millisecond
}

// CacheSettings bounds the resolution cache. Entries hold credentialed
// provider URLs, so the TTL also caps how long those URLs live in memory.
type CacheSettings struct {
	Capacity   int `json:"capacity"`
	TTLMinutes int `json:"ttlMinutes"`
}

func (c CacheSettings) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// TranscodeSettings describes the ffmpeg/ffprobe pipeline used when a source
// container is not browser-safe.
type TranscodeSettings struct {
	FFmpegPath               string `json:"ffmpegPath"`
	FFprobePath              string `json:"ffprobePath"`
	ProbeTimeoutSeconds      int    `json:"probeTimeoutSeconds"`
	Preset                   string `json:"preset"`
	CRF                      int    `json:"crf"`
	MaxRateKbps              int    `json:"maxRateKbps"`
	AudioBitrateKbps         int    `json:"audioBitrateKbps"`
	ReconnectDelayMaxSeconds int    `json:"reconnectDelayMaxSeconds"`
}

func (t TranscodeSettings) ProbeTimeout() time.Duration {
	return time.Duration(t.ProbeTimeoutSeconds) * time.Second
}

// SubtitleSettings selects which subtitle languages are surfaced to the player.
type SubtitleSettings struct {
	Languages []string `json:"languages"`
}

// LogSettings configures rotating file logging.
type LogSettings struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxBackups int    `json:"maxBackups"`
	MaxAge     int    `json:"maxAge"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first run.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Debrid: DebridSettings{
			APIKey:            os.Getenv("REAL_DEBRID_TOKEN"),
			BaseURL:           "https://api.real-debrid.com/rest/1.0",
			PollAttempts:      5,
			PollDelayMS:       2000,
			MinCallIntervalMS: 600,
			RetryAttempts:     3,
			RetryBackoffMS:    2000,
		},
		Cache: CacheSettings{
			Capacity:   500,
			TTLMinutes: 60,
		},
		Transcode: TranscodeSettings{
			FFmpegPath:               "ffmpeg",
			FFprobePath:              "ffprobe",
			ProbeTimeoutSeconds:      15,
			Preset:                   "ultrafast",
			CRF:                      23,
			MaxRateKbps:              8000,
			AudioBitrateKbps:         192,
			ReconnectDelayMaxSeconds: 5,
		},
		Subtitles: SubtitleSettings{
			Languages: []string{"eng"},
		},
		Log: LogSettings{
			File:       "",
			Level:      "info",
			MaxSize:    20,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		},
	}
}

// Manager loads and persists Settings at a fixed path.
type Manager struct {
	path string
	mu   sync.Mutex
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Load reads settings from disk, creating the file with defaults if missing.
// Fields absent from an existing file are backfilled with defaults so configs
// written by older versions keep working.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return Settings{}, err
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	backfill(&s)
	return s, nil
}

// Save persists settings to disk, creating parent directories as needed.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(s)
}

func (m *Manager) save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if dir := filepath.Dir(m.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// backfill repairs zero values that would break the streaming pipeline.
func backfill(s *Settings) {
	d := DefaultSettings()
	if s.Server.Port <= 0 {
		s.Server.Port = d.Server.Port
	}
	if strings.TrimSpace(s.Debrid.BaseURL) == "" {
		s.Debrid.BaseURL = d.Debrid.BaseURL
	}
	if strings.TrimSpace(s.Debrid.APIKey) == "" {
		s.Debrid.APIKey = os.Getenv("REAL_DEBRID_TOKEN")
	}
	if s.Debrid.PollAttempts <= 0 {
		s.Debrid.PollAttempts = d.Debrid.PollAttempts
	}
	if s.Debrid.PollDelayMS <= 0 {
		s.Debrid.PollDelayMS = d.Debrid.PollDelayMS
	}
	if s.Debrid.MinCallIntervalMS <= 0 {
		s.Debrid.MinCallIntervalMS = d.Debrid.MinCallIntervalMS
	}
	if s.Debrid.RetryAttempts <= 0 {
		s.Debrid.RetryAttempts = d.Debrid.RetryAttempts
	}
	if s.Debrid.RetryBackoffMS <= 0 {
		s.Debrid.RetryBackoffMS = d.Debrid.RetryBackoffMS
	}
	if s.Cache.Capacity <= 0 {
		s.Cache.Capacity = d.Cache.Capacity
	}
	if s.Cache.TTLMinutes <= 0 {
		s.Cache.TTLMinutes = d.Cache.TTLMinutes
	}
	if strings.TrimSpace(s.Transcode.FFmpegPath) == "" {
		s.Transcode.FFmpegPath = d.Transcode.FFmpegPath
	}
	if strings.TrimSpace(s.Transcode.FFprobePath) == "" {
		s.Transcode.FFprobePath = d.Transcode.FFprobePath
	}
	if s.Transcode.ProbeTimeoutSeconds <= 0 {
		s.Transcode.ProbeTimeoutSeconds = d.Transcode.ProbeTimeoutSeconds
	}
	if strings.TrimSpace(s.Transcode.Preset) == "" {
		s.Transcode.Preset = d.Transcode.Preset
	}
	if s.Transcode.CRF <= 0 {
		s.Transcode.CRF = d.Transcode.CRF
	}
	if s.Transcode.AudioBitrateKbps <= 0 {
		s.Transcode.AudioBitrateKbps = d.Transcode.AudioBitrateKbps
	}
	if s.Transcode.ReconnectDelayMaxSeconds <= 0 {
		s.Transcode.ReconnectDelayMaxSeconds = d.Transcode.ReconnectDelayMaxSeconds
	}
	if len(s.Subtitles.Languages) == 0 {
		s.Subtitles.Languages = d.Subtitles.Languages
	}
}
