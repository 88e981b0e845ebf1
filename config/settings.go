package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"reelhouse/models"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Database  DatabaseSettings  `json:"database"`
	Metadata  MetadataSettings  `json:"metadata"`
	Streaming StreamingSettings `json:"streaming"`
	Auth      AuthSettings      `json:"auth"`
	Log       LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// SecureCookies marks the session cookie Secure. Enable behind TLS.
	SecureCookies bool `json:"secureCookies"`
}

// DatabaseSettings points at the SQLite file holding accounts, sessions and
// watch progress.
type DatabaseSettings struct {
	Path string `json:"path"`
}

type MetadataSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey"`
	Language   string `json:"language"`
	BaseURL    string `json:"baseUrl,omitempty"` // empty uses the public TMDB API
	TimeoutSec int    `json:"timeoutSeconds"`
}

// StreamingSettings controls the embed player URLs.
type StreamingSettings struct {
	BaseURL         string `json:"baseUrl"`
	Color           string `json:"color"`
	AutoPlay        bool   `json:"autoPlay"`
	NextEpisode     bool   `json:"nextEpisode"`
	EpisodeSelector bool   `json:"episodeSelector"`
}

// AuthSettings controls sessions and the first-boot administrator.
type AuthSettings struct {
	SessionTTLHours     int    `json:"sessionTtlHours"`
	SessionSweepMinutes int    `json:"sessionSweepMinutes"` // 0 disables the janitor
	SeedUsername        string `json:"seedUsername"`
	SeedPassword        string `json:"seedPassword"`
}

// SessionTTL returns the configured session lifetime, falling back to seven
// days for non-positive values.
func (a AuthSettings) SessionTTL() time.Duration {
	if a.SessionTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.SessionTTLHours) * time.Hour
}

// SweepInterval returns how often expired sessions are purged. Zero means
// never.
func (a AuthSettings) SweepInterval() time.Duration {
	if a.SessionSweepMinutes <= 0 {
		return 0
	}
	return time.Duration(a.SessionSweepMinutes) * time.Minute
}

// LogConfig represents logging configuration
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "127.0.0.1", Port: 3000},
		Database: DatabaseSettings{Path: "data/reelhouse.db"},
		Metadata: MetadataSettings{TMDBAPIKey: "", Language: "en-US", TimeoutSec: 15},
		Streaming: StreamingSettings{
			BaseURL:         "https://www.vidking.net",
			Color:           "e50914",
			AutoPlay:        true,
			NextEpisode:     true,
			EpisodeSelector: true,
		},
		Auth: AuthSettings{
			SessionTTLHours:     7 * 24,
			SessionSweepMinutes: 60,
			SeedUsername:        models.DefaultSeedUsername,
			SeedPassword:        models.DefaultSeedPassword,
		},
		Log: LogConfig{
			File:       "data/logs/reelhouse.log",
			Level:      "info",
			MaxSize:    20,   // 20 MB per file
			MaxBackups: 3,    // keep 3 old files
			MaxAge:     14,   // 14 days
			Compress:   true, // compress old files
		},
	}
}

// ApplyEnv overlays environment variables on top of the file settings.
// getenv is usually os.Getenv.
func (s *Settings) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("TMDB_API_KEY")); v != "" {
		s.Metadata.TMDBAPIKey = v
	}
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			s.Server.Port = port
		}
	}
	if v := strings.TrimSpace(getenv("DATABASE_PATH")); v != "" {
		s.Database.Path = v
	}
	if v := strings.TrimSpace(getenv("REELHOUSE_LOG_LEVEL")); v != "" {
		s.Log.Level = v
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	fs   afero.Fs
	path string
}

// NewManager returns a manager backed by the OS file system.
func NewManager(configPath string) *Manager {
	return NewManagerWithFs(afero.NewOsFs(), configPath)
}

// NewManagerWithFs returns a manager backed by fsys.
func NewManagerWithFs(fsys afero.Fs, configPath string) *Manager {
	return &Manager{fs: fsys, path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return m.fs.MkdirAll(dir, 0o755)
}

// Load reads the settings file from disk or creates defaults if missing.
// Fields absent from an existing file keep their default values.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := m.fs.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := m.fs.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	s := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	s.Metadata.TMDBAPIKey = strings.TrimSpace(s.Metadata.TMDBAPIKey)
	if strings.TrimSpace(s.Auth.SeedUsername) == "" {
		s.Auth.SeedUsername = models.DefaultSeedUsername
	}
	if s.Auth.SeedPassword == "" {
		s.Auth.SeedPassword = models.DefaultSeedPassword
	}
	if s.Server.Port <= 0 {
		s.Server.Port = DefaultSettings().Server.Port
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := m.fs.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = m.fs.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = m.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = m.fs.Remove(tmp)
		return err
	}
	return m.fs.Rename(tmp, m.path)
}
