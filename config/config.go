package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Settings holds the runtime configuration for the server and its
// integrations. Integration values can be updated at runtime and are
// persisted to settings.json inside the data directory.
type Settings struct {
	ListenAddr string `json:"-"`
	DataDir    string `json:"-"`
	LogDir     string `json:"-"`
	DemoMode   bool   `json:"-"`

	TMDBAPIKey   string `json:"tmdbApiKey"`
	TMDBLanguage string `json:"tmdbLanguage"`

	RadarrURL    string `json:"radarrUrl"`
	RadarrAPIKey string `json:"radarrApiKey"`
	SonarrURL    string `json:"sonarrUrl"`
	SonarrAPIKey string `json:"sonarrApiKey"`

	// CacheTTLHours controls the metadata cache (genres, details,
	// certifications). Catalog pages are never cached.
	CacheTTLHours int `json:"cacheTtlHours"`

	// Backup retention rules; zero disables the corresponding rule.
	BackupRetentionDays  int `json:"backupRetentionDays"`
	BackupRetentionCount int `json:"backupRetentionCount"`
}

// Manager owns the settings, guarding concurrent access and persisting
// integration settings across restarts.
type Manager struct {
	mu       sync.RWMutex
	path     string
	settings Settings
	onChange []func(Settings)
}

// Load builds a Manager from environment variables, then overlays any
// persisted settings.json found in the data directory.
func Load() (*Manager, error) {
	dataDir := envOr("SUGGESTERR_DATA_DIR", "./data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	settings := Settings{
		ListenAddr:    envOr("SUGGESTERR_LISTEN_ADDR", ":8320"),
		DataDir:       dataDir,
		LogDir:        envOr("SUGGESTERR_LOG_DIR", filepath.Join(dataDir, "logs")),
		DemoMode:      envBool("SUGGESTERR_DEMO_MODE"),
		TMDBAPIKey:    os.Getenv("TMDB_API_KEY"),
		TMDBLanguage:  envOr("TMDB_LANGUAGE", "en-US"),
		RadarrURL:     strings.TrimRight(os.Getenv("RADARR_URL"), "/"),
		RadarrAPIKey:  os.Getenv("RADARR_API_KEY"),
		SonarrURL:     strings.TrimRight(os.Getenv("SONARR_URL"), "/"),
		SonarrAPIKey:  os.Getenv("SONARR_API_KEY"),
		CacheTTLHours: envInt("SUGGESTERR_CACHE_TTL_HOURS", 24),

		BackupRetentionDays:  envInt("SUGGESTERR_BACKUP_RETENTION_DAYS", 30),
		BackupRetentionCount: envInt("SUGGESTERR_BACKUP_RETENTION_COUNT", 10),
	}

	m := &Manager{
		path:     filepath.Join(dataDir, "settings.json"),
		settings: settings,
	}

	if err := m.load(); err != nil {
		return nil, err
	}

	return m, nil
}

// Get returns a copy of the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Update applies fn to the settings under lock, persists the result, and
// notifies subscribers. Environment-only fields (listen address, data dir)
// are restored after fn runs so they cannot be changed at runtime.
func (m *Manager) Update(fn func(*Settings)) error {
	m.mu.Lock()
	updated := m.settings
	fn(&updated)
	updated.ListenAddr = m.settings.ListenAddr
	updated.DataDir = m.settings.DataDir
	updated.LogDir = m.settings.LogDir
	updated.DemoMode = m.settings.DemoMode
	m.settings = updated
	err := m.saveLocked()
	subscribers := make([]func(Settings), len(m.onChange))
	copy(subscribers, m.onChange)
	m.mu.Unlock()

	if err != nil {
		return err
	}
	for _, notify := range subscribers {
		notify(updated)
	}
	return nil
}

// OnChange registers a callback invoked after every successful Update.
func (m *Manager) OnChange(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

func (m *Manager) load() error {
	file, err := os.Open(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open settings file: %w", err)
	}
	defer file.Close()

	var stored Settings
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}

	// Persisted integration settings win over env defaults when present.
	if stored.TMDBAPIKey != "" {
		m.settings.TMDBAPIKey = stored.TMDBAPIKey
	}
	if stored.TMDBLanguage != "" {
		m.settings.TMDBLanguage = stored.TMDBLanguage
	}
	if stored.RadarrURL != "" {
		m.settings.RadarrURL = strings.TrimRight(stored.RadarrURL, "/")
	}
	if stored.RadarrAPIKey != "" {
		m.settings.RadarrAPIKey = stored.RadarrAPIKey
	}
	if stored.SonarrURL != "" {
		m.settings.SonarrURL = strings.TrimRight(stored.SonarrURL, "/")
	}
	if stored.SonarrAPIKey != "" {
		m.settings.SonarrAPIKey = stored.SonarrAPIKey
	}
	if stored.CacheTTLHours > 0 {
		m.settings.CacheTTLHours = stored.CacheTTLHours
	}
	if stored.BackupRetentionDays > 0 {
		m.settings.BackupRetentionDays = stored.BackupRetentionDays
	}
	if stored.BackupRetentionCount > 0 {
		m.settings.BackupRetentionCount = stored.BackupRetentionCount
	}

	return nil
}

// saveLocked writes settings to disk. Must be called with mu held.
func (m *Manager) saveLocked() error {
	tmp := m.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.settings); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close settings temp file: %w", err)
	}

	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	b, _ := strconv.ParseBool(v)
	return b
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
