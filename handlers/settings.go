package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"suggesterr/config"
)

// SettingsHandler serves the master-only integration settings endpoints.
type SettingsHandler struct {
	config *config.Manager
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(configManager *config.Manager) *SettingsHandler {
	return &SettingsHandler{config: configManager}
}

// SettingsResponse mirrors config.Settings but masks stored API keys. The
// client only needs to know whether a key is set, never its value.
type SettingsResponse struct {
	TMDBConfigured   bool   `json:"tmdb_configured"`
	TMDBLanguage     string `json:"tmdbLanguage"`
	RadarrURL        string `json:"radarrUrl"`
	RadarrConfigured bool   `json:"radarr_configured"`
	SonarrURL        string `json:"sonarrUrl"`
	SonarrConfigured bool   `json:"sonarr_configured"`

	CacheTTLHours        int `json:"cacheTtlHours"`
	BackupRetentionDays  int `json:"backupRetentionDays"`
	BackupRetentionCount int `json:"backupRetentionCount"`
}

func settingsResponse(s config.Settings) SettingsResponse {
	return SettingsResponse{
		TMDBConfigured:       s.TMDBAPIKey != "",
		TMDBLanguage:         s.TMDBLanguage,
		RadarrURL:            s.RadarrURL,
		RadarrConfigured:     s.RadarrAPIKey != "",
		SonarrURL:            s.SonarrURL,
		SonarrConfigured:     s.SonarrAPIKey != "",
		CacheTTLHours:        s.CacheTTLHours,
		BackupRetentionDays:  s.BackupRetentionDays,
		BackupRetentionCount: s.BackupRetentionCount,
	}
}

// Get serves GET /api/settings/.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse(h.config.Get()))
}

// SettingsUpdateBody carries the updatable settings. Pointer fields
// distinguish "leave unchanged" from "set to empty".
type SettingsUpdateBody struct {
	TMDBAPIKey   *string `json:"tmdbApiKey"`
	TMDBLanguage *string `json:"tmdbLanguage"`
	RadarrURL    *string `json:"radarrUrl"`
	RadarrAPIKey *string `json:"radarrApiKey"`
	SonarrURL    *string `json:"sonarrUrl"`
	SonarrAPIKey *string `json:"sonarrApiKey"`

	CacheTTLHours        *int `json:"cacheTtlHours"`
	BackupRetentionDays  *int `json:"backupRetentionDays"`
	BackupRetentionCount *int `json:"backupRetentionCount"`
}

// Update serves PUT /api/settings/. Updated keys are pushed to the TMDB,
// Radarr and Sonarr clients through the manager's change hooks.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body SettingsUpdateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if (body.CacheTTLHours != nil && *body.CacheTTLHours < 0) ||
		(body.BackupRetentionDays != nil && *body.BackupRetentionDays < 0) ||
		(body.BackupRetentionCount != nil && *body.BackupRetentionCount < 0) {
		writeError(w, http.StatusBadRequest, "retention and TTL values must not be negative")
		return
	}

	err := h.config.Update(func(s *config.Settings) {
		if body.TMDBAPIKey != nil {
			s.TMDBAPIKey = *body.TMDBAPIKey
		}
		if body.TMDBLanguage != nil {
			s.TMDBLanguage = *body.TMDBLanguage
		}
		if body.RadarrURL != nil {
			s.RadarrURL = *body.RadarrURL
		}
		if body.RadarrAPIKey != nil {
			s.RadarrAPIKey = *body.RadarrAPIKey
		}
		if body.SonarrURL != nil {
			s.SonarrURL = *body.SonarrURL
		}
		if body.SonarrAPIKey != nil {
			s.SonarrAPIKey = *body.SonarrAPIKey
		}
		if body.CacheTTLHours != nil {
			s.CacheTTLHours = *body.CacheTTLHours
		}
		if body.BackupRetentionDays != nil {
			s.BackupRetentionDays = *body.BackupRetentionDays
		}
		if body.BackupRetentionCount != nil {
			s.BackupRetentionCount = *body.BackupRetentionCount
		}
	})
	if err != nil {
		log.Printf("[handlers] update settings: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse(h.config.Get()))
}
