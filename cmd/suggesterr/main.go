package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"suggesterr/api"
	"suggesterr/config"
	"suggesterr/handlers"
	"suggesterr/internal/database"
	"suggesterr/services/access"
	"suggesterr/services/accounts"
	"suggesterr/services/backup"
	"suggesterr/services/catalog"
	"suggesterr/services/families"
	"suggesterr/services/radarr"
	"suggesterr/services/requests"
	"suggesterr/services/sessions"
	"suggesterr/services/sonarr"
	"suggesterr/services/tmdb"
)

func main() {
	configManager, err := config.Load()
	if err != nil {
		log.Fatalf("[main] load config: %v", err)
	}
	settings := configManager.Get()

	if settings.LogDir != "" {
		if err := os.MkdirAll(settings.LogDir, 0o755); err != nil {
			log.Fatalf("[main] create log directory: %v", err)
		}
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(settings.LogDir, "suggesterr.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}

	db, err := database.NewDB(database.Config{
		DatabasePath: filepath.Join(settings.DataDir, "suggesterr.db"),
	})
	if err != nil {
		log.Fatalf("[main] open database: %v", err)
	}
	defer db.Close()

	requestRepo := database.NewRequestRepository(db.Connection())
	activityRepo := database.NewActivityRepository(db.Connection())
	accessRepo := database.NewAccessRepository(db.Connection())

	tmdbClient := tmdb.NewClient(settings.TMDBAPIKey, settings.TMDBLanguage)
	tmdbService := tmdb.NewService(tmdbClient, filepath.Join(settings.DataDir, "cache"), settings.CacheTTLHours)
	radarrClient := radarr.NewClient(settings.RadarrURL, settings.RadarrAPIKey)
	sonarrClient := sonarr.NewClient(settings.SonarrURL, settings.SonarrAPIKey)

	// Settings saved through the API propagate to the clients immediately.
	configManager.OnChange(func(s config.Settings) {
		tmdbService.UpdateSettings(s.TMDBAPIKey, s.TMDBLanguage)
		radarrClient.UpdateSettings(s.RadarrURL, s.RadarrAPIKey)
		sonarrClient.UpdateSettings(s.SonarrURL, s.SonarrAPIKey)
	})

	accountsService, err := accounts.NewService(settings.DataDir)
	if err != nil {
		log.Fatalf("[main] init accounts: %v", err)
	}
	sessionsService, err := sessions.NewService(settings.DataDir, sessions.DefaultSessionDuration)
	if err != nil {
		log.Fatalf("[main] init sessions: %v", err)
	}
	familiesService, err := families.NewService(settings.DataDir, activityRepo)
	if err != nil {
		log.Fatalf("[main] init families: %v", err)
	}
	accessService := access.NewService(familiesService, accessRepo, activityRepo, tmdbService)
	requestsService := requests.NewService(requestRepo, activityRepo, familiesService, accessService)
	catalogService := catalog.NewService(tmdbService, requestsService, radarrClient, sonarrClient)
	backupService, err := backup.NewService(settings.DataDir, configManager)
	if err != nil {
		log.Fatalf("[main] init backups: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Genre lists are needed to translate certifications and genre chips on
	// first paint; warm them in the background with retries.
	go tmdbService.WarmGenres(ctx)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := sessionsService.Cleanup(); removed > 0 {
					log.Printf("[main] cleaned up %d expired sessions", removed)
				}
			}
		}
	}()

	loginLimiter := api.NewIPRateLimiter(rate.Every(6*time.Second), 5)

	router := handlers.NewRouter(handlers.Handlers{
		Auth:     handlers.NewAuthHandler(accountsService, sessionsService, familiesService),
		Movies:   handlers.NewMoviesHandler(catalogService, familiesService, radarrClient),
		TVShows:  handlers.NewTVShowsHandler(catalogService, familiesService, sonarrClient),
		Browse:   handlers.NewBrowseHandler(catalogService, familiesService),
		Access:   handlers.NewAccessHandler(accessService, requestsService),
		Family:   handlers.NewFamilyHandler(familiesService, requestsService, accessService, sessionsService),
		Accounts: handlers.NewAccountsHandler(accountsService, sessionsService),
		Settings: handlers.NewSettingsHandler(configManager),
		Backup:   handlers.NewBackupHandler(backupService),
	}, sessionsService, familiesService, loginLimiter)

	server := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", settings.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}
