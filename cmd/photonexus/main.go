package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pysugar/photo-nexus/internal/albums"
	"github.com/pysugar/photo-nexus/internal/api"
	"github.com/pysugar/photo-nexus/internal/api/handlers"
	"github.com/pysugar/photo-nexus/internal/auth/google"
	"github.com/pysugar/photo-nexus/internal/auth/identity"
	"github.com/pysugar/photo-nexus/internal/auth/token"
	"github.com/pysugar/photo-nexus/internal/config"
	"github.com/pysugar/photo-nexus/internal/db"
	"github.com/pysugar/photo-nexus/internal/drive"
	"github.com/pysugar/photo-nexus/internal/logging"
	"github.com/pysugar/photo-nexus/internal/photos"
	"github.com/pysugar/photo-nexus/internal/version"
)

func main() {
	path := os.Getenv("PHOTO_NEXUS_CONFIG")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	sqlDB, err := database.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to access database pool")
	}
	defer sqlDB.Close()

	oauth := google.NewOAuth(cfg.Google)
	if !oauth.Configured() {
		log.Warn().Msg("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, Drive connect is disabled")
	}
	tokens := token.NewCache(database, oauth)

	adapter := drive.NewAdapter(drive.NewServiceFactory(), drive.Options{
		RootFolder:  cfg.Drive.RootFolder,
		CallTimeout: cfg.Drive.CallTimeout,
		PublicLinks: cfg.Drive.PublicLinks,
		Concurrency: cfg.Drive.BatchConcurrency,
	})
	photoService := photos.NewService(tokens, adapter, photos.NewStore(database), photos.Options{
		UploadFailurePolicy: cfg.Photos.UploadFailurePolicy,
	})

	tokens.StartRefreshLoop(ctx, cfg.Reconcile.RefreshInterval)
	photoService.StartReconcileLoop(ctx, cfg.Reconcile.Interval)

	router := api.NewRouter(api.Deps{
		Photos:   photoService,
		Albums:   albums.NewService(database),
		Drive:    tokens,
		Tokens:   tokens,
		OAuth:    oauth,
		State:    google.NewStateSigner(cfg.Auth.JWTSecret),
		Verifier: identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		DB:       sqlDB,
		Limits: handlers.UploadLimits{
			MaxBytes: cfg.Photos.MaxUploadBytes,
			MaxFiles: cfg.Photos.MaxFilesPerUpload,
		},
		SuccessURL: cfg.Google.SuccessURL,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version.String()).
			Str("upload_policy", cfg.Photos.UploadFailurePolicy).
			Msg("photo-nexus listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
