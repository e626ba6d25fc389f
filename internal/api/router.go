// Package api assembles the HTTP surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pysugar/photo-nexus/internal/api/handlers"
	"github.com/pysugar/photo-nexus/internal/api/middleware"
	"github.com/pysugar/photo-nexus/internal/auth/google"
)

// Deps are the services behind the routes.
type Deps struct {
	Photos     handlers.PhotoService
	Albums     handlers.AlbumService
	Drive      handlers.DriveConnection
	Tokens     google.TokenSaver
	OAuth      *google.OAuth
	State      *google.StateSigner
	Verifier   middleware.TokenVerifier
	DB         handlers.Pinger
	Limits     handlers.UploadLimits
	SuccessURL string
}

// NewRouter wires every route. /healthz, /metrics and the OAuth callback are
// public; everything under /api needs a bearer token.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handlers.HealthHandler(d.DB))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/auth/google/callback", google.HandleCallback(d.OAuth, d.State, d.Tokens, d.SuccessURL))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.BearerAuth(d.Verifier))

		r.Route("/drive", func(r chi.Router) {
			r.Get("/connect", google.HandleConnect(d.OAuth, d.State))
			r.Delete("/connect", handlers.DisconnectDriveHandler(d.Drive))
			r.Get("/status", handlers.DriveStatusHandler(d.Drive))
		})

		r.Route("/photos", func(r chi.Router) {
			r.Get("/", handlers.ListPhotosHandler(d.Photos))
			r.Post("/", handlers.UploadPhotosHandler(d.Photos, d.Limits))
			r.Delete("/", handlers.DeletePhotoByURLHandler(d.Photos))
			r.Post("/library", handlers.MoveToLibraryHandler(d.Photos))
			r.Post("/unsorted", handlers.MoveToUnsortedHandler(d.Photos))
			r.Post("/batch-delete", handlers.BatchDeleteHandler(d.Photos))
			r.Post("/reconcile", handlers.ReconcileHandler(d.Photos))
			r.Delete("/{id}", handlers.DeletePhotoHandler(d.Photos))
		})

		r.Route("/albums", func(r chi.Router) {
			r.Get("/", handlers.ListAlbumsHandler(d.Albums))
			r.Post("/", handlers.CreateAlbumHandler(d.Albums))
			r.Get("/{id}", handlers.GetAlbumHandler(d.Albums))
			r.Patch("/{id}", handlers.UpdateAlbumHandler(d.Albums))
			r.Delete("/{id}", handlers.DeleteAlbumHandler(d.Albums))
			r.Post("/{id}/photos", handlers.AddAlbumPhotosHandler(d.Albums))
			r.Post("/{id}/photos/remove", handlers.RemoveAlbumPhotosHandler(d.Albums))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", handlers.ListCategoriesHandler(d.Albums))
			r.Post("/", handlers.CreateCategoryHandler(d.Albums))
			r.Delete("/{id}", handlers.DeleteCategoryHandler(d.Albums))
		})
	})
	return r
}
