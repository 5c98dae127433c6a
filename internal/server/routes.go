// Package server wires the HTTP handlers into a chi router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRoutes builds the router for the service: health check, WebSocket
// endpoint, blob store endpoints, and, when a static directory is
// configured, the client assets at the root.
func SetupRoutes(hub *Hub, store *BlobStore) chi.Router {
	cfg := currentConfig()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", HealthHandler)
	r.Get("/ws", WebSocketHandler(hub))
	r.Post("/upload", store.UploadHandler)
	r.Get("/files/{storageID}", store.ServeHandler)

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	return r
}
