package router

import (
	"net/http"

	"image-normalizer/internal/http-server/handler/image"
	"image-normalizer/internal/http-server/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Handler struct {
	ImageHandler *image.ImageHandler
}

func SetupRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/images", func(r chi.Router) {
			r.Post("/upload", h.ImageHandler.UploadImage)
			r.Post("/normalize", h.ImageHandler.Normalize)
			r.Get("/{id}", h.ImageHandler.GetImage)
			r.Get("/{id}/status", h.ImageHandler.GetStatus)
			r.Get("/{id}/payload", h.ImageHandler.GetPayload)
			r.Delete("/{id}", h.ImageHandler.DeleteImage)
		})

		r.Get("/health", h.ImageHandler.Health)
	})

	return r
}
