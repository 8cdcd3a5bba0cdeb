package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mmeshcher/qrtracker/internal/middleware"
)

func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(h.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	r.Get("/ping", h.PingHandler)
	r.Get("/scan/{hash}", h.ScanRedirectHandler)
	r.Get("/r/{shortCode}", h.ShortCodeRedirectHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.GzipMiddleware)

		r.Post("/session", h.SessionHandler)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequireSession)

			r.Route("/qr-codes", func(r chi.Router) {
				r.Post("/", h.CreateQRCodeHandler)
				r.Get("/", h.ListQRCodesHandler)
				r.Patch("/", h.UpdateQRCodeHandler)
				r.Delete("/", h.DeleteQRCodeHandler)
				r.Get("/{id}", h.GetQRCodeHandler)
				r.Get("/{id}/image", h.QRCodeImageHandler)
			})

			r.Get("/analytics/{qrCodeId}", h.AnalyticsHandler)
		})
	})

	return r
}
