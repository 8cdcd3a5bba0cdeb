package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/qrtracker/internal/clientinfo"
	"github.com/mmeshcher/qrtracker/internal/service"
)

// ScanRedirectHandler serves GET /scan/{hash}, the URL encoded in STATIC codes.
func (h *Handler) ScanRedirectHandler(rw http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if hash == "" {
		writeError(rw, http.StatusBadRequest, "empty hash")
		return
	}

	target, err := h.dispatcher.ResolveByHash(r.Context(), hash, scanRequest(r))
	h.redirect(rw, target, err)
}

// ShortCodeRedirectHandler serves GET /r/{shortCode} for DYNAMIC codes.
func (h *Handler) ShortCodeRedirectHandler(rw http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "shortCode")
	if code == "" {
		writeError(rw, http.StatusBadRequest, "empty short code")
		return
	}

	target, err := h.dispatcher.ResolveByShortCode(r.Context(), code, scanRequest(r))
	h.redirect(rw, target, err)
}

func (h *Handler) redirect(rw http.ResponseWriter, target string, err error) {
	if err != nil {
		h.writeServiceError(rw, err, "failed to resolve qr code")
		return
	}

	rw.Header().Set("Cache-Control", "no-store")
	rw.Header().Set("Location", target)
	rw.WriteHeader(http.StatusFound)
}

func scanRequest(r *http.Request) service.ScanRequest {
	return service.ScanRequest{
		IP:             clientinfo.IP(r),
		UserAgent:      r.UserAgent(),
		Referer:        r.Referer(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
	}
}
