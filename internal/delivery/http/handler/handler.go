package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/user/strain-pipeline/internal/delivery/http/request"
	"github.com/user/strain-pipeline/internal/delivery/http/response"
	"github.com/user/strain-pipeline/internal/usecase"
	"go.uber.org/zap"
)

// maxBody bounds the resolve request body.
const maxBody = 16 << 10

type Handler struct {
	resolver usecase.ResolverUsecase
	logger   *zap.Logger
}

func NewHandler(resolver usecase.ResolverUsecase, logger *zap.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		logger:   logger.Named("viewer"),
	}
}

func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req request.ResolveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	u, err := url.ParseRequestURI(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		h.writeJSONError(w, "Invalid URL format", http.StatusBadRequest)
		return
	}

	res, err := h.resolver.Resolve(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, usecase.ErrUnknownURL) {
			h.writeJSONError(w, "URL not found in archive", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to resolve URL", zap.String("url", req.URL), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, response.ResolveResponse{
		SignedURL:        res.SignedURL,
		Vendor:           res.Vendor,
		CollectionDate:   res.CollectionDate,
		ExpiresInMinutes: res.ExpiresInSeconds / 60,
	})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
