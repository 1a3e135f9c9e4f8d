package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/auth"
	"github.com/bobarin/photoscript/internal/blocks"
	"github.com/bobarin/photoscript/internal/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	workflow *workflow.Workflow
	blocks   *blocks.Service
	auth     *auth.Service
	log      *zap.Logger
}

func NewHandler(wf *workflow.Workflow, blockSvc *blocks.Service, authSvc *auth.Service, log *zap.Logger) *Handler {
	return &Handler{
		workflow: wf,
		blocks:   blockSvc,
		auth:     authSvc,
		log:      log.Named("api"),
	}
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON reads a required JSON body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, apperr.CodeValidationFailed, "Invalid request body")
		return false
	}
	return true
}

// decodeOptionalJSON accepts an empty body and leaves v at its defaults.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	respondError(w, http.StatusBadRequest, apperr.CodeValidationFailed, "Invalid request body")
	return false
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, apperr.CodeValidationFailed, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "Not authenticated")
	}
	return id, ok
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

// fail translates a service error into its HTTP response. Internal errors
// are logged and reported without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, apperr.CodeInternal, "Internal server error")
		return
	}

	if appErr.Kind == apperr.KindExternal {
		h.log.Warn("upstream failure", zap.String("path", r.URL.Path), zap.Error(err))
	}
	respondError(w, statusFor(appErr.Kind), appErr.Code, appErr.Error())
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
