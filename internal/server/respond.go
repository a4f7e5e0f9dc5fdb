package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errorKinds = []struct {
	err    error
	kind   string
	status int
}{
	{domain.ErrValidation, "ValidationError", http.StatusBadRequest},
	{domain.ErrDuplicateEmail, "DuplicateEmail", http.StatusConflict},
	{domain.ErrInvalidRole, "InvalidRole", http.StatusBadRequest},
	{domain.ErrWeakCredential, "WeakCredential", http.StatusBadRequest},
	{domain.ErrInvalidCredentials, "InvalidCredentials", http.StatusUnauthorized},
	{domain.ErrTokenExpired, "TokenExpired", http.StatusUnauthorized},
	{domain.ErrTokenInvalid, "TokenInvalid", http.StatusUnauthorized},
	{domain.ErrForbidden, "Forbidden", http.StatusForbidden},
	{domain.ErrNotFound, "NotFound", http.StatusNotFound},
	{domain.ErrListingUnavailable, "ListingUnavailable", http.StatusConflict},
	{domain.ErrInvalidState, "InvalidState", http.StatusConflict},
}

// classify maps an error to its wire kind and status. Anything not in the
// taxonomy is Internal.
func classify(err error) (kind string, status int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind, k.status
		}
	}
	return "Internal", http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Error("failed to encode response", zap.Error(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := classify(err)
	message := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		message = "internal error"
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	case kind == "Forbidden":
		// the denial reason stays in the log
		message = domain.ErrForbidden.Error()
		s.logger.Info("request denied", zap.String("path", r.URL.Path), zap.Error(err))
	default:
		s.logger.Debug("request rejected", zap.String("kind", kind), zap.Error(err))
	}
	respondJSON(w, status, errorResponse{Error: kind, Message: message})
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
// An empty body is accepted only when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return domain.NewValidationError("body", err.Error())
	}
	if dec.More() {
		return domain.NewValidationError("body", "must contain a single JSON object")
	}
	return nil
}
