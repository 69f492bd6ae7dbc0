package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lazypower/strata/internal/apperror"
	"github.com/lazypower/strata/internal/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders {"status": code, "error": message, ...details}.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.ErrInternal.WithInternal(err)
	}
	body := make(map[string]any, len(appErr.Details)+2)
	for k, v := range appErr.Details {
		body[k] = v
	}
	body["status"] = appErr.Code
	body["error"] = appErr.Message

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", appErr.Code),
			logger.Error(err))
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.NewValidation("request body required")
		}
		return apperror.NewValidation("invalid json: " + err.Error())
	}
	return nil
}
