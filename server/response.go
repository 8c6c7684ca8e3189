package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/asaidimu/go-restful/core"
	"go.uber.org/zap"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// describe returns the client-facing text of err. Storage errors expose only
// their sanitized message and untyped errors expose nothing.
func describe(err error) string {
	var se *core.StorageError
	if errors.As(err, &se) {
		return se.Message
	}
	if core.StatusCode(err) == http.StatusInternalServerError {
		return ""
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := core.StatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
	} else {
		logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, ErrorBody{Title: core.ErrorTitle(err), Description: describe(err)})
}

// responseWriter records the status written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func wrap(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.status = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
