package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"doctranslate/internal/document"
	"doctranslate/internal/errlog"
	"doctranslate/internal/model"
)

// WriteJSON encodes data as JSON and writes it to the response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response with the given status code and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

// StatusFor maps a stage error onto an HTTP status: bad input is a client
// error, an unreadable document is unprocessable, everything else is a
// server error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnsupportedFormat), errors.Is(err, document.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrTranslationUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeStageError logs err and writes it with the status from StatusFor.
func writeStageError(w http.ResponseWriter, stage string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s failed: %v", stage, err)
		errlog.Logf("[API] %s failed: %v", stage, err)
	}
	WriteError(w, status, err.Error())
}

// parseForm parses a multipart or urlencoded body bounded by maxBytes.
func parseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	err := r.ParseMultipartForm(32 << 20)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	return nil
}

// readFormFile reads the named multipart file in full.
func readFormFile(r *http.Request, field string) ([]byte, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("missing %s: %w", field, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", field, err)
	}
	return data, header, nil
}

// formError writes a 413 for oversized bodies and a 400 otherwise.
func formError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		return
	}
	WriteError(w, http.StatusBadRequest, err.Error())
}

// queryInt reads a positive integer query parameter, clamped to max.
func queryInt(r *http.Request, name string, def, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
