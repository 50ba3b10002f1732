package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/mind-engage/labeld/internal/client"
	"github.com/mind-engage/labeld/internal/dataset"
	"github.com/mind-engage/labeld/internal/labeling"
	"github.com/mind-engage/labeld/internal/storage"
	"github.com/mind-engage/labeld/internal/wizard"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorBody{Error: http.StatusText(status), Message: message})
}

// contentDisposition builds a Content-Disposition value; non-ASCII names are
// encoded per RFC 2231.
func contentDisposition(disposition, filename string) string {
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": filename}); v != "" {
		return v
	}
	return disposition
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: bad json: %v", dataset.ErrValidation, err)
	}
	return nil
}

// fail maps err onto a status code and writes it.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ae *client.APIError
		ue *url.Error
	)
	switch {
	case errors.Is(err, labeling.ErrNothingToSubmit):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, dataset.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, wizard.ErrItemNotFound),
		errors.Is(err, wizard.ErrQuestionNotFound),
		errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ae):
		msg := ae.Message
		if msg == "" {
			msg = http.StatusText(ae.Status)
		}
		slog.Warn("backend rejected request", "status", ae.Status, "message", ae.Message, "path", r.URL.Path)
		writeError(w, ae.Status, msg)
	case errors.As(err, &ue):
		slog.Error("backend unreachable", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusBadGateway, "dataset backend unreachable")
	default:
		slog.Error("request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
