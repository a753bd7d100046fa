package handlers

import (
	"io"
	"net/http"

	"media-converter/internal/logging"
)

// GetLog returns the conversion log as plain text.
func (h *Handlers) GetLog(w http.ResponseWriter, _ *http.Request) {
	contents, err := h.audit.Contents()
	if err != nil {
		logging.Error("Failed to read conversion log: %v", err)
		writeJSONError(w, "Failed to read log", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.WriteString(w, contents); err != nil {
		logging.Debug("Failed to write conversion log response: %v", err)
	}
}

// ClearLog truncates the conversion log.
func (h *Handlers) ClearLog(w http.ResponseWriter, _ *http.Request) {
	if err := h.audit.Clear(); err != nil {
		logging.Error("Failed to clear conversion log: %v", err)
		writeJSONError(w, "Failed to clear log", http.StatusInternalServerError)
		return
	}
	logging.Info("Conversion log cleared")
	writeJSONStatusCode(w, http.StatusOK, map[string]string{"status": "cleared"})
}
