package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"media-converter/internal/logging"
	"media-converter/internal/naming"
)

type counterBody struct {
	Counter int `json:"counter"`
}

// GetCounter returns the value the next allocated name will use.
func (h *Handlers) GetCounter(w http.ResponseWriter, r *http.Request) {
	n, err := h.counter.Current(r.Context())
	if err != nil {
		logging.Error("Failed to read name counter: %v", err)
		writeJSONError(w, "Failed to read counter", http.StatusInternalServerError)
		return
	}
	writeJSONStatusCode(w, http.StatusOK, counterBody{Counter: n})
}

// SetCounter overwrites the stored counter. Values outside 1..999 are
// rejected.
func (h *Handlers) SetCounter(w http.ResponseWriter, r *http.Request) {
	var body counterBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := naming.ValidateCounter(body.Counter); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.counter.Set(r.Context(), body.Counter); err != nil {
		if errors.Is(err, naming.ErrCounterRange) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logging.Error("Failed to store name counter: %v", err)
		writeJSONError(w, "Failed to store counter", http.StatusInternalServerError)
		return
	}
	logging.Info("Name counter set to %d", body.Counter)
	writeJSONStatusCode(w, http.StatusOK, body)
}
