package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"media-converter/internal/batch"
	"media-converter/internal/convert"
	"media-converter/internal/logging"
)

// batchResponse is one page plus the full audit log, which the polling UI
// renders after every call.
type batchResponse struct {
	batch.PageResult
	Logs string `json:"logs"`
}

// RunBatch converts one page of the library.
// POST /api/batch?offset=&limit=
func (h *Handlers) RunBatch(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", batch.DefaultLimit)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := h.batcher.RunPage(r.Context(), offset, limit)
	if err != nil {
		logging.Error("Batch at offset %d failed: %v", offset, err)
		writeJSONError(w, "Failed to list media library", http.StatusInternalServerError)
		return
	}

	logs, err := h.audit.Contents()
	if err != nil {
		logging.Warn("Failed to read conversion log: %v", err)
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSONStatusCode(w, http.StatusOK, batchResponse{PageResult: page, Logs: logs})
}

// RunSweep converts the whole library. With ?async=true the sweep runs in
// the background and the call returns 202 at once.
// POST /api/sweep
func (h *Handlers) RunSweep(w http.ResponseWriter, r *http.Request) {
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))

	if async {
		if h.batcher.Running() {
			writeJSONError(w, batch.ErrSweepRunning.Error(), http.StatusConflict)
			return
		}
		go func() {
			res, err := h.batcher.SweepAll(h.baseCtx, nil)
			if err != nil {
				logging.Warn("Background sweep did not run: %v", err)
				return
			}
			logging.Info("Background sweep %s done: %d converted, %d failed, %d skipped",
				res.RunID, res.Succeeded, res.Failed, res.Skipped)
		}()
		writeJSONStatusCode(w, http.StatusAccepted, map[string]string{"status": "started"})
		return
	}

	res, err := h.batcher.SweepAll(r.Context(), nil)
	switch {
	case errors.Is(err, batch.ErrSweepRunning):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case err != nil:
		logging.Error("Sweep failed: %v", err)
		writeJSONError(w, "Failed to list media library", http.StatusInternalServerError)
	default:
		writeJSONStatusCode(w, http.StatusOK, res)
	}
}

// ConvertFile runs the pipeline on one file inside the media directory.
// POST /api/convert
func (h *Handlers) ConvertFile(w http.ResponseWriter, r *http.Request) {
	var req convert.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	path, ok := h.resolveMediaPath(req.Path)
	if !ok {
		writeJSONError(w, "path is outside the media directory", http.StatusForbidden)
		return
	}
	req.Path = path

	res := h.converter.Convert(r.Context(), req)
	writeJSONStatusCode(w, statusForKind(res.Kind), res)
}

// resolveMediaPath makes p absolute under the media directory and rejects
// anything that escapes it.
func (h *Handlers) resolveMediaPath(p string) (string, bool) {
	if h.mediaDir == "" {
		return filepath.Clean(p), true
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(h.mediaDir, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(h.mediaDir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return p, true
}

func statusForKind(k convert.Kind) int {
	switch k {
	case convert.OK, convert.AlreadyConverted:
		return http.StatusOK
	case convert.NotFound:
		return http.StatusNotFound
	case convert.UnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case convert.DecodeFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
