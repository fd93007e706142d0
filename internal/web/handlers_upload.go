package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tabledock/tabledock/internal/core"
	"github.com/tabledock/tabledock/internal/logging"
)

// handleUpload starts an asynchronous upload session. The file is parsed
// synchronously so malformed input fails the request; everything after that
// runs in the background and is observable via the progress endpoints.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	t, opts, cleanup, ok := s.parseUploadForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	uploadID, err := s.service.StartUpload(r.Context(), t, opts)
	if err != nil {
		if errors.Is(err, core.ErrTooManyUploads) {
			w.Header().Set("Retry-After", "30")
		}
		respondError(w, r, statusForError(err), err)
		return
	}

	logging.FromContext(r.Context()).Info("upload started",
		"upload_id", uploadID,
		"table", opts.Table,
		"file", t.Name,
		"rows", t.RowCount(),
	)

	writeJSONStatus(w, http.StatusAccepted, map[string]any{
		"uploadId":    uploadID,
		"table":       opts.Table,
		"fileName":    t.Name,
		"totalRows":   t.RowCount(),
		"progressUrl": "/api/upload/" + uploadID + "/progress",
		"resultUrl":   "/api/upload/" + uploadID + "/result",
	})
}

// handleUploadProgress streams progress updates over Server-Sent Events until
// the session completes or the client disconnects.
func (s *Server) handleUploadProgress(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	ch, err := s.service.SubscribeProgress(uploadID)
	if err != nil {
		respondError(w, r, statusForError(err), err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case progress, open := <-ch:
			if !open {
				fmt.Fprint(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(progress)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleUploadResult blocks until the session finishes and returns its final
// result. The request timeout middleware bounds the wait.
func (s *Server) handleUploadResult(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	result, err := s.service.UploadResult(r.Context(), uploadID)
	if err != nil {
		respondError(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, result)
}

// handleCancelUpload cancels an in-progress session.
func (s *Server) handleCancelUpload(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	if err := s.service.CancelUpload(uploadID); err != nil {
		respondError(w, r, statusForError(err), err)
		return
	}

	logging.FromContext(r.Context()).Info("upload cancelled", "upload_id", uploadID)
	writeJSON(w, map[string]string{"status": "cancelling", "uploadId": uploadID})
}
