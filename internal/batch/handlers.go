package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
)

// maxUploadSize bounds a whole multi-file upload
const maxUploadSize = int64(200 << 20) // 200MB

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes a JSON response with CORS headers set
func writeJSON(w http.ResponseWriter, code int, body any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func uploadError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"success": false, "error": message})
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleAsset serves an embedded static file
func (s *Server) handleAsset(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	}
}

// handleUpload stores the files of a multipart upload as a new batch
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			uploadError(w, http.StatusRequestEntityTooLarge, "Los archivos superan el tamaño máximo de 200MB.")
			return
		}
		uploadError(w, http.StatusBadRequest, "No se seleccionaron archivos")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files[]"]
	uploads := make([]Upload, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			slog.Error("Error opening uploaded file", "filename", header.Filename, "error", err)
			uploadError(w, http.StatusInternalServerError, "Error al guardar archivos en el servidor")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			slog.Error("Error reading uploaded file", "filename", header.Filename, "error", err)
			uploadError(w, http.StatusInternalServerError, "Error al guardar archivos en el servidor")
			return
		}
		uploads = append(uploads, Upload{Filename: header.Filename, Data: data})
	}

	id, err := s.service.CreateBatch(uploads)
	switch {
	case errors.Is(err, ErrNoFiles):
		uploadError(w, http.StatusBadRequest, "No se seleccionaron archivos")
		return
	case errors.Is(err, ErrNoUsableFiles):
		uploadError(w, http.StatusBadRequest, "Solo se aceptan archivos PDF o imágenes")
		return
	case err != nil:
		slog.Error("Error creating batch", "error", err)
		uploadError(w, http.StatusInternalServerError, "Error al guardar archivos en el servidor")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "batch_id": id})
}

// handleProcessStream runs a batch and streams its events as server-sent events
func (s *Server) handleProcessStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("batch_id")
	run, err := s.service.StartRun(id)
	switch {
	case errors.Is(err, ErrBatchNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Lote no encontrado"})
		return
	case errors.Is(err, ErrBatchInUse):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "El lote ya se está procesando"})
		return
	case err != nil:
		slog.Error("Error starting batch", "batch_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error interno"})
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	emit := func(e Event) error {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	state := run.Execute(r.Context(), emit)
	slog.Info("Stream finished", "batch_id", id, "state", state)
}

// handleDownload serves a generated report as an attachment
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	f, info, err := s.service.OpenReport(name)
	if errors.Is(err, ErrReportNotFound) {
		setCORSHeaders(w)
		http.Error(w, "Archivo no encontrado", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error opening report", "filename", name, "error", err)
		setCORSHeaders(w)
		http.Error(w, "Error interno", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()}))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
