package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/odin-smr/level0/internal/importer"
	"github.com/odin-smr/level0/internal/logging"
)

// importRequest names one Level-0 file to import. The file is located in
// the data archive by its stw-derived path; clients send the bare filename.
type importRequest struct {
	File string `json:"file"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.File == "" || req.File != filepath.Base(req.File) {
		writeError(w, r, http.StatusBadRequest, "file must be a bare filename")
		return
	}

	path, err := importer.DataPath(s.dataDir, req.File)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("%s not found in archive", req.File))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.importTimeout)
	defer cancel()

	result, err := s.engine.ImportFile(ctx, path)
	if err != nil {
		logger.Error("import failed", "file", req.File, "error", err)
		writeError(w, r, http.StatusInternalServerError, "import failed")
		return
	}
	writeJSON(w, r, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"status": "ok"})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("request error", "status", status, "message", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
