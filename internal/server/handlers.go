package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/pagesplit/internal/config"
	"github.com/hyperjump/pagesplit/internal/segment"
	"github.com/hyperjump/pagesplit/internal/splitter"
	"github.com/hyperjump/pagesplit/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultRunsLimit   = 20
	defaultMaxUploadMB = 64
)

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	maxMB := s.config.Server.MaxUploadMB
	if maxMB <= 0 {
		maxMB = defaultMaxUploadMB
	}
	maxBytes := int64(maxMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	mode := r.FormValue("bundle")
	switch mode {
	case "", config.BundleCSV, config.BundleZip, config.BundleXLSX:
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid bundle %q", mode))
		return
	}

	dir, err := os.MkdirTemp(s.config.Server.UploadTempDir, "pagesplit-upload-*")
	if err != nil {
		s.logger.Error("create upload directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "cannot store upload")
		return
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, uploadName(header.Filename))
	if err := saveUpload(file, input); err != nil {
		s.logger.Error("save upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "cannot store upload")
		return
	}

	s.logger.Debug("split request", zap.String("file", header.Filename), zap.Int64("size", header.Size), zap.String("bundle", mode))
	run, err := s.runner.Run(r.Context(), input, splitter.WithBundle(mode))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, segment.ErrEmptyDocument):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, splitter.ErrDuplicateOutput):
			status = http.StatusConflict
		}
		s.logger.Error("split failed", zap.String("file", header.Filename), zap.Error(err))
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, run)
}

// uploadName keeps the client's base name so the no-match fallback output is named after it.
func uploadName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.pdf"
	}
	if filepath.Ext(name) == "" {
		name += ".pdf"
	}
	return name
}

func saveUpload(src io.Reader, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "run history disabled")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", defaultRunsLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.storage.ListRuns(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.storage.CountRuns(r.Context())
	if err != nil {
		s.logger.Error("count runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":   runs,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "run history disabled")
		return
	}
	run, err := s.storage.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "run history disabled")
		return
	}
	run, err := s.storage.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run.BundlePath == "" {
		s.respondError(w, http.StatusNotFound, "run has no bundle")
		return
	}
	if _, err := os.Stat(run.BundlePath); err != nil {
		if run.BundleURL != "" {
			http.Redirect(w, r, run.BundleURL, http.StatusFound)
			return
		}
		s.respondError(w, http.StatusGone, "bundle no longer on disk")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(run.BundlePath)))
	http.ServeFile(w, r, run.BundlePath)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"config": map[string]interface{}{
			"output_directory": s.config.Output.Directory,
			"bundle":           s.config.Output.Bundle,
			"duplicates":       s.config.Output.Duplicates,
			"remote_enabled":   s.config.Remote.Enabled(),
			"remote_driver":    s.config.Remote.Driver,
			"database_path":    s.config.Storage.DatabasePath,
		},
	}
	if s.storage != nil {
		ctx := r.Context()
		runs, err := s.storage.CountRuns(ctx)
		if err != nil {
			s.logger.Error("status: count runs failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		outputs, err := s.storage.CountOutputs(ctx)
		if err != nil {
			s.logger.Error("status: count outputs failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["runs"] = runs
		resp["outputs"] = outputs
	}
	if n, err := storage.DiskUsageBytes(s.config.Output.Directory, s.config.Storage.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = n
	} else {
		s.logger.Debug("status: disk usage unavailable", zap.Error(err))
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Scan *bool  `json:"scan,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	scan := true
	if req.Scan != nil {
		scan = *req.Scan
	}
	if err := s.watch.AddDirectory(abs, scan); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
