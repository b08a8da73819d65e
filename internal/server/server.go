// Package server is the HTTP face of clipbot: video intake, catalog and
// registry views, the progress stream, and the static dashboard.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"clipbot/internal/catalog"
	"clipbot/internal/config"
	"clipbot/internal/logging"
	"clipbot/internal/pipeline"
	"clipbot/internal/progress"
	"clipbot/internal/registry"
)

// Runner executes one pipeline job; satisfied by *pipeline.Driver.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Server routes HTTP traffic to the pipeline collaborators.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	reg    *registry.Registry
	cat    *catalog.Catalog
	hub    *progress.Hub
	runner Runner

	// jobs outlives individual requests; an upload hands its pipeline run
	// to this context so a dropped connection does not kill the job.
	jobs context.Context
}

// NewServer wires the routes. jobs bounds background pipeline runs; nil
// means they run unbounded.
func NewServer(cfg *config.Config, reg *registry.Registry, cat *catalog.Catalog, hub *progress.Hub, runner Runner, jobs context.Context) *Server {
	if jobs == nil {
		jobs = context.Background()
	}
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		reg:    reg,
		cat:    cat,
		hub:    hub,
		runner: runner,
		jobs:   jobs,
	}
	s.routes()
	return s
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/ws", s.handleWS)

	s.router.Route("/api/videos", func(r chi.Router) {
		r.Post("/", s.handleUploadVideo)
		r.Get("/", s.handleListVideos)
		r.Get("/{name}/status", s.handleVideoStatus)
	})
	s.router.Get("/api/editors", s.handleListEditors)

	fileServer := http.FileServer(http.Dir(s.cfg.Paths.WebDir))
	s.router.Handle("/*", fileServer)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	progress.ServeWs(s.hub, w, r)
}

// handleUploadVideo admits one video. Admission is decided before the body
// is read: with every editor leased the upload is refused outright, so the
// client is never left waiting behind a queue that does not exist.
func (s *Server) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	if s.reg.AvailableCount() == 0 {
		logging.Server("upload refused: all editors leased")
		writeError(w, http.StatusLocked, "all editors are busy, try again later")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadMB<<20)
	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'video' required: "+err.Error())
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "upload carries no usable filename")
		return
	}

	dst := filepath.Join(s.cfg.Paths.VideosDir, name)
	if err := saveUpload(dst, file); err != nil {
		logging.ServerError("save %s: %v", dst, err)
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	if err := s.cat.Add(name, dst, ""); err != nil {
		logging.ServerError("catalog add %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "could not register upload")
		return
	}

	jobID := uuid.NewString()
	logging.Server("accepted %s (%d bytes) as job %s", name, header.Size, jobID)
	go s.runJob(jobID, name, dst)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"name":   name,
		"status": catalog.StatusQueued,
	})
}

// runJob is the detached half of an accepted upload. Outcomes land in the
// catalog and the progress stream; the HTTP response is long gone.
func (s *Server) runJob(jobID, name, path string) {
	req := pipeline.Request{JobID: jobID, Name: name, VideoPath: path}
	if _, err := s.runner.Run(s.jobs, req); err != nil {
		logging.ServerError("job %s (%s): %v", jobID, name, err)
	}
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cat.List())
}

func (s *Server) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	entry, err := s.cat.Get(name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleListEditors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.List())
}

func saveUpload(dst string, src io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, src)
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(dst)
		return copyErr
	}
	return closeErr
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
