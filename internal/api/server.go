package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"speechtrim/internal/config"
	"speechtrim/internal/intake"
	"speechtrim/internal/jobs"
	"speechtrim/internal/logging"
	"speechtrim/internal/services"
	"speechtrim/internal/workflow"
)

// multipartOverhead is the slack allowed above upload.max_bytes for multipart
// framing before the request body is cut off.
const multipartOverhead = 1 << 20

// JobReader reads job records.
type JobReader interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, statuses ...jobs.Status) ([]*jobs.Job, error)
}

// Uploader accepts uploads.
type Uploader interface {
	Submit(ctx context.Context, up intake.Upload) (*jobs.Job, error)
}

// StatusFunc reports daemon status for /api/status.
type StatusFunc func(ctx context.Context) DaemonStatus

// Server serves the HTTP API.
type Server struct {
	bind      string
	publicURL string
	outputDir string
	maxBody   int64
	jobs      JobReader
	uploads   Uploader
	status    StatusFunc
	logger    *slog.Logger
	handler   http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// NewServer wires the routes. status may be nil.
func NewServer(cfg *config.Config, reader JobReader, uploads Uploader, status StatusFunc, logger *slog.Logger) *Server {
	s := &Server{
		bind:      strings.TrimSpace(cfg.Paths.APIBind),
		publicURL: cfg.Paths.PublicURL,
		outputDir: cfg.Paths.OutputDir,
		jobs:      reader,
		uploads:   uploads,
		status:    status,
		logger:    logging.NewComponentLogger(logger, "api-server"),
	}
	if cfg.Upload.MaxBytes > 0 {
		s.maxBody = cfg.Upload.MaxBytes + multipartOverhead
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/videos/upload/{$}", s.handleUpload)
	mux.HandleFunc("GET /api/videos/status/{id}/{$}", s.handleJobStatus)
	mux.HandleFunc("GET /api/videos/status/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /api/videos/{$}", s.handleList)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET "+MediaPrefix+"{file}", s.handleMedia)
	s.handler = s.withRequestID(mux)
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured bind address and serves until ctx ends or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_listen"),
	)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api shutdown incomplete", logging.Error(err))
		_ = srv.Close()
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart/form-data upload")
		return
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeError(w, uploadErrorStatus(err), "malformed upload")
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		job, err := s.uploads.Submit(r.Context(), intake.Upload{
			Filename: part.FileName(),
			Reader:   part,
		})
		_ = part.Close()
		s.respondUpload(w, r, job, err)
		return
	}
	s.writeError(w, http.StatusBadRequest, "no file provided")
}

func (s *Server) respondUpload(w http.ResponseWriter, r *http.Request, job *jobs.Job, err error) {
	var rejection *intake.Rejection
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, UploadResponse{Message: UploadMessage, ID: job.ID})
	case errors.As(err, &rejection):
		s.writeError(w, http.StatusBadRequest, rejection.Reason)
	case errors.Is(err, workflow.ErrQueueFull):
		s.writeError(w, http.StatusServiceUnavailable, intake.BusyReason)
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		logging.WithContext(r.Context(), s.logger).Error("upload failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "upload failed")
	}
}

func uploadErrorStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		s.writeError(w, http.StatusNotFound, NotFoundMessage)
		return
	}
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		s.internalError(w, r, "job lookup failed", err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, NotFoundMessage)
		return
	}
	s.writeJSON(w, http.StatusOK, FromJob(job, s.publicURL))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []jobs.Status
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := jobs.ParseStatus(part)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", strings.TrimSpace(part)))
				return
			}
			statuses = append(statuses, status)
		}
	}
	list, err := s.jobs.List(r.Context(), statuses...)
	if err != nil {
		s.internalError(w, r, "job list failed", err)
		return
	}
	resp := JobListResponse{Jobs: make([]JobStatus, 0, len(list))}
	for _, job := range list {
		resp.Jobs = append(resp.Jobs, FromJob(job, s.publicURL))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.writeJSON(w, http.StatusOK, DaemonStatus{Running: true, PID: os.Getpid()})
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.outputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		started := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logging.WithContext(r.Context(), s.logger).Error(msg, logging.Error(err))
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
