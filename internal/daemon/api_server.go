package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"songdub/internal/api"
	"songdub/internal/artifacts"
	"songdub/internal/config"
	"songdub/internal/logging"
	"songdub/internal/pipeline"
	"songdub/internal/services"
)

// multipartMemory is how much of an upload is buffered before spilling to a
// temp file.
const multipartMemory = 32 << 20

type apiServer struct {
	bind      string
	token     string
	maxUpload int64
	jobsDir   string
	logger    *slog.Logger
	daemon    *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:      strings.TrimSpace(cfg.Paths.APIBind),
		token:     cfg.Paths.APIToken,
		maxUpload: int64(cfg.Pipeline.MaxUploadMiB) << 20,
		jobsDir:   cfg.JobsDir(),
		logger:    logging.NewComponentLogger(logger, "api-server"),
		daemon:    d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", requireToken(s.token, s.handleSubmit))
	mux.HandleFunc("GET /api/jobs", requireToken(s.token, s.handleJobs))
	mux.HandleFunc("GET /api/jobs/{id}", requireToken(s.token, s.handleJob))
	mux.HandleFunc("GET /api/status", requireToken(s.token, s.handleStatus))
	mux.HandleFunc("GET /api/languages", requireToken(s.token, s.handleLanguages))
	mux.HandleFunc("GET /files/{id}/{name}", s.handleFile)
	return withRequestID(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Args(logging.Error(err))...)
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.Args(logging.String("address", listener.Addr().String()))...)
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.listener = nil
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		if r.ContentLength > s.maxUpload {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d MiB", s.maxUpload>>20))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d MiB", s.maxUpload>>20))
			return
		}
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, errors.New("missing file field"))
		return
	}
	defer file.Close()

	start, err := formFloat(r, "start")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	end, err := formFloat(r, "end")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	job, err := s.daemon.Submit(r.Context(), pipeline.Request{
		SourceName: header.Filename,
		Language:   r.FormValue("language"),
		Start:      start,
		End:        end,
	}, file)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{JobID: job.ID})
}

func formFloat(r *http.Request, field string) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "", "window", "invalid "+field, err)
	}
	return v, nil
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.Jobs(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(list)})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Languages())
}

func (s *apiServer) handleFile(w http.ResponseWriter, r *http.Request) {
	path, err := artifacts.Resolve(s.jobsDir, r.PathValue("id"), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, fileError(err))
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.writeError(w, r, http.StatusNotFound, fileError(errors.New("artifact not ready")))
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Args(logging.Error(err))...)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	details := services.Details(err)
	resp := api.ErrorResponse{Error: details.Message}
	if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrNotFound) {
		resp.Kind = string(details.Kind)
		resp.Hint = details.Hint
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Warn("api request failed", logging.Args(
			logging.Int("status", status),
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_request_failed"),
		)...)
	}
	s.writeJSON(w, status, resp)
}
