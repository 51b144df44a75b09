package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/grabd/internal/downloaders/media"
	"github.com/tanq16/grabd/internal/task"
)

const maxBodyBytes = 1 << 20

// Controller is the control plane the handlers drive.
type Controller interface {
	Start(req task.Request) (task.Status, error)
	Status(id string) (task.Status, error)
	List() []task.Status
	Pause(id string) (task.Status, error)
	Cancel(id string) (task.Status, error)
	Resume(id string) (task.Status, error)
	ClearCompleted() int
	ClearCanceled() int
	Health(ctx context.Context) media.Health
}

type Server struct {
	ctrl         Controller
	downloadDir  string
	publicPrefix string
}

func New(ctrl Controller, downloadDir, publicPrefix string) *Server {
	return &Server{ctrl: ctrl, downloadDir: downloadDir, publicPrefix: publicPrefix}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/download/start", s.handleStart)
	mux.HandleFunc("GET /api/download/all", s.handleList)
	mux.HandleFunc("GET /api/download/{id}/status", s.handleStatus)
	mux.HandleFunc("POST /api/download/{id}/pause", s.handleControl(s.ctrl.Pause))
	mux.HandleFunc("POST /api/download/{id}/cancel", s.handleControl(s.ctrl.Cancel))
	mux.HandleFunc("POST /api/download/{id}/resume", s.handleControl(s.ctrl.Resume))
	mux.HandleFunc("POST /api/download/clear-completed", s.handleClearCompleted)
	mux.HandleFunc("POST /api/download/clear-canceled", s.handleClearCanceled)
	mux.HandleFunc("POST /api/clear-canceled", s.handleClearCanceled)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET "+s.publicPrefix, http.StripPrefix(s.publicPrefix, http.FileServer(http.Dir(s.downloadDir))))
	return logRequests(noStore(mux))
}

// ListenAndServe serves until ctx is done, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("op", "server/server").Msgf("listening on http://%s", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Str("op", "server/server").Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req task.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	status, err := s.ctrl.Start(req)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.List())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.ctrl.Status(r.PathValue("id"))
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleControl(op func(string) (task.Status, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := op(r.PathValue("id"))
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	n := s.ctrl.ClearCompleted()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Completed tasks cleared", "removed": n})
}

func (s *Server) handleClearCanceled(w http.ResponseWriter, r *http.Request) {
	n := s.ctrl.ClearCanceled()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "removed": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Health(r.Context()))
}

func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, task.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Str("op", "server/server").Err(err).Msg("error writing response")
	}
}
