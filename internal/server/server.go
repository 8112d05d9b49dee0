// Package server exposes resolution as JSON over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"crosslink/internal/applemusic"
	"crosslink/internal/fetch"
	"crosslink/internal/logging"
	"crosslink/internal/models"
	"crosslink/internal/spotify"
)

const shutdownTimeout = 10 * time.Second

type Resolver interface {
	Resolve(ctx context.Context, input string) (*models.Resolution, error)
}

type Server struct {
	resolver Resolver
	logger   *slog.Logger
	mux      *http.ServeMux
}

func New(res Resolver, logger *slog.Logger) *Server {
	s := &Server{
		resolver: res,
		logger:   logging.NewComponentLogger(logger, "server"),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/v1/resolve", s.recovery(s.handleResolve))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) recovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.ErrorContext(r.Context(), "panic",
					slog.Any("panic", err),
					slog.String("stack", string(debug.Stack())))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("url")
	if input == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{"missing url parameter"})
		return
	}

	ctx := logging.WithLogger(r.Context(), s.logger)
	res, err := s.resolver.Resolve(ctx, input)
	if err != nil {
		status, msg := http.StatusBadGateway, "upstream lookup failed"
		if notFound(err) {
			status, msg = http.StatusNotFound, "not found"
		}
		s.logger.WarnContext(ctx, "resolve failed",
			slog.String("input", input), slog.Int("status", status), logging.Error(err))
		writeJSON(w, status, errorBody{msg})
		return
	}

	switch {
	case res.ContentType == models.ContentUnknown:
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{"unrecognized link"})
		return
	case res.Unresolved():
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{fmt.Sprintf("%s links are not supported", res.ContentType)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func notFound(err error) bool {
	return errors.Is(err, spotify.ErrNotFound) ||
		errors.Is(err, applemusic.ErrNotFound) ||
		fetch.IsNotFound(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
