// Package server exposes registered models over HTTP: their columns,
// attribute metadata and, when a repository is attached, their rows.
//
//	GET /models
//	GET /models/{model}
//	GET /models/{model}/attributes/{name}
//	GET /models/{model}/records
//	GET /models/{model}/records/{id}
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/rowmap/internal/errs"
	"github.com/koustreak/rowmap/internal/logger"
	"github.com/koustreak/rowmap/internal/persist"
	"github.com/koustreak/rowmap/internal/record"
	"github.com/koustreak/rowmap/internal/schema"
)

// Server serves the metadata API.
type Server struct {
	registry *record.Registry
	repo     *persist.Repository
	log      *logger.Logger
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithRepository enables the record endpoints.
func WithRepository(repo *persist.Repository) Option {
	return func(s *Server) {
		s.repo = repo
	}
}

// WithLogger replaces the global logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// New builds the router for reg.
func New(reg *record.Registry, opts ...Option) *Server {
	s := &Server{registry: reg, log: logger.Global()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(s.requestLogger)

	r.Route("/models", func(r chi.Router) {
		r.Get("/", s.listModels)
		r.Route("/{model}", func(r chi.Router) {
			r.Get("/", s.getModel)
			r.Get("/attributes/{name}", s.getAttribute)
			r.Get("/records", s.listRecords)
			r.Get("/records/{id}", s.getRecord)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errs.New(errs.ErrKindNotFound, "no route for "+r.URL.Path))
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("addr", addr).Logger().Info("metadata server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(errs.ErrKindConnectionFailed, "metadata server stopped", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("metadata server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// --- Responses ---

type modelSummary struct {
	Name          string `json:"name"`
	Table         string `json:"table"`
	Discriminator string `json:"discriminator,omitempty"`
	STI           string `json:"sti,omitempty"`
	Parent        string `json:"parent,omitempty"`
	Columns       int    `json:"columns"`
}

type modelDetail struct {
	modelSummary
	PrimaryKey string            `json:"primary_key,omitempty"`
	Subtypes   []string          `json:"subtypes,omitempty"`
	Attributes []schema.Metadata `json:"attributes"`
}

func summarize(m *record.Model) modelSummary {
	out := modelSummary{
		Name:          m.Name(),
		Table:         m.Table(),
		Discriminator: m.Definition().Discriminator(),
		STI:           m.STI(),
		Columns:       len(m.Columns()),
	}
	if p := m.Parent(); p != nil {
		out.Parent = p.Name()
	}
	return out
}

// --- Handlers ---

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	models := s.registry.Models()
	out := make([]modelSummary, len(models))
	for i, m := range models {
		out[i] = summarize(m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) model(r *http.Request) (*record.Model, error) {
	return s.registry.Lookup(chi.URLParam(r, "model"))
}

func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	m, err := s.model(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	def := m.Definition()
	out := modelDetail{modelSummary: summarize(m)}
	if pk, ok := def.PrimaryKey(); ok {
		out.PrimaryKey = pk.Name
	}
	if m.STI() == "" {
		for _, sub := range m.Subtypes() {
			out.Subtypes = append(out.Subtypes, sub.Name())
		}
	}
	for _, a := range def.Attributes() {
		out.Attributes = append(out.Attributes, a.Metadata())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getAttribute(w http.ResponseWriter, r *http.Request) {
	m, err := s.model(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	meta, err := m.Definition().Metadata(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, r, errs.New(errs.ErrKindNotFound, "records are not served without a database"))
		return
	}
	m, err := s.model(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := s.repo.All(r.Context(), m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, r, errs.New(errs.ErrKindNotFound, "records are not served without a database"))
		return
	}
	m, err := s.model(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pk, err := parseKey(m, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.repo.Get(r.Context(), m, pk)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// parseKey converts a path segment into a value the primary key accepts.
func parseKey(m *record.Model, raw string) (any, error) {
	key, ok := m.Definition().PrimaryKey()
	if !ok {
		return nil, errs.New(errs.ErrKindInvalidInput, m.Name()+": model has no primary key")
	}
	switch {
	case key.Type.Kind.IsSigned():
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errs.ForAttribute(errs.ErrKindInvalidInput, m.Name(), key.Name, fmt.Sprintf("%q is not an integer", raw))
		}
		return n, nil
	case key.Type.Kind.IsUnsigned():
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, errs.ForAttribute(errs.ErrKindInvalidInput, m.Name(), key.Name, fmt.Sprintf("%q is not an unsigned integer", raw))
		}
		return n, nil
	default:
		return raw, nil
	}
}
