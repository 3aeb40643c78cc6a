// Package server exposes the Sankey report as an HTTP endpoint. A caller
// posts PCE credentials, the server surveys the last month of traffic,
// renders the application group Sankey diagram as a PNG, uploads it and
// answers with a presigned URL for the image.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/GESkunkworks/dependr"
	"github.com/GESkunkworks/dependr/pce"
	"github.com/GESkunkworks/dependr/render"
	"github.com/GESkunkworks/dependr/store"
)

const maxBodyBytes = 1 << 20

// SourceFactory builds the flow source for one request's PCE.
type SourceFactory func(cfg pce.Config, log log15.Logger) (dependr.FlowSource, error)

// Server answers report requests.
type Server struct {
	cfg       *Config
	sink      store.Sink
	log       log15.Logger
	router    *chi.Mux
	srv       *http.Server
	newSource SourceFactory
	newID     func() string
	now       func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l log15.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithSourceFactory replaces how PCE clients are built.
func WithSourceFactory(f SourceFactory) Option {
	return func(s *Server) { s.newSource = f }
}

// WithRequestID replaces the generator of report ids.
func WithRequestID(f func() string) Option {
	return func(s *Server) { s.newID = f }
}

// WithClock sets the clock the report window is computed from.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New returns a Server storing reports in sink.
func New(cfg *Config, sink store.Sink, opts ...Option) *Server {
	const (
		defaultIdleTimeout  = 120 * time.Second
		defaultReadTimeout  = 10 * time.Second
		defaultWriteTimeout = 15 * time.Minute
	)

	s := &Server{
		cfg:       cfg,
		sink:      sink,
		newSource: newPCESource,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log15.New()
		s.log.SetHandler(log15.DiscardHandler())
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(allowAnyOrigin)
	r.Get("/healthz", s.handleHealth)
	r.Post("/graph", s.handleGraph)
	r.Options("/graph", handlePreflight)
	s.router = r

	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		IdleTimeout:  defaultIdleTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	return s
}

// Handler returns the router, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening", "addr", s.cfg.ListenAddr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func newPCESource(cfg pce.Config, log log15.Logger) (dependr.FlowSource, error) {
	c, err := pce.NewClient(cfg, pce.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	id := s.newID()
	log := s.log.New("report", id)
	url, err := s.graph(r.Context(), id, r.Body, log)
	if err != nil {
		log.Error("report failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	log.Info("report ready", "url", url)
	writeJSON(w, http.StatusOK, map[string]string{"image_url": url})
}

// graph runs one report: survey, Sankey PNG, upload.
func (s *Server) graph(ctx context.Context, id string, body io.Reader, log log15.Logger) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return "", errors.Wrap(err, "reading request body")
	}
	cfg, err := parseGraphRequest(raw)
	if err != nil {
		return "", err
	}
	cfg.Insecure = s.cfg.PCEInsecure
	log.Info("report requested", "pce_host", cfg.Host, "port", cfg.Port, "org_id", cfg.OrgID)

	src, err := s.newSource(cfg, log)
	if err != nil {
		return "", err
	}
	start := fmt.Sprintf("%d days ago", s.cfg.LookbackDays)
	end := "today"
	limit := s.cfg.QueryLimit
	keepSelfLoops := true
	sv, err := dependr.New(&dependr.SurveyInput{
		Client:          src,
		Start:           &start,
		End:             &end,
		Limit:           &limit,
		PolicyDecisions: []string{pce.DecisionAllowed, pce.DecisionBlocked, pce.DecisionPotentiallyBlocked},
		KeepSelfLoops:   &keepSelfLoops,
		Logger:          log,
		Now:             s.now,
	})
	if err != nil {
		return "", err
	}
	if err = sv.Start(ctx); err != nil {
		return "", err
	}

	img, err := render.NewSankey(sv.Connections, render.SankeyTitle).Encode(ctx, render.PNG)
	if err != nil {
		return "", err
	}
	return s.sink.Put(ctx, "graph_"+id+".png", render.PNG.ContentType(), img)
}

// parseGraphRequest reads the PCE coordinates from a report request. The
// port and org id may be sent as numbers or strings.
func parseGraphRequest(body []byte) (cfg pce.Config, err error) {
	if !gjson.ValidBytes(body) {
		err = errors.New("request body is not valid JSON")
		return cfg, err
	}
	fields := []string{"pce_host", "port", "org_id", "api_key", "api_secret"}
	res := gjson.GetManyBytes(body, fields...)
	for i, r := range res {
		if !r.Exists() || r.String() == "" {
			err = errors.Errorf("missing required field %q", fields[i])
			return cfg, err
		}
	}

	cfg.Port, err = parsePort(res[1])
	if err != nil {
		return cfg, err
	}
	cfg.Host = res[0].String()
	cfg.OrgID = res[2].String()
	cfg.APIKey = res[3].String()
	cfg.APISecret = res[4].String()
	return cfg, err
}

func parsePort(r gjson.Result) (int, error) {
	var port int
	switch r.Type {
	case gjson.Number:
		port = int(r.Int())
	case gjson.String:
		p, err := strconv.Atoi(r.Str)
		if err != nil {
			return 0, errors.Errorf("invalid port %q", r.Str)
		}
		port = p
	default:
		return 0, errors.Errorf("invalid port %s", r.Raw)
	}
	if port < 1 || port > 65535 {
		return 0, errors.Errorf("port %d out of range", port)
	}
	return port, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
