// Package server exposes a rank's run status, reports and metrics over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/meghna-verma/ENISI-MSM-control/internal/auth"
	"github.com/meghna-verma/ENISI-MSM-control/internal/observability"
	"github.com/meghna-verma/ENISI-MSM-control/internal/report"
)

const version = "0.1.0"

// CompartmentStatus summarizes one compartment on the serving rank.
type CompartmentStatus struct {
	Name        string   `json:"name"`
	LocalAgents int      `json:"local_agents"`
	LocalCells  int      `json:"local_cells"`
	Cytokines   []string `json:"cytokines,omitempty"`
}

// Status is a point-in-time view of a run on one rank.
type Status struct {
	RunID        string              `json:"run_id"`
	Rank         int                 `json:"rank"`
	Ranks        int                 `json:"ranks"`
	Step         uint64              `json:"step"`
	Steps        uint64              `json:"steps"`
	Phase        string              `json:"phase"`
	Done         bool                `json:"done"`
	Error        string              `json:"error,omitempty"`
	Compartments []CompartmentStatus `json:"compartments"`
}

// Provider is implemented by the runner.
type Provider interface {
	Status() Status
	Ready() bool
}

type Server struct {
	Rank     int
	Addr     string
	Appeared time.Time

	provider Provider
	series   *report.Series
	guard    auth.Validator
	router   *gin.Engine
}

type Option func(*Server)

// WithToken requires token as a bearer token on the status and report
// routes. An empty token leaves them open.
func WithToken(token string) Option {
	return func(s *Server) {
		if token != "" {
			s.guard = auth.StaticToken{Token: token}
		}
	}
}

// New builds the router for rank. series may be nil, in which case the
// report routes answer 404.
func New(rank int, addr string, provider Provider, series *report.Series, corsOrigins []string, opts ...Option) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(rank))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Rank:     rank,
		Addr:     addr,
		Appeared: time.Now(),
		provider: provider,
		series:   series,
		router:   r,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("rank", s.Rank).Str("addr", s.Addr).Msg("status server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
