// Package server runs the local preview: an HTTP file server over the
// generated output, a health endpoint, Prometheus metrics, and the
// watch-driven incremental rebuild loop.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/sitebuilder/internal/builder"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/watch"
)

// buildStatus tracks the outcome of the most recent build for /healthz.
type buildStatus struct {
	mu           sync.RWMutex
	lastError    error
	lastBuildID  string
	builds       int
	hasGoodBuild bool
}

func (s *buildStatus) record(res *builder.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds++
	s.lastError = err
	if res != nil {
		s.lastBuildID = res.BuildID
	}
	if err == nil {
		s.hasGoodBuild = true
	}
}

func (s *buildStatus) snapshot() (builds int, lastID string, lastErr error, good bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builds, s.lastBuildID, s.lastError, s.hasGoodBuild
}

// Preview serves the generated site and rebuilds it on change.
type Preview struct {
	cfg     *config.Config
	log     *slog.Logger
	builder *Rebuilder
	promReg *prometheus.Registry
	status  buildStatus
	start   time.Time
}

// Rebuilder is the slice of the build orchestrator the preview needs.
type Rebuilder struct {
	// Build runs one pass.
	Build func(ctx context.Context) (*builder.Result, error)
	// TrackedDirs enumerates the directories to watch.
	TrackedDirs func() []string
}

// FromBuilder adapts a build orchestrator.
func FromBuilder(b *builder.Builder) *Rebuilder {
	return &Rebuilder{Build: b.Build, TrackedDirs: b.TrackedDirs}
}

// New creates a preview server. promReg may be nil to disable /metrics.
func New(cfg *config.Config, rb *Rebuilder, promReg *prometheus.Registry, log *slog.Logger) *Preview {
	if log == nil {
		log = slog.Default()
	}
	return &Preview{cfg: cfg, log: log, builder: rb, promReg: promReg, start: time.Now()}
}

// Run builds once, then serves and rebuilds until ctx is done.
func (p *Preview) Run(ctx context.Context) error {
	res, err := p.builder.Build(ctx)
	p.status.record(res, err)
	if err != nil {
		// The preview stays up on a failed initial build; fixing the source
		// triggers a rebuild like any other change.
		p.log.Error("Initial build failed", logfields.Error(err))
	}

	addr := fmt.Sprintf(":%d", p.cfg.Serve.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding preview port %d: %w", p.cfg.Serve.Port, err)
	}
	srv := &http.Server{Handler: p.handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if serr := srv.Serve(ln); serr != nil && serr != http.ErrServerClosed {
			p.log.Error("Preview server stopped", logfields.Error(serr))
		}
	}()
	p.log.Info("Preview server listening",
		slog.Int("port", p.cfg.Serve.Port),
		slog.String("url", fmt.Sprintf("http://localhost:%d", p.cfg.Serve.Port)))

	w, err := watch.New(p.builder.TrackedDirs(), watch.DefaultDebounce, p.log)
	if err != nil {
		_ = srv.Close()
		return err
	}
	defer func() { _ = w.Close() }()

	sched, err := p.startRescanJob(w)
	if err != nil {
		_ = srv.Close()
		return err
	}

	runErr := w.Run(ctx, func(ctx context.Context) {
		p.log.Info("Change detected, rebuilding site")
		res, err := p.builder.Build(ctx)
		p.status.record(res, err)
		if err != nil {
			p.log.Warn("Rebuild failed", logfields.Error(err))
		}
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sched != nil {
		if serr := sched.Shutdown(); serr != nil {
			p.log.Warn("Scheduler shutdown error", logfields.Error(serr))
		}
	}
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		p.log.Warn("HTTP shutdown error", logfields.Error(serr))
	}
	return runErr
}

// startRescanJob schedules a periodic full-rescan trigger as a fallback for
// missed filesystem events. Disabled when the interval is zero.
func (p *Preview) startRescanJob(w *watch.Watcher) (gocron.Scheduler, error) {
	interval := p.cfg.Serve.RescanInterval
	if interval <= 0 {
		return nil, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating rescan scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			p.log.Debug("Periodic rescan trigger")
			w.Trigger()
		}),
		gocron.WithName("periodic-rescan"),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling periodic rescan: %w", err)
	}
	sched.Start()
	return sched, nil
}

func (p *Preview) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", p.handleHealth)
	if p.promReg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(p.promReg, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", http.FileServer(http.Dir(p.cfg.OutputDir())))
	return mux
}

type healthResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	Builds      int    `json:"builds"`
	LastBuildID string `json:"last_build_id,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

func (p *Preview) handleHealth(rw http.ResponseWriter, _ *http.Request) {
	builds, lastID, lastErr, good := p.status.snapshot()
	resp := healthResponse{
		Status:      "healthy",
		Uptime:      time.Since(p.start).Round(time.Second).String(),
		Builds:      builds,
		LastBuildID: lastID,
	}
	code := http.StatusOK
	switch {
	case lastErr != nil && good:
		resp.Status = "degraded"
		resp.LastError = lastErr.Error()
	case lastErr != nil:
		resp.Status = "unhealthy"
		resp.LastError = lastErr.Error()
		code = http.StatusServiceUnavailable
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(resp)
}
