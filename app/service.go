package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/dutysched/api/duties"
	journalapi "github.com/kilianp07/dutysched/api/journal"
	"github.com/kilianp07/dutysched/api/resources"
	"github.com/kilianp07/dutysched/api/status"
	"github.com/kilianp07/dutysched/app/plugins"
	"github.com/kilianp07/dutysched/auth"
	"github.com/kilianp07/dutysched/config"
	"github.com/kilianp07/dutysched/core/assign"
	"github.com/kilianp07/dutysched/core/feed"
	"github.com/kilianp07/dutysched/core/journal"
	coremetrics "github.com/kilianp07/dutysched/core/metrics"
	coremon "github.com/kilianp07/dutysched/core/monitoring"
	"github.com/kilianp07/dutysched/core/scheduler"
	"github.com/kilianp07/dutysched/infra/logger"
	"github.com/kilianp07/dutysched/infra/metrics"
	"github.com/kilianp07/dutysched/infra/monitoring"
	"github.com/kilianp07/dutysched/infra/mqtt"
)

// Service wires the engine to its stores, the HTTP API and the optional
// journal, metrics, MQTT bridge and scheduler.
type Service struct {
	Engine *assign.Engine
	Feed   *feed.Feed

	cfg     *config.Config
	backend plugins.Backend
	journal journal.LogStore
	sink    coremetrics.MetricsSink
	bridge  *mqtt.PahoClient
	sched   *scheduler.Scheduler
	handler http.Handler
	log     logger.Logger
}

// newBridge is replaced in tests.
var newBridge = mqtt.NewPahoClient

// New creates a Service from the configuration. Nothing runs until Run.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	backend, err := plugins.OpenBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, backend: backend, log: log}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	s.Feed = feed.New()
	s.Engine = assign.New(backend.Registry, backend.Duties, s.Feed, cfg.Engine,
		assign.WithLogger(logger.New("engine")))

	if cfg.Journal.Enabled {
		if s.journal, err = journal.NewLogStore(cfg.Journal.Store); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
	}
	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if cfg.MQTT.Enabled {
		if s.bridge, err = newBridge(cfg.MQTT); err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
	}
	if cfg.Scheduler.Enabled {
		s.sched = scheduler.New(cfg.Scheduler, s.Engine, logger.New("scheduler"))
	}
	s.handler = s.routes()
	ok = true
	return s, nil
}

func (s *Service) routes() http.Handler {
	api := http.NewServeMux()
	duties.Register(api, s.Engine)
	resources.Register(api, s.Engine)
	status.Register(api, s.Feed, status.Options{
		AlertGrace:   s.cfg.HTTP.AlertGrace,
		StreamBuffer: s.cfg.HTTP.StreamBuffer,
		Log:          logger.New("status_stream"),
	})
	if s.journal != nil {
		api.Handle("GET /api/journal", journalapi.NewLogHandler(s.journal))
	}

	root := http.NewServeMux()
	root.Handle("/api/", auth.Middleware(s.cfg.HTTP.Auth)(api))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.HTTP.MetricsPath != "" {
		root.Handle("GET "+s.cfg.HTTP.MetricsPath, promhttp.Handler())
	}
	return root
}

// Handler returns the HTTP handler serving the API.
func (s *Service) Handler() http.Handler { return s.handler }

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve starts the background workers and serves HTTP on ln. It blocks until
// ctx is cancelled, then shuts the server down and waits for the workers.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer coremon.Recover()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var workers []<-chan struct{}
	if s.journal != nil {
		workers = append(workers, journal.NewRecorder(s.journal, logger.New("journal")).Start(ctx, s.Feed, s.cfg.Journal.Buffer))
	}
	interval := time.Duration(s.cfg.Metrics.SummaryIntervalSeconds) * time.Second
	workers = append(workers, metrics.StartEventCollector(ctx, s.Feed, s.sink, interval))
	if s.bridge != nil {
		workers = append(workers, mqtt.StartBridge(ctx, s.Feed, s.bridge, s.cfg.Journal.Buffer))
		if err := s.bridge.Serve(ctx, s.Engine); err != nil {
			s.log.Errorf("mqtt command subscription: %v", err)
		}
	}

	var wg sync.WaitGroup
	if s.sched != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.sched.Run(ctx); err != nil {
				s.log.Errorf("scheduler error: %v", err)
			}
		}()
	}

	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Infof("listening on %s", ln.Addr())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		cancel()
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("http shutdown: %v", err)
	}
	wg.Wait()
	for _, w := range workers {
		<-w
	}
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	return serveErr
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.bridge != nil {
		s.bridge.Disconnect()
	}
	if s.Feed != nil {
		s.Feed.Close()
	}
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.backend.Close != nil {
		errs = append(errs, s.backend.Close())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
