// Package bootstrap assembles the runtime graph from configuration.
package bootstrap

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxnote/internal/config"
	"voxnote/internal/connectivity"
	"voxnote/internal/fallback"
	"voxnote/internal/metrics"
	"voxnote/internal/ports"
	"voxnote/internal/providers"
	"voxnote/internal/providers/deepgram"
	"voxnote/internal/providers/whisper"
	"voxnote/internal/queue"
	"voxnote/internal/retry"
	"voxnote/internal/rules"
	"voxnote/internal/status"
	"voxnote/internal/store"
	"voxnote/internal/transcribe"
)

// Services is the assembled runtime graph.
type Services struct {
	Config   config.Config
	Store    *store.Store
	Monitor  *connectivity.Monitor
	Tracker  *status.Tracker
	Queue    *queue.Coordinator
	Fallback *fallback.Coordinator

	metricsServer *http.Server
}

// Build wires all backend dependencies for the current runtime.
func Build(events ports.EventSink) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	monitor := connectivity.NewMonitor(
		connectivity.WithProbe(connectivity.TCPProbe(cfg.Connectivity.ProbeAddr, cfg.Connectivity.ProbeTimeout.Std())),
		connectivity.WithInterval(cfg.Connectivity.ProbeInterval.Std()),
	)

	transcriber, err := buildTranscriber(cfg, m)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	tracker := status.NewTracker(db, events, m, cfg.Status.HistoryLimit)
	processor := transcribe.NewProcessor(tracker, rulesEngine)

	queueCoord := queue.NewCoordinator(db, transcriber, processor, tracker, monitor, events, m)
	fallbackCoord := fallback.NewCoordinator(
		transcriber, queueCoord, db, db, db, monitor, processor, events, m,
		fallback.StorageCapabilityProbe(cfg.Storage.DataDir),
	)

	services := &Services{
		Config:   cfg,
		Store:    db,
		Monitor:  monitor,
		Tracker:  tracker,
		Queue:    queueCoord,
		Fallback: fallbackCoord,
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		services.metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	}

	return services, nil
}

func buildTranscriber(cfg config.Config, m *metrics.Metrics) (ports.Transcriber, error) {
	var inner ports.Transcriber
	switch cfg.Provider {
	case "deepgram":
		inner = deepgram.NewClient(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		})
	case "whisper":
		inner = whisper.NewClient(whisper.Config{
			APIKey:     cfg.Whisper.APIKey,
			APIBaseURL: cfg.Whisper.APIBaseURL,
			Model:      cfg.Whisper.Model,
			Language:   cfg.Whisper.Language,
			Timeout:    cfg.Whisper.Timeout.Std(),
		})
	default:
		return nil, errors.New("unknown transcription provider " + cfg.Provider)
	}

	executor := retry.NewExecutor(retry.PolicyByName(cfg.Retry.Policy))
	return providers.NewRetryingTranscriber(inner, executor, m), nil
}

// Start reconciles persisted state and launches the background loops.
func (s *Services) Start(ctx context.Context) error {
	if err := s.Queue.Reconcile(ctx); err != nil {
		return err
	}

	s.Monitor.Start(ctx)
	s.Queue.Start(ctx)
	s.Fallback.Start(ctx)

	if s.metricsServer != nil {
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("bootstrap: metrics server failed: %v", err)
			}
		}()
	}
	return nil
}

// Stop shuts the background loops down in reverse dependency order.
func (s *Services) Stop() {
	if s.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.metricsServer.Shutdown(shutdownCtx)
		cancel()
	}

	s.Fallback.Stop()
	s.Queue.Stop()
	s.Monitor.Stop()
	_ = s.Store.Close()
}
