// Command gearforged serves the patch execution engine and gear
// processing fabric over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/gearforge/gearforge/internal/bus"
	"github.com/gearforge/gearforge/internal/config"
	"github.com/gearforge/gearforge/internal/httpapi"
	"github.com/gearforge/gearforge/internal/llm"
	"github.com/gearforge/gearforge/internal/llm/anthropic"
	"github.com/gearforge/gearforge/internal/llm/google"
	"github.com/gearforge/gearforge/internal/llm/openai"
	"github.com/gearforge/gearforge/internal/logging"
	"github.com/gearforge/gearforge/internal/metrics"
	"github.com/gearforge/gearforge/internal/registry"
	"github.com/gearforge/gearforge/internal/runtime"
	"github.com/gearforge/gearforge/internal/storage"
	"github.com/gearforge/gearforge/internal/telemetry"
	"github.com/gearforge/gearforge/internal/urlguard"
)

func main() {
	root := &cobra.Command{
		Use:   "gearforged",
		Short: "Patch execution engine and gear fabric server",
	}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.Init(cfg.Log)

	store, err := newStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	model, err := newModel(cfg.LLM)
	if err != nil {
		return fmt.Errorf("constructing llm adapter: %w", err)
	}

	guard := urlguard.New(cfg.Forward.AllowedHosts...)
	reg := registry.NewSeeded(nil, nil)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("gearforge")

	eventBus := bus.New()
	metricsReg := metrics.New(nil)

	engine := runtime.New(reg, guard)
	engine.DevMode = cfg.DevMode
	engine.Sinks = []runtime.Sink{
		telemetry.NewSink(tracer),
		runtime.SinkFunc(func(ev runtime.Event) {
			observeEngineEvent(metricsReg, ev)
		}),
	}

	srv := httpapi.NewServer(cfg.HTTP.Addr, httpapi.Deps{
		Store:        store,
		Engine:       engine,
		Bus:          eventBus,
		Model:        model,
		Guard:        guard,
		PublicOrigin: cfg.Forward.PublicOrigin,
		Log:          log,
	})
	srv.Start()
	log.Info("serving", "addr", cfg.HTTP.Addr, "llm_provider", cfg.LLM.Provider, "storage_driver", cfg.Storage.Driver)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func newStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		return storage.NewSQLiteStore(cfg.DSN)
	case "mysql":
		return storage.NewMySQLStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}

func newModel(cfg config.LLMConfig) (llm.Model, error) {
	switch cfg.Provider {
	case "", "mock":
		return &llm.MockModel{Responses: []llm.Out{{Text: "ok"}}}, nil
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.Model), nil
	case "openai":
		return openai.New(cfg.APIKey, cfg.Model), nil
	case "google":
		return google.New(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}

func observeEngineEvent(m *metrics.Metrics, ev runtime.Event) {
	switch ev.Type {
	case runtime.RunStart:
		m.RunStarted()
	case runtime.RunComplete:
		m.RunCompleted()
	case runtime.NodeError:
		m.RecordNodeError(ev.NodeID)
	}
}
