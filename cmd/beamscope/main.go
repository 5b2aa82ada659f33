// Command beamscope runs the beam profiling station: camera acquisition,
// centroid analysis, live MJPEG streaming, and measurement persistence,
// all behind one HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/beamscope/camera"
	"github.com/hazyhaar/beamscope/config"
	"github.com/hazyhaar/beamscope/dbopen"
	"github.com/hazyhaar/beamscope/metrics"
	"github.com/hazyhaar/beamscope/pipeline"
	"github.com/hazyhaar/beamscope/sensors"
	"github.com/hazyhaar/beamscope/store"
	"github.com/hazyhaar/beamscope/web"
	_ "modernc.org/sqlite"
)

func main() {
	cfg, err := config.Load(env("CONFIG_FILE", ""))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	// Environment overrides for the common deployment knobs.
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Read handle for the web layer. The persistence writer opens and
	// owns its own write handle; WAL keeps the pair safe.
	readDB, err := dbopen.Open(cfg.Database.Path,
		dbopen.WithMkdirAll(), dbopen.WithSchema(store.Schema))
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer readDB.Close()
	readStore := store.NewStore(readDB)

	// Device state persisted by the vendor tooling decides the startup
	// acquisition mode.
	state, err := camera.LoadStateFile(cfg.Camera.StateFile)
	if err != nil {
		slog.Error("camera state file", "error", err)
		os.Exit(1)
	}
	initial := pipeline.Continuous
	if state.TriggerEnabled() {
		initial = pipeline.Triggered
	}

	cam, err := newCamera(cfg.Camera, state)
	if err != nil {
		slog.Error("camera", "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	openStore := func() (*store.Store, error) {
		db, err := dbopen.Open(cfg.Database.Path, dbopen.WithSchema(store.Schema))
		if err != nil {
			return nil, err
		}
		return store.NewStore(db), nil
	}

	pipe := pipeline.New(cam, sensors.NewSim(), openStore, met, cfg.Pipeline, logger)
	srv := web.New(readStore, pipe, met, logger)
	pipe.SetMeasurementHook(srv.Hub().Notify)

	// A camera start failure is the one fatal startup condition.
	if err := pipe.Start(ctx, initial); err != nil {
		slog.Error("pipeline start", "error", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: MJPEG sessions are long-lived by design.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr, "mode", initial.String())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// Order matters: stop acquisition and drain workers first (flushes
	// the pending batch, closes the broadcaster so every stream ends),
	// then disconnect websockets, then stop accepting HTTP.
	pipe.Shutdown()
	srv.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// newCamera builds the configured frame source. Hardware SDK bindings
// register additional kinds behind build tags; every platform has "sim".
func newCamera(cfg config.Camera, state *camera.StateFile) (camera.Camera, error) {
	switch cfg.Kind {
	case "sim":
		return camera.NewSim(cfg.Sim, state.Properties), nil
	default:
		return nil, fmt.Errorf("unknown camera kind %q", cfg.Kind)
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
