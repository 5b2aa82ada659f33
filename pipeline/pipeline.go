// Package pipeline wires the concurrent core of the station: the
// acquisition fan-out, the analysis and visualization workers, and the
// batched persistence writer.
//
// Data flow:
//
//	camera → callback → {visualization queue, analysis queue}
//	visualization queue → render/encode → broadcaster → viewers
//	analysis queue → fit → persistence queue → writer → SQLite
//
// The callback path never blocks: both hand-offs are drop-newest. The
// three workers each run an independent blocking-with-timeout consume
// loop so a process-wide shutdown is observed within one Pop timeout.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/beamscope/broadcast"
	"github.com/hazyhaar/beamscope/camera"
	"github.com/hazyhaar/beamscope/fit"
	"github.com/hazyhaar/beamscope/frame"
	"github.com/hazyhaar/beamscope/metrics"
	"github.com/hazyhaar/beamscope/render"
	"github.com/hazyhaar/beamscope/sensors"
	"github.com/hazyhaar/beamscope/store"
	"github.com/hazyhaar/beamscope/workqueue"
)

// Config tunes the pipeline. The zero value is usable via defaults().
type Config struct {
	// VisualizationQueue is the encode queue capacity. Small on
	// purpose: only the newest frame matters to viewers. Default: 5.
	VisualizationQueue int `yaml:"visualization_queue"`
	// AnalysisQueue is the analysis queue capacity. Small on purpose:
	// a stale measurement is useless once a new trigger fired.
	// Default: 10.
	AnalysisQueue int `yaml:"analysis_queue"`
	// TriggerThreshold is the peak intensity a frame must exceed to be
	// admitted for analysis in triggered mode. Default: 30.
	TriggerThreshold uint8 `yaml:"trigger_threshold"`
	// PopTimeout bounds every queue wait so workers observe shutdown
	// promptly. Default: 1s.
	PopTimeout time.Duration `yaml:"pop_timeout"`
	// FlushInterval is the maximum age of an uncommitted batch.
	// Default: 1s.
	FlushInterval time.Duration `yaml:"flush_interval"`
	// FlushRows commits the pending batch when it reaches this size.
	// Default: 50.
	FlushRows int `yaml:"flush_rows"`
	// ReconnectBackoff is the pause before reopening the store after a
	// persistence failure. Default: 1s.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
	// JPEGQuality for the encoded visualization. Default: 60.
	JPEGQuality int `yaml:"jpeg_quality"`
	// Fit tunes the centroid fit.
	Fit fit.Config `yaml:"fit"`
}

func (c *Config) defaults() {
	if c.VisualizationQueue <= 0 {
		c.VisualizationQueue = 5
	}
	if c.AnalysisQueue <= 0 {
		c.AnalysisQueue = 10
	}
	if c.TriggerThreshold == 0 {
		c.TriggerThreshold = 30
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = time.Second
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.FlushRows <= 0 {
		c.FlushRows = 50
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = time.Second
	}
	if c.JPEGQuality <= 0 {
		c.JPEGQuality = 60
	}
}

// OpenStore opens (or reopens) the writer's store handle. The writer
// owns the handle lifecycle so it can reconnect after a failure without
// touching the web layer's read handle.
type OpenStore func() (*store.Store, error)

// MeasurementHook observes every accepted measurement. Used by the
// websocket live feed. Must not block.
type MeasurementHook func(store.Measurement)

// Pipeline owns the queues, the shared state, and the worker lifecycle.
type Pipeline struct {
	cfg      Config
	cam      camera.Camera
	probe    sensors.Probe
	open     OpenStore
	renderer *render.Renderer
	caster   *broadcast.Broadcaster
	state    *State
	met      *metrics.Metrics
	logger   *slog.Logger

	visQ   *workqueue.Bounded[*frame.Frame]
	anaQ   *workqueue.Bounded[*frame.Frame]
	writeQ *workqueue.Unbounded[store.Measurement]

	hook MeasurementHook
	wg   sync.WaitGroup
}

// New assembles a pipeline. probe may be nil (readings become zeros).
func New(cam camera.Camera, probe sensors.Probe, open OpenStore, met *metrics.Metrics, cfg Config, logger *slog.Logger) *Pipeline {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	if met == nil {
		met = metrics.New()
	}
	return &Pipeline{
		cfg:      cfg,
		cam:      cam,
		probe:    probe,
		open:     open,
		renderer: render.New(cfg.JPEGQuality),
		caster:   broadcast.New(),
		state:    &State{},
		met:      met,
		logger:   logger,
		visQ:     workqueue.NewBounded[*frame.Frame](cfg.VisualizationQueue),
		anaQ:     workqueue.NewBounded[*frame.Frame](cfg.AnalysisQueue),
		writeQ:   workqueue.NewUnbounded[store.Measurement](),
	}
}

// Broadcaster exposes the visualization fan-out to the web layer.
func (p *Pipeline) Broadcaster() *broadcast.Broadcaster { return p.caster }

// State exposes the shared mode/centroid scalars.
func (p *Pipeline) State() *State { return p.state }

// SetMeasurementHook registers the live-feed observer. Call before Start.
func (p *Pipeline) SetMeasurementHook(h MeasurementHook) { p.hook = h }

// SetMode switches the acquisition gating policy. Entering Continuous
// clears any queued-but-unprocessed analysis frames and resets the
// centroid estimate to unknown, so stale triggered frames are never
// analyzed under the new mode. The camera's TriggerMode property is
// updated best-effort.
func (p *Pipeline) SetMode(m Mode) {
	p.state.setMode(m)
	if m == Continuous {
		cleared := p.anaQ.Clear()
		p.state.clearCentroid()
		if cleared > 0 {
			p.logger.Debug("pipeline: cleared stale analysis frames", "count", cleared)
		}
	}

	value := "Off"
	if m == Triggered {
		value = "On"
	}
	if err := p.cam.SetProperty("TriggerMode", value); err != nil {
		p.logger.Warn("pipeline: camera TriggerMode not applied", "error", err)
	}
	p.logger.Info("pipeline: mode changed", "mode", m.String())
}

// Start registers the acquisition callback, starts the camera, and
// launches the three workers. A camera start failure aborts before any
// worker runs — the one fatal startup condition.
func (p *Pipeline) Start(ctx context.Context, initial Mode) error {
	p.state.setMode(initial)
	p.cam.SetFrameCallback(p.handleFrame)
	if err := p.cam.Start(); err != nil {
		return err
	}

	p.wg.Add(3)
	go func() { defer p.wg.Done(); p.analysisLoop(ctx) }()
	go func() { defer p.wg.Done(); p.visualizeLoop(ctx) }()
	go func() { defer p.wg.Done(); p.writerLoop(ctx) }()

	p.logger.Info("pipeline: started", "mode", initial.String())
	return nil
}

// Shutdown stops acquisition, waits for the workers to drain (the
// writer flushes its pending batch first), and wakes every streaming
// session. Call after cancelling the context passed to Start.
func (p *Pipeline) Shutdown() {
	if err := p.cam.Stop(); err != nil {
		p.logger.Warn("pipeline: camera stop", "error", err)
	}
	p.wg.Wait()
	p.caster.Close()
	p.logger.Info("pipeline: stopped")
}
