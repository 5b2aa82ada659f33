package camera

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hazyhaar/beamscope/frame"
)

// SimConfig configures the simulated source.
type SimConfig struct {
	Width  int           `yaml:"width"`
	Height int           `yaml:"height"`
	FPS    int           `yaml:"fps"`
	Sigma  float64       `yaml:"sigma"`     // spot width, pixels
	Amp    float64       `yaml:"amplitude"` // spot peak above background
	Drift  time.Duration `yaml:"drift"`     // period of the spot's orbit
}

func (c *SimConfig) defaults() {
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.FPS <= 0 {
		c.FPS = 20
	}
	if c.Sigma <= 0 {
		c.Sigma = 30
	}
	if c.Amp <= 0 {
		c.Amp = 200
	}
	if c.Drift <= 0 {
		c.Drift = 20 * time.Second
	}
}

// Sim is a deterministic camera: a Gaussian spot orbiting the frame
// centre over a dim background. It lets the whole station run end to
// end without hardware and gives tests a source with a known centroid.
type Sim struct {
	cfg SimConfig

	mu       sync.Mutex
	props    map[string]string
	callback FrameCallback
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

// NewSim creates a simulated camera seeded with the given properties.
func NewSim(cfg SimConfig, props map[string]string) *Sim {
	cfg.defaults()
	p := make(map[string]string, len(props))
	for k, v := range props {
		p[k] = v
	}
	return &Sim{cfg: cfg, props: p}
}

// SetFrameCallback registers the per-frame callback.
func (s *Sim) SetFrameCallback(fn FrameCallback) {
	s.mu.Lock()
	s.callback = fn
	s.mu.Unlock()
}

// Start launches the generator goroutine.
func (s *Sim) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("camera: already started")
	}
	if s.callback == nil {
		return errors.New("camera: no frame callback registered")
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.callback, s.stop, s.done)
	return nil
}

// Stop halts the generator and waits for the last callback to return.
func (s *Sim) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	return nil
}

// Property returns a named property value.
func (s *Sim) Property(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.props[name]
	if !ok {
		return "", fmt.Errorf("camera: unknown property %q", name)
	}
	return v, nil
}

// SetProperty updates a named property. The sim accepts any name, the
// way the vendor SDK accepts unknown keys from state files.
func (s *Sim) SetProperty(name, value string) error {
	s.mu.Lock()
	s.props[name] = value
	s.mu.Unlock()
	return nil
}

func (s *Sim) run(fn FrameCallback, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	start := time.Now()
	buf := frame.New(s.cfg.Width, s.cfg.Height)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.paint(buf, time.Since(start))
			buf.CapturedAt = time.Now()
			fn(buf)
		}
	}
}

// paint renders the orbiting spot into buf, reusing its pixel buffer the
// way a real capture pipeline reuses DMA buffers.
func (s *Sim) paint(buf *frame.Frame, elapsed time.Duration) {
	w, h := float64(s.cfg.Width), float64(s.cfg.Height)
	phase := 2 * math.Pi * float64(elapsed) / float64(s.cfg.Drift)
	cx := w/2 + w/5*math.Cos(phase)
	cy := h/2 + h/5*math.Sin(phase)
	sigma2 := 2 * s.cfg.Sigma * s.cfg.Sigma

	for y := 0; y < s.cfg.Height; y++ {
		dy := float64(y) - cy
		for x := 0; x < s.cfg.Width; x++ {
			dx := float64(x) - cx
			v := 6 + s.cfg.Amp*math.Exp(-(dx*dx+dy*dy)/sigma2)
			if v > 255 {
				v = 255
			}
			buf.Pix[y*s.cfg.Width+x] = uint8(v)
		}
	}
}
