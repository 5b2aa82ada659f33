// Package sensors defines the temperature probe collaborator: a fixed
// bank of readings sampled once per accepted measurement.
//
// Probe failures are substituted with a zero vector rather than
// propagated — a dead sensor bus must never cost a measurement whose fit
// already succeeded.
package sensors

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// Count is the fixed size of the reading vector, matching the four
// TMP117 probes mounted around the sensor head.
const Count = 4

// Probe reads all temperature channels at once.
type Probe interface {
	ReadAll() ([Count]float64, error)
}

// ReadOrZero samples the probe, substituting zeros on failure. A nil
// probe (sensor bus absent at startup) also yields zeros.
func ReadOrZero(p Probe, logger *slog.Logger) [Count]float64 {
	if p == nil {
		return [Count]float64{}
	}
	readings, err := p.ReadAll()
	if err != nil {
		if logger != nil {
			logger.Warn("sensors: read failed, substituting zeros", "error", err)
		}
		return [Count]float64{}
	}
	return readings
}

// Sim is a deterministic probe for development and tests: each channel
// oscillates slowly around its own baseline.
type Sim struct {
	start time.Time
	reads atomic.Int64
}

// NewSim creates a simulated probe.
func NewSim() *Sim {
	return &Sim{start: time.Now()}
}

// ReadAll returns four slowly drifting temperatures.
func (s *Sim) ReadAll() ([Count]float64, error) {
	s.reads.Add(1)
	elapsed := time.Since(s.start).Seconds()
	var out [Count]float64
	for i := range out {
		base := 21.0 + float64(i)*0.5
		out[i] = base + 0.3*math.Sin(elapsed/60+float64(i))
	}
	return out, nil
}
