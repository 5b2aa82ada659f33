package pipeline

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/hazyhaar/beamscope/fit"
	"github.com/hazyhaar/beamscope/sensors"
	"github.com/hazyhaar/beamscope/store"
	"github.com/hazyhaar/beamscope/workqueue"
)

// analysisLoop consumes admitted frames, fits the centroid, and emits
// measurement rows. Fit failures are expected and frequent (no beam in
// view); they drop the frame with nothing but a debug log.
func (p *Pipeline) analysisLoop(ctx context.Context) {
	p.logger.Info("pipeline: analysis worker started")
	for {
		f, err := p.anaQ.Pop(p.cfg.PopTimeout)
		if err != nil {
			if errors.Is(err, workqueue.ErrTimeout) {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		res, err := fit.CentroidWith(f, p.cfg.Fit)
		if err != nil {
			p.met.FitsFailed.Inc()
			p.logger.Debug("pipeline: fit discarded frame", "error", err)
			continue
		}
		p.met.FitsSucceeded.Inc()
		p.state.setCentroid(&res)

		temps := sensors.ReadOrZero(p.probe, p.logger)
		m := store.Measurement{
			Timestamp: time.Now().Format(store.TimeLayout),
			CX:        round2(res.X),
			CY:        round2(res.Y),
		}
		for i, v := range temps {
			m.Temps[i] = round2(v)
		}

		p.writeQ.Push(m)
		if p.hook != nil {
			p.hook(m)
		}
	}
}

// round2 rounds to the fixed 2-decimal precision used in every surface
// (database, JSON, CSV).
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
