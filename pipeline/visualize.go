package pipeline

import (
	"context"
	"errors"

	"github.com/hazyhaar/beamscope/workqueue"
)

// visualizeLoop consumes frames from the encode queue, renders the
// false-colour view with overlays, and publishes the encoded bytes.
// Rendering and encoding dominate this path's latency, which is exactly
// why it runs here and not on the acquisition thread: a slow encode
// never delays the next capture.
func (p *Pipeline) visualizeLoop(ctx context.Context) {
	p.logger.Info("pipeline: visualization worker started")
	for {
		f, err := p.visQ.Pop(p.cfg.PopTimeout)
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

		jpeg, err := p.renderer.Render(f, p.state.Centroid())
		if err != nil {
			p.logger.Error("pipeline: render failed", "error", err)
			continue
		}
		p.caster.Publish(jpeg)
		p.met.FramesPublished.Inc()
	}
}
