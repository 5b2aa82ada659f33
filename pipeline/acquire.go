package pipeline

import "github.com/hazyhaar/beamscope/frame"

// handleFrame is the acquisition callback. It runs on the camera's
// thread and must return quickly: one clone, two non-blocking enqueue
// attempts, nothing else. The camera may reuse its buffer the moment we
// return, hence the single copy-on-enqueue; both queues receive the same
// immutable clone.
func (p *Pipeline) handleFrame(raw *frame.Frame) {
	p.met.FramesAcquired.Inc()
	f := raw.Clone()

	if !p.visQ.TryPush(f) {
		p.met.FramesDropped.WithLabelValues("visualization").Inc()
	}

	if p.state.Mode() != Triggered {
		return
	}
	if f.Peak() <= p.cfg.TriggerThreshold {
		p.met.FramesGated.Inc()
		return
	}
	if !p.anaQ.TryPush(f) {
		p.met.FramesDropped.WithLabelValues("analysis").Inc()
	}
}
