package pipeline

import (
	"sync/atomic"

	"github.com/hazyhaar/beamscope/fit"
)

// Mode is the acquisition gating policy.
type Mode int32

const (
	// Continuous admits no frames to analysis; every frame is only
	// visualized.
	Continuous Mode = iota
	// Triggered admits frames whose peak intensity exceeds the
	// configured threshold to the analysis queue.
	Triggered
)

// String returns the wire spelling used by the mode-change API.
func (m Mode) String() string {
	if m == Triggered {
		return "trigger"
	}
	return "continuous"
}

// State holds the process-wide mutable scalars shared between workers.
// Access rules, per field:
//
//   - mode: written only by SetMode (operator command), read by the
//     acquisition callback on every frame. Atomic-width access; a
//     one-frame-stale read is acceptable.
//   - centroid: written only by the analysis worker (and reset by
//     SetMode), read by the visualization worker. Published as an
//     immutable snapshot pointer, so readers never see a torn value.
//
// The broadcast cell, the only many-reader/one-writer resource, lives in
// package broadcast with its own exclusion.
type State struct {
	mode     atomic.Int32
	centroid atomic.Pointer[fit.Result]
}

// Mode returns the current acquisition mode.
func (s *State) Mode() Mode { return Mode(s.mode.Load()) }

func (s *State) setMode(m Mode) { s.mode.Store(int32(m)) }

// Centroid returns the latest centroid estimate, or nil when unknown.
func (s *State) Centroid() *fit.Result { return s.centroid.Load() }

func (s *State) setCentroid(r *fit.Result) { s.centroid.Store(r) }

func (s *State) clearCentroid() { s.centroid.Store(nil) }
