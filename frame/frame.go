// Package frame defines the single-channel intensity frame passed through
// the acquisition pipeline.
//
// Ownership rule: whichever stage holds a *Frame owns it. The acquisition
// callback clones the camera buffer exactly once and hands the clone to
// the fan-out queues; after construction nothing mutates Pix, so the same
// clone may be read concurrently by the visualization and analysis paths.
// The camera is free to reuse its own buffer as soon as the callback
// returns.
package frame

import "time"

// Frame is a width×height grid of 8-bit intensity samples plus the
// capture timestamp. Pix is row-major, len(Pix) == Width*Height.
type Frame struct {
	Width      int
	Height     int
	Pix        []uint8
	CapturedAt time.Time
}

// New allocates a zeroed frame.
func New(width, height int) *Frame {
	return &Frame{
		Width:      width,
		Height:     height,
		Pix:        make([]uint8, width*height),
		CapturedAt: time.Now(),
	}
}

// Clone returns a deep copy with the same capture timestamp.
func (f *Frame) Clone() *Frame {
	pix := make([]uint8, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{
		Width:      f.Width,
		Height:     f.Height,
		Pix:        pix,
		CapturedAt: f.CapturedAt,
	}
}

// At returns the sample at (x, y). No bounds check.
func (f *Frame) At(x, y int) uint8 {
	return f.Pix[y*f.Width+x]
}

// Peak returns the maximum intensity sample. Used by the trigger-mode
// admission gate, so it must stay cheap: a single linear scan.
func (f *Frame) Peak() uint8 {
	var max uint8
	for _, v := range f.Pix {
		if v > max {
			max = v
		}
	}
	return max
}
