// Package render turns raw frames into the encoded visualization that is
// broadcast to viewers: a jet false-colour map with a fixed reference
// ring at the frame centre and, when a centroid estimate exists, a cross
// marker at the estimated beam position.
//
// Rendering and JPEG encoding dominate the latency of the visualization
// path, which is why the pipeline runs them on a dedicated worker rather
// than the acquisition thread.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/fogleman/gg"

	"github.com/hazyhaar/beamscope/fit"
	"github.com/hazyhaar/beamscope/frame"
)

const crossHalf = 10 // half-length of the centroid cross, pixels

// Renderer maps intensities through a precomputed jet LUT and encodes
// JPEG at a fixed quality. Safe for use by a single worker at a time.
type Renderer struct {
	quality int
	lut     [256]color.RGBA
}

// New creates a Renderer with the given JPEG quality (1..100).
func New(quality int) *Renderer {
	r := &Renderer{quality: quality}
	for i := 0; i < 256; i++ {
		r.lut[i] = jet(float64(i) / 255)
	}
	return r
}

// Render produces one encoded visualization. centroid may be nil, in
// which case only the reference ring is drawn.
func (r *Renderer) Render(f *frame.Frame, centroid *fit.Result) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, v := range f.Pix {
		c := r.lut[v]
		o := i * 4
		img.Pix[o] = c.R
		img.Pix[o+1] = c.G
		img.Pix[o+2] = c.B
		img.Pix[o+3] = 255
	}

	dc := gg.NewContextForRGBA(img)
	dc.SetRGB255(255, 255, 255)
	dc.SetLineWidth(2)

	// Fixed alignment reference: ring at the frame centre, radius h/6.
	dc.DrawCircle(float64(f.Width)/2, float64(f.Height)/2, float64(f.Height)/6)
	dc.Stroke()

	if centroid != nil {
		dc.DrawLine(centroid.X-crossHalf, centroid.Y, centroid.X+crossHalf, centroid.Y)
		dc.DrawLine(centroid.X, centroid.Y-crossHalf, centroid.X, centroid.Y+crossHalf)
		dc.Stroke()
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("render: jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// jet maps t in [0,1] to the classic blue→cyan→yellow→red colormap.
func jet(t float64) color.RGBA {
	clamp := func(v float64) uint8 {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint8(v*255 + 0.5)
	}
	return color.RGBA{
		R: clamp(1.5 - abs(4*t-3)),
		G: clamp(1.5 - abs(4*t-2)),
		B: clamp(1.5 - abs(4*t-1)),
		A: 255,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
