// Package fit estimates the beam centroid by fitting a rotated 2D
// Gaussian to a frame.
//
// The frame is block-averaged down before fitting; the fit runs on the
// reduced grid and the centroid is scaled back to full-resolution pixel
// coordinates. A failed or implausible fit is an expected, frequent
// outcome (no beam in view) and is reported as ErrNoConvergence rather
// than logged as an error by callers.
package fit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/hazyhaar/beamscope/frame"
)

// ErrNoConvergence is returned when the optimizer fails, diverges, or
// lands outside the frame.
var ErrNoConvergence = errors.New("fit: no convergence")

// ErrFlatFrame is returned when the frame carries no signal above its
// own floor, so there is nothing to fit.
var ErrFlatFrame = errors.New("fit: flat frame")

// Result is a centroid estimate in full-resolution pixel coordinates.
type Result struct {
	X float64
	Y float64
}

// Config tunes the fit. The zero value is usable via defaults().
type Config struct {
	// Downsample is the block-averaging factor applied before fitting.
	// Default: 5 (a 640×480 frame fits on a 128×96 grid).
	Downsample int `yaml:"downsample"`
	// MaxIterations bounds the Nelder-Mead search. Default: 500.
	MaxIterations int `yaml:"max_iterations"`
}

func (c *Config) defaults() {
	if c.Downsample <= 0 {
		c.Downsample = 5
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 500
	}
}

// Centroid fits with the default configuration.
func Centroid(f *frame.Frame) (Result, error) {
	var cfg Config
	return CentroidWith(f, cfg)
}

// CentroidWith fits a rotated elliptical Gaussian
//
//	g(x,y) = offset + amp·exp(-(a(x-x0)² + 2b(x-x0)(y-y0) + c(y-y0)²))
//
// to the downsampled, floor-subtracted frame and returns (x0, y0) scaled
// back to frame coordinates.
func CentroidWith(f *frame.Frame, cfg Config) (Result, error) {
	cfg.defaults()

	grid, w, h := downsample(f, cfg.Downsample)
	floor := grid[0]
	peak := grid[0]
	for _, v := range grid {
		if v < floor {
			floor = v
		}
		if v > peak {
			peak = v
		}
	}
	if peak-floor <= 0 {
		return Result{}, ErrFlatFrame
	}
	for i := range grid {
		grid[i] -= floor
	}
	amp := peak - floor

	// Seed the search at the brightest cell, matching the usual
	// max-location initial guess for beam spots.
	maxIdx := 0
	for i, v := range grid {
		if v > grid[maxIdx] {
			maxIdx = i
		}
	}
	x0 := float64(maxIdx % w)
	y0 := float64(maxIdx / w)

	problem := optimize.Problem{
		Func: func(p []float64) float64 { return residual(grid, w, h, p) },
	}
	// Parameters: amp, x0, y0, sigmaX, sigmaY, theta, offset.
	init := []float64{amp, x0, y0, 5, 5, 0, 0}
	settings := &optimize.Settings{MajorIterations: cfg.MaxIterations}

	res, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if err != nil {
		return Result{}, ErrNoConvergence
	}

	fx, fy := res.X[1], res.X[2]
	if math.IsNaN(fx) || math.IsNaN(fy) {
		return Result{}, ErrNoConvergence
	}
	scale := float64(cfg.Downsample)
	out := Result{X: fx * scale, Y: fy * scale}
	if out.X < 0 || out.X >= float64(f.Width) || out.Y < 0 || out.Y >= float64(f.Height) {
		return Result{}, ErrNoConvergence
	}
	return out, nil
}

// residual is the sum of squared errors of the Gaussian model over the
// grid for parameter vector p.
func residual(grid []float64, w, h int, p []float64) float64 {
	amp, x0, y0 := p[0], p[1], p[2]
	sx, sy := math.Abs(p[3]), math.Abs(p[4])
	theta, offset := p[5], p[6]
	if sx < 1e-3 || sy < 1e-3 {
		return math.Inf(1)
	}

	sin, cos := math.Sincos(theta)
	sin2 := math.Sin(2 * theta)
	a := cos*cos/(2*sx*sx) + sin*sin/(2*sy*sy)
	b := -sin2/(4*sx*sx) + sin2/(4*sy*sy)
	c := sin*sin/(2*sx*sx) + cos*cos/(2*sy*sy)

	var sum float64
	for y := 0; y < h; y++ {
		dy := float64(y) - y0
		for x := 0; x < w; x++ {
			dx := float64(x) - x0
			g := offset + amp*math.Exp(-(a*dx*dx+2*b*dx*dy+c*dy*dy))
			d := g - grid[y*w+x]
			sum += d * d
		}
	}
	return sum
}

// downsample block-averages the frame by factor n and returns the
// reduced grid and its dimensions.
func downsample(f *frame.Frame, n int) ([]float64, int, int) {
	w := f.Width / n
	h := f.Height / n
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	grid := make([]float64, w*h)
	for gy := 0; gy < h; gy++ {
		for gx := 0; gx < w; gx++ {
			var sum, count float64
			for y := gy * n; y < (gy+1)*n && y < f.Height; y++ {
				for x := gx * n; x < (gx+1)*n && x < f.Width; x++ {
					sum += float64(f.Pix[y*f.Width+x])
					count++
				}
			}
			grid[gy*w+gx] = sum / count
		}
	}
	return grid, w, h
}
