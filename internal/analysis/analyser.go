// Package analysis turns the most recent block of output samples into byte
// frequency magnitudes, the way a Web Audio AnalyserNode reports them.
package analysis

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// Config holds analyser parameters
type Config struct {
	FFTSize     int     // transform size, power of two
	Smoothing   float64 // time constant in [0,1)
	MinDecibels float64 // maps to byte 0
	MaxDecibels float64 // maps to byte 255
}

// DefaultConfig mirrors the analyser used by the visualizer: 256 samples, 128 bins
func DefaultConfig() Config {
	return Config{
		FFTSize:     256,
		Smoothing:   0.8,
		MinDecibels: -100,
		MaxDecibels: -30,
	}
}

// Validate checks the analyser parameters
func (c Config) Validate() error {
	if c.FFTSize < 32 || c.FFTSize > 32768 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("fft size must be a power of two between 32 and 32768, got %d", c.FFTSize)
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		return fmt.Errorf("smoothing must be in [0,1), got %v", c.Smoothing)
	}
	if c.MinDecibels >= c.MaxDecibels {
		return fmt.Errorf("min decibels (%v) must be below max decibels (%v)", c.MinDecibels, c.MaxDecibels)
	}
	return nil
}

// Analyser computes smoothed byte frequency data.
// It keeps smoothing state between calls and is not safe for concurrent use.
type Analyser struct {
	cfg      Config
	plan     *algofft.Plan[complex128]
	window   []float64
	frame    []float64
	in       []complex128
	out      []complex128
	re       []float64
	im       []float64
	mag      []float64
	smoothed []float64
}

// New creates an analyser for cfg
func New(cfg Config) (*Analyser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan, err := algofft.NewPlan64(cfg.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("analyser fft plan: %w", err)
	}

	bins := cfg.FFTSize / 2
	return &Analyser{
		cfg:      cfg,
		plan:     plan,
		window:   blackman(cfg.FFTSize),
		frame:    make([]float64, cfg.FFTSize),
		in:       make([]complex128, cfg.FFTSize),
		out:      make([]complex128, cfg.FFTSize),
		re:       make([]float64, bins),
		im:       make([]float64, bins),
		mag:      make([]float64, bins),
		smoothed: make([]float64, bins),
	}, nil
}

// FFTSize returns the transform size
func (a *Analyser) FFTSize() int {
	return a.cfg.FFTSize
}

// BinCount returns the number of frequency bins (half the transform size)
func (a *Analyser) BinCount() int {
	return a.cfg.FFTSize / 2
}

// Reset clears the smoothing history
func (a *Analyser) Reset() {
	clear(a.smoothed)
}

// ByteFrequencyData analyses the trailing FFTSize samples and writes one byte
// per bin into dst. Shorter inputs are zero padded at the front.
func (a *Analyser) ByteFrequencyData(samples []float64, dst []byte) {
	n := a.cfg.FFTSize
	clear(a.frame)
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	copy(a.frame[n-len(samples):], samples)

	vecmath.MulBlockInPlace(a.frame, a.window)
	for i, s := range a.frame {
		a.in[i] = complex(s, 0)
	}

	if err := a.plan.Forward(a.out, a.in); err == nil {
		for k := range a.re {
			a.re[k] = real(a.out[k])
			a.im[k] = imag(a.out[k])
		}
		vecmath.Magnitude(a.mag, a.re, a.im)

		scale := 1 / float64(n)
		tau := a.cfg.Smoothing
		for k, m := range a.mag {
			v := tau*a.smoothed[k] + (1-tau)*m*scale
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			a.smoothed[k] = v
		}
	}

	a.toBytes(dst)
}

func (a *Analyser) toBytes(dst []byte) {
	rangeScale := 255 / (a.cfg.MaxDecibels - a.cfg.MinDecibels)
	for k := range dst {
		if k >= len(a.smoothed) || a.smoothed[k] <= 0 {
			dst[k] = 0
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		v := math.Floor(rangeScale * (db - a.cfg.MinDecibels))
		switch {
		case v <= 0:
			dst[k] = 0
		case v >= 255:
			dst[k] = 255
		default:
			dst[k] = byte(v)
		}
	}
}

// blackman returns the periodic Blackman window (alpha 0.16) used by analyser nodes
func blackman(n int) []float64 {
	const (
		a0 = 0.42
		a1 = 0.5
		a2 = 0.08
	)
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}
