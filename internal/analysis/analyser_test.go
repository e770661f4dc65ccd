package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, bin, size int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*float64(bin)*float64(i)/float64(size))
	}
	return out
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"not power of two", func(c *Config) { c.FFTSize = 300 }},
		{"too small", func(c *Config) { c.FFTSize = 16 }},
		{"smoothing one", func(c *Config) { c.Smoothing = 1 }},
		{"negative smoothing", func(c *Config) { c.Smoothing = -0.1 }},
		{"inverted decibels", func(c *Config) { c.MinDecibels = -20 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestBinCount(t *testing.T) {
	a, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 256, a.FFTSize())
	assert.Equal(t, 128, a.BinCount())
}

func TestSilenceIsZero(t *testing.T) {
	a, err := New(DefaultConfig())
	require.NoError(t, err)

	out := make([]byte, a.BinCount())
	a.ByteFrequencyData(make([]float64, 256), out)
	for k, v := range out {
		assert.Zero(t, v, "bin %d", k)
	}

	// empty input behaves like silence
	a.ByteFrequencyData(nil, out)
	for k, v := range out {
		assert.Zero(t, v, "bin %d", k)
	}
}

func TestSinePeaksAtItsBin(t *testing.T) {
	a, err := New(DefaultConfig())
	require.NoError(t, err)

	out := make([]byte, a.BinCount())
	a.ByteFrequencyData(sine(256, 16, 256, 1), out)

	peak := 0
	for k := range out {
		if out[k] > out[peak] {
			peak = k
		}
	}
	assert.Equal(t, 16, peak)
	assert.Equal(t, byte(255), out[16])
	assert.Less(t, out[100], out[16])
}

func TestSmoothingDecays(t *testing.T) {
	a, err := New(DefaultConfig())
	require.NoError(t, err)

	out := make([]byte, a.BinCount())
	a.ByteFrequencyData(sine(256, 8, 256, 0.01), out)
	loud := out[8]
	require.NotZero(t, loud)

	silence := make([]float64, 256)
	a.ByteFrequencyData(silence, out)
	assert.Less(t, out[8], loud, "silence should decay the bin")
	assert.NotZero(t, out[8], "decay is gradual")

	a.Reset()
	a.ByteFrequencyData(silence, out)
	assert.Zero(t, out[8])
}

func TestLongInputUsesTrailingSamples(t *testing.T) {
	a, err := New(DefaultConfig())
	require.NoError(t, err)

	// 256 samples of silence followed by a tone; only the tone is analysed
	input := append(make([]float64, 256), sine(256, 32, 256, 1)...)
	out := make([]byte, a.BinCount())
	a.ByteFrequencyData(input, out)
	assert.Equal(t, byte(255), out[32])
}

func TestBlackmanWindow(t *testing.T) {
	w := blackman(256)
	assert.InDelta(t, 0, w[0], 1e-12)
	assert.InDelta(t, 1, w[128], 1e-12)
	assert.InDelta(t, w[1], w[255], 1e-12)
}
