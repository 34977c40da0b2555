// Package spectrum implements the analysis tap that sits between a playing
// source and the output. It never alters the signal; it turns the samples
// around the current playback position into byte magnitudes per frequency bin,
// following the conventions of the Web Audio AnalyserNode.
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Defaults match an AnalyserNode with fftSize 256.
const (
	DefaultFFTSize     = 256
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

// PositionFunc reports how far playback has progressed.
type PositionFunc func() time.Duration

// Option configures an Analyser.
type Option func(*Analyser) error

// WithFFTSize sets the transform size. It must be a power of two in [32, 32768].
func WithFFTSize(n int) Option {
	return func(a *Analyser) error {
		if n < 32 || n > 32768 || n&(n-1) != 0 {
			return fmt.Errorf("invalid fft size %d", n)
		}
		a.fftSize = n
		return nil
	}
}

// WithSmoothing sets the time constant used to average successive frames.
func WithSmoothing(tau float64) Option {
	return func(a *Analyser) error {
		if tau < 0 || tau > 1 {
			return fmt.Errorf("smoothing %v outside [0, 1]", tau)
		}
		a.smoothing = tau
		return nil
	}
}

// WithDecibelRange sets the range mapped onto 0..255.
func WithDecibelRange(min, max float64) Option {
	return func(a *Analyser) error {
		if min >= max {
			return fmt.Errorf("min decibels %v must be below max %v", min, max)
		}
		a.minDecibels, a.maxDecibels = min, max
		return nil
	}
}

// Analyser produces frequency snapshots of a buffer being played.
type Analyser struct {
	samples    []float32
	sampleRate int
	position   PositionFunc

	fftSize     int
	smoothing   float64
	minDecibels float64
	maxDecibels float64

	mu       sync.Mutex
	fft      *fourier.FFT
	frame    []float64
	coeffs   []complex128
	smoothed []float64
}

// New creates an analyser over samples. pos is sampled on every snapshot.
func New(samples []float32, sampleRate int, pos PositionFunc, opts ...Option) (*Analyser, error) {
	a := &Analyser{
		samples:     samples,
		sampleRate:  sampleRate,
		position:    pos,
		fftSize:     DefaultFFTSize,
		smoothing:   DefaultSmoothing,
		minDecibels: DefaultMinDecibels,
		maxDecibels: DefaultMaxDecibels,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.fft = fourier.NewFFT(a.fftSize)
	a.frame = make([]float64, a.fftSize)
	a.coeffs = make([]complex128, a.fftSize/2+1)
	a.smoothed = make([]float64, a.fftSize/2)
	return a, nil
}

// FFTSize returns the transform size.
func (a *Analyser) FFTSize() int { return a.fftSize }

// FrequencyBinCount returns the number of bins in a snapshot (FFTSize/2).
func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

// FrequencyForBin returns the center frequency of bin i in Hz.
func (a *Analyser) FrequencyForBin(i int) float64 {
	return float64(i) * float64(a.sampleRate) / float64(a.fftSize)
}

// ByteFrequencyData fills dst with the current magnitudes scaled to 0..255.
// Only min(len(dst), FrequencyBinCount()) entries are written.
func (a *Analyser) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.fillFrame()
	window.Blackman(a.frame)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	scale := 1 / float64(a.fftSize)
	rangeScale := 255 / (a.maxDecibels - a.minDecibels)
	for i := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[i]) * scale
		a.smoothed[i] = a.smoothing*a.smoothed[i] + (1-a.smoothing)*mag
		if i >= len(dst) {
			continue
		}
		db := math.Inf(-1)
		if a.smoothed[i] > 0 {
			db = 20 * math.Log10(a.smoothed[i])
		}
		v := (db - a.minDecibels) * rangeScale
		switch {
		case v < 0 || math.IsNaN(v):
			v = 0
		case v > 255:
			v = 255
		}
		dst[i] = byte(v)
	}
}

// fillFrame copies the fftSize samples ending at the playback position,
// zero padding before the start of the buffer.
func (a *Analyser) fillFrame() {
	end := 0
	if a.position != nil && a.sampleRate > 0 {
		end = int(a.position().Seconds() * float64(a.sampleRate))
	}
	if end > len(a.samples) {
		end = len(a.samples)
	}
	start := end - a.fftSize
	for i := range a.frame {
		j := start + i
		if j < 0 || j >= end {
			a.frame[i] = 0
			continue
		}
		a.frame[i] = float64(a.samples[j])
	}
}
