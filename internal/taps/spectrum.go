// SPDX-License-Identifier: MIT
/*
Package taps provides the built-in tap consumers: spectrum analysis, band
energy, peak metering, WAV recording, and live monitoring. Each type exposes
a Tap method with the graph.TapFunc signature, so installation is always

	graph.TryInstallTap(node, bus, size, nil, consumer.Tap)

Tap methods run on the engine's real-time callback goroutine and follow the
same rules as the engine hot path: pre-allocated buffers, no locks held
across foreign calls, no logging.
*/
package taps

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"audiotap/internal/graph"
	"audiotap/internal/transport"
	"audiotap/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the FFT window function.
type WindowFunc int

const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// spectrumWorkspace holds pre-allocated buffers for FFT calculations.
type spectrumWorkspace struct {
	input     []float64    // Windowed, normalized input samples.
	fftOutput []complex128 // FFT complex results.
	magnitude []float64    // Calculated magnitudes.
	window    []float64    // Pre-calculated window coefficients.
	mu        sync.RWMutex // Protects concurrent access to magnitude buffer.
}

// Spectrum is a tap consumer that performs FFT analysis on every buffer it
// observes and pushes the magnitude spectrum to a Transport. It implements
// transport.SpectrumProvider for publishers that poll instead.
type Spectrum struct {
	fftCalculator *fourier.FFT
	fftSize       int
	sampleRate    float64
	transport     transport.Transport
	workspace     spectrumWorkspace
}

var _ transport.SpectrumProvider = (*Spectrum)(nil)

// NewSpectrum creates a spectrum tap. fftSize must be a power of 2; buffers
// shorter than fftSize are zero-padded, longer ones truncated.
func NewSpectrum(fftSize int, sampleRate float64, windowType WindowFunc, tr transport.Transport) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if tr == nil {
		tr = transport.NewLoggingTransport()
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	// FFT output size for real input is N/2 + 1 complex values.
	magnitudeSize := fftSize/2 + 1

	return &Spectrum{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		transport:     tr,
		workspace: spectrumWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, magnitudeSize),
			magnitude: make([]float64, magnitudeSize),
			window:    windowCoeffs,
		},
	}, nil
}

// Tap is the graph.TapFunc for this consumer: window, FFT, magnitudes, send.
func (s *Spectrum) Tap(buf *graph.Buffer, when graph.Time) {
	s.workspace.mu.Lock()

	// Normalization factor for int32 to the float64 range [-1.0, 1.0).
	const normFactor = 1.0 / float64(0x80000000)

	// Interleaved input is reduced to mono by taking channel 0 of each frame.
	step := buf.Format.NumChannels
	if step < 1 {
		step = 1
	}
	inputLen := len(buf.Data)
	for i := range s.fftSize {
		if idx := i * step; idx < inputLen {
			s.workspace.input[i] = float64(buf.Data[idx]) * normFactor * s.workspace.window[i]
		} else {
			s.workspace.input[i] = 0 // Zero-padding.
		}
	}

	s.fftCalculator.Coefficients(s.workspace.fftOutput, s.workspace.input)

	for i, c := range s.workspace.fftOutput {
		s.workspace.magnitude[i] = cmplx.Abs(c)
	}

	s.workspace.mu.Unlock()

	_ = s.transport.Send(s.Magnitudes())
}

// Magnitudes returns a copy of the latest magnitude spectrum. Allocates on
// every call; performance-critical readers should use MagnitudesInto.
func (s *Spectrum) Magnitudes() []float64 {
	s.workspace.mu.RLock()
	defer s.workspace.mu.RUnlock()

	magCopy := make([]float64, len(s.workspace.magnitude))
	copy(magCopy, s.workspace.magnitude)
	return magCopy
}

// MagnitudesInto copies the latest magnitude spectrum into dest without
// allocating. dest must have length FFTSize()/2 + 1.
func (s *Spectrum) MagnitudesInto(dest []float64) error {
	s.workspace.mu.RLock()
	defer s.workspace.mu.RUnlock()

	if len(dest) != len(s.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d",
			len(dest), len(s.workspace.magnitude))
	}

	copy(dest, s.workspace.magnitude)
	return nil
}

// FrequencyForBin returns the center frequency (Hz) for a given bin index.
func (s *Spectrum) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(s.workspace.fftOutput) {
		return 0.0
	}
	return float64(binIndex) * (s.sampleRate / float64(s.fftSize))
}

// FFTSize returns the configured FFT size.
func (s *Spectrum) FFTSize() int { return s.fftSize }

// SampleRate returns the configured sample rate (Hz).
func (s *Spectrum) SampleRate() float64 { return s.sampleRate }

// Close releases the transport.
func (s *Spectrum) Close() error {
	return s.transport.Close()
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc.
// Returns Hann and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window's coefficients.
// The slice is seeded with 1.0 first because the window functions multiply
// in place.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
}
