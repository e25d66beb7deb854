package transport

// Transport defines a generic interface for sending processed tap data.
// Implementations should be thread-safe and must not block the caller for
// long; taps call Send from paths close to the real-time audio callback.
type Transport interface {
	Send(data any) error
	Close() error
}

// SpectrumProvider is implemented by taps that produce FFT magnitude
// spectra. It decouples publishers (UDP, websocket) from the concrete
// spectrum tap.
type SpectrumProvider interface {
	// MagnitudesInto copies the latest magnitude spectrum into dest, which
	// must have length FFTSize()/2 + 1.
	MagnitudesInto(dest []float64) error

	// FrequencyForBin returns the center frequency (Hz) for a bin index.
	FrequencyForBin(binIndex int) float64

	FFTSize() int
	SampleRate() float64
}

// LevelProvider is implemented by taps that track a signal level, such as
// the peak meter. Levels are normalized to 0.0-1.0.
type LevelProvider interface {
	Level() float64
}
