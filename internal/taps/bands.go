// SPDX-License-Identifier: MIT
package taps

import (
	"math"

	"audiotap/internal/transport"
)

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
	Energy float64 // Calculated energy for the current frame.
}

// BandEnergy summarizes a spectrum into named frequency bands. It is not a
// tap itself; it reads from a SpectrumProvider after the spectrum tap has
// processed a buffer, typically driven by the same publisher tick.
type BandEnergy struct {
	transport transport.Transport
	spectrum  transport.SpectrumProvider
	bands     []FrequencyBand
	mags      []float64 // Reusable magnitude buffer.
}

// NewBandEnergy creates a band energy summarizer over the given provider.
// The band split follows the usual sub/bass/mid/treble divisions, with the
// treble band capped at the Nyquist frequency.
func NewBandEnergy(tr transport.Transport, spectrum transport.SpectrumProvider) *BandEnergy {
	if tr == nil {
		tr = transport.NewLoggingTransport()
	}
	nyquist := spectrum.SampleRate() / 2
	bands := []FrequencyBand{
		{Name: "sub", LowHz: 20, HighHz: 60},
		{Name: "bass", LowHz: 60, HighHz: 250},
		{Name: "lowMid", LowHz: 250, HighHz: 500},
		{Name: "mid", LowHz: 500, HighHz: 2000},
		{Name: "highMid", LowHz: 2000, HighHz: 4000},
		{Name: "treble", LowHz: 4000, HighHz: nyquist},
	}
	return &BandEnergy{
		transport: tr,
		spectrum:  spectrum,
		bands:     bands,
		mags:      make([]float64, spectrum.FFTSize()/2+1),
	}
}

// Process recalculates band energies from the provider's latest spectrum and
// sends the result. Energy per band is the RMS of the bin magnitudes whose
// center frequency falls inside the band.
func (b *BandEnergy) Process() error {
	if err := b.spectrum.MagnitudesInto(b.mags); err != nil {
		return err
	}

	for i := range b.bands {
		band := &b.bands[i]
		var sum float64
		var bins int
		for bin, mag := range b.mags {
			freq := b.spectrum.FrequencyForBin(bin)
			if freq >= band.LowHz && freq < band.HighHz {
				sum += mag * mag
				bins++
			}
		}
		if bins > 0 {
			band.Energy = math.Sqrt(sum / float64(bins))
		} else {
			band.Energy = 0
		}
	}

	return b.transport.Send(b.Bands())
}

// Bands returns a copy of the current band values.
func (b *BandEnergy) Bands() []FrequencyBand {
	out := make([]FrequencyBand, len(b.bands))
	copy(out, b.bands)
	return out
}
