// Package audio carries the band-energy signal that modulates effect
// parameters. Capture and FFT happen elsewhere; this package only reduces
// a magnitude spectrum to bands and publishes the latest reading.
package audio

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrInputUnavailable is returned by a Source that cannot acquire its
// capture device.
var ErrInputUnavailable = errors.New("audio input unavailable")

// Signal is one reading of band energies, each in [0, 1]. The zero value
// means silence and is what kernels see when no audio is attached.
type Signal struct {
	Bass    float64 `json:"bass"`
	Mid     float64 `json:"mid"`
	High    float64 `json:"high"`
	Overall float64 `json:"overall"`
}

// Clamped returns s with every band limited to [0, 1].
func (s Signal) Clamped() Signal {
	return Signal{
		Bass:    unit(s.Bass),
		Mid:     unit(s.Mid),
		High:    unit(s.High),
		Overall: unit(s.Overall),
	}
}

func unit(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FromSpectrum reduces byte magnitudes (0-255 per bin, lowest frequency
// first) to bands: bass is the first tenth of the bins, mid runs to the
// half-way bin and high covers the rest. Overall is the mean of the three.
func FromSpectrum(bins []uint8) Signal {
	n := len(bins)
	bassEnd := n / 10
	midEnd := n / 2
	s := Signal{
		Bass: meanBand(bins[:bassEnd]),
		Mid:  meanBand(bins[bassEnd:midEnd]),
		High: meanBand(bins[midEnd:]),
	}
	s.Overall = (s.Bass + s.Mid + s.High) / 3
	return s
}

func meanBand(bins []uint8) float64 {
	if len(bins) == 0 {
		return 0
	}
	sum := 0
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins)) / 255
}

// Source is a live audio collaborator.
type Source interface {
	Start(ctx context.Context) error
	Stop()
	Latest() Signal
}

// Latch holds the most recent Signal. Reads never block writers.
type Latch struct {
	v atomic.Pointer[Signal]
}

// Publish stores a new reading.
func (l *Latch) Publish(s Signal) {
	s = s.Clamped()
	l.v.Store(&s)
}

// Latest returns the last published reading, or silence.
func (l *Latch) Latest() Signal {
	if p := l.v.Load(); p != nil {
		return *p
	}
	return Signal{}
}

// Reset returns the latch to silence.
func (l *Latch) Reset() {
	l.v.Store(nil)
}

var _ Source = (*Latch)(nil)

// Start lets the latch act as a Source fed by Publish, for analysers that
// run outside the process. The reading drops to silence when ctx ends.
func (l *Latch) Start(ctx context.Context) error {
	context.AfterFunc(ctx, l.Reset)
	return nil
}

// Stop returns the latch to silence.
func (l *Latch) Stop() { l.Reset() }
