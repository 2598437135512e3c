package backend

import (
	"math"

	"github.com/gopxl/beep/v2"
)

var _ beep.Streamer = (*eqStage)(nil)

// EQ configures the equalizer stage of the native render graph: a two-band
// shelving filter split at Crossover Hz. Gains are in dB; the zero value is
// flat and bypasses the filter entirely.
type EQ struct {
	LowDB     float64
	HighDB    float64
	Crossover float64 // Hz, defaults to 800
}

const defaultCrossoverHz = 800

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// eqStage applies the shelving gains using a one-pole crossover per channel.
type eqStage struct {
	s        beep.Streamer
	lowGain  float64
	highGain float64
	alpha    float64
	low      [2]float64 // low-pass state per channel
}

func newEQStage(s beep.Streamer, rate beep.SampleRate, eq EQ) beep.Streamer {
	if eq.LowDB == 0 && eq.HighDB == 0 {
		return s
	}
	crossover := eq.Crossover
	if crossover <= 0 {
		crossover = defaultCrossoverHz
	}
	return &eqStage{
		s:        s,
		lowGain:  dbToGain(eq.LowDB),
		highGain: dbToGain(eq.HighDB),
		alpha:    1 - math.Exp(-2*math.Pi*crossover/float64(rate)),
	}
}

// Stream implements beep.Streamer.
func (e *eqStage) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.s.Stream(samples)
	for i := range samples[:n] {
		for c := 0; c < 2; c++ {
			e.low[c] += e.alpha * (samples[i][c] - e.low[c])
			high := samples[i][c] - e.low[c]
			samples[i][c] = e.lowGain*e.low[c] + e.highGain*high
		}
	}
	return n, ok
}

// Err implements beep.Streamer.
func (e *eqStage) Err() error {
	return e.s.Err()
}
