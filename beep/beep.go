// Package beep plays short feedback tones when a recording starts, stops or
// a transcription fails.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

const sampleRate = 44100

// Tone is a decaying sine burst, optionally repeated with a silent gap.
type Tone struct {
	Freq     float64
	Duration float64
	Volume   float64
	Decay    float64
	Repeat   int
	Gap      float64
}

var (
	// Start: high pitch, short
	StartTone = Tone{Freq: 1200, Duration: 0.2, Volume: 0.5, Decay: 60}
	// Stop: medium pitch, slightly longer tail
	StopTone = Tone{Freq: 900, Duration: 0.2, Volume: 0.5, Decay: 40}
	// Alert: low pitch double beep
	AlertTone = Tone{Freq: 350, Duration: 0.08, Volume: 0.6, Decay: 30, Repeat: 2, Gap: 0.05}
)

var (
	disabled atomic.Bool
	cache    sync.Map // Tone -> []int16

	// play is swapped out in tests.
	play = playSamples
)

func Disable() { disabled.Store(true) }
func Enable()  { disabled.Store(false) }

// Synth renders t as mono 16-bit samples at rate.
func Synth(t Tone, rate int) []int16 {
	n := int(float64(rate) * t.Duration)
	burst := make([]int16, n)
	for i := range n {
		s := float64(i) / float64(rate)
		envelope := math.Exp(-s * t.Decay)
		burst[i] = int16(math.Sin(2*math.Pi*t.Freq*s) * 32767 * t.Volume * envelope)
	}
	if t.Repeat <= 1 {
		return burst
	}
	gap := make([]int16, int(float64(rate)*t.Gap))
	out := make([]int16, 0, t.Repeat*len(burst)+(t.Repeat-1)*len(gap))
	for i := range t.Repeat {
		if i > 0 {
			out = append(out, gap...)
		}
		out = append(out, burst...)
	}
	return out
}

func samples(t Tone) []int16 {
	if v, ok := cache.Load(t); ok {
		return v.([]int16)
	}
	s := Synth(t, sampleRate)
	cache.Store(t, s)
	return s
}

// Play renders t in the background. It never blocks and ignores playback
// errors.
func Play(t Tone) {
	if disabled.Load() {
		return
	}
	go play(samples(t))
}

func PlayStart() { Play(StartTone) }
func PlayStop()  { Play(StopTone) }
func PlayAlert() { Play(AlertTone) }
