// Package beep plays short audio cues for recording and processing events.
package beep

import (
	"math"
	"sync/atomic"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

type Cue int

const (
	CueStart Cue = iota // recording started
	CueStop             // recording stopped, processing begins
	CueDone             // summary copied
	CueError
)

const sampleRate = 44100

type tone struct {
	freq     float64
	duration float64
	volume   float64
	decay    float64
}

var cues = map[Cue][]tone{
	CueStart: {{freq: 1200, duration: 0.2, volume: 0.5, decay: 60}},
	CueStop:  {{freq: 900, duration: 0.2, volume: 0.5, decay: 40}},
	CueDone:  {{freq: 880, duration: 0.08, volume: 0.4, decay: 30}, {freq: 1320, duration: 0.2, volume: 0.4, decay: 30}},
	CueError: {{freq: 350, duration: 0.08, volume: 0.6, decay: 30}, {freq: 350, duration: 0.2, volume: 0.6, decay: 30}},
}

const gapSeconds = 0.05

// Samples renders a cue as 16-bit mono PCM at 44.1 kHz.
func Samples(c Cue) []int16 {
	tones := cues[c]
	var out []int16
	for i, t := range tones {
		if i > 0 {
			out = append(out, make([]int16, int(sampleRate*gapSeconds))...)
		}
		out = append(out, generateTick(t)...)
	}
	return out
}

func generateTick(t tone) []int16 {
	n := int(float64(sampleRate) * t.duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		ts := float64(i) / float64(sampleRate)
		envelope := math.Exp(-ts * t.decay)
		samples[i] = int16(math.Sin(2*math.Pi*t.freq*ts) * 32767 * t.volume * envelope)
	}
	return samples
}

// Play starts the cue in the background. It never blocks.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	go play(Samples(c))
}
