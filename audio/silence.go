package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"voicenote/encoder"
)

const (
	silenceWarnTicks = 8 // one tick per second
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)

	levelFrameMs    = 20
	levelFrameBytes = encoder.SampleRate * levelFrameMs / 1000 * 2 // 640 bytes
	speechRMS       = 500.0
)

type SilenceEvent int

const (
	SilenceNone   SilenceEvent = iota
	SilenceWarn                // no voice detected
	SilenceClear               // speech resumed after warning
	SilenceRepeat              // still silent, repeated every warn window
)

func (e SilenceEvent) String() string {
	switch e {
	case SilenceWarn:
		return "warn"
	case SilenceClear:
		return "clear"
	case SilenceRepeat:
		return "repeat"
	}
	return "none"
}

// SilenceMonitor turns per-tick speech flags into warnings over a sliding
// window.
type SilenceMonitor struct {
	window   []bool
	ticks    int
	warned   bool
	lastBeep int
}

func NewSilenceMonitor() *SilenceMonitor {
	return &SilenceMonitor{window: make([]bool, silenceWarnTicks)}
}

func (m *SilenceMonitor) ratio() float64 {
	n := min(m.ticks, len(m.window))
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := range n {
		if m.window[(m.ticks-1-i)%len(m.window)] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *SilenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	m.window[m.ticks%len(m.window)] = hasSpeech
	m.ticks++

	r := m.ratio()
	switch {
	case !m.warned && m.ticks >= silenceWarnTicks && r < speechMinRatio:
		m.warned = true
		m.lastBeep = m.ticks
		return SilenceWarn
	case m.warned && r >= speechClearRatio:
		m.warned = false
		return SilenceClear
	case m.warned && m.ticks-m.lastBeep >= silenceWarnTicks:
		m.lastBeep = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}

// speechDetector counts voiced 20ms frames by RMS energy.
type speechDetector struct {
	mu           sync.Mutex
	buf          []byte
	totalFrames  int
	speechFrames int
	tickTotal    int
	tickSpeech   int
}

func (d *speechDetector) Process(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf = append(d.buf, data...)
	for len(d.buf) >= levelFrameBytes {
		frame := d.buf[:levelFrameBytes]
		d.buf = d.buf[levelFrameBytes:]
		d.totalFrames++
		if frameRMS(frame) >= speechRMS {
			d.speechFrames++
		}
	}
}

// HasSpeechTick reports whether enough frames since the previous call were
// voiced.
func (d *speechDetector) HasSpeechTick() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.totalFrames - d.tickTotal
	s := d.speechFrames - d.tickSpeech
	d.tickTotal, d.tickSpeech = d.totalFrames, d.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechMinRatio
}

func (d *speechDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = d.buf[:0]
	d.totalFrames, d.speechFrames = 0, 0
	d.tickTotal, d.tickSpeech = 0, 0
}

func frameRMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
