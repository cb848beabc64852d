package beep

import (
	"testing"
	"time"
)

func TestSynthLength(t *testing.T) {
	for _, tt := range []struct {
		name string
		tone Tone
		want int
	}{
		{"start", StartTone, 8820},
		{"stop", StopTone, 8820},
		{"alert", AlertTone, 2*3528 + 2205},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Synth(tt.tone, sampleRate)); got != tt.want {
				t.Errorf("len = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSynthDecays(t *testing.T) {
	s := Synth(StartTone, sampleRate)
	peak := func(from, to int) int16 {
		var p int16
		for _, v := range s[from:to] {
			p = max(p, v, -v)
		}
		return p
	}
	if head, tail := peak(0, 500), peak(len(s)-500, len(s)); tail >= head {
		t.Errorf("tail peak %d should be below head peak %d", tail, head)
	}
}

func TestAlertHasGap(t *testing.T) {
	s := Synth(AlertTone, sampleRate)
	burst := int(sampleRate * AlertTone.Duration)
	for i, v := range s[burst : burst+int(sampleRate*AlertTone.Gap)] {
		if v != 0 {
			t.Fatalf("gap sample %d = %d, want silence", i, v)
		}
	}
}

func TestDisable(t *testing.T) {
	played := make(chan int, 4)
	orig := play
	play = func(s []int16) { played <- len(s) }
	t.Cleanup(func() { play = orig; Enable() })

	PlayStart()
	select {
	case n := <-played:
		if n == 0 {
			t.Error("played empty buffer")
		}
	case <-time.After(time.Second):
		t.Fatal("tone not played")
	}

	Disable()
	PlayAlert()
	select {
	case <-played:
		t.Error("disabled beep still played")
	case <-time.After(50 * time.Millisecond):
	}
}
