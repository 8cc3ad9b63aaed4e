package beep

import "testing"

func TestSamplesLength(t *testing.T) {
	start := Samples(CueStart)
	if want := int(sampleRate * 0.2); len(start) != want {
		t.Errorf("start cue = %d samples, want %d", len(start), want)
	}

	done := Samples(CueDone)
	want := int(sampleRate*0.08) + int(sampleRate*gapSeconds) + int(sampleRate*0.2)
	if len(done) != want {
		t.Errorf("done cue = %d samples, want %d", len(done), want)
	}
}

func TestSamplesDecay(t *testing.T) {
	s := Samples(CueStop)
	peak := func(from, to int) int16 {
		var m int16
		for _, v := range s[from:to] {
			if v < 0 {
				v = -v
			}
			if v > m {
				m = v
			}
		}
		return m
	}
	head := peak(0, 500)
	tail := peak(len(s)-500, len(s))
	if head == 0 {
		t.Fatal("cue is silent")
	}
	if tail >= head {
		t.Errorf("tail peak %d not below head peak %d", tail, head)
	}
}

func TestUnknownCueIsSilent(t *testing.T) {
	if got := Samples(Cue(99)); len(got) != 0 {
		t.Errorf("unknown cue produced %d samples", len(got))
	}
}
