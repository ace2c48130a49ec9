package chord

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
)

func TestNotes(t *testing.T) {
	tests := []struct {
		key  tonal.Key
		want [3]uint8
	}{
		{tonal.Key{Tonic: 0, Mode: tonal.Major}, [3]uint8{60, 64, 67}},
		{tonal.Key{Tonic: 9, Mode: tonal.Minor}, [3]uint8{69, 72, 76}},
		{tonal.Key{Tonic: 2, Mode: tonal.Dorian}, [3]uint8{62, 65, 69}},
		{tonal.Key{Tonic: 11, Mode: tonal.Major}, [3]uint8{71, 75, 78}},
	}
	for _, tt := range tests {
		if got := Notes(tt.key); got != tt.want {
			t.Errorf("Notes(%s) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestFrequency(t *testing.T) {
	if got := Frequency(69); got != 440 {
		t.Errorf("A4 = %v", got)
	}
	if got := Frequency(60); math.Abs(got-261.6256) > 1e-3 {
		t.Errorf("C4 = %v", got)
	}
}

func TestSynthesize(t *testing.T) {
	key := tonal.Key{Tonic: 0, Mode: tonal.Major}
	out, err := Synthesize(key, 2, 22050, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 44100 {
		t.Fatalf("len = %d, want 44100", len(out))
	}
	peak := 0.0
	for _, v := range out {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak > 0.6+1e-12 || peak < 0.3 {
		t.Errorf("peak = %v, want in (0.3, 0.6]", peak)
	}
	if out[0] != 0 {
		t.Errorf("first sample = %v, want 0 after fade-in", out[0])
	}

	if _, err := Synthesize(key, 0, 22050, 1); err == nil {
		t.Error("expected error for zero duration")
	}
	if _, err := Synthesize(key, 1, 0, 1); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := Synthesize(tonal.Key{Tonic: 12}, 1, 22050, 1); err == nil {
		t.Error("expected error for invalid tonic")
	}
}

func TestSequence(t *testing.T) {
	keys := []tonal.Key{{Tonic: 0, Mode: tonal.Major}, {Tonic: 9, Mode: tonal.Minor}}
	out, err := Sequence(keys, 1.5, 8000, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2*12000 {
		t.Errorf("len = %d, want %d", len(out), 2*12000)
	}
}

func TestWriteMIDIRoundTrip(t *testing.T) {
	key := tonal.Key{Tonic: 6, Mode: tonal.Minor}
	var buf bytes.Buffer
	if err := WriteMIDI(&buf, key, 120, 2); err != nil {
		t.Fatalf("WriteMIDI: %v", err)
	}

	var starts, ends []int
	var bpm float64
	smf.ReadTracksFrom(bytes.NewReader(buf.Bytes())).Do(func(ev smf.TrackEvent) {
		var ch, note, vel uint8
		if ev.Message.GetNoteStart(&ch, &note, &vel) {
			starts = append(starts, int(note))
		}
		if ev.Message.GetNoteEnd(&ch, &note) {
			ends = append(ends, int(note))
			// two 4/4 bars at 120 BPM
			if math.Abs(float64(ev.AbsMicroSeconds)/1e6-4) > 1e-3 {
				t.Errorf("note %d ends at %dus, want 4s", note, ev.AbsMicroSeconds)
			}
		}
		ev.Message.GetMetaTempo(&bpm)
	})

	sort.Ints(starts)
	sort.Ints(ends)
	want := []int{66, 69, 73}
	for i := range want {
		if i >= len(starts) || starts[i] != want[i] {
			t.Fatalf("note starts = %v, want %v", starts, want)
		}
		if i >= len(ends) || ends[i] != want[i] {
			t.Fatalf("note ends = %v, want %v", ends, want)
		}
	}
	if bpm != 120 {
		t.Errorf("tempo = %v, want 120", bpm)
	}

	if err := WriteMIDI(&buf, key, 0, 1); err == nil {
		t.Error("expected error for zero tempo")
	}
}
