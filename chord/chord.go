// Package chord renders the tonic triad of a key as audio or MIDI so a
// listener can check an estimate by ear.
package chord

import (
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
)

// middleC is the MIDI note the triad root is placed at or above.
const middleC = 60

// fadeSeconds is the linear fade applied at both ends of synthesized audio.
const fadeSeconds = 0.01

// Notes returns the MIDI notes of the root-position tonic triad of key,
// rooted in the octave starting at middle C.
func Notes(key tonal.Key) [3]uint8 {
	root := middleC + int(key.Tonic)
	third := 4
	if key.Mode.Quality() == tonal.Minor {
		third = 3
	}
	return [3]uint8{uint8(root), uint8(root + third), uint8(root + 7)}
}

// Frequency returns the equal-tempered frequency of a MIDI note (A4 = 440 Hz).
func Frequency(note uint8) float64 {
	return 440 * math.Pow(2, (float64(note)-69)/12)
}

// Synthesize renders the triad of key as equal-amplitude sine tones. The
// peak absolute sample value does not exceed amplitude.
func Synthesize(key tonal.Key, seconds float64, sampleRate int, amplitude float64) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if seconds <= 0 {
		return nil, fmt.Errorf("duration must be positive: %v", seconds)
	}
	if !key.Tonic.Valid() {
		return nil, fmt.Errorf("invalid tonic %d", int(key.Tonic))
	}

	notes := Notes(key)
	out := make([]float64, int(seconds*float64(sampleRate)))
	gain := amplitude / float64(len(notes))
	for _, note := range notes {
		step := 2 * math.Pi * Frequency(note) / float64(sampleRate)
		for i := range out {
			out[i] += gain * math.Sin(step*float64(i))
		}
	}

	fade := min(len(out)/2, int(fadeSeconds*float64(sampleRate)))
	for i := range fade {
		g := float64(i) / float64(fade)
		out[i] *= g
		out[len(out)-1-i] *= g
	}
	return out, nil
}

// Sequence concatenates the triads of keys, each lasting secondsEach.
func Sequence(keys []tonal.Key, secondsEach float64, sampleRate int, amplitude float64) ([]float64, error) {
	var out []float64
	for _, key := range keys {
		part, err := Synthesize(key, secondsEach, sampleRate, amplitude)
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

// WriteMIDI writes a single-track standard MIDI file holding the triad of key
// as a whole note block at bpm.
func WriteMIDI(w io.Writer, key tonal.Key, bpm float64, bars int) error {
	if bpm <= 0 {
		return fmt.Errorf("tempo must be positive: %v", bpm)
	}
	if bars < 1 {
		bars = 1
	}
	if !key.Tonic.Valid() {
		return fmt.Errorf("invalid tonic %d", int(key.Tonic))
	}

	clock := smf.MetricTicks(480)
	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName(key.String()))
	track.Add(0, smf.MetaMeter(4, 4))
	track.Add(0, smf.MetaTempo(bpm))

	notes := Notes(key)
	for _, note := range notes {
		track.Add(0, midi.NoteOn(0, note, 100))
	}
	length := clock.Ticks4th() * 4 * uint32(bars)
	for i, note := range notes {
		delta := uint32(0)
		if i == 0 {
			delta = length
		}
		track.Add(delta, midi.NoteOff(0, note))
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = clock
	if err := s.Add(track); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write midi: %w", err)
	}
	return nil
}
