package tonal

import (
	"fmt"
	"strings"
)

// PitchClass is a note name independent of octave, 0 = C ... 11 = B.
type PitchClass int

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var naturals = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// String spells the pitch class with sharps.
func (p PitchClass) String() string {
	if p < 0 || p > 11 {
		return fmt.Sprintf("PitchClass(%d)", int(p))
	}
	return sharpNames[p]
}

// Valid reports whether p is in 0..11.
func (p PitchClass) Valid() bool {
	return p >= 0 && p <= 11
}

// Transpose moves p by semitones, wrapping around the octave.
func (p PitchClass) Transpose(semitones int) PitchClass {
	return PitchClass(((int(p)+semitones)%12 + 12) % 12)
}

// ParsePitchClass accepts a letter A-G (any case) followed by any number of
// sharps ('#', '♯') or flats ('b', '♭'), so "Db", "c#", "E#" and "Cb" all parse.
func ParsePitchClass(s string) (PitchClass, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty pitch class")
	}
	base, ok := naturals[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("invalid pitch class %q", s)
	}
	offset := 0
	for _, r := range s[1:] {
		switch r {
		case '#', '♯':
			offset++
		case 'b', '♭':
			offset--
		default:
			return 0, fmt.Errorf("invalid accidental in %q", s)
		}
	}
	return PitchClass(base).Transpose(offset), nil
}

func (p PitchClass) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid pitch class %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *PitchClass) UnmarshalText(text []byte) error {
	parsed, err := ParsePitchClass(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Mode is the scale quality of a key.
type Mode int

const (
	Major Mode = iota
	Minor
	Dorian
)

func (m Mode) String() string {
	switch m {
	case Major:
		return "major"
	case Minor:
		return "minor"
	case Dorian:
		return "dorian"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Title returns the capitalized mode name used in key labels.
func (m Mode) Title() string {
	switch m {
	case Major:
		return "Major"
	case Minor:
		return "Minor"
	case Dorian:
		return "Dorian"
	default:
		return m.String()
	}
}

// Quality collapses modal scales onto major or minor. Dorian has a minor third.
func (m Mode) Quality() Mode {
	if m == Dorian {
		return Minor
	}
	return m
}

// ParseMode accepts full names and the usual abbreviations
// ("maj", "min", "m", "dor"), case-insensitively except for the lone
// "M", which means major.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "M" {
		return Major, nil
	}
	switch strings.ToLower(s) {
	case "major", "maj", "ionian":
		return Major, nil
	case "minor", "min", "m", "aeolian":
		return Minor, nil
	case "dorian", "dor":
		return Dorian, nil
	default:
		return 0, fmt.Errorf("invalid mode %q", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	if m < Major || m > Dorian {
		return nil, fmt.Errorf("invalid mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Key is a tonic plus mode.
type Key struct {
	Tonic PitchClass `json:"tonic"`
	Mode  Mode       `json:"mode"`
}

// String renders the key as "F# Minor".
func (k Key) String() string {
	return k.Tonic.String() + " " + k.Mode.Title()
}

// ParseKey reads keys such as "F# minor", "Gb Major", "Am" or "C".
// A bare tonic means major.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Key{}, fmt.Errorf("empty key")
	}

	var tonicPart, modePart string
	if fields := strings.Fields(s); len(fields) == 2 {
		tonicPart, modePart = fields[0], fields[1]
	} else if len(fields) == 1 {
		// "F#m", "Dbmaj": the tonic is the letter plus its accidentals
		end := 1
	scan:
		for end < len(s) {
			switch {
			case s[end] == '#' || s[end] == 'b':
				end++
			case strings.HasPrefix(s[end:], "♯") || strings.HasPrefix(s[end:], "♭"):
				end += len("♯")
			default:
				break scan
			}
		}
		tonicPart, modePart = s[:end], s[end:]
	} else {
		return Key{}, fmt.Errorf("invalid key %q", s)
	}

	tonic, err := ParsePitchClass(tonicPart)
	if err != nil {
		return Key{}, err
	}
	mode := Major
	if modePart != "" {
		if mode, err = ParseMode(modePart); err != nil {
			return Key{}, err
		}
	}
	return Key{Tonic: tonic, Mode: mode}, nil
}

// Relative returns the relative major or minor sharing the key signature.
// Dorian is treated as its minor quality.
func (k Key) Relative() Key {
	if k.Mode.Quality() == Major {
		return Key{Tonic: k.Tonic.Transpose(-3), Mode: Minor}
	}
	return Key{Tonic: k.Tonic.Transpose(3), Mode: Major}
}

// Parallel returns the key with the same tonic and opposite quality.
func (k Key) Parallel() Key {
	if k.Mode.Quality() == Major {
		return Key{Tonic: k.Tonic, Mode: Minor}
	}
	return Key{Tonic: k.Tonic, Mode: Major}
}

// Dominant returns the key a fifth above.
func (k Key) Dominant() Key {
	return Key{Tonic: k.Tonic.Transpose(7), Mode: k.Mode}
}

// Subdominant returns the key a fifth below.
func (k Key) Subdominant() Key {
	return Key{Tonic: k.Tonic.Transpose(-7), Mode: k.Mode}
}

// IsCompatible reports whether other is the same, relative, parallel,
// dominant or subdominant key.
func (k Key) IsCompatible(other Key) bool {
	switch other {
	case k, k.Relative(), k.Parallel(), k.Dominant(), k.Subdominant():
		return true
	}
	return false
}
