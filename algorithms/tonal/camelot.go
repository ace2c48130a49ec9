package tonal

import (
	"fmt"
	"strconv"
	"strings"
)

// CamelotUnknown is returned for keys outside the wheel.
const CamelotUnknown = "??"

// Wheel positions indexed by tonic pitch class.
var (
	camelotMajor = [12]int{8, 3, 10, 5, 12, 7, 2, 9, 4, 11, 6, 1}
	camelotMinor = [12]int{5, 12, 7, 2, 9, 4, 11, 6, 1, 8, 3, 10}
)

// Camelot returns the wheel code, e.g. "8B" for C major and "8A" for A minor.
// Dorian keys take the code of their minor quality.
func (k Key) Camelot() string {
	if !k.Tonic.Valid() {
		return CamelotUnknown
	}
	switch k.Mode.Quality() {
	case Major:
		return strconv.Itoa(camelotMajor[k.Tonic]) + "B"
	case Minor:
		return strconv.Itoa(camelotMinor[k.Tonic]) + "A"
	default:
		return CamelotUnknown
	}
}

// ToCamelot maps a tonic name and mode name to a wheel code. Enharmonic
// spellings resolve to the same code. Unparseable input yields CamelotUnknown.
func ToCamelot(tonic, mode string) string {
	pc, err := ParsePitchClass(tonic)
	if err != nil {
		return CamelotUnknown
	}
	m, err := ParseMode(mode)
	if err != nil {
		return CamelotUnknown
	}
	return Key{Tonic: pc, Mode: m}.Camelot()
}

// ParseCamelot is the inverse of Key.Camelot. It always returns a major or
// minor key.
func ParseCamelot(code string) (Key, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 2 {
		return Key{}, fmt.Errorf("invalid camelot code %q", code)
	}
	number, err := strconv.Atoi(code[:len(code)-1])
	if err != nil || number < 1 || number > 12 {
		return Key{}, fmt.Errorf("invalid camelot code %q", code)
	}

	var table *[12]int
	var mode Mode
	switch code[len(code)-1] {
	case 'B':
		table, mode = &camelotMajor, Major
	case 'A':
		table, mode = &camelotMinor, Minor
	default:
		return Key{}, fmt.Errorf("invalid camelot code %q", code)
	}
	for pc, n := range table {
		if n == number {
			return Key{Tonic: PitchClass(pc), Mode: mode}, nil
		}
	}
	return Key{}, fmt.Errorf("invalid camelot code %q", code)
}

// CamelotCompatible reports whether two codes mix harmonically: same code,
// same number with the other letter, or one step around the wheel with the
// same letter.
func CamelotCompatible(a, b string) bool {
	ka, err := ParseCamelot(a)
	if err != nil {
		return false
	}
	kb, err := ParseCamelot(b)
	if err != nil {
		return false
	}
	na, la := splitCamelot(ka.Camelot())
	nb, lb := splitCamelot(kb.Camelot())
	if na == nb {
		return true
	}
	if la != lb {
		return false
	}
	diff := (na - nb + 12) % 12
	return diff == 1 || diff == 11
}

func splitCamelot(code string) (int, byte) {
	n, _ := strconv.Atoi(code[:len(code)-1])
	return n, code[len(code)-1]
}
