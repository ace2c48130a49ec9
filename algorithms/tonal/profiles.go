package tonal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProfile is returned for profile family names that are not registered.
var ErrUnknownProfile = errors.New("unknown profile family")

// ProfileFamily names a set of key profiles.
type ProfileFamily string

const (
	Krumhansl  ProfileFamily = "krumhansl"
	Temperley  ProfileFamily = "temperley"
	Bellman    ProfileFamily = "bellman"
	Shaath     ProfileFamily = "shaath"
	EDMA       ProfileFamily = "edma"
	Diatonic   ProfileFamily = "diatonic"
	TonicTriad ProfileFamily = "triad"
)

// ToneProfile is the expected salience of each scale degree for one mode,
// index 0 = tonic.
type ToneProfile struct {
	Family  ProfileFamily
	Mode    Mode
	Weights [12]float64
}

type profileTable struct {
	description string
	major       [12]float64
	minor       [12]float64
	dorian      *[12]float64
}

// dorianFrom swaps the minor sixth and major sixth weights of a minor profile.
func dorianFrom(minor [12]float64) *[12]float64 {
	d := minor
	d[8], d[9] = minor[9], minor[8]
	return &d
}

var familyOrder = []ProfileFamily{Krumhansl, Temperley, Bellman, Shaath, EDMA, Diatonic, TonicTriad}

var profileTables = map[ProfileFamily]profileTable{
	Krumhansl: {
		description: "Krumhansl-Kessler probe-tone ratings",
		major:       [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88},
		minor:       [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17},
	},
	Temperley: {
		description: "Temperley corpus-derived weights",
		major:       [12]float64{5.0, 2.0, 3.5, 2.0, 4.5, 4.0, 2.0, 4.5, 2.0, 3.5, 1.5, 4.0},
		minor:       [12]float64{5.0, 2.0, 3.5, 4.5, 2.0, 4.0, 2.0, 4.5, 3.5, 2.0, 1.5, 4.0},
	},
	Bellman: {
		description: "Bellman-Budge chord-frequency profiles",
		major:       [12]float64{16.80, 0.86, 12.95, 1.41, 13.49, 11.93, 1.25, 20.28, 1.80, 8.04, 0.62, 10.57},
		minor:       [12]float64{18.16, 0.69, 12.99, 13.34, 1.07, 11.15, 1.38, 21.07, 7.49, 1.53, 0.92, 10.21},
	},
	Shaath: {
		description: "Sha'ath profiles tuned for electronic music",
		major:       [12]float64{6.6, 2.0, 3.5, 2.3, 4.6, 4.0, 2.5, 5.2, 2.4, 3.7, 2.3, 3.4},
		minor:       [12]float64{6.5, 2.7, 3.5, 5.4, 2.6, 3.5, 2.5, 4.7, 4.0, 2.7, 3.4, 3.2},
	},
	EDMA: {
		description: "Faraldo EDM-A profiles",
		major:       [12]float64{17.7661, 0.145624, 14.9265, 0.160186, 19.8049, 11.3587, 0.291248, 22.062, 0.145624, 8.15494, 0.232998, 4.95122},
		minor:       [12]float64{18.2648, 0.737619, 14.0499, 16.8599, 0.702494, 14.4362, 0.702494, 18.6161, 4.56621, 1.93186, 7.37619, 1.75623},
	},
	Diatonic: {
		description: "flat diatonic scale membership",
		major:       [12]float64{5.0, 0.0, 3.0, 0.0, 4.0, 3.5, 0.0, 4.5, 0.0, 3.0, 0.0, 2.0},
		minor:       [12]float64{5.0, 0.0, 3.0, 3.5, 0.0, 3.5, 0.0, 4.5, 3.0, 0.0, 2.0, 0.0},
	},
	TonicTriad: {
		description: "tonic triad only",
		major:       [12]float64{5.0, 0.0, 0.0, 0.0, 3.0, 0.0, 0.0, 4.0, 0.0, 0.0, 0.0, 0.0},
		minor:       [12]float64{5.0, 0.0, 0.0, 3.0, 0.0, 0.0, 0.0, 4.0, 0.0, 0.0, 0.0, 0.0},
	},
}

func init() {
	for _, family := range []ProfileFamily{Krumhansl, Temperley} {
		table := profileTables[family]
		table.dorian = dorianFrom(table.minor)
		profileTables[family] = table
	}
}

// Families lists every registered family in declaration order.
func Families() []ProfileFamily {
	return append([]ProfileFamily(nil), familyOrder...)
}

// ParseProfileFamily resolves a case-insensitive family name. "bgate" is
// accepted as an alias of bellman.
func ParseProfileFamily(name string) (ProfileFamily, error) {
	family := ProfileFamily(strings.ToLower(strings.TrimSpace(name)))
	if family == "bgate" {
		family = Bellman
	}
	if _, ok := profileTables[family]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return family, nil
}

// Description returns a one-line summary of the family.
func (f ProfileFamily) Description() string {
	return profileTables[f].description
}

// Profile returns the family's weights for mode. ok is false when the family
// has no table for that mode.
func (f ProfileFamily) Profile(mode Mode) (ToneProfile, bool) {
	table, found := profileTables[f]
	if !found {
		return ToneProfile{}, false
	}
	p := ToneProfile{Family: f, Mode: mode}
	switch mode {
	case Major:
		p.Weights = table.major
	case Minor:
		p.Weights = table.minor
	case Dorian:
		if table.dorian == nil {
			return ToneProfile{}, false
		}
		p.Weights = *table.dorian
	default:
		return ToneProfile{}, false
	}
	return p, true
}

// candidate is one rotated profile the matcher scores.
type candidate struct {
	key     Key
	family  ProfileFamily
	weights []float64
}

// ProfileBank is an ordered, immutable set of profiles with all twelve
// rotations precomputed. Iteration order is family (as given), then mode
// (major, minor, dorian), then tonic C..B.
type ProfileBank struct {
	families   []ProfileFamily
	candidates []candidate
}

// NewProfileBank builds a bank over families. With modal set, families that
// define a dorian profile contribute it as a third mode.
func NewProfileBank(families []ProfileFamily, modal bool) (*ProfileBank, error) {
	if len(families) == 0 {
		return nil, fmt.Errorf("%w: no families given", ErrUnknownProfile)
	}

	bank := &ProfileBank{}
	seen := make(map[ProfileFamily]bool)
	for _, family := range families {
		if _, ok := profileTables[family]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, family)
		}
		if seen[family] {
			continue
		}
		seen[family] = true
		bank.families = append(bank.families, family)

		modes := []Mode{Major, Minor}
		if modal {
			modes = append(modes, Dorian)
		}
		for _, mode := range modes {
			profile, ok := family.Profile(mode)
			if !ok {
				continue
			}
			for tonic := range 12 {
				bank.candidates = append(bank.candidates, candidate{
					key:     Key{Tonic: PitchClass(tonic), Mode: mode},
					family:  family,
					weights: rotate(profile.Weights, tonic),
				})
			}
		}
	}
	return bank, nil
}

// DefaultProfileBank returns the Krumhansl major/minor bank.
func DefaultProfileBank() *ProfileBank {
	bank, err := NewProfileBank([]ProfileFamily{Krumhansl}, false)
	if err != nil {
		panic(err)
	}
	return bank
}

// Families returns the bank's families in iteration order.
func (b *ProfileBank) Families() []ProfileFamily {
	return append([]ProfileFamily(nil), b.families...)
}

// Size returns the number of rotated profiles scored per chroma vector.
func (b *ProfileBank) Size() int {
	return len(b.candidates)
}

// rotate moves the tonic weight to index tonic: out[j] = weights[(j-tonic) mod 12].
func rotate(weights [12]float64, tonic int) []float64 {
	out := make([]float64, 12)
	for j := range 12 {
		out[j] = weights[(j-tonic+12)%12]
	}
	return out
}
