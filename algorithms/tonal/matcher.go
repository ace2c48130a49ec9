package tonal

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/stats"
)

// ErrInvalidChroma is returned when a chroma vector is not 12 finite values.
var ErrInvalidChroma = errors.New("invalid chroma vector")

// Hypothesis is one scored key candidate.
type Hypothesis struct {
	Key    Key           `json:"key"`
	Family ProfileFamily `json:"profile"`
	Score  float64       `json:"score"`
}

func (h Hypothesis) String() string {
	return fmt.Sprintf("%s (%s, r=%.3f)", h.Key, h.Family, h.Score)
}

func prepare(chroma []float64) ([]float64, error) {
	if len(chroma) != 12 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidChroma, len(chroma))
	}
	if !common.IsFinite(chroma) {
		return nil, fmt.Errorf("%w: non-finite value", ErrInvalidChroma)
	}
	return common.MinMaxNormalize(chroma), nil
}

// SolveKey returns the best-correlated key in bank. Ties keep the first
// candidate in bank order. A nil bank means DefaultProfileBank.
func SolveKey(chroma []float64, bank *ProfileBank) (Hypothesis, error) {
	normalized, err := prepare(chroma)
	if err != nil {
		return Hypothesis{}, err
	}
	if bank == nil {
		bank = DefaultProfileBank()
	}

	best := Hypothesis{Score: -2}
	for _, c := range bank.candidates {
		score := stats.PearsonCorrelation(normalized, c.weights)
		if score > best.Score {
			best = Hypothesis{Key: c.key, Family: c.family, Score: score}
		}
	}
	return best, nil
}

// RankKeys scores every key in bank and returns the distinct keys sorted by
// their best score, descending. Each key appears once, with the family that
// scored it highest.
func RankKeys(chroma []float64, bank *ProfileBank) ([]Hypothesis, error) {
	normalized, err := prepare(chroma)
	if err != nil {
		return nil, err
	}
	if bank == nil {
		bank = DefaultProfileBank()
	}

	index := make(map[Key]int)
	var ranked []Hypothesis
	for _, c := range bank.candidates {
		score := stats.PearsonCorrelation(normalized, c.weights)
		if i, ok := index[c.key]; ok {
			if score > ranked[i].Score {
				ranked[i] = Hypothesis{Key: c.key, Family: c.family, Score: score}
			}
			continue
		}
		index[c.key] = len(ranked)
		ranked = append(ranked, Hypothesis{Key: c.key, Family: c.family, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}
