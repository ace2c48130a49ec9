package keyfinder

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/chroma"
	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
)

// AggregateOptions tunes the track-level decision.
type AggregateOptions struct {
	// ModulationThreshold is the share of segments the runner-up key must
	// exceed to be reported as a modulation.
	ModulationThreshold float64
	// TopCandidates is how many ranked synthesis keys to keep.
	TopCandidates int
}

// DefaultAggregateOptions matches config.DefaultConfig.
func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{ModulationThreshold: 0.20, TopCandidates: 3}
}

// voteWeight converts a correlation score to an integer vote.
func voteWeight(score float64) int {
	return max(0, int(math.Round(score*100)))
}

type tally struct {
	key   tonal.Key
	count int
	votes int
}

// Aggregate combines per-segment decisions into a track estimate. Segment
// Votes and Camelot fields are filled in place.
func Aggregate(segments []SegmentResult, bank *tonal.ProfileBank, opts AggregateOptions) (*KeyEstimate, error) {
	if len(segments) == 0 {
		return nil, ErrNoAnalyzableAudio
	}
	if bank == nil {
		bank = tonal.DefaultProfileBank()
	}

	// tallies in order of first appearance
	var tallies []*tally
	byKey := make(map[tonal.Key]*tally)
	totalVotes := 0
	for i := range segments {
		seg := &segments[i]
		seg.Votes = voteWeight(seg.Score)
		seg.Camelot = seg.Key.Camelot()
		totalVotes += seg.Votes

		t, ok := byKey[seg.Key]
		if !ok {
			t = &tally{key: seg.Key}
			byKey[seg.Key] = t
			tallies = append(tallies, t)
		}
		t.count++
		t.votes += seg.Votes
	}

	dominant := tallies[0]
	for _, t := range tallies[1:] {
		if t.votes > dominant.votes {
			dominant = t
		}
	}

	est := &KeyEstimate{
		DominantKey:  dominant.key,
		CamelotCode:  dominant.key.Camelot(),
		Purity:       100 * float64(dominant.count) / float64(len(segments)),
		SegmentCount: len(segments),
		Segments:     segments,
	}
	if totalVotes > 0 {
		est.DominantConfidence = 100 * float64(dominant.votes) / float64(totalVotes)
	}

	var runnerUp *tally
	for _, t := range tallies {
		if t == dominant {
			continue
		}
		if runnerUp == nil || t.count > runnerUp.count ||
			(t.count == runnerUp.count && t.votes > runnerUp.votes) {
			runnerUp = t
		}
	}
	if runnerUp != nil && float64(runnerUp.count)/float64(len(segments)) > opts.ModulationThreshold {
		secondary := runnerUp.key
		est.ModulationDetected = true
		est.SecondaryKey = &secondary
		est.SecondaryCamelot = secondary.Camelot()
	}

	chromas := make([]chroma.Vector, len(segments))
	for i, seg := range segments {
		chromas[i] = seg.Chroma
	}
	est.SynthesisChroma = chroma.MeanVector(chromas)

	synthesis, err := tonal.SolveKey(est.SynthesisChroma.Slice(), bank)
	if err != nil {
		return nil, fmt.Errorf("synthesis match: %w", err)
	}
	est.SynthesisKey = synthesis.Key
	est.SynthesisConfidence = common.Clamp(synthesis.Score*100, 0, 100)

	if opts.TopCandidates > 0 {
		ranked, err := tonal.RankKeys(est.SynthesisChroma.Slice(), bank)
		if err != nil {
			return nil, fmt.Errorf("synthesis ranking: %w", err)
		}
		est.Candidates = ranked[:min(opts.TopCandidates, len(ranked))]
	}

	recommend(est)
	return est, nil
}

// recommend picks the most confident of the dominant key, the synthesis key
// and the best single segment. Ties keep that order.
func recommend(est *KeyEstimate) {
	est.RecommendedKey = est.DominantKey
	est.RecommendedSource = SourceDominant
	est.RecommendedConfidence = est.DominantConfidence

	if est.SynthesisConfidence > est.RecommendedConfidence {
		est.RecommendedKey = est.SynthesisKey
		est.RecommendedSource = SourceSynthesis
		est.RecommendedConfidence = est.SynthesisConfidence
	}

	best := -1
	for i, seg := range est.Segments {
		if best < 0 || seg.Score > est.Segments[best].Score {
			best = i
		}
	}
	if best >= 0 {
		conf := common.Clamp(est.Segments[best].Score*100, 0, 100)
		if conf > est.RecommendedConfidence {
			est.RecommendedKey = est.Segments[best].Key
			est.RecommendedSource = SourceSegment
			est.RecommendedConfidence = conf
		}
	}
}
