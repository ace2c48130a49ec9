package keyfinder

import (
	"github.com/RyanBlaney/sonido-clave/algorithms/chroma"
	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
)

// Sources of the recommended key.
const (
	SourceDominant  = "dominant"
	SourceSynthesis = "synthesis"
	SourceSegment   = "segment"
)

// SegmentResult is the key decision for one analysis window.
type SegmentResult struct {
	Index   int                 `json:"index"`
	Start   float64             `json:"start_s"`
	End     float64             `json:"end_s"`
	Key     tonal.Key           `json:"key"`
	Family  tonal.ProfileFamily `json:"profile"`
	Score   float64             `json:"score"`
	Votes   int                 `json:"votes"`
	Camelot string              `json:"camelot"`
	Chroma  chroma.Vector       `json:"chroma"`
}

// KeyEstimate is the result of analyzing one track. It is not modified
// after EstimateKey returns.
type KeyEstimate struct {
	DominantKey         tonal.Key  `json:"dominant_key"`
	DominantConfidence  float64    `json:"dominant_confidence"` // percent of weighted votes
	SynthesisKey        tonal.Key  `json:"synthesis_key"`
	SynthesisConfidence float64    `json:"synthesis_confidence"` // correlation as percent, clamped to [0, 100]
	Purity              float64    `json:"purity"`               // percent of segments agreeing with the dominant key
	ModulationDetected  bool       `json:"modulation_detected"`
	SecondaryKey        *tonal.Key `json:"secondary_key,omitempty"`
	CamelotCode         string     `json:"camelot_code"`

	SecondaryCamelot      string    `json:"secondary_camelot,omitempty"`
	RecommendedKey        tonal.Key `json:"recommended_key"`
	RecommendedSource     string    `json:"recommended_source"`
	RecommendedConfidence float64   `json:"recommended_confidence"`

	TuningOffset    float64            `json:"tuning_offset"` // semitones
	Tempo           float64            `json:"tempo_bpm,omitempty"`
	Segmentation    string             `json:"segmentation"`
	SegmentCount    int                `json:"segment_count"`
	SkippedSegments int                `json:"skipped_segments"`
	Duration        float64            `json:"duration_s"`
	Segments        []SegmentResult    `json:"segments"`
	Candidates      []tonal.Hypothesis `json:"candidates,omitempty"`
	SynthesisChroma chroma.Vector      `json:"synthesis_chroma"`
}

// Camelot returns the wheel code of the dominant key.
func (e *KeyEstimate) Camelot() string {
	return e.CamelotCode
}
