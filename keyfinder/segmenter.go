package keyfinder

import (
	"errors"
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/temporal"
	"github.com/RyanBlaney/sonido-clave/keyfinder/config"
	"github.com/RyanBlaney/sonido-clave/logging"
)

// Segment is a half-open sample range [Start, End) of the track.
type Segment struct {
	Index int
	Start int
	End   int
}

// Len returns the segment length in samples.
func (s Segment) Len() int {
	return s.End - s.Start
}

// segmentPlan is the outcome of cutting a track into analysis windows.
type segmentPlan struct {
	strategy config.Segmentation
	segments []Segment
	tempo    float64
}

// timeSegments cuts numSamples into consecutive windows of length seconds.
// The trailing partial window is dropped. A track shorter than one window
// but at least minTrack seconds long becomes a single segment.
func timeSegments(numSamples, sampleRate int, length, minTrack float64) []Segment {
	if numSamples <= 0 || sampleRate <= 0 {
		return nil
	}
	windowLen := math.Round(length * float64(sampleRate))
	if !(windowLen > 0) {
		return nil
	}

	if windowLen > float64(numSamples) {
		if float64(numSamples)/float64(sampleRate) >= minTrack {
			return []Segment{{Index: 0, Start: 0, End: numSamples}}
		}
		return nil
	}

	window := int(windowLen)
	segments := make([]Segment, 0, numSamples/window)
	for start := 0; start+window <= numSamples; start += window {
		segments = append(segments, Segment{Index: len(segments), Start: start, End: start + window})
	}
	return segments
}

// beatSegments groups beatsPerSegment beats into one window. Audio before
// the first beat and after the last complete group is not analyzed.
func beatSegments(grid *temporal.BeatGrid, beatsPerSegment, numSamples int) []Segment {
	if grid == nil || beatsPerSegment < 1 {
		return nil
	}
	var segments []Segment
	for i := 0; i+beatsPerSegment < len(grid.Beats); i += beatsPerSegment {
		start, end := grid.Beats[i], min(grid.Beats[i+beatsPerSegment], numSamples)
		if end <= start {
			continue
		}
		segments = append(segments, Segment{Index: len(segments), Start: start, End: end})
	}
	return segments
}

// planSegments applies the configured strategy. Beat segmentation falls
// back to time windows when no tempo is found or the track holds fewer
// beats than one window needs.
func planSegments(waveform []float64, sampleRate int, cfg config.Config, tracker *temporal.BeatTracker, logger logging.Logger) (segmentPlan, error) {
	timePlan := segmentPlan{
		strategy: config.SegmentByTime,
		segments: timeSegments(len(waveform), sampleRate, cfg.SegmentLength, cfg.MinTrackLength),
	}
	if cfg.Segmentation != config.SegmentByBeats || tracker == nil {
		return timePlan, nil
	}

	grid, err := tracker.Track(waveform, sampleRate)
	if err != nil {
		if errors.Is(err, temporal.ErrNoTempo) {
			logger.Warn("No tempo found, using time segments", logging.Fields{
				"reason": err.Error(),
			})
			return timePlan, nil
		}
		return segmentPlan{}, err
	}

	segments := beatSegments(grid, cfg.BeatsPerSegment, len(waveform))
	if len(segments) == 0 {
		logger.Warn("Too few beats for one segment, using time segments", logging.Fields{
			"beats":             len(grid.Beats),
			"beats_per_segment": cfg.BeatsPerSegment,
		})
		timePlan.tempo = grid.BPM
		return timePlan, nil
	}

	logger.Debug("Beat grid", logging.Fields{
		"bpm":      grid.BPM,
		"beats":    len(grid.Beats),
		"strength": grid.Strength,
		"segments": len(segments),
	})
	return segmentPlan{strategy: config.SegmentByBeats, segments: segments, tempo: grid.BPM}, nil
}
