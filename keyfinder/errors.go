package keyfinder

import (
	"errors"

	"github.com/RyanBlaney/sonido-clave/algorithms/chroma"
	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
)

var (
	// ErrInsufficientSignal marks a segment too quiet to analyze. Segments
	// failing with it are skipped.
	ErrInsufficientSignal = chroma.ErrInsufficientSignal

	// ErrInvalidChroma marks a malformed chroma vector. Segments failing with
	// it are skipped.
	ErrInvalidChroma = tonal.ErrInvalidChroma

	// ErrNoAnalyzableAudio is returned when a track yields no usable segment.
	ErrNoAnalyzableAudio = errors.New("no analyzable audio")
)
