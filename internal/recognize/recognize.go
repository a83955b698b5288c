// Package recognize is the single entry point of the chord recognition
// pipeline: features, scoring, and span decoding behind one call.
package recognize

import (
	"fmt"

	"github.com/chordwise/seville/internal/chord"
	"github.com/chordwise/seville/internal/decode"
	"github.com/chordwise/seville/internal/feature"
	"github.com/chordwise/seville/internal/music"
)

// DefaultPrecision quantizes note times to quarter-beat ticks.
const DefaultPrecision = 0.25

// Options tunes a recognition call. The zero value selects the defaults.
type Options struct {
	// Precision is the quantization grid in beats; 1/Precision must be
	// an integer. 0 means DefaultPrecision.
	Precision float64
	// MaxPrev overrides the decoder's span-length bound. 0 means
	// decode.DefaultMaxPrev.
	MaxPrev int
}

// Chords labels the score with beat-aligned chord spans. Drum tracks are
// excluded before feature extraction. A score with no playable notes
// yields an empty result and no error.
func Chords(score *music.Score, opts Options) ([]decode.Span, error) {
	precision := opts.Precision
	if precision == 0 {
		precision = DefaultPrecision
	}

	feats, err := feature.Extract(score.NonDrumTracks(), precision)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}

	dec := decode.New(chord.Default())
	if opts.MaxPrev > 0 {
		dec.MaxPrev = opts.MaxPrev
	}
	spans, err := dec.Decode(feats, score.TimeSignatures)
	if err != nil {
		return nil, fmt.Errorf("decode chords: %w", err)
	}
	return spans, nil
}
