// Package decode picks the best chord labeling of a piece with a
// variable-span dynamic program over beat frames.
//
// Each candidate span of up to MaxPrev frames is scored as a whole
// (features summed over the span), floored so silent stretches stay
// representable, then rewarded for length and by the metrical weight of
// its first frame. A span may reach back across a downbeat by at most
// one frame.
package decode

import (
	"errors"
	"math"

	"github.com/chordwise/seville/internal/chord"
	"github.com/chordwise/seville/internal/feature"
	"github.com/chordwise/seville/internal/music"
	"github.com/chordwise/seville/internal/scoring"
)

// ErrInvalidMeter reports a time-signature numerator that is neither a
// multiple of 3 nor a power of two.
var ErrInvalidMeter = errors.New("decode: meter must be a multiple of 3 or a power of 2")

// DefaultMaxPrev bounds candidate span length in frames.
const DefaultMaxPrev = 8

const (
	// scoreFloor is the minimum per-span score; spans below it become
	// no-chord. Applied before the length bonus and metrical weight.
	scoreFloor = 0.2
	// lengthBonus rewards each frame a span extends beyond its first.
	lengthBonus = 0.7
)

// noChord is the decoder-internal sentinel for floored spans.
const noChord = -1

// Span is a maximal run of frames carrying one chord label. End is
// inclusive.
type Span struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Name    string `json:"name"`
	Pitches []int  `json:"pitch"`
}

// Decoder runs the span DP against a fixed catalog. Safe for concurrent
// use; all per-call state is local to Decode.
type Decoder struct {
	cat    *chord.Catalog
	scorer *scoring.Scorer

	// MaxPrev is the longest candidate span in frames.
	MaxPrev int
}

// New returns a decoder over the given catalog.
func New(cat *chord.Catalog) *Decoder {
	return &Decoder{cat: cat, scorer: scoring.New(cat), MaxPrev: DefaultMaxPrev}
}

// Decode labels every frame of the extracted features, returning
// contiguous non-overlapping spans covering [0, NFrames-1] in
// chronological order. Consecutive spans never share a name.
func (d *Decoder) Decode(f *feature.Features, sigs []music.TimeSignature) ([]Span, error) {
	n := f.NFrames
	if n == 0 {
		return nil, nil
	}
	weights, downbeat, err := meterGrid(n, sigs)
	if err != nil {
		return nil, err
	}

	// Prefix sums give the summed feature of any candidate span in O(12).
	cumChroma := prefixSums(f.Chroma, n)
	cumBass := prefixSums(f.Bass, n)

	negInf := float32(math.Inf(-1))
	best := make([]float32, n)
	choice := make([]int, n)
	prevEnd := make([]int, n)
	var spanChroma, spanBass [12]float32

	for i := 0; i < n; i++ {
		best[i] = negInf
		for j := 0; j < d.MaxPrev; j++ {
			start := i - j
			if start < 0 {
				break
			}
			for p := 0; p < 12; p++ {
				spanChroma[p] = cumChroma[(i+1)*12+p] - cumChroma[start*12+p]
				spanBass[p] = cumBass[(i+1)*12+p] - cumBass[start*12+p]
			}
			c, s := d.scorer.Best(spanChroma[:], spanBass[:])
			if s < scoreFloor {
				s = scoreFloor
				c = noChord
			}
			s += lengthBonus*float32(j) + weights[start]

			prev := float32(0)
			if start > 0 {
				prev = best[start-1]
			}
			if total := prev + s; total > best[i] {
				best[i] = total
				choice[i] = c
				prevEnd[i] = start - 1
			}
			// Stop extending once the frame after the span's start is a
			// downbeat: the longest span crossing a downbeat starts one
			// frame before it.
			if j > 0 && downbeat[start+1] {
				break
			}
		}
	}

	return d.reconstruct(n, choice, prevEnd), nil
}

// reconstruct walks the backpointers from the last frame, merging
// adjacent spans that carry the same label.
func (d *Decoder) reconstruct(n int, choice, prevEnd []int) []Span {
	var spans []Span
	for end := n - 1; end >= 0; {
		start := prevEnd[end] + 1
		c := choice[end]
		name := d.cat.Name(c)
		if len(spans) > 0 && spans[len(spans)-1].Name == name {
			spans[len(spans)-1].Start = start
		} else {
			var pitches []int
			if c >= 0 {
				pitches = d.cat.Templates[c].Pitches
			}
			spans = append(spans, Span{Start: start, End: end, Name: name, Pitches: pitches})
		}
		end = start - 1
	}
	for l, r := 0, len(spans)-1; l < r; l, r = l+1, r-1 {
		spans[l], spans[r] = spans[r], spans[l]
	}
	return spans
}

// prefixSums returns flat [ (n+1)*12 ] cumulative sums of a [n*12]
// feature matrix.
func prefixSums(m []float32, n int) []float32 {
	out := make([]float32, (n+1)*12)
	for i := 0; i < n; i++ {
		for p := 0; p < 12; p++ {
			out[(i+1)*12+p] = out[i*12+p] + m[i*12+p]
		}
	}
	return out
}

// meterGrid derives per-frame metrical weights and downbeat flags from
// the time-signature list. An empty list defaults to 4/4 from frame 0;
// otherwise the first signature is forced to start there.
func meterGrid(n int, sigs []music.TimeSignature) ([]float32, []bool, error) {
	if len(sigs) == 0 {
		sigs = []music.TimeSignature{{TimeBeat: 0, Beats: 4}}
	}

	weights := make([]float32, n+1)
	downbeat := make([]bool, n+1)
	for k := range sigs {
		start := sigs[k].TimeBeat
		if k == 0 {
			start = 0
		}
		end := n
		if k+1 < len(sigs) && sigs[k+1].TimeBeat < n {
			end = sigs[k+1].TimeBeat
		}
		if start >= end {
			continue
		}
		beats := sigs[k].Beats
		switch {
		case beats > 0 && beats%3 == 0:
			for i := start; i < end; i++ {
				if r := i - start; r%3 == 0 {
					downbeat[i] = true
				} else {
					weights[i] = 0.35
				}
			}
		case beats > 0 && beats&(beats-1) == 0:
			for i := start; i < end; i++ {
				r := i - start
				if r%4 == 0 {
					downbeat[i] = true
				}
				if r%2 == 0 {
					weights[i] = 0.2
				}
				if r%4 == 2 {
					weights[i] = 0.2 + 0.15
				}
			}
		default:
			return nil, nil, ErrInvalidMeter
		}
	}
	return weights, downbeat, nil
}
