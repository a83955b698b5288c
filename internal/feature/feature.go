// Package feature turns a multi-track score into beat-aligned chroma and
// bass-chroma vectors.
//
// Notes are first quantized to a tick grid of `precision` beats. A frame
// groups 1/precision consecutive ticks, so one frame always spans one
// beat regardless of precision. Per frame the package emits a 12-dim
// chroma (pitch-class density, weighted per track) and a 12-dim bass
// chroma (density of the lowest sounding pitch class).
package feature

import (
	"errors"
	"math"

	"github.com/chordwise/seville/internal/music"
)

// ErrInvalidPrecision reports a precision whose reciprocal is not an
// integer tick count.
var ErrInvalidPrecision = errors.New("feature: 1/precision must be an integer")

// bassSilent marks ticks with no sounding note in a track's bass line.
const bassSilent = 128

// Features holds the extracted per-frame vectors. Both slices are flat
// [NFrames*12] float32, values in [0,1].
type Features struct {
	Chroma  []float32
	Bass    []float32
	NFrames int
}

// Frame returns the chroma and bass vectors of frame i.
func (f *Features) Frame(i int) (chroma, bass []float32) {
	return f.Chroma[i*12 : i*12+12], f.Bass[i*12 : i*12+12]
}

type quantNote struct {
	pitch      uint8
	start, end int // ticks
}

// Extract computes chord features for the given non-drum tracks. A score
// with no notes yields Features with NFrames == 0 and no error.
func Extract(tracks []music.Track, precision float64) (*Features, error) {
	window, err := windowSize(precision)
	if err != nil {
		return nil, err
	}

	quantized := make([][]quantNote, 0, len(tracks))
	globalEnd := 0
	for _, t := range tracks {
		notes := quantize(t.Notes, precision)
		if len(notes) == 0 {
			continue
		}
		for _, n := range notes {
			if n.end > globalEnd {
				globalEnd = n.end
			}
		}
		quantized = append(quantized, notes)
	}
	if len(quantized) == 0 || globalEnd == 0 {
		return &Features{}, nil
	}
	if rem := globalEnd % window; rem != 0 {
		globalEnd += window - rem
	}
	nFrames := globalEnd / window

	rolls := make([][]uint8, len(quantized)) // [track][tick*12] 0/1
	basses := make([][]uint8, len(quantized))
	for i, notes := range quantized {
		rolls[i] = pianoroll(notes, globalEnd)
		basses[i] = bassLine(notes, globalEnd)
	}
	weights := trackWeights(rolls, basses)

	return &Features{
		Chroma:  aggregateChroma(rolls, weights, nFrames, window),
		Bass:    aggregateBass(basses, nFrames, window),
		NFrames: nFrames,
	}, nil
}

func windowSize(precision float64) (int, error) {
	if precision <= 0 || precision > 1 {
		return 0, ErrInvalidPrecision
	}
	inv := 1 / precision
	if inv != math.Trunc(inv) {
		return 0, ErrInvalidPrecision
	}
	return int(inv), nil
}

// quantize snaps note boundaries to the tick grid and drops notes whose
// quantized duration collapses to zero.
func quantize(notes []music.Note, precision float64) []quantNote {
	out := make([]quantNote, 0, len(notes))
	for _, n := range notes {
		start := int(math.Floor(n.Start/precision + 0.5))
		end := int(math.Floor(n.End()/precision + 0.5))
		if end <= start {
			continue
		}
		out = append(out, quantNote{pitch: n.Pitch, start: start, end: end})
	}
	return out
}

// pianoroll marks which pitch classes sound at each tick (0/1, not a
// count).
func pianoroll(notes []quantNote, end int) []uint8 {
	roll := make([]uint8, end*12)
	for _, n := range notes {
		pc := int(n.pitch) % 12
		hi := n.end
		if hi > end {
			hi = end
		}
		for t := n.start; t < hi; t++ {
			roll[t*12+pc] = 1
		}
	}
	return roll
}

// bassLine records the lowest sounding MIDI pitch per tick, with
// bassSilent marking rests.
func bassLine(notes []quantNote, end int) []uint8 {
	bass := make([]uint8, end)
	for t := range bass {
		bass[t] = bassSilent
	}
	for _, n := range notes {
		hi := n.end
		if hi > end {
			hi = end
		}
		for t := n.start; t < hi; t++ {
			if n.pitch < bass[t] {
				bass[t] = n.pitch
			}
		}
	}
	return bass
}

// trackWeights decides how much each track contributes to the chroma.
// Tracks with more simultaneous voices weigh more; the lowest-sounding
// track is always given full weight so the bass register participates.
func trackWeights(rolls [][]uint8, basses [][]uint8) []float64 {
	n := len(rolls)
	weights := make([]float64, n)
	maxWeight := 0.0
	for i, roll := range rolls {
		w := math.Max(0, 1-math.Exp(0.95-thickness(roll)))
		weights[i] = w
		if w > maxWeight {
			maxWeight = w
		}
	}
	if maxWeight > 0 {
		for i := range weights {
			weights[i] /= maxWeight
		}
	}

	lowest, lowestMean := 0, math.Inf(1)
	for i, bass := range basses {
		if m := bassMean(bass); m < lowestMean {
			lowest, lowestMean = i, m
		}
	}
	weights[lowest] = 1
	return weights
}

// thickness is the mean count of active pitch classes over non-silent
// ticks.
func thickness(roll []uint8) float64 {
	sum, ticks := 0, 0
	for t := 0; t < len(roll); t += 12 {
		active := 0
		for p := 0; p < 12; p++ {
			active += int(roll[t+p])
		}
		if active > 0 {
			sum += active
			ticks++
		}
	}
	if ticks == 0 {
		return 0
	}
	return float64(sum) / float64(ticks)
}

// bassMean is the mean sounding bass pitch, or bassSilent when fewer
// than 20% of the ticks have one.
func bassMean(bass []uint8) float64 {
	sum, sounding := 0, 0
	for _, p := range bass {
		if p < bassSilent {
			sum += int(p)
			sounding++
		}
	}
	if len(bass) == 0 || float64(sounding)/float64(len(bass)) < 0.2 {
		return bassSilent
	}
	return float64(sum) / float64(sounding)
}

// aggregateChroma sums each track's pianoroll over the frame window,
// scales by the track weight, and takes the elementwise max across
// tracks.
func aggregateChroma(rolls [][]uint8, weights []float64, nFrames, window int) []float32 {
	chroma := make([]float32, nFrames*12)
	for i, roll := range rolls {
		scale := float32(weights[i] / float64(window))
		for f := 0; f < nFrames; f++ {
			base := f * window * 12
			for p := 0; p < 12; p++ {
				sum := 0
				for w := 0; w < window; w++ {
					sum += int(roll[base+w*12+p])
				}
				if v := float32(sum) * scale; v > chroma[f*12+p] {
					chroma[f*12+p] = v
				}
			}
		}
	}
	return chroma
}

// aggregateBass merges per-tick bass lines with an elementwise minimum
// (the silent sentinel never shadows a sounding track), then averages
// the one-hot pitch classes over each frame window.
func aggregateBass(basses [][]uint8, nFrames, window int) []float32 {
	nTicks := nFrames * window
	merged := make([]uint8, nTicks)
	for t := range merged {
		merged[t] = bassSilent
	}
	for _, bass := range basses {
		for t, p := range bass {
			if p < merged[t] {
				merged[t] = p
			}
		}
	}

	out := make([]float32, nFrames*12)
	inv := float32(1) / float32(window)
	for f := 0; f < nFrames; f++ {
		for w := 0; w < window; w++ {
			if p := merged[f*window+w]; p < bassSilent {
				out[f*12+int(p)%12] += inv
			}
		}
	}
	return out
}
