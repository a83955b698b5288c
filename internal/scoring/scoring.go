// Package scoring computes per-frame template match scores. This is the
// hot inner loop of recognition: tight passes over contiguous float32
// slices, no allocation per call.
package scoring

import (
	"github.com/chordwise/seville/internal/chord"
)

// BassReward scales the contribution of the bass feature matching a
// template's bass pitch class.
const BassReward = 0.5

// Scorer scores chroma/bass feature vectors against a catalog.
type Scorer struct {
	cat *chord.Catalog
}

// New returns a scorer over the given catalog.
func New(cat *chord.Catalog) *Scorer {
	return &Scorer{cat: cat}
}

// Score computes the match score of a single 12-dim chroma/bass pair for
// template t.
//
// score = (matched - unmatched)/chroma_size + 0.5*bass[bass_pc] + bias
//
// The chroma term collapses to a dot product with the template's
// precomputed weight vector.
func (s *Scorer) Score(chroma, bass []float32, t int) float32 {
	tpl := &s.cat.Templates[t]
	score := tpl.ScoreBias
	for p := 0; p < 12; p++ {
		score += chroma[p] * tpl.Weights[p]
	}
	if tpl.BassPC >= 0 {
		score += BassReward * bass[tpl.BassPC]
	}
	return score
}

// Best returns the argmax template index and its score over all real
// templates. The "N" sentinel is excluded; ties resolve to the lowest
// index, keeping results deterministic.
func (s *Scorer) Best(chroma, bass []float32) (int, float32) {
	bestIdx := 0
	bestScore := s.Score(chroma, bass, 0)
	for t := 1; t < s.cat.NoChordIndex(); t++ {
		if sc := s.Score(chroma, bass, t); sc > bestScore {
			bestIdx, bestScore = t, sc
		}
	}
	return bestIdx, bestScore
}

// ScoreBatch scores n stacked frames (flat [n*12] slices) against every
// template, returning a flat [n*len(catalog)] matrix.
func (s *Scorer) ScoreBatch(chroma, bass []float32, n int) []float32 {
	nt := s.cat.Len()
	out := make([]float32, n*nt)
	for i := 0; i < n; i++ {
		c := chroma[i*12 : i*12+12]
		b := bass[i*12 : i*12+12]
		row := out[i*nt : (i+1)*nt]
		for t := 0; t < nt; t++ {
			row[t] = s.Score(c, b, t)
		}
	}
	return out
}
