// Package chord generates and holds the fixed chord-template catalog.
// Template order is deterministic: roots outer (C..B), qualities inner in
// declaration order, inversions right after their root-position quality,
// with the "N" no-chord sentinel appended last. Integer template indices
// therefore identify chords across runs.
package chord

import (
	"math/bits"
	"sync"

	"github.com/chordwise/seville/internal/music"
)

// quality is a chroma mask relative to the root (bit 0 = root).
type quality struct {
	name string
	mask uint16
}

// qualities in catalog order. Masks match the reference quality table
// bit-for-bit; bit p set means the interval p semitones above the root
// is a chord member.
var qualities = []quality{
	{"maj", maskOf(0, 4, 7)},
	{"min", maskOf(0, 3, 7)},
	{"aug", maskOf(0, 4, 8)},
	{"dim", maskOf(0, 3, 6)},
	{"sus4", maskOf(0, 5, 7)},
	{"sus4(b7)", maskOf(0, 5, 7, 10)},
	{"sus4(b7,9)", maskOf(0, 2, 5, 7, 10)},
	{"sus2", maskOf(0, 2, 7)},
	{"7", maskOf(0, 4, 7, 10)},
	{"maj7", maskOf(0, 4, 7, 11)},
	{"min7", maskOf(0, 3, 7, 10)},
	{"minmaj7", maskOf(0, 3, 7, 11)},
	{"maj6", maskOf(0, 4, 7, 9)},
	{"min6", maskOf(0, 3, 7, 9)},
	{"9", maskOf(0, 2, 4, 7, 10)},
	{"maj9", maskOf(0, 2, 4, 7, 11)},
	{"min9", maskOf(0, 2, 3, 7, 10)},
	{"7(#9)", maskOf(0, 3, 4, 7, 10)},
	{"maj6(9)", maskOf(0, 2, 4, 7, 9)},
	{"min6(9)", maskOf(0, 2, 3, 7, 9)},
	{"maj(9)", maskOf(0, 2, 4, 7)},
	{"min(9)", maskOf(0, 2, 3, 7)},
	{"min(11)", maskOf(0, 3, 5, 7, 10)},
	{"11", maskOf(0, 2, 4, 5, 7, 10)},
	{"maj9(11)", maskOf(0, 2, 4, 5, 7, 11)},
	{"min11", maskOf(0, 2, 3, 5, 7, 10)},
	{"13", maskOf(0, 2, 4, 5, 7, 9, 10)},
	{"maj13", maskOf(0, 2, 4, 5, 7, 9, 11)},
	{"min13", maskOf(0, 2, 3, 5, 7, 9, 10)},
	{"dim7", maskOf(0, 3, 6, 9)},
	{"hdim7", maskOf(0, 3, 6, 10)},
}

// inversions maps a quality name to the bass intervals (semitones above
// the root) that get their own re-rooted template.
var inversions = map[string][]int{
	"maj":  {4, 7},
	"min":  {3, 7},
	"7":    {4, 7, 10},
	"maj7": {4, 7, 11},
	"min7": {7, 10},
}

// inversionLabels maps a bass interval to its chord-name suffix.
var inversionLabels = [12]string{"1", "b2", "2", "b3", "3", "4", "b5", "5", "#5", "6", "b7", "7"}

// Template is one scored chord candidate.
type Template struct {
	Name       string
	Chroma     uint16 // 12-bit pitch-class mask
	Bass       uint16 // 12-bit mask with exactly one bit set ("N": zero)
	ChromaSize uint8
	Inverted   bool
	ScoreBias  float32

	// Derived fields precomputed for the scoring hot loop.
	Pitches []int       // ascending pitch classes of Chroma
	Weights [12]float32 // (2*chroma[p]-1) / ChromaSize
	BassPC  int         // bit index of Bass, -1 for "N"
}

// Catalog is the immutable template set. Safe for concurrent reads.
type Catalog struct {
	Templates []Template
	byName    map[string]int
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the process-wide catalog, built on first use.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = NewCatalog()
	})
	return defaultCatalog
}

// NewCatalog generates the full template set.
func NewCatalog() *Catalog {
	c := &Catalog{byName: make(map[string]int)}
	for root := 0; root < 12; root++ {
		rootName := music.PitchClassNames[root]
		for _, q := range qualities {
			chroma := rotate(q.mask, root)
			c.add(Template{
				Name:   rootName + ":" + q.name,
				Chroma: chroma,
				Bass:   rotate(1, root),
			})
			for _, interval := range inversions[q.name] {
				c.add(Template{
					Name:     rootName + ":" + q.name + "/" + inversionLabels[interval],
					Chroma:   chroma,
					Bass:     rotate(1, (root+interval)%12),
					Inverted: true,
				})
			}
		}
	}
	// No-chord sentinel. Its score is never consulted; the decoder
	// substitutes a fixed floor for it.
	c.add(Template{Name: NoChordName, BassPC: -1})
	return c
}

// NoChordName is the reserved label for frames matching no template.
const NoChordName = "N"

func (c *Catalog) add(t Template) {
	t.ChromaSize = uint8(bits.OnesCount16(t.Chroma))
	inv := float32(0)
	if t.Inverted {
		inv = 1
	}
	t.ScoreBias = -0.1*float32(t.ChromaSize) - 0.05*inv
	if t.Chroma != 0 {
		size := float32(t.ChromaSize)
		for p := 0; p < 12; p++ {
			if t.Chroma&(1<<p) != 0 {
				t.Pitches = append(t.Pitches, p)
				t.Weights[p] = 1 / size
			} else {
				t.Weights[p] = -1 / size
			}
		}
		t.BassPC = bits.TrailingZeros16(t.Bass)
	}
	c.byName[t.Name] = len(c.Templates)
	c.Templates = append(c.Templates, t)
}

// Len returns the number of templates including the "N" sentinel.
func (c *Catalog) Len() int {
	return len(c.Templates)
}

// NoChordIndex returns the index of the "N" sentinel (always last).
func (c *Catalog) NoChordIndex() int {
	return len(c.Templates) - 1
}

// Name returns the label of template i, or "N" for the -1 sentinel the
// decoder uses for floored spans.
func (c *Catalog) Name(i int) string {
	if i < 0 {
		return NoChordName
	}
	return c.Templates[i].Name
}

// Index looks up a template by name.
func (c *Catalog) Index(name string) (int, bool) {
	i, ok := c.byName[name]
	return i, ok
}

// rotate rotates a 12-bit mask left by n semitones.
func rotate(mask uint16, n int) uint16 {
	n = ((n % 12) + 12) % 12
	return ((mask << n) | (mask >> (12 - n))) & 0xFFF
}

func maskOf(pcs ...int) uint16 {
	var m uint16
	for _, p := range pcs {
		m |= 1 << p
	}
	return m
}
