// Package fixtures produces deterministic MIDI fixtures used by tests
// and demos: simple chord progressions rendered as Standard MIDI Files,
// plus in-memory scores for unit tests that skip the file layer.
package fixtures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/chordwise/seville/internal/music"
)

// Config controls which fixtures are emitted.
type Config struct {
	OutputDir    string
	TicksPerBeat int
	Tempo        float64  // BPM written into each file
	Progressions []string // e.g. "C,F,G,C"; one fixture per entry
	BeatsPerBar  int      // chord duration in beats (default 4)
	IncludeBass  bool     // add a root-note bass track
	IncludeDrums bool     // add a channel-10 backbeat track
	IncludeWaltz bool     // add one 3/4 fixture
}

// Manifest describes generated fixtures for tests/consumers.
type Manifest struct {
	TicksPerBeat int               `json:"ticks_per_beat"`
	Tempo        float64           `json:"tempo"`
	Fixtures     []ManifestFixture `json:"fixtures"`
}

type ManifestFixture struct {
	File        string   `json:"file"`
	Progression []string `json:"progression"`
	Meter       string   `json:"meter"`
	Beats       int      `json:"beats"`
}

// triads maps a fixture chord suffix to semitone intervals above the
// root. Fixtures only need the common voicings.
var triads = map[string][]int{
	"":     {0, 4, 7},
	"m":    {0, 3, 7},
	"7":    {0, 4, 7, 10},
	"maj7": {0, 4, 7, 11},
	"m7":   {0, 3, 7, 10},
	"dim":  {0, 3, 6},
	"sus4": {0, 5, 7},
}

var rootIndex = map[string]int{
	"C": 0, "C#": 1, "Db": 1, "D": 2, "D#": 3, "Eb": 3, "E": 4, "F": 5,
	"F#": 6, "Gb": 6, "G": 7, "G#": 8, "Ab": 8, "A": 9, "A#": 10, "Bb": 10, "B": 11,
}

// Generate writes MIDI fixtures and a manifest.json into OutputDir.
func Generate(cfg Config) (*Manifest, error) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./testdata/midi"
	}
	if cfg.TicksPerBeat == 0 {
		cfg.TicksPerBeat = 480
	}
	if cfg.Tempo == 0 {
		cfg.Tempo = 120
	}
	if cfg.BeatsPerBar == 0 {
		cfg.BeatsPerBar = 4
	}
	if len(cfg.Progressions) == 0 {
		cfg.Progressions = []string{"C,F,G,C", "Am,F,C,G", "Dm7,G7,Cmaj7"}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output: %w", err)
	}

	manifest := &Manifest{TicksPerBeat: cfg.TicksPerBeat, Tempo: cfg.Tempo}

	for i, prog := range cfg.Progressions {
		chords := splitProgression(prog)
		filename := fmt.Sprintf("progression_%02d.mid", i+1)
		path := filepath.Join(cfg.OutputDir, filename)
		if err := writeProgressionSMF(path, cfg, chords, 4); err != nil {
			return nil, err
		}
		manifest.Fixtures = append(manifest.Fixtures, ManifestFixture{
			File:        filename,
			Progression: chords,
			Meter:       "4/4",
			Beats:       cfg.BeatsPerBar * len(chords),
		})
	}

	if cfg.IncludeWaltz {
		chords := []string{"C", "G", "C"}
		filename := "waltz.mid"
		path := filepath.Join(cfg.OutputDir, filename)
		waltz := cfg
		waltz.BeatsPerBar = 3
		if err := writeProgressionSMF(path, waltz, chords, 3); err != nil {
			return nil, err
		}
		manifest.Fixtures = append(manifest.Fixtures, ManifestFixture{
			File:        filename,
			Progression: chords,
			Meter:       "3/4",
			Beats:       3 * len(chords),
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, "manifest.json"), data, 0o644); err != nil {
		return nil, err
	}
	return manifest, nil
}

// writeProgressionSMF renders one progression as a multi-track SMF:
// tempo/meter track, piano chords, optional bass and drums.
func writeProgressionSMF(path string, cfg Config, chords []string, meterBeats uint8) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(cfg.TicksPerBeat)
	barTicks := uint32(cfg.TicksPerBeat * cfg.BeatsPerBar)

	var meta smf.Track
	meta.Add(0, smf.MetaTrackSequenceName("meta"))
	meta.Add(0, smf.MetaTempo(cfg.Tempo))
	meta.Add(0, smf.MetaMeter(meterBeats, 4))
	meta.Close(0)
	s.Add(meta)

	var piano smf.Track
	piano.Add(0, smf.MetaTrackSequenceName("piano"))
	piano.Add(0, midi.ProgramChange(0, 0))
	for _, name := range chords {
		notes := chordVoicing(name, 4)
		for _, n := range notes {
			piano.Add(0, midi.NoteOn(0, n, 90))
		}
		for j, n := range notes {
			delta := uint32(0)
			if j == 0 {
				delta = barTicks
			}
			piano.Add(delta, midi.NoteOff(0, n))
		}
	}
	piano.Close(0)
	s.Add(piano)

	if cfg.IncludeBass {
		var bass smf.Track
		bass.Add(0, smf.MetaTrackSequenceName("bass"))
		bass.Add(0, midi.ProgramChange(1, 33))
		for _, name := range chords {
			root := chordVoicing(name, 2)[0]
			bass.Add(0, midi.NoteOn(1, root, 100))
			bass.Add(barTicks, midi.NoteOff(1, root))
		}
		bass.Close(0)
		s.Add(bass)
	}

	if cfg.IncludeDrums {
		var drums smf.Track
		drums.Add(0, smf.MetaTrackSequenceName("drums"))
		beatTicks := uint32(cfg.TicksPerBeat)
		for range chords {
			for b := 0; b < cfg.BeatsPerBar; b++ {
				key := uint8(36) // kick
				if b%2 == 1 {
					key = 38 // snare
				}
				drums.Add(0, midi.NoteOn(9, key, 100))
				drums.Add(beatTicks, midi.NoteOff(9, key))
			}
		}
		drums.Close(0)
		s.Add(drums)
	}

	return s.WriteFile(path)
}

// ProgressionScore builds the same fixture as an in-memory Score, one
// chord per bar of beatsPerBar beats, for tests that skip the SMF layer.
func ProgressionScore(chords []string, beatsPerBar int) *music.Score {
	piano := music.Track{Name: "piano"}
	bass := music.Track{Name: "bass", Program: 33}
	for i, name := range chords {
		start := float64(i * beatsPerBar)
		dur := float64(beatsPerBar)
		for _, n := range chordVoicing(name, 4) {
			piano.Notes = append(piano.Notes, music.Note{Pitch: n, Start: start, Duration: dur, Velocity: 90})
		}
		root := chordVoicing(name, 2)[0]
		bass.Notes = append(bass.Notes, music.Note{Pitch: root, Start: start, Duration: dur, Velocity: 100})
	}
	return &music.Score{
		Tracks:         []music.Track{piano, bass},
		TimeSignatures: []music.TimeSignature{{TimeBeat: 0, Beats: uint8(beatsPerBar)}},
	}
}

// chordVoicing resolves a chord name like "Am7" to MIDI notes in the
// given octave (root position, close voicing).
func chordVoicing(name string, octave int) []uint8 {
	root := name[:1]
	rest := name[1:]
	if len(name) > 1 && (name[1] == '#' || name[1] == 'b') {
		root = name[:2]
		rest = name[2:]
	}
	pc, ok := rootIndex[root]
	if !ok {
		pc = 0
	}
	intervals, ok := triads[rest]
	if !ok {
		intervals = triads[""]
	}
	base := uint8(12*(octave+1) + pc)
	notes := make([]uint8, len(intervals))
	for i, iv := range intervals {
		notes[i] = base + uint8(iv)
	}
	return notes
}

func splitProgression(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
