package fixtures

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateWritesFixturesAndManifest(t *testing.T) {
	dir := t.TempDir()

	manifest, err := Generate(Config{
		OutputDir:    dir,
		Progressions: []string{"C,F,G,C", "Am,F,C,G"},
		IncludeBass:  true,
		IncludeDrums: true,
		IncludeWaltz: true,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(manifest.Fixtures) != 3 {
		t.Fatalf("got %d fixtures, want 3", len(manifest.Fixtures))
	}
	for _, fx := range manifest.Fixtures {
		info, err := os.Stat(filepath.Join(dir, fx.File))
		if err != nil {
			t.Errorf("fixture %s missing: %v", fx.File, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("fixture %s is empty", fx.File)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var loaded Manifest
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if loaded.TicksPerBeat != 480 {
		t.Errorf("ticks per beat = %d, want default 480", loaded.TicksPerBeat)
	}
	if loaded.Fixtures[2].Meter != "3/4" {
		t.Errorf("waltz meter = %q, want 3/4", loaded.Fixtures[2].Meter)
	}
}

func TestProgressionScore(t *testing.T) {
	score := ProgressionScore([]string{"C", "Am", "G7"}, 4)

	if len(score.Tracks) != 2 {
		t.Fatalf("got %d tracks, want piano + bass", len(score.Tracks))
	}
	piano, bass := score.Tracks[0], score.Tracks[1]

	// C and Am are triads, G7 has four tones.
	if len(piano.Notes) != 3+3+4 {
		t.Errorf("piano notes = %d, want 10", len(piano.Notes))
	}
	if len(bass.Notes) != 3 {
		t.Errorf("bass notes = %d, want 3", len(bass.Notes))
	}

	// Second bar starts at beat 4 and the bass plays the chord root.
	if bass.Notes[1].Start != 4 {
		t.Errorf("second bass note starts at %f, want 4", bass.Notes[1].Start)
	}
	if bass.Notes[1].Pitch%12 != 9 {
		t.Errorf("second bass pitch class = %d, want A (9)", bass.Notes[1].Pitch%12)
	}

	if len(score.TimeSignatures) != 1 || score.TimeSignatures[0].Beats != 4 {
		t.Errorf("time signatures = %v", score.TimeSignatures)
	}
}

func TestChordVoicing(t *testing.T) {
	cases := []struct {
		name   string
		octave int
		want   []uint8
	}{
		{"C", 4, []uint8{60, 64, 67}},
		{"Am", 4, []uint8{69, 72, 76}},
		{"G7", 3, []uint8{55, 59, 62, 65}},
		{"F#m7", 4, []uint8{66, 69, 73, 76}},
	}
	for _, tc := range cases {
		got := chordVoicing(tc.name, tc.octave)
		if len(got) != len(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
				break
			}
		}
	}
}
