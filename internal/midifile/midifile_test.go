package midifile

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/chordwise/seville/internal/fixtures"
	"github.com/chordwise/seville/internal/recognize"
)

// buildSMF renders a minimal three-track file: meta track with tempo and
// meter, one piano chord for four beats, one drum hit.
func buildSMF(t *testing.T) []byte {
	t.Helper()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var meta smf.Track
	meta.Add(0, smf.MetaTempo(96))
	meta.Add(0, smf.MetaMeter(3, 4))
	meta.Close(0)
	s.Add(meta)

	var piano smf.Track
	piano.Add(0, smf.MetaTrackSequenceName("piano"))
	piano.Add(0, midi.ProgramChange(0, 0))
	for _, key := range []uint8{60, 64, 67} {
		piano.Add(0, midi.NoteOn(0, key, 90))
	}
	piano.Add(4*480, midi.NoteOff(0, 60))
	piano.Add(0, midi.NoteOff(0, 64))
	piano.Add(0, midi.NoteOff(0, 67))
	piano.Close(0)
	s.Add(piano)

	var drums smf.Track
	drums.Add(0, midi.NoteOn(9, 36, 110))
	drums.Add(480, midi.NoteOff(9, 36))
	drums.Close(0)
	s.Add(drums)

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	return buf.Bytes()
}

func TestParseBytes(t *testing.T) {
	score, err := ParseBytes(buildSMF(t))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// The meta track has no notes and is dropped.
	if len(score.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(score.Tracks))
	}

	piano := score.Tracks[0]
	if piano.Name != "piano" {
		t.Errorf("track name = %q, want piano", piano.Name)
	}
	if piano.IsDrum {
		t.Error("piano marked as drum track")
	}
	if len(piano.Notes) != 3 {
		t.Fatalf("piano has %d notes, want 3", len(piano.Notes))
	}
	for _, n := range piano.Notes {
		if n.Start != 0 {
			t.Errorf("note start = %f, want 0", n.Start)
		}
		if math.Abs(n.Duration-4) > 1e-9 {
			t.Errorf("note duration = %f beats, want 4", n.Duration)
		}
		if n.Velocity != 90 {
			t.Errorf("note velocity = %d, want 90", n.Velocity)
		}
	}

	drums := score.Tracks[1]
	if !drums.IsDrum {
		t.Error("channel-10 track not marked as drums")
	}

	if len(score.TimeSignatures) != 1 {
		t.Fatalf("got %d time signatures, want 1", len(score.TimeSignatures))
	}
	if ts := score.TimeSignatures[0]; ts.TimeBeat != 0 || ts.Beats != 3 {
		t.Errorf("time signature = %+v, want {0 3}", ts)
	}

	if len(score.Tempos) != 1 || math.Abs(score.Tempos[0].BPM-96) > 1e-6 {
		t.Errorf("tempos = %+v, want one 96 BPM change", score.Tempos)
	}
}

func TestParseBytesRejectsGarbage(t *testing.T) {
	if _, err := ParseBytes([]byte("not a midi file")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestLoadFixtureRoundTrip(t *testing.T) {
	dir := t.TempDir()
	manifest, err := fixtures.Generate(fixtures.Config{
		OutputDir:    dir,
		Progressions: []string{"C,F,G,C"},
		IncludeBass:  true,
		IncludeDrums: true,
	})
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	if len(manifest.Fixtures) == 0 {
		t.Fatal("no fixtures generated")
	}

	score, err := Load(filepath.Join(dir, manifest.Fixtures[0].File))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}

	// piano + bass + drums carry notes; the drum track is flagged.
	if len(score.Tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", len(score.Tracks))
	}
	drumCount := 0
	for _, tr := range score.Tracks {
		if tr.IsDrum {
			drumCount++
		}
	}
	if drumCount != 1 {
		t.Errorf("got %d drum tracks, want 1", drumCount)
	}

	spans, err := recognize.Chords(score, recognize.Options{})
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if len(spans) == 0 {
		t.Fatal("no spans recognized from fixture")
	}
	if spans[0].Name != "C:maj" {
		t.Errorf("first span = %q, want C:maj", spans[0].Name)
	}
}
