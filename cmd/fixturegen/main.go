package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/chordwise/seville/internal/fixtures"
)

// fixturegen produces deterministic MIDI fixtures used by tests and demos.
func main() {
	outDir := flag.String("out", "./testdata/midi", "output directory for generated MIDI files")
	ticks := flag.Int("ticks-per-beat", 480, "SMF resolution in ticks per quarter note")
	tempo := flag.Float64("tempo", 120, "tempo in BPM")
	progressions := flag.String("progressions", "C,F,G,C;Am,F,C,G;Dm7,G7,Cmaj7", "semicolon-separated chord progressions")
	beatsPerBar := flag.Int("beats-per-bar", 4, "chord duration in beats")
	includeBass := flag.Bool("include-bass", true, "add a root-note bass track")
	includeDrums := flag.Bool("include-drums", true, "add a channel-10 drum track")
	includeWaltz := flag.Bool("include-waltz", true, "add a 3/4 fixture")

	flag.Parse()

	var progs []string
	for _, p := range strings.Split(*progressions, ";") {
		if p = strings.TrimSpace(p); p != "" {
			progs = append(progs, p)
		}
	}

	manifest, err := fixtures.Generate(fixtures.Config{
		OutputDir:    *outDir,
		TicksPerBeat: *ticks,
		Tempo:        *tempo,
		Progressions: progs,
		BeatsPerBar:  *beatsPerBar,
		IncludeBass:  *includeBass,
		IncludeDrums: *includeDrums,
		IncludeWaltz: *includeWaltz,
	})
	if err != nil {
		log.Fatalf("fixture generation failed: %v", err)
	}

	fmt.Printf("wrote %d fixtures to %s\n", len(manifest.Fixtures), *outDir)
}
