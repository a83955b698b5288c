// Package exporter writes recognized chord spans to interchange formats.
package exporter

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chordwise/seville/internal/decode"
	"github.com/chordwise/seville/internal/music"
)

// Result contains paths to generated export artifacts.
type Result struct {
	CSVPath       string
	JSONPath      string
	ChecksumsPath string
}

// WriteChords writes CSV and JSON exports of the spans plus a checksum
// file, returning the artifact paths.
func WriteChords(outputDir, name string, spans []decode.Span) (*Result, error) {
	if name == "" {
		name = "chords"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	result := &Result{
		CSVPath:       filepath.Join(outputDir, name+".csv"),
		JSONPath:      filepath.Join(outputDir, name+".json"),
		ChecksumsPath: filepath.Join(outputDir, name+"-checksums.txt"),
	}

	if err := writeCSV(result.CSVPath, spans); err != nil {
		return nil, err
	}
	if err := writeJSON(result.JSONPath, spans); err != nil {
		return nil, err
	}
	if err := writeChecksums(result.ChecksumsPath, result.CSVPath, result.JSONPath); err != nil {
		return nil, err
	}
	return result, nil
}

func writeCSV(path string, spans []decode.Span) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"start", "end", "name", "pitch"}); err != nil {
		return err
	}
	for _, s := range spans {
		if err := w.Write([]string{
			strconv.Itoa(s.Start),
			strconv.Itoa(s.End),
			s.Name,
			pitchColumn(s.Pitches),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, spans []decode.Span) error {
	if spans == nil {
		spans = []decode.Span{}
	}
	data, err := json.MarshalIndent(spans, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeChecksums(path string, files ...string) error {
	var b strings.Builder
	for _, file := range files {
		sum, err := hashFile(file)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "%s  %s\n", sum, filepath.Base(file))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// pitchColumn renders pitch classes as space-separated names, empty for
// no-chord spans.
func pitchColumn(pitches []int) string {
	names := make([]string, len(pitches))
	for i, p := range pitches {
		names[i] = music.PitchName(p)
	}
	return strings.Join(names, " ")
}
