// chordctl recognizes chord progressions from MIDI files on the command
// line.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chordwise/seville/internal/chord"
	"github.com/chordwise/seville/internal/exporter"
	"github.com/chordwise/seville/internal/midifile"
	"github.com/chordwise/seville/internal/recognize"
	"github.com/chordwise/seville/internal/render"
)

func main() {
	root := &cobra.Command{
		Use:           "chordctl",
		Short:         "Chord recognition for MIDI files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(recognizeCmd(), catalogCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func recognizeCmd() *cobra.Command {
	var (
		precision float64
		format    string
		outDir    string
	)

	cmd := &cobra.Command{
		Use:   "recognize <file.mid>",
		Short: "Label a MIDI file with beat-aligned chord spans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := midifile.Load(args[0])
			if err != nil {
				return err
			}

			spans, err := recognize.Chords(score, recognize.Options{Precision: precision})
			if err != nil {
				return err
			}

			if outDir != "" {
				name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				result, err := exporter.WriteChords(outDir, name, spans)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", result.CSVPath)
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", result.JSONPath)
				return nil
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(spans)
			case "table":
				fmt.Fprint(cmd.OutOrStdout(), render.SpanTable(spans))
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}
		},
	}

	cmd.Flags().Float64Var(&precision, "precision", recognize.DefaultPrecision, "quantization grid in beats (1/precision must be an integer)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	cmd.Flags().StringVar(&outDir, "out", "", "write CSV/JSON exports to this directory instead of stdout")
	return cmd
}

func catalogCmd() *cobra.Command {
	var quality string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the chord template catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := chord.Default()
			for i, t := range cat.Templates {
				if quality != "" {
					q := t.Name[strings.Index(t.Name, ":")+1:]
					if slash := strings.Index(q, "/"); slash >= 0 {
						q = q[:slash]
					}
					if q != quality {
						continue
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-14s %012b\n", i, t.Name, t.Chroma)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&quality, "quality", "", "only list templates of this quality (e.g. maj7)")
	return cmd
}
