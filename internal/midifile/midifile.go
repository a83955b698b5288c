// Package midifile adapts Standard MIDI Files to the in-memory score
// model. Tick times are normalized to beats by dividing by the file's
// ticks-per-beat resolution; tempo changes and pitch bends are carried
// along untouched for downstream consumers.
package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/chordwise/seville/internal/music"
)

// ErrNoTicksPerBeat reports an SMF with SMPTE timing, which has no beat
// grid to normalize against.
var ErrNoTicksPerBeat = errors.New("midifile: SMF uses SMPTE time format")

// drumChannel is the General MIDI percussion channel (0-indexed).
const drumChannel = 9

// Load reads and adapts a MIDI file from disk.
func Load(path string) (*music.Score, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return FromSMF(s)
}

// Parse reads and adapts a MIDI file from a reader.
func Parse(r io.Reader) (*music.Score, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("read smf: %w", err)
	}
	return FromSMF(s)
}

// ParseBytes adapts an in-memory MIDI file.
func ParseBytes(data []byte) (*music.Score, error) {
	return Parse(bytes.NewReader(data))
}

type pendingNote struct {
	startBeat float64
	velocity  uint8
}

// FromSMF converts a parsed SMF into a Score.
func FromSMF(s *smf.SMF) (*music.Score, error) {
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrNoTicksPerBeat
	}
	ticksPerBeat := float64(ticks)
	if ticksPerBeat == 0 {
		return nil, ErrNoTicksPerBeat
	}

	score := &music.Score{}
	for _, tr := range s.Tracks {
		track := music.Track{}
		pending := map[[2]uint8][]pendingNote{}
		sawNote := false
		allDrum := true
		var tick uint32

		for _, ev := range tr {
			tick += ev.Delta
			beat := float64(tick) / ticksPerBeat
			msg := ev.Message

			var ch, key, vel uint8
			var bpm float64
			var num, denom uint8
			var name string
			var prog uint8
			var rel int16
			var abs uint16

			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				sawNote = true
				if ch != drumChannel {
					allDrum = false
				}
				k := [2]uint8{ch, key}
				pending[k] = append(pending[k], pendingNote{startBeat: beat, velocity: vel})
			case msg.GetNoteEnd(&ch, &key):
				k := [2]uint8{ch, key}
				if stack := pending[k]; len(stack) > 0 {
					on := stack[0]
					pending[k] = stack[1:]
					if dur := beat - on.startBeat; dur > 0 {
						track.Notes = append(track.Notes, music.Note{
							Pitch:    key,
							Start:    on.startBeat,
							Duration: dur,
							Velocity: on.velocity,
						})
					}
				}
			case msg.GetMetaTempo(&bpm):
				score.Tempos = append(score.Tempos, music.TempoChange{TimeBeat: beat, BPM: bpm})
			case msg.GetMetaMeter(&num, &denom):
				score.TimeSignatures = append(score.TimeSignatures, music.TimeSignature{
					TimeBeat: int(math.Floor(beat + 0.5)),
					Beats:    num,
				})
			case msg.GetMetaTrackName(&name):
				track.Name = name
			case msg.GetProgramChange(&ch, &prog):
				track.Program = prog
			case msg.GetPitchBend(&ch, &rel, &abs):
				score.PitchBends = append(score.PitchBends, music.PitchBend{TimeBeat: beat, Channel: ch, Value: rel})
			}
		}

		if !sawNote {
			continue
		}
		track.IsDrum = allDrum
		sort.SliceStable(track.Notes, func(i, j int) bool {
			return track.Notes[i].Start < track.Notes[j].Start
		})
		score.Tracks = append(score.Tracks, track)
	}

	sort.SliceStable(score.TimeSignatures, func(i, j int) bool {
		return score.TimeSignatures[i].TimeBeat < score.TimeSignatures[j].TimeBeat
	})
	sort.SliceStable(score.Tempos, func(i, j int) bool {
		return score.Tempos[i].TimeBeat < score.Tempos[j].TimeBeat
	})
	return score, nil
}
