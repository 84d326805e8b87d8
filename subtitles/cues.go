// Package subtitles builds the burned-in caption track.
package subtitles

import (
	"context"
	"log"
	"strings"

	"shorts-factory/types"
)

// Cue is one caption shown from Start to End seconds.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// Segment is one voiced scene on the final timeline.
type Segment struct {
	Audio    string
	Line     string
	Start    float64
	Duration float64
}

// WordsPerCue is 2 for vertical video, where captions sit mid-frame in a
// large font, and 4 for horizontal.
func WordsPerCue(f types.VideoFormat) int {
	if f == types.FormatVertical {
		return 2
	}
	return 4
}

// Cues groups consecutive words into uppercase captions.
func Cues(words []types.Word, perCue int) []Cue {
	if perCue < 1 {
		perCue = 1
	}
	var cues []Cue
	for i := 0; i < len(words); i += perCue {
		group := words[i:min(len(words), i+perCue)]
		texts := make([]string, len(group))
		for j, w := range group {
			texts[j] = w.Text
		}
		cues = append(cues, Cue{
			Start: group[0].Start,
			End:   group[len(group)-1].End,
			Text:  strings.ToUpper(strings.Join(texts, " ")),
		})
	}
	return cues
}

// SpreadWords times the words of line evenly across [start, start+duration).
func SpreadWords(line string, start, duration float64) []types.Word {
	fields := strings.Fields(line)
	if len(fields) == 0 || duration <= 0 {
		return nil
	}
	step := duration / float64(len(fields))
	words := make([]types.Word, len(fields))
	for i, f := range fields {
		words[i] = types.Word{Text: f, Start: start + float64(i)*step, End: start + float64(i+1)*step}
	}
	return words
}

// Build produces cues for the whole timeline. Each segment is transcribed
// when tr is set; otherwise, or when transcription fails, its line is spread
// over the segment's duration.
func Build(ctx context.Context, segments []Segment, tr Transcriber, perCue int) []Cue {
	var cues []Cue
	for i, seg := range segments {
		var words []types.Word
		if tr != nil && seg.Audio != "" {
			got, err := tr.Transcribe(ctx, seg.Audio)
			if err != nil {
				log.Printf("[subtitles] Warning: transcription failed for segment %d, using line timing: %v", i, err)
			}
			for _, w := range got {
				if w.Start >= seg.Duration {
					break
				}
				w.Start += seg.Start
				w.End = min(w.End+seg.Start, seg.Start+seg.Duration)
				words = append(words, w)
			}
		}
		if len(words) == 0 {
			words = SpreadWords(seg.Line, seg.Start, seg.Duration)
		}
		cues = append(cues, Cues(words, perCue)...)
	}
	return cues
}
