package subtitles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"shorts-factory/config"
	"shorts-factory/types"
)

// Transcriber returns word-level timings for one audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioFile string) ([]types.Word, error)
}

// Whisper runs the openai-whisper CLI with word timestamps and reads its JSON output.
type Whisper struct {
	bin   string
	model string
}

func NewWhisper(cfg config.SubtitlesConfig) *Whisper {
	bin := cfg.WhisperBin
	if bin == "" {
		bin = "whisper"
	}
	model := cfg.WhisperModel
	if model == "" {
		model = "base"
	}
	return &Whisper{bin: bin, model: model}
}

// Available reports whether the CLI is on PATH.
func (w *Whisper) Available() bool {
	_, err := exec.LookPath(w.bin)
	return err == nil
}

func (w *Whisper) Transcribe(ctx context.Context, audioFile string) ([]types.Word, error) {
	outDir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)

	// whisper audio.mp3 --model base --output_format json --word_timestamps True
	cmd := exec.CommandContext(ctx, w.bin,
		audioFile,
		"--model", w.model,
		"--output_format", "json",
		"--output_dir", outDir,
		"--word_timestamps", "True",
		"--verbose", "False",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	// Whisper saves as <audioFilename>.json
	base := strings.TrimSuffix(filepath.Base(audioFile), filepath.Ext(audioFile))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	words, err := ParseWhisperJSON(data)
	if err != nil {
		return nil, err
	}
	log.Printf("[subtitles] %s: %d words", filepath.Base(audioFile), len(words))
	return words, nil
}

type whisperOutput struct {
	Segments []struct {
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// ParseWhisperJSON flattens the words of every segment.
func ParseWhisperJSON(data []byte) ([]types.Word, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	var words []types.Word
	for _, seg := range out.Segments {
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			words = append(words, types.Word{Text: text, Start: w.Start, End: w.End})
		}
	}
	return words, nil
}
