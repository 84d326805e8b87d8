package audio

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"shorts-factory/config"
	"shorts-factory/types"
)

// EdgeTTS synthesizes speech with the edge-tts CLI (free Microsoft voices).
type EdgeTTS struct {
	bin       string
	format    string
	outputDir string
	retries   int
	backoff   time.Duration
}

// NewEdgeTTS writes audio under <static>/audio/<project>.
func NewEdgeTTS(cfg config.AudioConfig, staticDir string) *EdgeTTS {
	bin := cfg.Binary
	if bin == "" {
		bin = "edge-tts"
	}
	format := cfg.OutputFormat
	if format == "" {
		format = "mp3"
	}
	return &EdgeTTS{
		bin:       bin,
		format:    format,
		outputDir: filepath.Join(staticDir, "audio"),
		retries:   3,
		backoff:   2 * time.Second,
	}
}

// Available reports whether the binary is on PATH.
func (e *EdgeTTS) Available() bool {
	_, err := exec.LookPath(e.bin)
	return err == nil
}

// Synthesize renders text for one scene and returns the file path.
func (e *EdgeTTS) Synthesize(ctx context.Context, projectID string, scene int, text string, voice types.VoiceDescriptor) (string, error) {
	dir := filepath.Join(e.outputDir, projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	outFile := filepath.Join(dir, fmt.Sprintf("%d.%s", scene, e.format))

	var err error
	for attempt := 1; attempt <= e.retries; attempt++ {
		if err = e.run(ctx, text, voice, outFile); err == nil {
			return outFile, nil
		}
		log.Printf("[audio] TTS attempt %d/%d failed: %v", attempt, e.retries, err)
		if attempt == e.retries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * e.backoff):
		}
	}
	return "", err
}

func (e *EdgeTTS) run(ctx context.Context, text string, voice types.VoiceDescriptor, outFile string) error {
	// --rate=-10% form, a bare "-10%" would be parsed as a flag
	cmd := exec.CommandContext(ctx, e.bin,
		"--voice", voice.VoiceID,
		"--rate="+voice.Rate,
		"--pitch="+voice.Pitch,
		"--text", text,
		"--write-media", outFile,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", e.bin, err, strings.TrimSpace(stderr.String()))
	}
	info, err := os.Stat(outFile)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s wrote an empty file", e.bin)
	}
	return nil
}
