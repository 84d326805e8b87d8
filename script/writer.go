package script

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"shorts-factory/config"
	"shorts-factory/llm"
)

const systemPrompt = `You are a scriptwriter for short-form vertical and horizontal videos. You write punchy, conversational dialogue for one or more speakers.

Rules:
1. Open with a hook in the first line. No greetings, no channel intros.
2. Every scene is ONE spoken line by ONE speaker.
3. Use short, consistent speaker names ("Host", "Guest", "Narrator"). Never rename a speaker mid-script.
4. "duration" is the estimated seconds to speak the line (0.5 to 60), roughly 2.5 words per second.
5. End with a line that invites the viewer to comment.

You MUST respond with ONLY valid JSON: {"title": "...", "scenes": [{"speaker": "...", "line": "...", "duration": 3.0}]}`

// Writer generates drafts with an LLM.
type Writer struct {
	llm       llm.Completer
	minScenes int
	maxScenes int
}

// NewWriter creates a Writer using the script section for scene bounds.
func NewWriter(c llm.Completer, cfg config.ScriptConfig) *Writer {
	return &Writer{llm: c, minScenes: cfg.MinScenes, maxScenes: cfg.MaxScenes}
}

var draftSchema = llm.Schema[Draft]()

// GenerateScript asks the model for a draft. The draft is not validated here.
func (w *Writer) GenerateScript(ctx context.Context, prompt string) (*Draft, error) {
	if w.llm == nil {
		return nil, errors.New("script writer has no llm client")
	}
	log.Println("[script] Generating script via LLM...")
	draft, err := llm.Structured[Draft](ctx, w.llm, "video_script", systemPrompt, w.userPrompt(prompt), draftSchema)
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}
	return draft, nil
}

func (w *Writer) userPrompt(topic string) string {
	var sb strings.Builder
	if w.minScenes > 0 && w.maxScenes > 0 {
		sb.WriteString(fmt.Sprintf("Write a script of %d-%d scenes about the following topic.\n\n", w.minScenes, w.maxScenes))
	} else {
		sb.WriteString("Write a script about the following topic.\n\n")
	}
	sb.WriteString(fmt.Sprintf("TOPIC:\n%s\n\n", strings.TrimSpace(topic)))
	sb.WriteString("Respond ONLY with valid JSON. No markdown. No explanation.")
	return sb.String()
}
