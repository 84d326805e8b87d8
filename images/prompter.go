package images

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shorts-factory/llm"
	"shorts-factory/types"
)

// GenericPrompt is used for any group the prompt writer could not cover.
const GenericPrompt = "Abstract colorful gradient background, cinematic lighting, 4K quality"

const styleModifiers = "no text, no watermark, no logos, cinematic composition, 4K"

const promptSystem = `You write prompts for an AI image generator. The images are backgrounds behind narrated dialogue in a faceless short video.

Rules:
1. Describe a scene the viewer could imagine while hearing the lines.
2. Use concrete visual keywords: setting, lighting, palette, camera angle.
3. No text, captions, or logos in the image.
4. Under 80 words per prompt.`

// Prompter writes image prompts from script content.
type Prompter interface {
	// GroupPrompts returns one prompt per group of consecutive scenes.
	GroupPrompts(ctx context.Context, groups [][]types.Scene) ([]string, error)
	// Summarize returns a single prompt for the whole story.
	Summarize(ctx context.Context, scenes []types.Scene) (string, error)
}

// LLMPrompter is the LLM-backed Prompter.
type LLMPrompter struct {
	llm llm.Completer
}

func NewLLMPrompter(c llm.Completer) *LLMPrompter {
	return &LLMPrompter{llm: c}
}

type promptList struct {
	Prompts []string `json:"prompts" jsonschema_description:"One image prompt per group, in order"`
}

type summaryPrompt struct {
	Prompt string `json:"prompt" jsonschema_description:"One image prompt capturing the whole story"`
}

var (
	promptListSchema    = llm.Schema[promptList]()
	summaryPromptSchema = llm.Schema[summaryPrompt]()
)

func (p *LLMPrompter) GroupPrompts(ctx context.Context, groups [][]types.Scene) ([]string, error) {
	if p.llm == nil {
		return nil, errors.New("image prompter has no llm client")
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write exactly %d image prompts, one per group below.\n\n", len(groups)))
	for g, scenes := range groups {
		sb.WriteString(fmt.Sprintf("GROUP %d:\n", g+1))
		writeScenes(&sb, scenes)
	}
	sb.WriteString("\nRespond ONLY with JSON: {\"prompts\": [\"...\", \"...\"]}")

	reply, err := llm.Structured[promptList](ctx, p.llm, "image_prompts", promptSystem, sb.String(), promptListSchema)
	if err != nil {
		return nil, err
	}
	if len(reply.Prompts) == 0 {
		return nil, errors.New("no image prompts returned")
	}
	return reply.Prompts, nil
}

func (p *LLMPrompter) Summarize(ctx context.Context, scenes []types.Scene) (string, error) {
	if p.llm == nil {
		return "", errors.New("image prompter has no llm client")
	}
	var sb strings.Builder
	sb.WriteString("Write ONE image prompt that captures the story these opening lines set up.\n\n")
	writeScenes(&sb, scenes)
	sb.WriteString("\nRespond ONLY with JSON: {\"prompt\": \"...\"}")

	reply, err := llm.Structured[summaryPrompt](ctx, p.llm, "story_image", promptSystem, sb.String(), summaryPromptSchema)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply.Prompt) == "" {
		return "", errors.New("empty story prompt")
	}
	return reply.Prompt, nil
}

func writeScenes(sb *strings.Builder, scenes []types.Scene) {
	for _, sc := range scenes {
		sb.WriteString(fmt.Sprintf("  %s: %q\n", sc.Speaker, sc.Line))
	}
}

// enhance appends the quality modifiers every generated background gets.
func enhance(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = GenericPrompt
	}
	return prompt + ", " + styleModifiers
}
