// Package metadata writes YouTube titles, descriptions and tags for a script.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"shorts-factory/config"
	"shorts-factory/llm"
	"shorts-factory/types"
)

const systemPrompt = `You are an expert YouTube SEO strategist for short-form video.
Generate metadata that maximizes click-through rate and search ranking without misleading the viewer.

The JSON must have exactly these fields:
- "title": string (max 70 chars, a curiosity hook that the video pays off)
- "description": string (3 short paragraphs: hook, what the video covers, a question to drive comments)
- "tags": array of strings (mix of broad and specific tags, no "#")

You MUST respond with ONLY valid JSON. No markdown, no explanation.`

type reply struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

var replySchema = llm.Schema[reply]()

// Generator creates publish metadata with an LLM.
type Generator struct {
	llm llm.Completer
	cfg config.MetadataConfig
	now func() time.Time
}

func New(c llm.Completer, cfg config.MetadataConfig) *Generator {
	return &Generator{llm: c, cfg: cfg, now: time.Now}
}

// Generate writes metadata for script. Title length and tag count follow the
// metadata config; category and privacy come from config as well.
func (g *Generator) Generate(ctx context.Context, prompt string, script *types.Script) (*types.PublishMetadata, error) {
	if g.llm == nil {
		return nil, errors.New("metadata generator has no llm client")
	}
	if script == nil || len(script.Scenes) == 0 {
		return nil, errors.New("no script to describe")
	}
	log.Println("[metadata] Generating YouTube metadata via LLM...")

	raw, err := llm.Structured[reply](ctx, g.llm, "video_metadata", systemPrompt, buildPrompt(prompt, script), replySchema)
	if err != nil {
		return nil, fmt.Errorf("generate metadata: %w", err)
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = script.Title
	}
	if title == "" {
		return nil, errors.New("model returned no title")
	}

	m := &types.PublishMetadata{
		Title:       truncate(title, g.cfg.TitleMaxChars),
		Description: strings.TrimSpace(raw.Description),
		Tags:        cleanTags(raw.Tags, g.cfg.TagsCount),
		CategoryID:  g.cfg.CategoryID,
		Privacy:     g.cfg.Privacy,
	}
	if m.Privacy == "" {
		m.Privacy = "private"
	}
	if g.cfg.ScheduleUploads && m.Privacy == "private" {
		m.PublishAt = NextUploadTime(g.now()).Format(time.RFC3339)
	}

	log.Printf("[metadata] ✅ Title: %q", m.Title)
	log.Printf("[metadata] Tags: %d generated", len(m.Tags))
	return m, nil
}

func buildPrompt(topic string, script *types.Script) string {
	var sb strings.Builder
	sb.WriteString("Generate YouTube metadata for this short video.\n\n")
	if script.Title != "" {
		sb.WriteString(fmt.Sprintf("WORKING TITLE: %s\n", script.Title))
	}
	sb.WriteString(fmt.Sprintf("TOPIC: %s\n\n", strings.TrimSpace(topic)))

	var total float64
	for _, s := range script.Scenes {
		total += s.Duration
	}
	sb.WriteString(fmt.Sprintf("DURATION: about %.0f seconds\n\n", total))

	sb.WriteString("SCRIPT (first 3 and last 2 scenes):\n")
	scenes := script.Scenes
	preview := scenes
	if len(scenes) > 5 {
		preview = append(append([]types.Scene{}, scenes[:3]...), scenes[len(scenes)-2:]...)
	}
	for _, s := range preview {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", s.Speaker, truncate(s.Line, 100)))
	}
	sb.WriteString("\nRespond ONLY with valid JSON.")
	return sb.String()
}

// cleanTags trims, drops "#" and duplicates, and keeps at most n (n <= 0 keeps all).
func cleanTags(tags []string, n int) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// NextUploadTime returns the next Tuesday or Friday at 2PM New York time, in UTC.
func NextUploadTime(now time.Time) time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*3600)
	}
	local := now.In(loc)
	for i := 1; i <= 7; i++ {
		c := local.AddDate(0, 0, i)
		if wd := c.Weekday(); wd == time.Tuesday || wd == time.Friday {
			return time.Date(c.Year(), c.Month(), c.Day(), 14, 0, 0, 0, loc).UTC()
		}
	}
	return now.UTC().Add(48 * time.Hour)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
