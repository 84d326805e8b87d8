package casting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"shorts-factory/llm"
	"shorts-factory/types"
)

const directorPrompt = `You are a casting director for narrated short videos. Match each speaker to ONE voice from the catalog.

Rules:
1. voice_id MUST be copied exactly from the catalog.
2. Never give two speakers the same voice while unused voices remain.
3. Match gender and personality implied by the speaker's name and lines.
4. pitch is an offset like "+0Hz" or "-5Hz"; rate is an offset like "+0%" or "+10%". Keep both within 20 of zero unless the character demands it.

Respond ONLY with JSON: {"assignments": [{"speaker": "...", "voice_id": "...", "pitch": "+0Hz", "rate": "+0%"}]}`

// Selector suggests voices for speakers. Results are best effort: missing
// speakers and unknown voices are resolved by the stage.
type Selector interface {
	SelectVoices(ctx context.Context, lines map[string][]string, catalog Catalog) (map[string]types.VoiceDescriptor, error)
}

// Director is the LLM-backed Selector.
type Director struct {
	llm llm.Completer
}

func NewDirector(c llm.Completer) *Director {
	return &Director{llm: c}
}

type assignment struct {
	Speaker string `json:"speaker"`
	VoiceID string `json:"voice_id"`
	Pitch   string `json:"pitch"`
	Rate    string `json:"rate"`
}

type castingReply struct {
	Assignments []assignment `json:"assignments"`
}

var castingSchema = llm.Schema[castingReply]()

func (d *Director) SelectVoices(ctx context.Context, lines map[string][]string, catalog Catalog) (map[string]types.VoiceDescriptor, error) {
	if d.llm == nil {
		return nil, errors.New("casting director has no llm client")
	}
	reply, err := llm.Structured[castingReply](ctx, d.llm, "voice_casting", directorPrompt, buildCastingPrompt(lines, catalog), castingSchema)
	if err != nil {
		return nil, fmt.Errorf("select voices: %w", err)
	}
	out := make(map[string]types.VoiceDescriptor, len(reply.Assignments))
	for _, a := range reply.Assignments {
		if _, ok := lines[a.Speaker]; !ok {
			log.Printf("[casting] Ignoring assignment for unknown speaker %q", a.Speaker)
			continue
		}
		out[a.Speaker] = types.VoiceDescriptor{VoiceID: a.VoiceID, Pitch: a.Pitch, Rate: a.Rate}
	}
	return out, nil
}

func buildCastingPrompt(lines map[string][]string, catalog Catalog) string {
	var sb strings.Builder
	sb.WriteString("VOICE CATALOG (voice_id | gender | locale | styles):\n")
	for _, v := range catalog {
		sb.WriteString(fmt.Sprintf("- %s | %s | %s | %s\n", v.ID, v.Gender, v.Locale, strings.Join(v.Styles, ", ")))
	}
	sb.WriteString("\nSPEAKERS AND SAMPLE LINES:\n")
	for _, speaker := range sortedKeys(lines) {
		sb.WriteString(fmt.Sprintf("%s:\n", speaker))
		for _, l := range lines[speaker] {
			sb.WriteString("  \"" + l + "\"\n")
		}
	}
	return sb.String()
}
