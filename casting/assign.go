package casting

import (
	"fmt"
	"regexp"
	"strconv"

	"shorts-factory/types"
)

const (
	DefaultPitch = "+0Hz"
	DefaultRate  = "+0%"

	maxOffset = 50
)

var (
	pitchPattern = regexp.MustCompile(`^([+-])(\d+)Hz$`)
	ratePattern  = regexp.MustCompile(`^([+-])(\d+)%$`)
)

// DefaultVoice fills any speaker the main path left without a voice.
var DefaultVoice = types.VoiceDescriptor{VoiceID: "en-US-AriaNeural", Pitch: DefaultPitch, Rate: DefaultRate}

// Assign resolves one voice per speaker, in the order given. A suggestion is
// used when its voice is in the catalog; otherwise the voice comes from
// fallback, cycling by position. A voice already taken is swapped for the
// first unused catalog voice, if any remain.
func Assign(speakers []string, suggestions map[string]types.VoiceDescriptor, catalog Catalog, fallback []string) (types.Cast, []string) {
	cast := make(types.Cast, len(speakers))
	used := make(map[string]bool, len(speakers))
	var notes []string

	for i, speaker := range speakers {
		sug, ok := suggestions[speaker]
		voice := sug.VoiceID
		switch {
		case !ok || voice == "":
			voice = fallbackVoice(fallback, i)
		case !catalog.Has(voice):
			notes = append(notes, fmt.Sprintf("unknown voice %q for %s", voice, speaker))
			voice = fallbackVoice(fallback, i)
		}

		if used[voice] {
			if alt := catalog.FirstUnused(used); alt != "" {
				voice = alt
			}
		}
		used[voice] = true

		cast[speaker] = types.VoiceDescriptor{
			VoiceID: voice,
			Pitch:   NormalizeOffset(sug.Pitch, pitchPattern, "Hz"),
			Rate:    NormalizeOffset(sug.Rate, ratePattern, "%"),
		}
	}
	return cast, notes
}

func fallbackVoice(fallback []string, i int) string {
	if len(fallback) == 0 {
		return DefaultVoice.VoiceID
	}
	return fallback[i%len(fallback)]
}

// NormalizeOffset validates an edge-tts offset like "+5Hz" or "-10%" and
// clamps its magnitude to 50. Anything malformed becomes "+0<unit>".
func NormalizeOffset(v string, pattern *regexp.Regexp, unit string) string {
	m := pattern.FindStringSubmatch(v)
	if m == nil {
		return "+0" + unit
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "+0" + unit
	}
	if n > maxOffset {
		n = maxOffset
	}
	sign := m[1]
	if n == 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%d%s", sign, n, unit)
}

// Complete gives every speaker missing from cast, or mapped to an empty
// voice, the default voice. It returns the speakers it filled.
func Complete(cast types.Cast, speakers []string) []string {
	var filled []string
	for _, sp := range speakers {
		v, ok := cast[sp]
		if ok && v.VoiceID != "" {
			if v.Pitch == "" {
				v.Pitch = DefaultPitch
			}
			if v.Rate == "" {
				v.Rate = DefaultRate
			}
			cast[sp] = v
			continue
		}
		cast[sp] = DefaultVoice
		filled = append(filled, sp)
	}
	return filled
}
