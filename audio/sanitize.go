package audio

import (
	"strings"
	"unicode"
)

// placeholder is spoken when a line has nothing left after cleaning.
const placeholder = "..."

// markup characters break the SSML edge-tts builds around the text
var markup = strings.NewReplacer("<", "", ">", "", "&", " and ", "{", "", "}", "", "\\", "")

// Sanitize prepares a dialogue line for synthesis: control characters are
// dropped, markup characters removed and whitespace collapsed. The result is
// never empty.
func Sanitize(text string) string {
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			return ' '
		case unicode.IsControl(r), r == unicode.ReplacementChar:
			return -1
		}
		return r
	}, text)
	text = markup.Replace(text)
	text = strings.Join(strings.Fields(text), " ")
	if strings.Trim(text, " .,!?;:-'\"") == "" {
		return placeholder
	}
	return text
}
