package subtitles

import (
	"fmt"
	"os"
	"strings"

	"shorts-factory/config"
	"shorts-factory/types"
)

// Style is the look of the caption track.
type Style struct {
	Font         string
	FontSize     int
	Color        string
	OutlineColor string
	Outline      int
	Alignment    int // numpad layout: 2 bottom centre, 5 middle centre
	MarginV      int
	Width        int
	Height       int
}

// StyleFor sizes the configured style to a video format. Vertical captions
// sit mid-frame and larger.
func StyleFor(cfg config.SubtitlesConfig, f types.VideoFormat) Style {
	s := Style{
		Font:         cfg.Font,
		FontSize:     cfg.FontSize,
		Color:        cfg.Color,
		OutlineColor: cfg.OutlineColor,
		Outline:      cfg.Outline,
		Alignment:    2,
		MarginV:      cfg.MarginBottom,
		Width:        1280,
		Height:       720,
	}
	if f == types.FormatVertical {
		s.Width, s.Height = 720, 1280
		s.Alignment = 5
		s.FontSize = cfg.FontSize * 11 / 10
		s.MarginV = 300
	}
	if s.Font == "" {
		s.Font = "Impact"
	}
	if s.FontSize <= 0 {
		s.FontSize = 64
	}
	if s.Color == "" {
		s.Color = "&H00FFFFFF"
	}
	if s.OutlineColor == "" {
		s.OutlineColor = "&H00000000"
	}
	return s
}

// WriteASS writes cues as an Advanced SubStation Alpha file.
func WriteASS(path string, cues []Cue, s Style) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[Script Info]\nTitle: Captions\nScriptType: v4.00+\nPlayResX: %d\nPlayResY: %d\nWrapStyle: 0\n\n", s.Width, s.Height)
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Default,%s,%d,%s,&H000000FF,%s,&H80000000,1,0,0,0,100,100,0,0,1,%d,0,%d,10,10,%d,1\n\n",
		s.Font, s.FontSize, s.Color, s.OutlineColor, s.Outline, s.Alignment, s.MarginV)
	b.WriteString("[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range cues {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", secondsToASS(c.Start), secondsToASS(c.End), escapeASS(c.Text))
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// secondsToASS formats h:mm:ss.cc.
func secondsToASS(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	cs := int(sec*100 + 0.5)
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}

func escapeASS(text string) string {
	return strings.NewReplacer("\\", "\\\\", "{", "\\{", "}", "\\}", "\n", " ").Replace(text)
}

// EscapeFilterPath escapes a path for use inside an ffmpeg filter argument.
func EscapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, ":", "\\:")
	return strings.ReplaceAll(path, "'", "\\'")
}
