package casting

import "shorts-factory/types"

// Catalog is the set of voices the director may pick from.
type Catalog []types.Voice

// DefaultCatalog lists edge-tts neural voices with their speaking styles.
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: "en-US-AriaNeural", Name: "Aria", Gender: "Female", Locale: "en-US", Styles: []string{"news", "narration", "cheerful", "empathetic"}},
		{ID: "en-US-GuyNeural", Name: "Guy", Gender: "Male", Locale: "en-US", Styles: []string{"news", "host", "passionate"}},
		{ID: "en-US-JennyNeural", Name: "Jenny", Gender: "Female", Locale: "en-US", Styles: []string{"assistant", "expert", "friendly"}},
		{ID: "en-US-ChristopherNeural", Name: "Christopher", Gender: "Male", Locale: "en-US", Styles: []string{"reliable", "authority"}},
		{ID: "en-US-MichelleNeural", Name: "Michelle", Gender: "Female", Locale: "en-US", Styles: []string{"friendly", "pleasant"}},
		{ID: "en-US-EricNeural", Name: "Eric", Gender: "Male", Locale: "en-US", Styles: []string{"rational", "calm"}},
		{ID: "en-US-RogerNeural", Name: "Roger", Gender: "Male", Locale: "en-US", Styles: []string{"lively", "storyteller"}},
		{ID: "en-US-SteffanNeural", Name: "Steffan", Gender: "Male", Locale: "en-US", Styles: []string{"rational", "teacher"}},
		{ID: "en-US-AnaNeural", Name: "Ana", Gender: "Female", Locale: "en-US", Styles: []string{"child", "cute"}},
		{ID: "en-US-AndrewNeural", Name: "Andrew", Gender: "Male", Locale: "en-US", Styles: []string{"warm", "confident", "conversational"}},
		{ID: "en-US-EmmaNeural", Name: "Emma", Gender: "Female", Locale: "en-US", Styles: []string{"cheerful", "clear", "conversational"}},
		{ID: "en-US-BrianNeural", Name: "Brian", Gender: "Male", Locale: "en-US", Styles: []string{"approachable", "casual", "sincere"}},
		{ID: "en-US-AvaNeural", Name: "Ava", Gender: "Female", Locale: "en-US", Styles: []string{"expressive", "caring", "bright"}},
		{ID: "en-GB-RyanNeural", Name: "Ryan", Gender: "Male", Locale: "en-GB", Styles: []string{"friendly", "positive"}},
		{ID: "en-GB-SoniaNeural", Name: "Sonia", Gender: "Female", Locale: "en-GB", Styles: []string{"friendly", "positive"}},
		{ID: "en-AU-WilliamNeural", Name: "William", Gender: "Male", Locale: "en-AU", Styles: []string{"friendly", "positive"}},
		{ID: "en-AU-NatashaNeural", Name: "Natasha", Gender: "Female", Locale: "en-AU", Styles: []string{"friendly", "positive"}},
	}
}

// Has reports whether id is in the catalog.
func (c Catalog) Has(id string) bool {
	for _, v := range c {
		if v.ID == id {
			return true
		}
	}
	return false
}

// FirstUnused returns the first voice id not in used, or "".
func (c Catalog) FirstUnused(used map[string]bool) string {
	for _, v := range c {
		if !used[v.ID] {
			return v.ID
		}
	}
	return ""
}

// ForLocale keeps voices whose locale matches. An empty locale keeps all.
func (c Catalog) ForLocale(locale string) Catalog {
	if locale == "" {
		return c
	}
	var out Catalog
	for _, v := range c {
		if v.Locale == locale {
			out = append(out, v)
		}
	}
	return out
}
