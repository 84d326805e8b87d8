// Package casting assigns a TTS voice to every speaker in the script.
package casting

import (
	"context"
	"log"
	"sort"
	"strings"

	"shorts-factory/store"
	"shorts-factory/types"
)

const (
	progressDone = 0.3
	sampleLines  = 5
)

// DefaultFallback is cycled through when the director gives no usable voice.
var DefaultFallback = []string{
	"en-US-ChristopherNeural",
	"en-US-MichelleNeural",
	"en-US-GuyNeural",
	"en-US-JennyNeural",
}

// Stage is the casting-director step. It never halts the pipeline.
type Stage struct {
	selector Selector
	catalog  Catalog
	fallback []string
	store    store.Store
}

// Option configures the casting Stage.
type Option func(*Stage)

func WithCatalog(c Catalog) Option {
	return func(s *Stage) {
		if len(c) > 0 {
			s.catalog = c
		}
	}
}

func WithFallback(voices []string) Option {
	return func(s *Stage) {
		if len(voices) > 0 {
			s.fallback = voices
		}
	}
}

// New builds the stage. selector may be nil, in which case every speaker
// is cast from the fallback list.
func New(selector Selector, st store.Store, opts ...Option) *Stage {
	s := &Stage{
		selector: selector,
		catalog:  DefaultCatalog(),
		fallback: DefaultFallback,
		store:    st,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stage) Step() types.Step { return types.StepCasting }

func (s *Stage) Run(ctx context.Context, st *types.State) error {
	speakers := st.Speakers()
	log.Printf("[casting] Casting %d speakers: %s", len(speakers), strings.Join(speakers, ", "))

	var suggestions map[string]types.VoiceDescriptor
	if s.selector != nil {
		var err error
		suggestions, err = s.selector.SelectVoices(ctx, GroupLines(st.Scenes(), sampleLines), s.catalog)
		if err != nil {
			msg := st.Fail("Casting director failed: %v", err)
			log.Printf("[casting] ⚠️  %s, using fallback voices", msg)
			suggestions = nil
		}
	}

	cast, notes := Assign(speakers, suggestions, s.catalog, s.fallback)
	for _, n := range notes {
		log.Printf("[casting] Warning: %s, using fallback", n)
	}
	if filled := Complete(cast, speakers); len(filled) > 0 {
		log.Printf("[casting] Filled %d speakers with default voice: %v", len(filled), filled)
	}

	st.Cast = cast
	st.Advance(progressDone)

	for _, sp := range speakers {
		v := cast[sp]
		log.Printf("[casting]   %s -> %s (%s, %s)", sp, v.VoiceID, v.Pitch, v.Rate)
	}
	if s.store != nil {
		if err := s.store.SaveCast(ctx, st.ProjectID, cast); err != nil {
			log.Printf("[casting] Warning: could not save cast: %v", err)
		}
	}
	log.Printf("[casting] ✅ Cast complete")
	return nil
}

// GroupLines collects up to max sample lines per speaker in script order.
func GroupLines(scenes []types.Scene, max int) map[string][]string {
	out := make(map[string][]string)
	for _, sc := range scenes {
		if max > 0 && len(out[sc.Speaker]) >= max {
			continue
		}
		out[sc.Speaker] = append(out[sc.Speaker], sc.Line)
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
