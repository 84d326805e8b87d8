// Package audio voices every scene with its cast voice.
package audio

import (
	"context"
	"errors"
	"log"
	"os"

	"shorts-factory/casting"
	"shorts-factory/store"
	"shorts-factory/types"
)

const (
	progressStart = 0.4
	progressSpan  = 0.3
)

// Synthesizer renders one scene to an audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, projectID string, scene int, text string, voice types.VoiceDescriptor) (string, error)
}

// Stage is the audio-generation step.
type Stage struct {
	synth Synthesizer
	store store.Store
}

func New(synth Synthesizer, st store.Store) *Stage {
	return &Stage{synth: synth, store: st}
}

func (s *Stage) Step() types.Step { return types.StepAudio }

// Run synthesizes scenes in order. A failed scene is logged and left out of
// the index map; the runner ends the pipeline when no scene succeeded.
func (s *Stage) Run(ctx context.Context, st *types.State) error {
	if s.synth == nil {
		return errors.New("audio stage has no synthesizer")
	}
	scenes := st.Scenes()
	log.Printf("[audio] Generating TTS audio for %d scenes...", len(scenes))

	files := []string{}
	index := []int{}
	for i, sc := range scenes {
		voice, ok := st.Cast[sc.Speaker]
		if !ok || voice.VoiceID == "" {
			log.Printf("[audio] Warning: no voice for %q, using %s", sc.Speaker, casting.DefaultVoice.VoiceID)
			voice = casting.DefaultVoice
		}

		log.Printf("[audio] Scene %d/%d: %s (%s)", i+1, len(scenes), sc.Speaker, voice.VoiceID)
		path, err := s.synth.Synthesize(ctx, st.ProjectID, i, Sanitize(sc.Line), voice)
		if err != nil {
			st.Fail("Audio generation failed for scene %d: %v", i, err)
			log.Printf("[audio] ❌ Scene %d: %v", i, err)
		} else {
			files = append(files, path)
			index = append(index, i)
			s.saveAsset(ctx, st.ProjectID, i, sc.Speaker, path)
		}

		st.Advance(progressStart + progressSpan*float64(i+1)/float64(len(scenes)))
	}

	st.AudioFiles = files
	st.AudioSceneIndex = index
	if len(files) == 0 {
		log.Printf("[audio] ❌ No audio generated for project %s", st.ProjectID)
		return nil
	}
	log.Printf("[audio] ✅ %d/%d scenes voiced", len(files), len(scenes))
	return nil
}

func (s *Stage) saveAsset(ctx context.Context, projectID string, scene int, speaker, path string) {
	if s.store == nil {
		return
	}
	a := types.Asset{Kind: "audio", Path: path, Scene: scene, Character: speaker}
	if info, err := os.Stat(path); err == nil {
		a.SizeBytes = info.Size()
	}
	if err := s.store.SaveAsset(ctx, projectID, a); err != nil {
		log.Printf("[audio] Warning: could not save asset %s: %v", path, err)
	}
}
