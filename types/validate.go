package types

import (
	"errors"
	"fmt"
)

// ErrPrecondition marks a stage whose upstream fields are missing or inconsistent.
var ErrPrecondition = errors.New("stage precondition failed")

// Require checks that every field step reads from upstream is populated and
// consistent before the stage runs.
func (s *State) Require(step Step) error {
	switch step {
	case StepScript:
		if s.Prompt == "" {
			return fmt.Errorf("%w: empty prompt", ErrPrecondition)
		}
	case StepCasting, StepImages:
		if err := s.requireScript(); err != nil {
			return err
		}
	case StepAudio:
		if err := s.requireScript(); err != nil {
			return err
		}
		if s.Cast == nil {
			return fmt.Errorf("%w: cast assignments missing", ErrPrecondition)
		}
		if err := s.checkImageIndex(); err != nil {
			return err
		}
	case StepCompose:
		if err := s.requireScript(); err != nil {
			return err
		}
		if len(s.AudioFiles) == 0 {
			return fmt.Errorf("%w: no audio files", ErrPrecondition)
		}
		if err := s.checkAudioIndex(); err != nil {
			return err
		}
		if err := s.checkImageIndex(); err != nil {
			return err
		}
	case StepPublish:
		if s.VideoPath == "" {
			return fmt.Errorf("%w: video path missing", ErrPrecondition)
		}
		if s.Metadata == nil {
			return fmt.Errorf("%w: publish metadata missing", ErrPrecondition)
		}
	}
	return nil
}

func (s *State) requireScript() error {
	if s.Script == nil || len(s.Script.Scenes) == 0 {
		return fmt.Errorf("%w: script content missing", ErrPrecondition)
	}
	return nil
}

// checkAudioIndex enforces len(files) == len(index) and that every index is
// a valid scene.
func (s *State) checkAudioIndex() error {
	if len(s.AudioFiles) != len(s.AudioSceneIndex) {
		return fmt.Errorf("%w: %d audio files but %d index entries",
			ErrPrecondition, len(s.AudioFiles), len(s.AudioSceneIndex))
	}
	n := len(s.Scenes())
	for i, v := range s.AudioSceneIndex {
		if v < 0 || v >= n {
			return fmt.Errorf("%w: audio %d maps to scene %d of %d", ErrPrecondition, i, v, n)
		}
	}
	return nil
}

// checkImageIndex enforces one entry per scene, each either NoImage or a
// valid position in ImageFiles. An empty index is allowed.
func (s *State) checkImageIndex() error {
	if len(s.ImageSceneIndex) == 0 {
		return nil
	}
	if len(s.ImageSceneIndex) != len(s.Scenes()) {
		return fmt.Errorf("%w: image index has %d entries for %d scenes",
			ErrPrecondition, len(s.ImageSceneIndex), len(s.Scenes()))
	}
	for i, v := range s.ImageSceneIndex {
		if v != NoImage && (v < 0 || v >= len(s.ImageFiles)) {
			return fmt.Errorf("%w: scene %d maps to image %d of %d", ErrPrecondition, i, v, len(s.ImageFiles))
		}
	}
	return nil
}
