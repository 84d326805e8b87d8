package graph

import "shorts-factory/types"

// AfterScript is the continuation predicate of the script step: it moves on
// once a script exists, re-enters while retries remain, and fails once they
// are spent. Retry evaluates it between attempts.
func AfterScript(s *types.State, maxRetries int) types.Step {
	switch {
	case s.Script != nil:
		return types.StepCasting
	case s.RetryCount < maxRetries:
		return types.StepScript
	default:
		return types.StepFailed
	}
}

// AfterImages is unconditional: image failures only degrade the background.
func AfterImages(*types.State) types.Step {
	return types.StepAudio
}

// AfterAudio fails the run when no scene produced audio.
func AfterAudio(s *types.State) types.Step {
	if len(s.AudioFiles) > 0 {
		return types.StepCompose
	}
	return types.StepFailed
}

// ShouldPublish requires a video, the auto-publish flag and metadata.
func ShouldPublish(s *types.State) bool {
	return s.VideoPath != "" && s.AutoPublish && s.Metadata != nil
}

// AfterCompose ends the run unless the video should be published.
func AfterCompose(s *types.State) types.Step {
	if s.VideoPath == "" {
		return types.StepFailed
	}
	if ShouldPublish(s) {
		return types.StepPublish
	}
	return types.StepDone
}

// Next is the full transition table. The script step has no self-loop here:
// Retry has already spent its attempts, so a missing script is final.
func Next(from types.Step, s *types.State) types.Step {
	switch from {
	case types.StepScript:
		if s.Script != nil {
			return types.StepCasting
		}
		return types.StepFailed
	case types.StepCasting:
		return types.StepImages
	case types.StepImages:
		return AfterImages(s)
	case types.StepAudio:
		return AfterAudio(s)
	case types.StepCompose:
		return AfterCompose(s)
	case types.StepPublish:
		return types.StepDone
	}
	return types.StepFailed
}
