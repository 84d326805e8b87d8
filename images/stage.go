// Package images produces background imagery for the composer and the map
// from scenes to those images.
package images

import (
	"context"
	"errors"
	"log"
	"os"

	"shorts-factory/pool"
	"shorts-factory/store"
	"shorts-factory/types"
)

const (
	progressDone = 0.4

	defaultSummaryScenes = 3
)

// Synthesizer turns prompts into image files. A "" entry marks a prompt
// whose image failed; the batch itself only errors when nothing could run.
type Synthesizer interface {
	Generate(ctx context.Context, projectID string, prompts []string, size Size) ([]string, error)
}

// Resolver locates the user-supplied background for upload mode.
type Resolver interface {
	Resolve(ctx context.Context, projectID, ref string) (string, error)
}

// Stage is the image-generation step. All failures degrade to fewer or no
// images; the stage never halts the pipeline.
type Stage struct {
	prompter      Prompter
	synth         Synthesizer
	refs          Resolver
	pool          *pool.Pool
	store         store.Store
	summaryScenes int
}

// New builds the stage. Image model calls are serialised through workers,
// which should be shared by every pipeline in the process.
func New(prompter Prompter, synth Synthesizer, refs Resolver, workers *pool.Pool, st store.Store) *Stage {
	if workers == nil {
		workers = pool.New("images", 1)
	}
	return &Stage{
		prompter:      prompter,
		synth:         synth,
		refs:          refs,
		pool:          workers,
		store:         st,
		summaryScenes: defaultSummaryScenes,
	}
}

// WithSummaryScenes sets how many opening scenes feed the single-image summary.
func (s *Stage) WithSummaryScenes(n int) *Stage {
	if n > 0 {
		s.summaryScenes = n
	}
	return s
}

func (s *Stage) Step() types.Step { return types.StepImages }

func (s *Stage) Run(ctx context.Context, st *types.State) error {
	log.Printf("[images] Mode %s for %d scenes", st.ImageMode, len(st.Scenes()))

	switch st.ImageMode {
	case types.ImageNone:
		s.setEmpty(st)
		log.Println("[images] Skipped, composer will use a solid background")
	case types.ImageUpload:
		s.runUpload(ctx, st)
	case types.ImageSingle:
		if err := s.runSingle(ctx, st); err != nil {
			return err
		}
	default:
		if err := s.runPerScene(ctx, st); err != nil {
			return err
		}
	}

	st.Advance(progressDone)
	s.saveAssets(ctx, st)
	log.Printf("[images] ✅ %d images, index %v", len(st.ImageFiles), st.ImageSceneIndex)
	return nil
}

func (s *Stage) runUpload(ctx context.Context, st *types.State) {
	if st.BackgroundImage == "" {
		st.Fail("Image generation failed: upload mode selected without a background image")
		s.setEmpty(st)
		return
	}
	path := st.BackgroundImage
	if s.refs != nil {
		resolved, err := s.refs.Resolve(ctx, st.ProjectID, st.BackgroundImage)
		if err != nil {
			st.Fail("Image generation failed: %v", err)
			s.setEmpty(st)
			return
		}
		path = resolved
	}
	st.ImageFiles = []string{path}
	st.ImagePrompts = []string{}
	st.ImageSceneIndex = fill(len(st.Scenes()), 0)
}

func (s *Stage) runSingle(ctx context.Context, st *types.State) error {
	if s.synth == nil {
		return errors.New("image stage has no synthesizer")
	}
	scenes := st.Scenes()
	n := s.summaryScenes
	if n > len(scenes) {
		n = len(scenes)
	}
	if s.prompter == nil {
		st.Fail("Image generation failed: no prompt writer configured")
		s.setEmpty(st)
		return nil
	}
	summary, err := s.prompter.Summarize(ctx, scenes[:n])
	if err != nil {
		st.Fail("Image generation failed: story summary: %v", err)
		s.setEmpty(st)
		return nil
	}

	prompts := []string{enhance(summary)}
	files, err := s.generate(ctx, st, prompts)
	if err != nil || len(files) == 0 || files[0] == "" {
		if err == nil {
			err = errors.New("no image returned")
		}
		st.Fail("Image generation failed: %v", err)
		s.setEmpty(st)
		st.ImagePrompts = prompts
		return nil
	}
	st.ImageFiles = []string{files[0]}
	st.ImagePrompts = prompts
	st.ImageSceneIndex = fill(len(scenes), 0)
	return nil
}

func (s *Stage) runPerScene(ctx context.Context, st *types.State) error {
	if s.synth == nil {
		return errors.New("image stage has no synthesizer")
	}
	scenes := st.Scenes()
	ratio := st.ScenesPerImage
	if ratio < 1 {
		ratio = types.DefaultScenesPerImage
	}
	groups := Partition(scenes, ratio)

	var prompts []string
	if s.prompter != nil {
		var err error
		prompts, err = s.prompter.GroupPrompts(ctx, groups)
		if err != nil {
			st.Fail("Image prompt generation failed: %v", err)
			log.Println("[images] ⚠️  Using generic prompts")
			prompts = nil
		}
	}
	prompts = fitPrompts(prompts, len(groups))

	files, err := s.generate(ctx, st, prompts)
	if err != nil {
		st.Fail("Image generation failed: %v", err)
		s.setEmpty(st)
		st.ImagePrompts = prompts
		return nil
	}

	valid, pos := Compact(files, len(groups))
	for g, p := range pos {
		if p == types.NoImage {
			st.Fail("Image generation failed for scenes %d-%d", g*ratio, min(len(scenes), (g+1)*ratio)-1)
		}
	}
	st.ImageFiles = valid
	st.ImagePrompts = prompts
	st.ImageSceneIndex = SceneIndex(len(scenes), ratio, pos)
	return nil
}

func (s *Stage) generate(ctx context.Context, st *types.State, prompts []string) ([]string, error) {
	size := SizeFor(st.Format)
	return pool.Submit(ctx, s.pool, func(ctx context.Context) ([]string, error) {
		return s.synth.Generate(ctx, st.ProjectID, prompts, size)
	})
}

func (s *Stage) setEmpty(st *types.State) {
	st.ImageFiles = []string{}
	st.ImageSceneIndex = []int{}
	st.ImagePrompts = []string{}
}

func (s *Stage) saveAssets(ctx context.Context, st *types.State) {
	if s.store == nil {
		return
	}
	for i, f := range st.ImageFiles {
		a := types.Asset{Kind: "image", Path: f, Scene: firstScene(st.ImageSceneIndex, i)}
		if info, err := os.Stat(f); err == nil {
			a.SizeBytes = info.Size()
		}
		if err := s.store.SaveAsset(ctx, st.ProjectID, a); err != nil {
			log.Printf("[images] Warning: could not save asset %s: %v", f, err)
		}
	}
}

// SizeFor returns the generation size for a video format.
func SizeFor(f types.VideoFormat) Size {
	if f == types.FormatVertical {
		return Size{Width: 720, Height: 1280}
	}
	return Size{Width: 1280, Height: 720}
}

// Partition splits scenes into consecutive groups of size ratio; the last
// group may be shorter.
func Partition(scenes []types.Scene, ratio int) [][]types.Scene {
	if ratio < 1 {
		ratio = 1
	}
	var groups [][]types.Scene
	for i := 0; i < len(scenes); i += ratio {
		groups = append(groups, scenes[i:min(len(scenes), i+ratio)])
	}
	return groups
}

// Compact drops failed ("") entries. pos[g] is group g's position in valid,
// or NoImage when its image failed.
func Compact(files []string, groups int) (valid []string, pos []int) {
	valid = []string{}
	pos = make([]int, groups)
	for g := range pos {
		pos[g] = types.NoImage
		if g < len(files) && files[g] != "" {
			pos[g] = len(valid)
			valid = append(valid, files[g])
		}
	}
	return valid, pos
}

// SceneIndex maps scene i to pos[i/ratio].
func SceneIndex(scenes, ratio int, pos []int) []int {
	idx := make([]int, scenes)
	for i := range idx {
		g := i / ratio
		idx[i] = types.NoImage
		if g < len(pos) {
			idx[i] = pos[g]
		}
	}
	return idx
}

func fitPrompts(prompts []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		p := ""
		if i < len(prompts) {
			p = prompts[i]
		}
		out[i] = enhance(p)
	}
	return out
}

func fill(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func firstScene(index []int, image int) int {
	for i, v := range index {
		if v == image {
			return i
		}
	}
	return 0
}
