package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"shorts-factory/config"
)

// Kind selects the video or the music half of the library.
type Kind string

const (
	KindVideo Kind = "video"
	KindMusic Kind = "music"
)

// Library resolves user background references and picks tagged stock clips
// and tracks from assets/video and assets/music. Each directory has a
// tags.json mapping file name to tags.
type Library struct {
	staticDir string
	dirs      map[Kind]string
	tagFiles  map[Kind]string
	usagePath string

	mu    sync.Mutex
	tags  map[Kind]map[string][]string
	usage map[string][]string // project → files used
}

func NewLibrary(paths config.PathsConfig) *Library {
	l := &Library{
		staticDir: paths.Static,
		dirs:      map[Kind]string{KindVideo: paths.AssetsVideo, KindMusic: paths.AssetsMusic},
		tagFiles:  map[Kind]string{KindVideo: paths.VideoTags, KindMusic: paths.MusicTags},
		usagePath: paths.ClipUsageLog,
		tags:      map[Kind]map[string][]string{},
		usage:     loadUsageLog(paths.ClipUsageLog),
	}
	l.Reload()
	return l
}

// Reload re-reads both tags.json files.
func (l *Library) Reload() {
	for kind, path := range l.tagFiles {
		tags, err := loadTagsJSON(path)
		if err != nil {
			log.Printf("[assets] Warning: %s tags unreadable: %v", kind, err)
			continue
		}
		l.mu.Lock()
		l.tags[kind] = tags
		l.mu.Unlock()
	}
}

// Count returns the number of tagged files of kind.
func (l *Library) Count(kind Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tags[kind])
}

// Resolve turns a user reference into an existing file. Relative paths are
// looked up under the static dir, then the asset dir of kind.
func (l *Library) Resolve(kind Kind, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty %s reference", kind)
	}
	candidates := []string{ref}
	if !filepath.IsAbs(ref) {
		candidates = []string{
			filepath.Join(l.staticDir, ref),
			filepath.Join(l.dirs[kind], ref),
			ref,
		}
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s %q not found", kind, ref)
}

// Pick chooses a tagged file of kind for a project, preferring tag matches
// with keywords and files other projects have used least. It never returns
// a file twice for the same project.
func (l *Library) Pick(kind Kind, projectID string, keywords []string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	uses := map[string]int{}
	for _, files := range l.usage {
		for _, f := range files {
			uses[f]++
		}
	}
	mine := map[string]bool{}
	for _, f := range l.usage[projectID] {
		mine[f] = true
	}

	type scored struct {
		file  string
		score int
	}
	var candidates []scored
	for file, tags := range l.tags[kind] {
		if mine[file] {
			continue
		}
		if _, err := os.Stat(filepath.Join(l.dirs[kind], file)); err != nil {
			continue
		}
		candidates = append(candidates, scored{file, matchScore(keywords, tags) - uses[file]})
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].file < candidates[j].file
	})
	// random among the top 3 so consecutive videos differ
	pick := candidates[rand.Intn(min(3, len(candidates)))]

	l.usage[projectID] = append(l.usage[projectID], pick.file)
	l.saveUsageLog()
	log.Printf("[assets] %s: picked %q (score: %d)", kind, pick.file, pick.score)
	return filepath.Join(l.dirs[kind], pick.file), true
}

// Watch reloads tags whenever a tags.json changes. It blocks until ctx is done.
func (l *Library) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := map[string]bool{}
	for _, path := range l.tagFiles {
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			log.Printf("[assets] Warning: cannot watch %s: %v", dir, err)
			continue
		}
		watched[dir] = true
	}
	if len(watched) == 0 {
		return fmt.Errorf("no asset directories to watch")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !l.isTagFile(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Write != 0 || ev.Op&fsnotify.Create != 0 || ev.Op&fsnotify.Remove != 0 {
				log.Printf("[assets] %s changed, reloading tags", ev.Name)
				l.Reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[assets] Warning: watcher: %v", err)
		}
	}
}

func (l *Library) isTagFile(name string) bool {
	for _, p := range l.tagFiles {
		if filepath.Clean(p) == filepath.Clean(name) {
			return true
		}
	}
	return false
}

// Keywords extracts lowercase words of four letters or more from text.
func Keywords(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(f) >= 4 && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// matchScore gives 10 points per tag found among keywords.
func matchScore(keywords, tags []string) int {
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		set[strings.ToLower(k)] = true
	}
	score := 0
	for _, t := range tags {
		if set[strings.ToLower(t)] {
			score += 10
		}
	}
	return score
}

func loadTagsJSON(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, err
	}

	// tags.json may carry _instructions style keys
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	result := make(map[string][]string)
	for k, v := range raw {
		if strings.HasPrefix(k, "_") {
			continue
		}
		var tags []string
		if err := json.Unmarshal(v, &tags); err != nil {
			continue
		}
		result[k] = tags
	}
	return result, nil
}

func loadUsageLog(path string) map[string][]string {
	usage := make(map[string][]string)
	if path == "" {
		return usage
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return usage
	}
	_ = json.Unmarshal(data, &usage)
	return usage
}

func (l *Library) saveUsageLog() {
	if l.usagePath == "" {
		return
	}
	data, _ := json.MarshalIndent(l.usage, "", "  ")
	if err := os.MkdirAll(filepath.Dir(l.usagePath), 0755); err != nil {
		return
	}
	if err := os.WriteFile(l.usagePath, data, 0644); err != nil {
		log.Printf("[assets] Warning: could not save usage log: %v", err)
	}
}
