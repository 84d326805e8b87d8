// Package research finds fresh topics for scheduled runs.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/vartanbeno/go-reddit/v2/reddit"

	"shorts-factory/config"
)

// ErrExhausted is returned when every candidate was filtered out or used.
var ErrExhausted = errors.New("no unused topic passed the filter")

// Topic is one candidate story for a video.
type Topic struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Source   string    `json:"source"`
	URL      string    `json:"url"`
	Score    int       `json:"score"`
	Comments int       `json:"comments"`
	Created  time.Time `json:"created"`
	Keywords []string  `json:"keywords"`
	Rank     int       `json:"rank"`
}

// Prompt turns the topic into a script prompt.
func (t Topic) Prompt() string {
	var sb strings.Builder
	sb.WriteString("Write a short narrated video about this story.\n\n")
	sb.WriteString("HEADLINE: " + strings.TrimSpace(t.Title) + "\n")
	if body := strings.TrimSpace(t.Body); body != "" {
		r := []rune(body)
		if len(r) > 1500 {
			body = string(r[:1500]) + "..."
		}
		sb.WriteString("\nDETAILS:\n" + body + "\n")
	}
	if t.Source != "" {
		sb.WriteString("\nSOURCE: " + t.Source + "\n")
	}
	return sb.String()
}

// PostSource lists hot posts of a subreddit.
type PostSource interface {
	HotPosts(ctx context.Context, subreddit string, limit int) ([]*reddit.Post, error)
}

type redditSource struct {
	client *reddit.Client
}

func (r redditSource) HotPosts(ctx context.Context, subreddit string, limit int) ([]*reddit.Post, error) {
	posts, _, err := r.client.Subreddit.HotPosts(ctx, subreddit, &reddit.ListOptions{Limit: limit})
	return posts, err
}

// NewRedditSource logs in with script-app credentials, or falls back to the
// read-only client when none are configured.
func NewRedditSource(cfg config.ResearchConfig) (PostSource, error) {
	if cfg.RedditClientID == "" || cfg.RedditSecret == "" {
		log.Println("[research] Warning: REDDIT_CLIENT_ID or REDDIT_CLIENT_SECRET not set, using read-only client")
		c, err := reddit.NewReadonlyClient()
		if err != nil {
			return nil, fmt.Errorf("reddit read-only client: %w", err)
		}
		return redditSource{client: c}, nil
	}
	c, err := reddit.NewClient(reddit.Credentials{
		ID:       cfg.RedditClientID,
		Secret:   cfg.RedditSecret,
		Username: cfg.RedditUsername,
		Password: cfg.RedditPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return redditSource{client: c}, nil
}

// Scraper ranks hot posts and hands out each topic at most once.
type Scraper struct {
	src      PostSource
	cfg      config.ResearchConfig
	filter   *govaluate.EvaluableExpression
	usedPath string
	now      func() time.Time

	mu   sync.Mutex
	used map[string]bool
}

// New builds a scraper over src. usedPath persists handed-out topic IDs;
// an empty path keeps them in memory only.
func New(src PostSource, cfg config.ResearchConfig, usedPath string) (*Scraper, error) {
	if src == nil {
		return nil, errors.New("research: post source is required")
	}
	expr := strings.TrimSpace(cfg.Filter)
	if expr == "" {
		expr = "score >= min_score && comments >= min_comments"
	}
	filter, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("research filter %q: %w", expr, err)
	}
	return &Scraper{
		src:      src,
		cfg:      cfg,
		filter:   filter,
		usedPath: usedPath,
		now:      time.Now,
		used:     loadUsedTopics(usedPath),
	}, nil
}

// Next fetches candidates from every subreddit, ranks them and returns the
// best one not handed out before. The topic is marked used.
func (s *Scraper) Next(ctx context.Context) (*Topic, error) {
	log.Println("[research] Starting topic scrape...")

	candidates, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Rank > candidates[j].Rank
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range candidates {
		if s.used[t.ID] {
			continue
		}
		s.used[t.ID] = true
		s.saveUsed()
		log.Printf("[research] ✅ Selected topic: %q (rank: %d)", t.Title, t.Rank)
		return t, nil
	}
	return nil, ErrExhausted
}

func (s *Scraper) collect(ctx context.Context) ([]*Topic, error) {
	if len(s.cfg.Subreddits) == 0 {
		return nil, errors.New("research: no subreddits configured")
	}
	limit := s.cfg.MaxPostsPerSub
	if limit <= 0 {
		limit = 25
	}
	now := s.now()
	var cutoff time.Time
	if s.cfg.LookbackDays > 0 {
		cutoff = now.AddDate(0, 0, -s.cfg.LookbackDays)
	}

	var (
		out    []*Topic
		failed int
	)
	for _, sub := range s.cfg.Subreddits {
		posts, err := s.src.HotPosts(ctx, sub, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("[research] Reddit r/%s error: %v", sub, err)
			failed++
			continue
		}
		kept := 0
		for _, p := range posts {
			t, ok := s.consider(sub, p, now, cutoff)
			if !ok {
				continue
			}
			out = append(out, t)
			kept++
		}
		log.Printf("[research] r/%s: %d of %d posts kept", sub, kept, len(posts))
	}
	if failed == len(s.cfg.Subreddits) {
		return nil, errors.New("research: every subreddit request failed")
	}
	return out, nil
}

// consider turns a post into a topic when it passes the lookback window and
// the filter expression.
func (s *Scraper) consider(sub string, p *reddit.Post, now, cutoff time.Time) (*Topic, bool) {
	if p == nil || p.ID == "" || strings.TrimSpace(p.Title) == "" {
		return nil, false
	}
	var created time.Time
	if p.Created != nil {
		created = p.Created.Time
	}
	if !cutoff.IsZero() && !created.IsZero() && created.Before(cutoff) {
		return nil, false
	}

	t := &Topic{
		ID:       "reddit_" + p.ID,
		Title:    strings.TrimSpace(p.Title),
		Body:     strings.TrimSpace(p.Body),
		Source:   "r/" + sub,
		URL:      "https://reddit.com" + p.Permalink,
		Score:    p.Score,
		Comments: p.NumberOfComments,
		Created:  created,
	}
	t.Keywords = matchKeywords(t.Title+" "+t.Body, s.cfg.Keywords)

	ageDays := 0.0
	if !created.IsZero() {
		ageDays = now.Sub(created).Hours() / 24
	}
	res, err := s.filter.Evaluate(map[string]interface{}{
		"score":        float64(t.Score),
		"comments":     float64(t.Comments),
		"age_days":     ageDays,
		"keyword_hits": float64(len(t.Keywords)),
		"body_length":  float64(len(t.Body)),
		"min_score":    float64(s.cfg.MinScore),
		"min_comments": float64(s.cfg.MinComments),
	})
	if err != nil {
		log.Printf("[research] Warning: filter failed for %s: %v", t.ID, err)
		return nil, false
	}
	if pass, ok := res.(bool); !ok || !pass {
		return nil, false
	}
	t.Rank = rank(t, now)
	return t, true
}

// rank favours upvotes, hook keywords, recent posts and long bodies.
func rank(t *Topic, now time.Time) int {
	r := t.Score + 50*len(t.Keywords)
	if !t.Created.IsZero() && now.Sub(t.Created) < 72*time.Hour {
		r += 200
	}
	if len(t.Body) > 500 {
		r += 75
	}
	if len(t.Body) > 1500 {
		r += 75
	}
	return r
}

func matchKeywords(text string, keywords []string) []string {
	text = strings.ToLower(text)
	var found []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			found = append(found, kw)
		}
	}
	return found
}

func loadUsedTopics(path string) map[string]bool {
	used := make(map[string]bool)
	if path == "" {
		return used
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return used
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		log.Printf("[research] Warning: unreadable used-topics log %s: %v", path, err)
		return used
	}
	for _, id := range ids {
		used[id] = true
	}
	return used
}

// saveUsed writes the used IDs sorted. Caller holds s.mu.
func (s *Scraper) saveUsed() {
	if s.usedPath == "" {
		return
	}
	ids := make([]string, 0, len(s.used))
	for id := range s.used {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, _ := json.MarshalIndent(ids, "", "  ")
	if err := os.MkdirAll(filepath.Dir(s.usedPath), 0755); err != nil {
		log.Printf("[research] Warning: could not create %s: %v", filepath.Dir(s.usedPath), err)
		return
	}
	if err := os.WriteFile(s.usedPath, data, 0644); err != nil {
		log.Printf("[research] Warning: could not save used topics: %v", err)
	}
}
