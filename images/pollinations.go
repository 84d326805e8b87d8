package images

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"shorts-factory/config"
)

// Size is the requested image geometry in pixels.
type Size struct {
	Width, Height int
}

// Pollinations generates images through image.pollinations.ai (no key needed).
type Pollinations struct {
	httpClient *http.Client
	endpoint   string
	model      string
	retries    int
	outputDir  string
	backoff    time.Duration
}

// NewPollinations writes images under <static>/images/<project>.
func NewPollinations(cfg config.ImagesConfig, staticDir string) *Pollinations {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &Pollinations{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		retries:    retries,
		outputDir:  filepath.Join(staticDir, "images"),
		backoff:    3 * time.Second,
	}
}

// Generate returns one path per prompt, "" where that image failed.
func (p *Pollinations) Generate(ctx context.Context, projectID string, prompts []string, size Size) ([]string, error) {
	dir := filepath.Join(p.outputDir, projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	out := make([]string, len(prompts))
	for i, prompt := range prompts {
		if ctx.Err() != nil {
			break
		}
		outFile := filepath.Join(dir, fmt.Sprintf("image_%03d.jpg", i))
		if err := p.fetch(ctx, p.imageURL(prompt, size, i), outFile); err != nil {
			log.Printf("[images] Image %d failed: %v", i, err)
			continue
		}
		log.Printf("[images] ✅ Image %d saved: %s", i, outFile)
		out[i] = outFile
	}
	return out, nil
}

func (p *Pollinations) imageURL(prompt string, size Size, i int) string {
	return fmt.Sprintf("%s%s?width=%d&height=%d&nologo=true&model=%s&seed=%d",
		p.endpoint, url.PathEscape(prompt), size.Width, size.Height, p.model,
		i*42+7, // deterministic seed per image
	)
}

// fetch retries transient failures with linear backoff.
func (p *Pollinations) fetch(ctx context.Context, imageURL, outFile string) error {
	var err error
	for attempt := 1; attempt <= p.retries; attempt++ {
		if err = download(ctx, p.httpClient, imageURL, outFile, 100); err == nil {
			return nil
		}
		log.Printf("[images] Attempt %d/%d failed: %v", attempt, p.retries, err)
		if attempt == p.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * p.backoff):
		}
	}
	return fmt.Errorf("pollinations fetch failed after %d attempts: %w", p.retries, err)
}

// download saves url to outFile, rejecting responses smaller than minBytes
// (usually an error page).
func download(ctx context.Context, client *http.Client, fileURL, outFile string, minBytes int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ShortsFactory/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024)) // max 10MB
	if err != nil {
		return err
	}
	if len(data) < minBytes {
		return fmt.Errorf("response too small (%d bytes)", len(data))
	}
	return os.WriteFile(outFile, data, 0644)
}
