package images

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// References resolves the background a user supplied for upload mode. URLs
// are downloaded into the project's image dir; other values are paths,
// relative ones under the static dir.
type References struct {
	httpClient *http.Client
	staticDir  string
}

func NewReferences(staticDir string) *References {
	return &References{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		staticDir:  staticDir,
	}
}

func (r *References) Resolve(ctx context.Context, projectID, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty background reference")
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		dir := filepath.Join(r.staticDir, "images", projectID)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
		ext := strings.ToLower(filepath.Ext(strings.SplitN(ref, "?", 2)[0]))
		if ext == "" || len(ext) > 5 {
			ext = ".jpg"
		}
		out := filepath.Join(dir, "background"+ext)
		if err := download(ctx, r.httpClient, ref, out, 1000); err != nil {
			return "", fmt.Errorf("download background: %w", err)
		}
		return out, nil
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.staticDir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("background image: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("background image %s is a directory", path)
	}
	return path, nil
}
