package scrub

import (
	"context"
	"image"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Source loads a single frame image by its path. Load is called from multiple
// goroutines at once.
type Source interface {
	Load(ctx context.Context, path string) (image.Image, error)
}

// SourceFunc is a function that implements Source.
type SourceFunc func(ctx context.Context, path string) (image.Image, error)

// Load calls fn.
func (fn SourceFunc) Load(ctx context.Context, path string) (image.Image, error) {
	return fn(ctx, path)
}

// FSSource loads frames from a filesystem.
type FSSource struct {
	FS fs.FS
}

// DirSource returns a source that reads frames relative to a directory.
func DirSource(dir string) FSSource {
	return FSSource{FS: os.DirFS(dir)}
}

// Load opens and decodes the file at path.
func (src FSSource) Load(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := src.FS.Open(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer f.Close()

	return decode(f)
}

// HTTPSource fetches frames over HTTP relative to a base URL.
type HTTPSource struct {
	// BaseURL is prepended to the frame path, e.g. "https://host/frames".
	BaseURL string
	// Client is the HTTP client to use. http.DefaultClient is used if nil.
	Client *http.Client
}

// Load fetches and decodes the image at BaseURL/path.
func (src HTTPSource) Load(ctx context.Context, path string) (image.Image, error) {
	url := strings.TrimSuffix(src.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	client := src.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch frame")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}

	return decode(resp.Body)
}

func decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}

	return img, nil
}
