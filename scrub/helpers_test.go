package scrub_test

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/diamondburned/tcell-scrub/page"
	"github.com/diamondburned/tcell-scrub/scrub"
)

var errMissing = errors.New("404 not found")

// solidImage returns an opaque image filled with c.
func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// frameColor returns a color unique to each frame index.
func frameColor(index int) color.RGBA {
	return color.RGBA{R: uint8(index * 3), G: uint8(255 - index), B: 0x40, A: 0xFF}
}

// memorySource serves generated frames by path. Paths listed in failing fail
// with errMissing.
type memorySource struct {
	cfg     scrub.Config
	size    image.Point
	failing map[int]bool
}

func newMemorySource(cfg scrub.Config, failing ...int) *memorySource {
	src := &memorySource{
		cfg:     cfg,
		size:    image.Pt(16, 12),
		failing: map[int]bool{},
	}
	for _, ix := range failing {
		src.failing[ix] = true
	}
	return src
}

func (src *memorySource) index(path string) int {
	for i := 0; i < src.cfg.FrameCount; i++ {
		if src.cfg.FramePath(i) == path {
			return i
		}
	}
	return -1
}

func (src *memorySource) Load(ctx context.Context, path string) (image.Image, error) {
	ix := src.index(path)
	if ix < 0 || src.failing[ix] {
		return nil, errors.Wrapf(errMissing, "no frame at %q", path)
	}
	return solidImage(src.size.X, src.size.Y, frameColor(ix)), nil
}

// gatedSource blocks every load until its index is released or the context is
// canceled.
type gatedSource struct {
	inner *memorySource

	mu    sync.Mutex
	gates map[int]chan struct{}
}

func newGatedSource(cfg scrub.Config) *gatedSource {
	return &gatedSource{
		inner: newMemorySource(cfg),
		gates: map[int]chan struct{}{},
	}
}

func (src *gatedSource) gate(ix int) chan struct{} {
	src.mu.Lock()
	defer src.mu.Unlock()

	ch, ok := src.gates[ix]
	if !ok {
		ch = make(chan struct{})
		src.gates[ix] = ch
	}
	return ch
}

func (src *gatedSource) Release(ixs ...int) {
	for _, ix := range ixs {
		close(src.gate(ix))
	}
}

func (src *gatedSource) Load(ctx context.Context, path string) (image.Image, error) {
	select {
	case <-src.gate(src.inner.index(path)):
		return src.inner.Load(ctx, path)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testConfig(n int) scrub.Config {
	cfg := scrub.DefaultConfig()
	cfg.FrameCount = n
	cfg.BasePath = "frames"
	return cfg
}

func scrubFactor(v float64) *float64 { return &v }

// drainUntil runs posted work on the calling goroutine until cond returns
// true, failing the test after a timeout.
func drainUntil(t *testing.T, v *page.Virtual, cond func() bool) {
	t.Helper()

	timeout := time.NewTimer(5 * time.Second)
	defer timeout.Stop()

	for {
		v.Drain()
		if cond() {
			return
		}

		select {
		case <-v.Notify():
		case <-timeout.C:
			require.FailNow(t, "timed out waiting for condition")
		}
	}
}

// drainFor runs posted work for a short while, for asserting that nothing
// happens.
func drainFor(v *page.Virtual, d time.Duration) {
	deadline := time.After(d)
	for {
		v.Drain()
		select {
		case <-v.Notify():
		case <-deadline:
			v.Drain()
			return
		}
	}
}

func isZero(buf *image.RGBA) bool {
	for _, b := range buf.Pix {
		if b != 0 {
			return false
		}
	}
	return true
}

func clonePix(buf *image.RGBA) []byte {
	return append([]byte(nil), buf.Pix...)
}
