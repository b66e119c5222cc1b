package tsixel

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

var testState = DrawState{
	Cells:  image.Pt(80, 24),
	Pixels: image.Pt(800, 480),
}

func TestDrawStateConversions(t *testing.T) {
	assert.Equal(t, image.Pt(10, 20), testState.CellSize())
	assert.Equal(t, image.Pt(100, 60), testState.PtInPixels(image.Pt(10, 3)))
	assert.Equal(t, image.Pt(10, 3), testState.PtInCells(image.Pt(100, 60)))
	assert.Equal(t, image.Pt(11, 4), testState.PtInCells(image.Pt(101, 61)))

	assert.Zero(t, DrawState{}.CellSize())
	assert.Zero(t, DrawState{}.PtInCells(image.Pt(10, 10)))
}

func TestDrawStateViewport(t *testing.T) {
	// 80x24 cells minus the status row and a margin of 4x2.
	vp := testState.Viewport(image.Pt(0, 1), image.Pt(4, 2))

	assert.Equal(t, 760, vp.X)
	assert.Equal(t, 0, vp.Y%SIXELHeight)
	assert.LessOrEqual(t, vp.Y, 21*20)
	assert.Greater(t, vp.Y, 21*20-SIXELHeight)

	assert.Zero(t, testState.Viewport(image.Pt(0, 0), image.Pt(80, 0)))
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 0x80, A: 0xFF})
		}
	}
	return img
}

func TestQuantizeImage(t *testing.T) {
	paletted := quantizeImage(gradient(32, 32), 8, false)

	assert.LessOrEqual(t, len(paletted.Palette), 8)
	assert.NotEmpty(t, paletted.Palette)
	assert.Equal(t, image.Rect(0, 0, 32, 32), paletted.Bounds())

	dithered := quantizeImage(gradient(32, 32), 8, true)
	assert.LessOrEqual(t, len(dithered.Palette), 8)
}

func TestEncode(t *testing.T) {
	pool := newEncoderPool()

	out := encode(pool, &Job{
		Src:  gradient(64, 48),
		Size: image.Pt(32, 24),
		Opts: ImageOpts{Scaler: draw.BiLinear, Colors: 16},
	})

	require.NotEmpty(t, out)
	assert.True(t, bytes.HasPrefix(out, []byte("\x1bP")), "SIXEL starts with DCS")

	// The pooled buffer is reset between jobs.
	again := encode(pool, &Job{
		Src:  gradient(64, 48),
		Size: image.Pt(32, 24),
		Opts: ImageOpts{Scaler: draw.BiLinear, Colors: 16},
	})
	assert.Equal(t, out, again)

	assert.Nil(t, encode(pool, &Job{
		Src:  gradient(4, 4),
		Size: image.Pt(0, 10),
	}))
}

func TestPipelineCoalesce(t *testing.T) {
	p := NewPipeline(context.Background())
	defer p.Stop()

	a, b := new(int), new(int)

	p.enqueue(&Job{Owner: a, ID: 1})
	p.enqueue(&Job{Owner: b, ID: 2})
	p.enqueue(&Job{Owner: a, ID: 3})
	p.enqueue(&Job{ID: 4})
	p.enqueue(&Job{ID: 5})

	var ids []uint64
	for _, job := range p.pending {
		ids = append(ids, job.ID)
	}

	assert.Equal(t, []uint64{3, 2, 4, 5}, ids)
}

func TestSurfaceImage(t *testing.T) {
	pipeline := NewPipeline(context.Background())
	pipeline.Start()
	defer pipeline.Stop()

	redrawn := make(chan struct{}, 4)

	surface := NewSurfaceImage(pipeline, ImageOpts{Scaler: draw.ApproxBiLinear}, func() {
		redrawn <- struct{}{}
	})
	surface.SetPosition(image.Pt(0, 1))

	frame := surface.Update(testState)
	assert.Empty(t, frame.SIXEL)
	assert.True(t, frame.MustUpdate)

	surface.Present(gradient(200, 120), image.Pt(100, 60))

	select {
	case <-redrawn:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the encoder")
	}

	frame = surface.Update(testState)
	assert.NotEmpty(t, frame.SIXEL)
	assert.True(t, frame.MustUpdate)
	assert.Equal(t, image.Rect(0, 1, 10, 4), frame.Bounds)

	frame = surface.Update(testState)
	assert.False(t, frame.MustUpdate, "nothing changed since the last update")

	surface.Clear()

	frame = surface.Update(testState)
	assert.Empty(t, frame.SIXEL)
	assert.True(t, frame.MustUpdate)
	assert.Equal(t, image.Rect(0, 1, 0, 1), frame.Bounds)
}

func TestPipelineStopped(t *testing.T) {
	pipeline := NewPipeline(context.Background())
	pipeline.Start()
	pipeline.Stop()

	assert.False(t, pipeline.Queue(Job{Done: func(Job, []byte) {}}))
}

func TestScreenLayers(t *testing.T) {
	s := &Screen{l: &sync.Mutex{}, state: testState}

	a := NewSurfaceImage(nil, ImageOpts{}, nil)
	b := NewSurfaceImage(nil, ImageOpts{}, nil)

	s.AddImage(a)
	s.AddImage(b)
	s.AddImage(a)
	require.Len(t, s.layers, 2)
	assert.Equal(t, Imager(a), s.layers[0].img)

	s.RemoveImage(a)
	require.Len(t, s.layers, 1)
	assert.Equal(t, Imager(b), s.layers[0].img)

	s.RemoveImage(a)
	s.RemoveImage(b)
	assert.Empty(t, s.layers)
}
