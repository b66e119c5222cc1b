package tsixel

import (
	"image"
	"sync"
)

// SurfaceImage is a SIXEL layer showing snapshots of an RGBA surface. Each
// snapshot is scaled and encoded on a Pipeline; only the latest one is ever
// shown, and snapshots still queued when a newer one arrives are skipped.
type SurfaceImage struct {
	l sync.Mutex

	pipeline *Pipeline
	opts     ImageOpts
	redraw   func()

	sixel  []byte
	pixels image.Point // size of the encoded SIXEL
	upd    bool        // used to trigger redraw, not re-encode

	latest uint64 // ID of the latest queued snapshot
	imgPos image.Point
}

// NewSurfaceImage creates a new surface layer. redraw is called from a
// pipeline goroutine whenever a new snapshot has been encoded.
func NewSurfaceImage(pipeline *Pipeline, opts ImageOpts, redraw func()) *SurfaceImage {
	return &SurfaceImage{
		pipeline: pipeline,
		opts:     opts,
		redraw:   redraw,
	}
}

// SetPosition sets the top-left corner of the layer in cells.
func (surface *SurfaceImage) SetPosition(pt image.Point) {
	surface.l.Lock()
	defer surface.l.Unlock()

	surface.imgPos = pt
	surface.upd = true
}

// Present queues a snapshot of buf to be shown at the given size in pixels.
// buf is copied before Present returns.
func (surface *SurfaceImage) Present(buf *image.RGBA, size image.Point) {
	snapshot := image.NewRGBA(buf.Rect)
	copy(snapshot.Pix, buf.Pix)

	surface.l.Lock()
	surface.latest++
	id := surface.latest
	surface.l.Unlock()

	surface.pipeline.Queue(Job{
		Owner: surface,
		ID:    id,
		Src:   snapshot,
		Size:  size,
		Opts:  surface.opts,
		Done:  surface.encoded,
	})
}

func (surface *SurfaceImage) encoded(job Job, sixel []byte) {
	surface.l.Lock()

	// Drop snapshots that were superseded while encoding.
	if job.ID != surface.latest {
		surface.l.Unlock()
		return
	}

	surface.sixel = sixel
	surface.pixels = job.Size
	surface.upd = true

	surface.l.Unlock()

	if surface.redraw != nil {
		surface.redraw()
	}
}

// Clear removes the shown snapshot and drops any pending one.
func (surface *SurfaceImage) Clear() {
	surface.l.Lock()
	defer surface.l.Unlock()

	surface.latest++
	surface.sixel = nil
	surface.pixels = image.Point{}
	surface.upd = true
}

func (surface *SurfaceImage) bounds(state DrawState) image.Rectangle {
	return image.Rectangle{
		Min: surface.imgPos,
		Max: surface.imgPos.Add(state.PtInCells(surface.pixels)),
	}
}

// Update returns the latest encoded snapshot. It implements Imager.
func (surface *SurfaceImage) Update(state DrawState) Frame {
	surface.l.Lock()
	defer surface.l.Unlock()

	changed := surface.upd
	surface.upd = false

	return Frame{
		SIXEL:      surface.sixel,
		Bounds:     surface.bounds(state),
		MustUpdate: changed,
	}
}
