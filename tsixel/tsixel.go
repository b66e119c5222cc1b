// Package tsixel draws SIXEL layers on top of a tcell screen.
package tsixel

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
)

// SIXELBufferSize is the initial capacity of each encoder's output buffer.
const SIXELBufferSize = 40960 // 40KB

// Errors returned by WrapInitScreen for screens lacking a capability.
var (
	ErrNoDrawInterceptor = errors.New("screen does not support draw interceptors")
	ErrNoPixelDimensions = errors.New("screen does not support pixel dimensions")
	ErrNoDirectDrawer    = errors.New("screen does not support direct drawer")
	// ErrNoExplicitSync is returned if the screen is not a sync.Locker, which
	// is needed to guard the layer list against the draw intercepts.
	ErrNoExplicitSync = errors.New("screen does not allow explicit syncing")
)

// Screen wraps around a tcell screen to manage and draw SIXEL layers. Layers
// are drawn in the order they were added.
type Screen struct {
	s tcell.Screen
	l sync.Locker

	layers []*layer
	state  DrawState
}

// Imager is a SIXEL layer.
type Imager interface {
	// Update is called before every draw with the current screen state. The
	// returned frame is drawn if it must be updated or if the screen is
	// synced.
	Update(state DrawState) Frame
}

// Frame is what a layer draws.
type Frame struct {
	// SIXEL is the encoded image. It must not be modified after Update
	// returns it.
	SIXEL []byte
	// Bounds is where the image is on the screen, in cells.
	Bounds image.Rectangle
	// MustUpdate forces the SIXEL to be written. The screen may write it
	// anyway, e.g. when text was drawn over it.
	MustUpdate bool
}

// layer remembers the last frame of an Imager for damage tracking.
type layer struct {
	img  Imager
	last Frame
}

// screenCaps holds the interfaces a SIXEL-capable tcell screen implements.
type screenCaps struct {
	drawer tcell.DirectDrawer
	adder  tcell.DrawInterceptAdder
	locker sync.Locker
	sizer  tcell.PixelSizer
}

func probeScreen(s tcell.Screen) (caps screenCaps, err error) {
	var ok bool

	if caps.drawer, ok = s.(tcell.DirectDrawer); !ok {
		return caps, ErrNoDirectDrawer
	}
	if caps.adder, ok = s.(tcell.DrawInterceptAdder); !ok {
		return caps, ErrNoDrawInterceptor
	}
	if caps.locker, ok = s.(sync.Locker); !ok {
		return caps, ErrNoExplicitSync
	}
	if caps.sizer, ok = s.(tcell.PixelSizer); !ok {
		return caps, ErrNoPixelDimensions
	}

	return caps, nil
}

// WrapInitScreen wraps an initialized tcell screen and hooks its draw
// intercepts. It fails if the screen cannot report its size in pixels or
// write raw bytes; whether the terminal itself understands SIXEL is not
// checked.
func WrapInitScreen(s tcell.Screen) (*Screen, error) {
	caps, err := probeScreen(s)
	if err != nil {
		return nil, err
	}

	state := DrawState{Delegate: s.Show}
	state.Cells = image.Pt(s.Size())
	state.Pixels = image.Pt(caps.sizer.PixelSize())

	// Terminals that do not answer the pixel size query report zero.
	if state.Pixels.X == 0 || state.Pixels.Y == 0 {
		return nil, ErrNoPixelDimensions
	}

	screen := &Screen{
		s:     s,
		l:     caps.locker,
		state: state,
	}

	caps.adder.AddDrawIntercept(screen.beforeDraw)
	caps.adder.AddDrawInterceptAfter(screen.afterDraw)

	return screen, nil
}

// beforeDraw updates every layer and decides whether the screen has to be
// cleared. It runs with the screen locked.
func (s *Screen) beforeDraw(screen tcell.Screen, sync bool) bool {
	s.state.update(screen, sync)

	viewer, canView := screen.(tcell.CellBufferViewer)

	// A layer that moved or shrank leaves stale pixels behind, and only a
	// full clear gets rid of them.
	clear := sync

	for _, l := range s.layers {
		prev := l.last
		l.last = l.img.Update(s.state)

		if sync {
			l.last.MustUpdate = true
			continue
		}

		if !l.last.Bounds.Eq(prev.Bounds) {
			clear = true
		}

		if l.last.MustUpdate || !canView {
			continue
		}

		r := l.last.Bounds
		viewer.ViewCellBuffer(func(cb *tcell.CellBuffer) {
			// Cells drawn over the layer erase part of it.
			l.last.MustUpdate = cb.DirtyRegion(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
		})
	}

	// After a clear, tcell must rewrite every cell, not only the dirty ones.
	if clear && canView && !sync {
		viewer.ViewCellBuffer(func(cb *tcell.CellBuffer) { cb.Invalidate() })
	}

	return clear
}

// afterDraw writes the SIXEL of every damaged layer once tcell is done with
// the cells.
func (s *Screen) afterDraw(screen tcell.Screen, sync bool) bool {
	drawer := screen.(tcell.DirectDrawer)

	for _, l := range s.layers {
		if len(l.last.SIXEL) == 0 || !(l.last.MustUpdate || sync) {
			continue
		}

		screen.ShowCursor(l.last.Bounds.Min.X, l.last.Bounds.Min.Y)
		drawer.DrawDirectly(l.last.SIXEL)
	}

	screen.HideCursor()
	drawer.DrawDirectly(nil)

	return false
}

// AddImage adds a layer on top of the existing ones. Adding a layer twice does
// nothing. The screen is not redrawn.
func (s *Screen) AddImage(img Imager) {
	s.l.Lock()
	defer s.l.Unlock()

	if s.indexOf(img) >= 0 {
		return
	}

	s.layers = append(s.layers, &layer{
		img:  img,
		last: img.Update(s.state),
	})
}

// RemoveImage removes a layer. The screen is not redrawn.
func (s *Screen) RemoveImage(img Imager) {
	s.l.Lock()
	defer s.l.Unlock()

	if i := s.indexOf(img); i >= 0 {
		s.layers = append(s.layers[:i], s.layers[i+1:]...)
	}
}

func (s *Screen) indexOf(img Imager) int {
	for i, l := range s.layers {
		if l.img == img {
			return i
		}
	}
	return -1
}

// State returns the draw state as of the last draw or Refresh.
func (s *Screen) State() DrawState {
	s.l.Lock()
	defer s.l.Unlock()

	return s.state
}

// Refresh queries the screen size again. Call it when tcell reports a resize
// and the new size is needed before the next draw.
func (s *Screen) Refresh() DrawState {
	// The screen takes its own lock to answer, so ask before locking.
	var fresh DrawState
	fresh.update(s.s, false)

	s.l.Lock()
	defer s.l.Unlock()

	s.state.Cells = fresh.Cells
	s.state.Pixels = fresh.Pixels

	return s.state
}

// DrawState is the size of the screen in cells and in pixels.
type DrawState struct {
	// Delegate draws the screen later. It takes the screen lock, so calling it
	// from within Update deadlocks.
	Delegate func()
	// Time is when the state was last updated.
	Time time.Time

	Sync   bool
	Cells  image.Point
	Pixels image.Point
}

func (st *DrawState) update(screen tcell.Screen, sync bool) {
	st.Time = time.Now()
	st.Sync = sync
	st.Cells = image.Pt(screen.Size())

	if sizer, ok := screen.(tcell.PixelSizer); ok {
		st.Pixels = image.Pt(sizer.PixelSize())
	}
}

// CellSize returns the pixel size of one cell, or zero if the screen has no
// cells.
func (st DrawState) CellSize() image.Point {
	if st.Cells.X == 0 || st.Cells.Y == 0 {
		return image.Point{}
	}

	return image.Pt(st.Pixels.X/st.Cells.X, st.Pixels.Y/st.Cells.Y)
}

// SIXELHeight is the pixel height of one SIXEL band. Images are encoded in
// bands of this height, so an image whose height is not a multiple of it
// spills into the next line.
const SIXELHeight = 6 // px

// PtInPixels converts a size in cells to pixels.
func (st DrawState) PtInPixels(pt image.Point) image.Point {
	cell := st.CellSize()
	return image.Pt(pt.X*cell.X, pt.Y*cell.Y)
}

// PtInCells converts a size in pixels to the number of cells it covers,
// rounding up. It returns zero if the cell size is unknown.
func (st DrawState) PtInCells(pt image.Point) image.Point {
	return ptInCells(st.CellSize(), pt)
}

func ptInCells(cell, pt image.Point) image.Point {
	if cell.X == 0 || cell.Y == 0 {
		return image.Point{}
	}

	return image.Pt(ceilDiv(pt.X, cell.X), ceilDiv(pt.Y, cell.Y))
}

// Viewport returns the pixel size of the screen region starting at the given
// cell and leaving margin cells free at the bottom right. The height is rounded
// down to whole SIXEL bands so that the layer never spills onto the next
// line.
func (st DrawState) Viewport(at, margin image.Point) image.Point {
	cells := st.Cells.Sub(at).Sub(margin)
	if cells.X <= 0 || cells.Y <= 0 {
		return image.Point{}
	}

	px := st.PtInPixels(cells)
	px.Y -= px.Y % SIXELHeight

	return px
}

// ceilDiv divides a by b, rounding up.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
