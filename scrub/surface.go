package scrub

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Frames provides decoded frame images by index. Image returns nil for frames
// that cannot be drawn.
type Frames interface {
	Image(index int) image.Image
}

// Geometry describes how a source image is placed onto a buffer.
type Geometry struct {
	Scale  float64
	Size   f64.Vec2 // scaled image size
	Offset f64.Vec2 // top-left corner of the scaled image within the buffer
}

// AspectFill computes the geometry that scales src to fully cover dst while
// keeping its aspect ratio. The image is centered, so the excess on the longer
// axis is cropped evenly on both sides. The zero Geometry is returned if either
// size is empty.
func AspectFill(src, dst image.Point) Geometry {
	if src.X <= 0 || src.Y <= 0 || dst.X <= 0 || dst.Y <= 0 {
		return Geometry{}
	}

	scale := math.Max(
		float64(dst.X)/float64(src.X),
		float64(dst.Y)/float64(src.Y),
	)

	w := float64(src.X) * scale
	h := float64(src.Y) * scale

	return Geometry{
		Scale:  scale,
		Size:   f64.Vec2{w, h},
		Offset: f64.Vec2{(float64(dst.X) - w) / 2, (float64(dst.Y) - h) / 2},
	}
}

// Surface is the drawing buffer frames are rendered onto. It is sized to the
// viewport times a quality multiplier. A Surface is not thread-safe.
type Surface struct {
	// Present, if not nil, is called after every change to the buffer. The
	// buffer must not be retained past the call.
	Present func(buf *image.RGBA)

	frames Frames
	scaler draw.Interpolator

	buf      *image.RGBA
	viewport image.Point
	quality  float64

	shown int // last drawn index, -1 if none
	draws int
}

// NewSurface creates an empty surface drawing from frames. If scaler is nil,
// draw.CatmullRom is used.
func NewSurface(frames Frames, scaler draw.Interpolator) *Surface {
	if scaler == nil {
		scaler = draw.CatmullRom
	}

	return &Surface{
		frames:  frames,
		scaler:  scaler,
		buf:     image.NewRGBA(image.Rectangle{}),
		quality: 1,
		shown:   -1,
	}
}

// BufferSize returns the buffer size for the given viewport and quality.
func BufferSize(viewport image.Point, quality float64) image.Point {
	if quality < 1 || math.IsNaN(quality) {
		quality = 1
	}

	return image.Point{
		X: int(math.Round(float64(max(viewport.X, 0)) * quality)),
		Y: int(math.Round(float64(max(viewport.Y, 0)) * quality)),
	}
}

// Resize reallocates the buffer for the new viewport and quality, then redraws
// the last drawn frame at the new size before returning.
func (surface *Surface) Resize(width, height int, quality float64) {
	surface.ResizeTo(width, height, quality, surface.shown)
}

// ResizeTo is like Resize, but draws the frame at index onto the new buffer.
// If that frame is not loaded, the last drawn frame is redrawn instead. The
// buffer is drawn or presented exactly once.
func (surface *Surface) ResizeTo(width, height int, quality float64, index int) {
	surface.viewport = image.Pt(width, height)
	surface.quality = quality

	size := BufferSize(surface.viewport, quality)
	surface.buf = image.NewRGBA(image.Rectangle{Max: size})

	if index >= 0 && surface.draw(index) {
		return
	}

	if surface.shown >= 0 && surface.shown != index && surface.draw(surface.shown) {
		return
	}

	surface.present()
}

// DrawFrame draws the frame at index over the whole buffer. It does nothing
// and returns false if the frame is not loaded, leaving the previous frame
// visible.
func (surface *Surface) DrawFrame(index int) bool {
	return surface.draw(index)
}

func (surface *Surface) draw(index int) bool {
	if surface.frames == nil {
		return false
	}

	src := surface.frames.Image(index)
	if src == nil {
		return false
	}

	sr := src.Bounds()
	geo := AspectFill(sr.Size(), surface.buf.Rect.Size())
	if geo.Scale == 0 {
		return false
	}

	surface.clear()

	s2d := f64.Aff3{
		geo.Scale, 0, geo.Offset[0] - geo.Scale*float64(sr.Min.X),
		0, geo.Scale, geo.Offset[1] - geo.Scale*float64(sr.Min.Y),
	}
	surface.scaler.Transform(surface.buf, s2d, src, sr, draw.Over, nil)

	surface.shown = index
	surface.draws++
	surface.present()

	return true
}

// Clear zeroes the buffer and forgets the last drawn frame.
func (surface *Surface) Clear() {
	surface.clear()
	surface.shown = -1
	surface.present()
}

func (surface *Surface) clear() {
	draw.Draw(surface.buf, surface.buf.Rect, image.Transparent, image.Point{}, draw.Src)
}

func (surface *Surface) present() {
	if surface.Present != nil {
		surface.Present(surface.buf)
	}
}

// Buffer returns the current buffer. The buffer is replaced on Resize.
func (surface *Surface) Buffer() *image.RGBA { return surface.buf }

// Size returns the buffer size in pixels.
func (surface *Surface) Size() image.Point { return surface.buf.Rect.Size() }

// Viewport returns the viewport size the buffer was last sized for.
func (surface *Surface) Viewport() image.Point { return surface.viewport }

// Quality returns the quality multiplier the buffer was last sized for.
func (surface *Surface) Quality() float64 { return surface.quality }

// Shown returns the index of the frame currently on the buffer, or -1.
func (surface *Surface) Shown() int { return surface.shown }

// Draws returns the number of frames drawn so far.
func (surface *Surface) Draws() int { return surface.draws }
