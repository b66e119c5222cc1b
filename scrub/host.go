package scrub

import (
	"image"
	"time"
)

// Host is the environment a Player is mounted into. All callbacks registered
// on a Host, as well as functions given to Post, must be invoked on a single
// event thread, one at a time.
type Host interface {
	// Viewport returns the current viewport size in pixels.
	Viewport() image.Point
	// ScrollPosition returns the current vertical scroll offset in pixels.
	ScrollPosition() float64
	// Post schedules fn on the event thread. It must be safe to call from any
	// goroutine and must not block on the event thread.
	Post(fn func())

	// OnResize registers a callback for viewport changes.
	OnResize(fn func(viewport image.Point)) Listener
	// OnScroll registers a callback for scroll position changes.
	OnScroll(fn func(pos float64)) Listener
	// OnTick registers a per-frame callback. dt is the time since the last
	// tick.
	OnTick(fn func(dt time.Duration)) Listener

	// AppendElement adds a layout element to the host document.
	AppendElement(spec ElementSpec) Element
}

// Listener is a handle to a registered callback. Remove unregisters it and is
// safe to call more than once.
type Listener interface {
	Remove()
}

// Element is a handle to a layout element appended to a Host.
type Element interface {
	Spec() ElementSpec
	Update(spec ElementSpec)
	// Remove detaches the element from the document. It is safe to call more
	// than once.
	Remove()
}

// ElementSpec describes a block element positioned absolutely within the
// document, spanning its full width.
type ElementSpec struct {
	Class  string
	Top    float64 // px from the top of the document
	Height float64 // px
	// Layer is the stacking order; negative values are behind content.
	Layer int
	// Interactive, if false, makes the element ignore pointer input.
	Interactive bool
}

// Bottom returns the bottom edge of the element.
func (spec ElementSpec) Bottom() float64 {
	return spec.Top + spec.Height
}
