// Package page provides a virtual document that hosts a scrub.Player. It keeps
// track of the viewport, the scroll position and the elements appended to the
// document, and dispatches resize, scroll and tick events to listeners.
//
// Apart from Post, Notify and Drain, a Virtual is not thread-safe. Everything
// else must be called from the event thread, which is whichever goroutine
// calls Drain.
package page

import (
	"image"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/diamondburned/tcell-scrub/scrub"
)

// Virtual is a virtual document with a single vertical scroll axis.
type Virtual struct {
	// poster replaces the internal queue if set.
	poster func(func())

	qmu    sync.Mutex
	queue  []func()
	notify chan struct{}

	viewport image.Point
	scroll   float64

	elements map[*element]struct{}

	nextID  uint64
	resizes listeners[func(image.Point)]
	scrolls listeners[func(float64)]
	ticks   listeners[func(time.Duration)]
}

var _ scrub.Host = (*Virtual)(nil)

// New creates a new virtual page with the given viewport size in pixels.
func New(viewport image.Point) *Virtual {
	return &Virtual{
		notify:   make(chan struct{}, 1),
		viewport: viewport,
		elements: map[*element]struct{}{},
		resizes:  listeners[func(image.Point)]{},
		scrolls:  listeners[func(float64)]{},
		ticks:    listeners[func(time.Duration)]{},
	}
}

// NewWithPoster creates a new virtual page that hands posted functions to
// poster instead of queueing them. Hosts that own an event queue, such as a
// terminal screen, use this to run posted functions on their own loop.
func NewWithPoster(viewport image.Point, poster func(func())) *Virtual {
	v := New(viewport)
	v.poster = poster
	return v
}

// Viewport returns the viewport size.
func (v *Virtual) Viewport() image.Point { return v.viewport }

// ScrollPosition returns the scroll offset from the top of the document.
func (v *Virtual) ScrollPosition() float64 { return v.scroll }

// DocumentHeight returns the height of the document. It is never smaller than
// the viewport.
func (v *Virtual) DocumentHeight() float64 {
	height := float64(v.viewport.Y)
	for el := range v.elements {
		height = math.Max(height, el.spec.Bottom())
	}
	return height
}

// MaxScroll returns the largest valid scroll offset.
func (v *Virtual) MaxScroll() float64 {
	return math.Max(0, v.DocumentHeight()-float64(v.viewport.Y))
}

// Resize changes the viewport size. Resize listeners are called first; the
// scroll offset is then clamped to the new document, calling scroll listeners
// if it moved.
func (v *Virtual) Resize(viewport image.Point) {
	if viewport == v.viewport {
		return
	}

	v.viewport = viewport

	v.resizes.each(func(fn func(image.Point)) { fn(viewport) })

	v.clampScroll()
}

// ScrollTo scrolls to the given offset, clamped to the document.
func (v *Virtual) ScrollTo(pos float64) {
	if math.IsNaN(pos) {
		return
	}

	pos = math.Max(0, math.Min(pos, v.MaxScroll()))
	if pos == v.scroll {
		return
	}

	v.scroll = pos

	v.scrolls.each(func(fn func(float64)) { fn(pos) })
}

// ScrollBy scrolls by the given delta.
func (v *Virtual) ScrollBy(delta float64) {
	v.ScrollTo(v.scroll + delta)
}

func (v *Virtual) clampScroll() {
	v.ScrollTo(v.scroll)
}

// Tick calls every tick listener.
func (v *Virtual) Tick(dt time.Duration) {
	v.ticks.each(func(fn func(time.Duration)) { fn(dt) })
}

// Post queues fn to be run by Drain, or hands it to the poster given to
// NewWithPoster. It is safe to call from any goroutine.
func (v *Virtual) Post(fn func()) {
	if v.poster != nil {
		v.poster(fn)
		return
	}

	v.qmu.Lock()
	v.queue = append(v.queue, fn)
	v.qmu.Unlock()

	select {
	case v.notify <- struct{}{}:
	default:
	}
}

// Notify returns a channel that receives a value after functions are posted.
// Multiple posts may be coalesced into one notification.
func (v *Virtual) Notify() <-chan struct{} { return v.notify }

// Drain runs every queued function in posting order and returns how many were
// run. Functions posted while draining are run in the same call.
func (v *Virtual) Drain() int {
	var n int

	for {
		v.qmu.Lock()
		queue := v.queue
		v.queue = nil
		v.qmu.Unlock()

		if len(queue) == 0 {
			return n
		}

		for _, fn := range queue {
			fn()
		}

		n += len(queue)
	}
}

// OnResize implements scrub.Host.
func (v *Virtual) OnResize(fn func(image.Point)) scrub.Listener {
	return addListener(v, v.resizes, fn)
}

// OnScroll implements scrub.Host.
func (v *Virtual) OnScroll(fn func(float64)) scrub.Listener {
	return addListener(v, v.scrolls, fn)
}

// OnTick implements scrub.Host.
func (v *Virtual) OnTick(fn func(time.Duration)) scrub.Listener {
	return addListener(v, v.ticks, fn)
}

// Listeners returns the number of resize, scroll and tick listeners.
func (v *Virtual) Listeners() (resize, scroll, tick int) {
	return len(v.resizes), len(v.scrolls), len(v.ticks)
}

// AppendElement implements scrub.Host.
func (v *Virtual) AppendElement(spec scrub.ElementSpec) scrub.Element {
	el := &element{page: v, spec: spec}
	v.elements[el] = struct{}{}
	return el
}

// Elements returns the specs of all elements in the document, ordered by
// their top edge.
func (v *Virtual) Elements() []scrub.ElementSpec {
	specs := make([]scrub.ElementSpec, 0, len(v.elements))
	for el := range v.elements {
		specs = append(specs, el.spec)
	}

	sort.SliceStable(specs, func(i, j int) bool {
		return specs[i].Top < specs[j].Top
	})

	return specs
}

// FindElements returns the specs of elements with the given class.
func (v *Virtual) FindElements(class string) []scrub.ElementSpec {
	var found []scrub.ElementSpec
	for _, spec := range v.Elements() {
		if spec.Class == class {
			found = append(found, spec)
		}
	}
	return found
}

type element struct {
	page *Virtual
	spec scrub.ElementSpec
}

func (el *element) Spec() scrub.ElementSpec { return el.spec }

func (el *element) Update(spec scrub.ElementSpec) {
	if _, ok := el.page.elements[el]; !ok {
		return
	}

	el.spec = spec
	el.page.clampScroll()
}

func (el *element) Remove() {
	if _, ok := el.page.elements[el]; !ok {
		return
	}

	delete(el.page.elements, el)
	el.page.clampScroll()
}

// listeners maps registration IDs to callbacks. IDs increase monotonically,
// so sorting by ID gives registration order.
type listeners[T any] map[uint64]T

// each calls every listener in registration order. Listeners removed by an
// earlier callback are skipped; listeners added during the call are not
// called.
func (ls listeners[T]) each(call func(T)) {
	ids := make([]uint64, 0, len(ls))
	for id := range ls {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if fn, ok := ls[id]; ok {
			call(fn)
		}
	}
}

type listener[T any] struct {
	set listeners[T]
	id  uint64
}

func addListener[T any](v *Virtual, set listeners[T], fn T) *listener[T] {
	v.nextID++
	set[v.nextID] = fn
	return &listener[T]{set: set, id: v.nextID}
}

func (l *listener[T]) Remove() {
	delete(l.set, l.id)
}
