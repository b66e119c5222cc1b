package scrub

import "image"

// TrackClass is the element class of the virtual scroll track.
const TrackClass = "scroll-track"

// Region owns the virtual scroll track: an invisible element placed right
// below the first viewport whose only purpose is to make the document
// scrollable by a fixed number of viewport heights.
type Region struct {
	host      Host
	viewports float64

	track    Element
	viewport image.Point
}

// NewRegion creates a region controller for the host. The track is
// viewports times the viewport height tall once created.
func NewRegion(host Host, viewports float64) *Region {
	return &Region{
		host:      host,
		viewports: viewports,
	}
}

// Create appends the track sized for the given viewport. An existing track is
// removed first.
func (region *Region) Create(viewport image.Point) {
	region.Remove()

	region.viewport = viewport
	region.track = region.host.AppendElement(region.spec())
}

// Refresh resizes the track for a new viewport. It does nothing if no track
// exists.
func (region *Region) Refresh(viewport image.Point) {
	if region.track == nil {
		return
	}

	region.viewport = viewport
	region.track.Update(region.spec())
}

// Active returns true if the track exists.
func (region *Region) Active() bool { return region.track != nil }

// Track returns the track's current layout, or false if there is none.
func (region *Region) Track() (ElementSpec, bool) {
	if region.track == nil {
		return ElementSpec{}, false
	}
	return region.track.Spec(), true
}

// Bounds returns the scroll positions at which playback starts and ends.
// Playback starts when the top of the track reaches the bottom of the
// viewport, and ends when the bottom of the track does.
func (region *Region) Bounds() (start, end float64) {
	spec := region.spec()
	vh := float64(region.viewport.Y)

	return spec.Top - vh, spec.Bottom() - vh
}

// Remove removes the track. It is safe to call when no track exists.
func (region *Region) Remove() {
	if region.track == nil {
		return
	}

	region.track.Remove()
	region.track = nil
}

func (region *Region) spec() ElementSpec {
	vh := float64(region.viewport.Y)

	return ElementSpec{
		Class:       TrackClass,
		Top:         vh,
		Height:      vh * region.viewports,
		Layer:       -1,
		Interactive: false,
	}
}
