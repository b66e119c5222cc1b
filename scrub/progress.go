package scrub

import (
	"math"
	"time"
)

// SelectIndex maps a progress value to a frame index. It computes
// floor(progress * maxIndex), with progress clamped to [0, 1] and the result
// clamped to [0, maxIndex]. NaN maps to 0.
func SelectIndex(progress float64, maxIndex int) int {
	if maxIndex <= 0 {
		return 0
	}

	ix := int(math.Floor(clamp01(progress) * float64(maxIndex)))

	switch {
	case ix < 0:
		return 0
	case ix > maxIndex:
		return maxIndex
	default:
		return ix
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Mapper turns scroll positions within a range into a normalized progress
// value. With a non-zero scrub duration, progress does not jump to the scroll
// position but eases toward it over that duration, advanced by Tick.
type Mapper struct {
	// Update is called with every recomputed progress value.
	Update func(progress float64)

	start, end float64
	scrub      time.Duration

	progress float64
	tween    tween
	killed   bool
}

// tween is a catch-up animation from one progress value to another.
type tween struct {
	from, to float64
	elapsed  time.Duration
	active   bool
}

// NewMapper creates a mapper for the range [start, end] in scroll pixels. scrub
// is the catch-up duration in seconds; 0 tracks the scroll position exactly.
func NewMapper(start, end, scrub float64) *Mapper {
	if scrub < 0 || math.IsNaN(scrub) {
		scrub = 0
	}

	return &Mapper{
		start: start,
		end:   end,
		scrub: time.Duration(scrub * float64(time.Second)),
	}
}

// SetBounds changes the scroll range. It does not recompute progress; call
// Sample afterwards.
func (mapper *Mapper) SetBounds(start, end float64) {
	mapper.start = start
	mapper.end = end
}

// Bounds returns the scroll range.
func (mapper *Mapper) Bounds() (start, end float64) {
	return mapper.start, mapper.end
}

// Raw returns the unsmoothed progress of the given scroll position.
func (mapper *Mapper) Raw(pos float64) float64 {
	if math.IsNaN(pos) {
		return 0
	}

	span := mapper.end - mapper.start
	if span <= 0 {
		if pos >= mapper.end {
			return 1
		}
		return 0
	}

	return clamp01((pos - mapper.start) / span)
}

// Progress returns the current, possibly smoothed, progress.
func (mapper *Mapper) Progress() float64 { return mapper.progress }

// Target returns the progress the mapper is easing toward.
func (mapper *Mapper) Target() float64 {
	if mapper.tween.active {
		return mapper.tween.to
	}
	return mapper.progress
}

// Settled returns true if the progress has caught up with the last sample.
func (mapper *Mapper) Settled() bool { return !mapper.tween.active }

// Sample feeds a new scroll position into the mapper.
func (mapper *Mapper) Sample(pos float64) {
	if mapper.killed {
		return
	}

	target := mapper.Raw(pos)

	if mapper.scrub <= 0 {
		mapper.tween = tween{}
		mapper.set(target)
		return
	}

	if target == mapper.progress {
		mapper.tween = tween{}
		return
	}

	mapper.tween = tween{
		from:   mapper.progress,
		to:     target,
		active: true,
	}
}

// Tick advances the catch-up animation by dt.
func (mapper *Mapper) Tick(dt time.Duration) {
	if mapper.killed || !mapper.tween.active {
		return
	}

	mapper.tween.elapsed += dt

	if mapper.tween.elapsed >= mapper.scrub {
		to := mapper.tween.to
		mapper.tween = tween{}
		mapper.set(to)
		return
	}

	t := float64(mapper.tween.elapsed) / float64(mapper.scrub)
	mapper.set(mapper.tween.from + (mapper.tween.to-mapper.tween.from)*easeOutCubic(t))
}

// Kill stops the mapper. Samples and ticks are ignored afterwards.
func (mapper *Mapper) Kill() {
	mapper.killed = true
	mapper.tween = tween{}
}

// Killed returns true if Kill was called.
func (mapper *Mapper) Killed() bool { return mapper.killed }

func (mapper *Mapper) set(progress float64) {
	mapper.progress = progress
	if mapper.Update != nil {
		mapper.Update(progress)
	}
}

func easeOutCubic(t float64) float64 {
	t = 1 - t
	return 1 - t*t*t
}
