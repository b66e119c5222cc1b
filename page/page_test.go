package page

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diamondburned/tcell-scrub/scrub"
)

func TestScrollClamp(t *testing.T) {
	v := New(image.Pt(100, 100))

	v.ScrollTo(50)
	assert.Zero(t, v.ScrollPosition(), "nothing to scroll without content")

	el := v.AppendElement(scrub.ElementSpec{Top: 100, Height: 300})
	assert.Equal(t, 400.0, v.DocumentHeight())
	assert.Equal(t, 300.0, v.MaxScroll())

	v.ScrollTo(1000)
	assert.Equal(t, 300.0, v.ScrollPosition())

	v.ScrollBy(-50)
	assert.Equal(t, 250.0, v.ScrollPosition())

	v.ScrollTo(-10)
	assert.Zero(t, v.ScrollPosition())

	v.ScrollTo(300)
	el.Remove()
	assert.Zero(t, v.ScrollPosition(), "removing content clamps the scroll offset")
}

func TestListeners(t *testing.T) {
	v := New(image.Pt(100, 100))
	v.AppendElement(scrub.ElementSpec{Top: 100, Height: 100})

	var calls []string

	resize := v.OnResize(func(pt image.Point) { calls = append(calls, "resize") })
	scroll := v.OnScroll(func(pos float64) { calls = append(calls, "scroll") })
	tick := v.OnTick(func(dt time.Duration) { calls = append(calls, "tick") })

	r, s, tk := v.Listeners()
	assert.Equal(t, []int{1, 1, 1}, []int{r, s, tk})

	v.ScrollTo(100)
	v.ScrollTo(100) // unchanged, no event
	v.Tick(time.Millisecond)

	// Growing the viewport shrinks the max scroll, which moves the offset.
	v.Resize(image.Pt(100, 150))
	v.Resize(image.Pt(100, 150)) // unchanged, no event

	assert.Equal(t, []string{"scroll", "tick", "resize", "scroll"}, calls)
	assert.Equal(t, 50.0, v.ScrollPosition())

	resize.Remove()
	scroll.Remove()
	tick.Remove()
	tick.Remove()

	r, s, tk = v.Listeners()
	assert.Zero(t, r+s+tk)

	calls = nil
	v.Resize(image.Pt(10, 10))
	v.ScrollTo(0)
	v.Tick(time.Millisecond)
	assert.Empty(t, calls)
}

func TestListenerOrder(t *testing.T) {
	v := New(image.Pt(10, 10))

	var order []int
	var second scrub.Listener

	v.OnTick(func(time.Duration) {
		order = append(order, 1)
		second.Remove()
	})
	second = v.OnTick(func(time.Duration) { order = append(order, 2) })
	v.OnTick(func(time.Duration) { order = append(order, 3) })

	v.Tick(0)
	assert.Equal(t, []int{1, 3}, order, "removed listeners are skipped")
}

func TestElements(t *testing.T) {
	v := New(image.Pt(10, 10))

	a := v.AppendElement(scrub.ElementSpec{Class: "a", Top: 50, Height: 10})
	v.AppendElement(scrub.ElementSpec{Class: "b", Top: 5, Height: 10})

	specs := v.Elements()
	require.Len(t, specs, 2)
	assert.Equal(t, "b", specs[0].Class)
	assert.Equal(t, "a", specs[1].Class)

	a.Update(scrub.ElementSpec{Class: "a", Top: 0, Height: 1})
	assert.Equal(t, "a", v.Elements()[0].Class)
	assert.Len(t, v.FindElements("a"), 1)

	a.Remove()
	a.Update(scrub.ElementSpec{Class: "a", Top: 100, Height: 100})
	assert.Empty(t, v.FindElements("a"))
	assert.Equal(t, 15.0, v.DocumentHeight())
}

func TestPostDrain(t *testing.T) {
	v := New(image.Pt(10, 10))

	var wg sync.WaitGroup
	var ran int

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Post(func() { ran++ })
		}()
	}

	wg.Wait()

	select {
	case <-v.Notify():
	default:
		t.Fatal("expected a notification")
	}

	// Work posted while draining runs in the same drain.
	v.Post(func() { v.Post(func() { ran++ }) })

	assert.Equal(t, 12, v.Drain())
	assert.Equal(t, 11, ran)
	assert.Zero(t, v.Drain())
}

func TestPoster(t *testing.T) {
	var posted []func()
	v := NewWithPoster(image.Pt(1, 1), func(fn func()) { posted = append(posted, fn) })

	v.Post(func() {})
	assert.Len(t, posted, 1)
	assert.Zero(t, v.Drain())
}
