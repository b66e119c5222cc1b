// Package ebitenhost hosts a scrub.Player in an ebiten window. The window's
// Update loop is the player's event thread.
package ebitenhost

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/pkg/errors"

	"github.com/diamondburned/tcell-scrub/page"
	"github.com/diamondburned/tcell-scrub/scrub"
)

// WheelStep is the scroll distance of one wheel notch, in viewport heights.
const WheelStep = 0.125

var spinner = []rune(`|/-\`)

// Window implements ebiten.Game.
type Window struct {
	ctx    context.Context
	cancel context.CancelFunc

	page   *page.Virtual
	player *scrub.Player

	// latest surface snapshot, copied on present
	pixels []byte
	size   image.Point
	dirty  bool
	img    *ebiten.Image

	outside image.Point // last size given to Layout
	scale   float64     // device scale factor
	ticks   int
}

// New creates a window hosting a player for the given config. The player is
// mounted on the first Update.
func New(ctx context.Context, cfg scrub.Config, src scrub.Source) (*Window, error) {
	ctx, cancel := context.WithCancel(ctx)

	w := &Window{
		ctx:    ctx,
		cancel: cancel,
		page:   page.New(image.Point{}),
		scale:  1,
	}

	player, err := scrub.NewPlayer(cfg, src, scrub.Options{
		Present: w.present,
		Loading: func(loading bool) {
			log.Println("loading:", loading)
		},
	})
	if err != nil {
		cancel()
		return nil, err
	}

	w.player = player
	return w, nil
}

// Player returns the hosted player.
func (w *Window) Player() *scrub.Player { return w.player }

// Close unmounts the player and abandons pending loads.
func (w *Window) Close() {
	w.player.Unmount()
	w.cancel()
}

func (w *Window) present(buf *image.RGBA) {
	if len(w.pixels) != len(buf.Pix) {
		w.pixels = make([]byte, len(buf.Pix))
	}

	copy(w.pixels, buf.Pix)
	w.size = buf.Rect.Size()
	w.dirty = true
}

// Update implements ebiten.Game.
func (w *Window) Update() error {
	w.page.Resize(w.outside)

	if w.player.State() == scrub.Idle {
		if err := w.player.Mount(w.ctx, w.page); err != nil {
			return errors.Wrap(err, "failed to mount player")
		}
	}

	w.page.Drain()

	if err := w.handleInput(); err != nil {
		return err
	}

	w.ticks++
	w.page.Tick(time.Second / time.Duration(ebiten.TPS()))

	return nil
}

func (w *Window) handleInput() error {
	viewport := float64(w.page.Viewport().Y)

	if _, dy := ebiten.Wheel(); dy != 0 {
		w.page.ScrollBy(-dy * viewport * WheelStep)
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape), inpututil.IsKeyJustPressed(ebiten.KeyQ):
		return ebiten.Termination

	case inpututil.IsKeyJustPressed(ebiten.KeyPageUp):
		w.page.ScrollBy(-viewport)
	case inpututil.IsKeyJustPressed(ebiten.KeyPageDown), inpututil.IsKeyJustPressed(ebiten.KeySpace):
		w.page.ScrollBy(viewport)
	case inpututil.IsKeyJustPressed(ebiten.KeyHome):
		w.page.ScrollTo(0)
	case inpututil.IsKeyJustPressed(ebiten.KeyEnd):
		w.page.ScrollTo(w.page.MaxScroll())

	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		if err := w.player.Reconfigure(w.ctx, w.player.Config()); err != nil {
			log.Println("failed to reload:", err)
		}
	}

	// Arrow keys scroll continuously while held.
	step := viewport / 60
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		w.page.ScrollBy(-step)
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		w.page.ScrollBy(step)
	}

	return nil
}

// Draw implements ebiten.Game.
func (w *Window) Draw(screen *ebiten.Image) {
	if w.dirty && w.size.X > 0 && w.size.Y > 0 {
		if w.img == nil || w.img.Bounds().Size() != w.size {
			if w.img != nil {
				w.img.Deallocate()
			}
			w.img = ebiten.NewImage(w.size.X, w.size.Y)
		}

		w.img.WritePixels(w.pixels)
		w.dirty = false
	}

	if w.img != nil {
		// The surface is the viewport times the quality factor, which may
		// differ from the device scale factor.
		sz := screen.Bounds().Size()
		scale := math.Min(
			float64(sz.X)/float64(w.size.X),
			float64(sz.Y)/float64(w.size.Y),
		)

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(scale, scale)
		op.Filter = ebiten.FilterLinear
		screen.DrawImage(w.img, op)
	}

	ebitenutil.DebugPrint(screen, w.status())
}

// Layout implements ebiten.Game. The screen is laid out in device pixels, while
// the page viewport stays in logical pixels.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	w.scale = ebiten.Monitor().DeviceScaleFactor()
	if w.scale <= 0 {
		w.scale = 1
	}

	w.outside = image.Pt(outsideWidth, outsideHeight)

	return int(math.Ceil(float64(outsideWidth) * w.scale)),
		int(math.Ceil(float64(outsideHeight) * w.scale))
}

func (w *Window) status() string {
	if w.player.IsLoading() {
		seq := w.player.Sequence()
		return fmt.Sprintf(
			"Loading animation... %c %d/%d",
			spinner[(w.ticks/4)%len(spinner)], seq.Settled(), seq.Len(),
		)
	}

	return fmt.Sprintf(
		"frame %d/%d  %3.0f%%\nwheel, arrows or pgup/pgdn to scrub",
		w.player.CurrentIndex(), w.player.MaxIndex(), w.player.Progress()*100,
	)
}
