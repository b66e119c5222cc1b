package main

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/diamondburned/tcell-scrub/page"
	"github.com/diamondburned/tcell-scrub/scrub"
	"github.com/diamondburned/tcell-scrub/tsixel"
)

var (
	// surfacePos is where the SIXEL surface starts, below the status line.
	surfacePos = image.Pt(0, 1)
	// surfaceMargin keeps the surface away from the bottom right corner, which
	// would otherwise scroll the terminal.
	surfaceMargin = image.Pt(4, 2)
)

var spinner = []rune(`|/-\`)

// redraw is posted by the SIXEL layer once a new frame is encoded.
type redraw struct{}

func start(cfg scrub.Config, src scrub.Source) error {
	logFile, err := openLog(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return errors.Wrap(err, "failed to create screen")
	}

	if err := screen.Init(); err != nil {
		return errors.Wrap(err, "failed to init screen")
	}
	defer screen.Fini()

	screen.EnableMouse()

	sixels, err := tsixel.WrapInitScreen(screen)
	if err != nil {
		return errors.Wrap(err, "failed to wrap screen")
	}

	// Logs would otherwise be drawn over the screen.
	log.SetOutput(logFile)
	defer log.SetOutput(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline := tsixel.NewPipeline(ctx)
	pipeline.Start()
	defer pipeline.Stop()

	layer := tsixel.NewSurfaceImage(pipeline, tsixel.ImageOpts{
		Scaler: draw.ApproxBiLinear,
		Colors: colors,
		Dither: dither,
	}, func() {
		screen.PostEvent(tcell.NewEventInterrupt(redraw{}))
	})
	layer.SetPosition(surfacePos)

	sixels.AddImage(layer)
	defer sixels.RemoveImage(layer)

	pg := page.NewWithPoster(
		sixels.State().Viewport(surfacePos, surfaceMargin),
		func(fn func()) {
			// Loader results must never be dropped, so wait for room in the
			// event queue.
			screen.PostEventWait(tcell.NewEventInterrupt(fn))
		},
	)

	player, err := scrub.NewPlayer(cfg, src, scrub.Options{
		Present: func(buf *image.RGBA) {
			layer.Present(buf, pg.Viewport())
		},
		Loading: func(loading bool) {
			log.Println("loading:", loading)
		},
	})
	if err != nil {
		return err
	}

	if err := player.Mount(ctx, pg); err != nil {
		return errors.Wrap(err, "failed to mount player")
	}
	defer player.Unmount()

	term := terminal{
		screen: screen,
		sixels: sixels,
		layer:  layer,
		page:   pg,
		player: player,
	}

	return term.run(ctx)
}

type terminal struct {
	screen tcell.Screen
	sixels *tsixel.Screen
	layer  *tsixel.SurfaceImage
	page   *page.Virtual
	player *scrub.Player

	ticks int
}

func (term *terminal) run(ctx context.Context) error {
	ticker := time.NewTicker(scrub.TickInterval)
	defer ticker.Stop()

	eventCh := screenEvents(term.screen)
	lastTick := time.Now()

	term.drawStatus()
	term.screen.Sync()

	for {
		select {
		case ev, ok := <-eventCh:
			if !ok {
				return nil
			}

			if quit := term.handle(ctx, ev); quit {
				return nil
			}

		case now := <-ticker.C:
			term.ticks++
			term.page.Tick(now.Sub(lastTick))
			lastTick = now
		}

		term.drawStatus()
		term.screen.Show()
	}
}

// handle handles a single screen event. It returns true if the program should
// exit.
func (term *terminal) handle(ctx context.Context, ev tcell.Event) bool {
	viewport := term.page.Viewport()

	switch ev := ev.(type) {
	case *tcell.EventInterrupt:
		switch data := ev.Data().(type) {
		case func():
			data()
		case redraw:
			// Show is called after every event.
		}

	case *tcell.EventResize:
		state := term.sixels.Refresh()
		term.page.Resize(state.Viewport(surfacePos, surfaceMargin))
		term.screen.Sync()

	case *tcell.EventMouse:
		step := float64(viewport.Y) / 8

		switch buttons := ev.Buttons(); {
		case buttons&tcell.WheelUp != 0:
			term.page.ScrollBy(-step)
		case buttons&tcell.WheelDown != 0:
			term.page.ScrollBy(step)
		}

	case *tcell.EventKey:
		step := float64(viewport.Y) / 16

		switch ev.Key() {
		// Exit on Esc.
		case tcell.KeyEscape:
			return true

		// Force redraw on F5 for debugging.
		case tcell.KeyF5:
			term.screen.Sync()

		case tcell.KeyUp:
			term.page.ScrollBy(-step)
		case tcell.KeyDown:
			term.page.ScrollBy(step)
		case tcell.KeyPgUp:
			term.page.ScrollBy(-float64(viewport.Y))
		case tcell.KeyPgDn:
			term.page.ScrollBy(float64(viewport.Y))
		case tcell.KeyHome:
			term.page.ScrollTo(0)
		case tcell.KeyEnd:
			term.page.ScrollTo(term.page.MaxScroll())

		case tcell.KeyRune:
			switch ev.Rune() {
			// Exit on Q.
			case 'q':
				return true
			case 'k':
				term.page.ScrollBy(-step)
			case 'j':
				term.page.ScrollBy(step)
			case 'r':
				// Drop frames of the old mount still being encoded.
				term.layer.Clear()

				if err := term.player.Reconfigure(ctx, term.player.Config()); err != nil {
					log.Println("failed to reload:", err)
				}
			}
		}
	}

	return false
}

func (term *terminal) drawStatus() {
	var status string

	if term.player.IsLoading() {
		seq := term.player.Sequence()
		status = fmt.Sprintf(
			"Loading animation... %c %d/%d",
			spinner[term.ticks%len(spinner)], seq.Settled(), seq.Len(),
		)
	} else {
		status = fmt.Sprintf(
			"frame %d/%d  %3.0f%%  scroll %.0f/%.0f  (wheel, arrows or j/k to scrub, q to quit)",
			term.player.CurrentIndex(), term.player.MaxIndex(),
			term.player.Progress()*100,
			term.page.ScrollPosition(), term.page.MaxScroll(),
		)
	}

	width, _ := term.screen.Size()
	runes := []rune(status)

	for x := 0; x < width; x++ {
		r := ' '
		if x < len(runes) {
			r = runes[x]
		}
		term.screen.SetContent(x, 0, r, nil, tcell.StyleDefault)
	}
}

func screenEvents(screen tcell.Screen) <-chan tcell.Event {
	ch := make(chan tcell.Event)

	go func() {
		for {
			event := screen.PollEvent()
			if event == nil {
				close(ch)
				return
			}

			ch <- event
		}
	}()

	return ch
}
