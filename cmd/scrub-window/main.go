// Command scrub-window plays a numbered image sequence in a desktop window,
// scrubbed by scrolling.
//
// Usage:
//
//	scrub-window [-config scrub.yaml] [-frames dir|url] [-n 64] [-quality 2]
//
// Controls:
//
//	Mouse wheel      - Scroll
//	Up/Down Arrow    - Scroll while held
//	Page Up/Down     - Scroll one viewport
//	Home/End         - Jump to the first/last frame
//	R                - Reload every frame
//	Q/Escape         - Quit
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/diamondburned/tcell-scrub/ebitenhost"
	"github.com/diamondburned/tcell-scrub/scrub"
)

var (
	configFlag  = flag.String("config", "", "path to a YAML config file")
	framesFlag  = flag.String("frames", "frames", "directory or http(s) URL to read frames from")
	countFlag   = flag.Int("n", scrub.DefaultFrameCount, "number of frames")
	qualityFlag = flag.Float64("quality", 0, "surface resolution multiplier, defaults to the device scale factor")
	speedFlag   = flag.Float64("speed", scrub.DefaultFrameSpeed, "seconds playback takes to catch up with scrolling")
)

func main() {
	flag.Parse()

	cfg := scrub.DefaultConfig()

	if *configFlag != "" {
		c, err := scrub.LoadConfig(*configFlag)
		if err != nil {
			log.Fatalln(err)
		}
		cfg = c
	}

	var qualitySet bool

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.FrameCount = *countFlag
		case "speed":
			cfg.FrameSpeed = *speedFlag
		case "quality":
			cfg.Quality = *qualityFlag
			qualitySet = true
		}
	})

	if !qualitySet && *configFlag == "" {
		if m := ebiten.Monitor(); m != nil {
			cfg.Quality = math.Max(1, m.DeviceScaleFactor())
		}
	}

	var src scrub.Source
	if strings.HasPrefix(*framesFlag, "http://") || strings.HasPrefix(*framesFlag, "https://") {
		src = scrub.HTTPSource{BaseURL: *framesFlag}
	} else {
		src = scrub.DirSource(*framesFlag)
	}

	window, err := ebitenhost.New(context.Background(), cfg, src)
	if err != nil {
		log.Fatalln("failed to create window:", err)
	}
	defer window.Close()

	ebiten.SetWindowSize(960, 540)
	ebiten.SetWindowTitle("scrub")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(window); err != nil {
		log.Fatalln(err)
	}
}
