package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/diamondburned/tcell-scrub/scrub"
)

var (
	configPath string
	framesPath = "frames"
	logPath    string

	frameCount   int
	pathTemplate string
	quality      float64
	frameSpeed   float64
	scrubFactor  float64

	colors = 255
	dither bool
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [-config scrub.yaml] [-frames dir|url] [flags...]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(flag.CommandLine.Output(), "\t"+
			"Plays a numbered image sequence in the terminal as SIXEL,\n"+
			"scrubbed by scrolling with the mouse wheel or the arrow keys.\n"+
			"Flags override values from the config file.\n\n")

		fmt.Fprintln(flag.CommandLine.Output(),
			"Flags:")
		flag.PrintDefaults()
	}

	flag.StringVar(&configPath, "config", configPath, "path to a YAML config file")
	flag.StringVar(&framesPath, "frames", framesPath, "directory or http(s) URL to read frames from")
	flag.StringVar(&logPath, "log", logPath, "file to write logs to, discarded if empty")
	flag.IntVar(&frameCount, "n", scrub.DefaultFrameCount, "number of frames")
	flag.StringVar(&pathTemplate, "template", scrub.DefaultPathTemplate, "frame file name, formatted with the 1-based frame number")
	flag.Float64Var(&quality, "quality", scrub.DefaultQuality, "surface resolution multiplier (>= 1)")
	flag.Float64Var(&frameSpeed, "speed", scrub.DefaultFrameSpeed, "seconds playback takes to catch up with scrolling")
	flag.Float64Var(&scrubFactor, "scrub", 0, "overrides -speed; 0 follows scrolling exactly")
	flag.IntVar(&colors, "c", colors, "number of colors to quantize to (2-255)")
	flag.BoolVar(&dither, "d", dither, "enable floyd-steinberg dithering")
}

func main() {
	flag.Parse()

	if colors < 2 || colors > 255 {
		log.Fatalln("invalid -c value out of bounds")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalln(err)
	}

	if err := start(cfg, newSource(framesPath)); err != nil {
		log.Fatalln(err)
	}
}

// loadConfig reads the config file, if any, then applies the flags that were
// explicitly given.
func loadConfig() (scrub.Config, error) {
	cfg := scrub.DefaultConfig()

	if configPath != "" {
		c, err := scrub.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.FrameCount = frameCount
		case "template":
			cfg.PathTemplate = pathTemplate
		case "quality":
			cfg.Quality = quality
		case "speed":
			cfg.FrameSpeed = frameSpeed
		case "scrub":
			v := scrubFactor
			cfg.ScrubFactor = &v
		}
	})

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid flags")
	}

	return cfg, nil
}

func newSource(path string) scrub.Source {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return scrub.HTTPSource{BaseURL: path}
	}
	return scrub.DirSource(path)
}

// openLog returns the writer logs go to while the screen is active.
func openLog(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{io.Discard}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open log file")
	}

	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
