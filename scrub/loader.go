package scrub

import (
	"context"
	"image"
	"log"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// Loader preloads every frame of a Sequence asynchronously. Loads run on their
// own goroutines; their results are handed back to the event thread through
// the post function, which is the only place the sequence is mutated.
//
// Completion is defined as every load having settled, successfully or not, so
// a missing frame never keeps the loader from finishing.
type Loader struct {
	// FrameLoaded is called on the event thread after each successful load.
	// first is true for the first success.
	FrameLoaded func(index int, first bool)
	// FrameFailed is called on the event thread after each failed load.
	FrameFailed func(index int, err error)
	// Complete is called on the event thread once, after the last load
	// settles.
	Complete func()

	// Logger is used to report failed loads. The standard logger is used if
	// nil.
	Logger *log.Logger

	seq  *Sequence
	src  Source
	post func(func())

	workers int
	maxSize image.Point

	started bool
	done    bool
}

// NewLoader creates a new loader for the given sequence. Frames are read from
// src and settled through post.
func NewLoader(seq *Sequence, src Source, post func(func()), cfg Config) *Loader {
	loader := &Loader{
		seq:     seq,
		src:     src,
		post:    post,
		workers: cfg.Workers(),
	}

	if cfg.MaxFrameWidth > 0 && cfg.MaxFrameHeight > 0 {
		loader.maxSize = image.Pt(cfg.MaxFrameWidth, cfg.MaxFrameHeight)
	}

	return loader
}

// Start issues a load for every frame and returns immediately. Once ctx is
// canceled, pending loads are abandoned and results that arrive late are
// dropped. Start does nothing if it was already called.
func (loader *Loader) Start(ctx context.Context) {
	if loader.started {
		return
	}
	loader.started = true

	// Requests are issued in index order; only their completion order is
	// arbitrary.
	paths := make([]string, loader.seq.Len())
	for i := range paths {
		f, _ := loader.seq.Frame(i)
		paths[i] = f.Path
	}

	go func() {
		var group errgroup.Group
		group.SetLimit(loader.workers)

		for i, path := range paths {
			i, path := i, path

			if ctx.Err() != nil {
				break
			}

			group.Go(func() error {
				img, err := loader.load(ctx, path)
				loader.post(func() {
					if ctx.Err() != nil {
						return
					}
					loader.settle(i, img, err)
				})
				return nil
			})
		}

		group.Wait()
	}()
}

func (loader *Loader) load(ctx context.Context, path string) (image.Image, error) {
	img, err := loader.src.Load(ctx, path)
	if err != nil || img == nil {
		return img, err
	}

	if loader.maxSize != (image.Point{}) {
		size := img.Bounds().Size()
		if size.X > loader.maxSize.X || size.Y > loader.maxSize.Y {
			img = imaging.Fit(img, loader.maxSize.X, loader.maxSize.Y, imaging.Lanczos)
		}
	}

	return img, nil
}

// settle records a load result. It must be called on the event thread.
func (loader *Loader) settle(index int, img image.Image, err error) {
	if loader.done || !loader.seq.settle(index, img, err) {
		return
	}

	f, _ := loader.seq.Frame(index)

	switch f.State {
	case Loaded:
		if loader.FrameLoaded != nil {
			loader.FrameLoaded(index, loader.seq.Loaded() == 1)
		}
	case Failed:
		loader.logger().Printf("failed to load frame %d (%s): %v", index, f.Path, f.Err)
		if loader.FrameFailed != nil {
			loader.FrameFailed(index, f.Err)
		}
	}

	if loader.seq.Complete() {
		loader.done = true
		if loader.Complete != nil {
			loader.Complete()
		}
	}
}

// Done returns true once every frame has settled.
func (loader *Loader) Done() bool { return loader.done }

func (loader *Loader) logger() *log.Logger {
	if loader.Logger != nil {
		return loader.Logger
	}
	return log.Default()
}
