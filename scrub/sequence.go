package scrub

import (
	"image"

	"github.com/pkg/errors"
)

var errNoImage = errors.New("source returned no image")

// LoadState is the load state of a single frame.
type LoadState uint8

const (
	Pending LoadState = iota
	Loaded
	Failed
)

func (state LoadState) String() string {
	switch state {
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Frame is a single entry of a frame sequence.
type Frame struct {
	Index int
	Path  string
	State LoadState
	Image image.Image // non-nil only if Loaded
	Err   error       // non-nil only if Failed
}

// Sequence is an ordered list of frames. Indices are fixed at construction and
// never reordered. A Sequence is not thread-safe; it is only mutated on the
// host's event thread.
type Sequence struct {
	frames  []Frame
	loaded  int
	failed  int
	settled int
}

// NewSequence creates a sequence of pending frames described by the config.
func NewSequence(cfg Config) *Sequence {
	frames := make([]Frame, cfg.FrameCount)
	for i := range frames {
		frames[i] = Frame{
			Index: i,
			Path:  cfg.FramePath(i),
		}
	}

	return &Sequence{frames: frames}
}

// Len returns the number of frames.
func (seq *Sequence) Len() int { return len(seq.frames) }

// MaxIndex returns the index of the last frame.
func (seq *Sequence) MaxIndex() int { return len(seq.frames) - 1 }

// Frame returns the frame at the given index.
func (seq *Sequence) Frame(index int) (Frame, bool) {
	if index < 0 || index >= len(seq.frames) {
		return Frame{}, false
	}
	return seq.frames[index], true
}

// Image returns the decoded image at the given index, or nil if the frame is
// out of bounds or not loaded.
func (seq *Sequence) Image(index int) image.Image {
	f, ok := seq.Frame(index)
	if !ok || f.State != Loaded {
		return nil
	}
	return f.Image
}

// Loaded returns the number of frames that loaded successfully.
func (seq *Sequence) Loaded() int { return seq.loaded }

// Failed returns the number of frames that failed to load.
func (seq *Sequence) Failed() int { return seq.failed }

// Settled returns the number of frames that finished loading either way.
func (seq *Sequence) Settled() int { return seq.settled }

// Complete returns true once every frame has settled.
func (seq *Sequence) Complete() bool { return seq.settled == len(seq.frames) }

// settle records the result of a load. It returns false if the index is
// invalid or the frame was already settled.
func (seq *Sequence) settle(index int, img image.Image, err error) bool {
	if index < 0 || index >= len(seq.frames) {
		return false
	}

	f := &seq.frames[index]
	if f.State != Pending {
		return false
	}

	if err == nil && img == nil {
		err = errNoImage
	}

	if err != nil {
		f.State = Failed
		f.Err = err
		seq.failed++
	} else {
		f.State = Loaded
		f.Image = img
		seq.loaded++
	}

	seq.settled++
	return true
}
