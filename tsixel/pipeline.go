package tsixel

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"runtime"
	"sync"
	"time"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/mattn/go-sixel"
	"golang.org/x/image/draw"
)

// ImageOpts describes how a layer's images are encoded.
type ImageOpts struct {
	// Scaler scales images to the requested size. If nil, images are clipped
	// instead.
	Scaler draw.Scaler
	// Colors, if non-zero, reduces the image to at most this many colors with
	// a median cut before encoding. It must be within 2 and 255.
	Colors int
	// Dither applies Floyd-Steinberg dithering when reducing colors.
	Dither bool
}

// Pipeline scales and encodes images into SIXEL on a pool of worker
// goroutines that grows on demand and shrinks when idle. Jobs are handed out
// in FIFO order, except that a job replaces a queued job of the same owner.
type Pipeline struct {
	pending []*Job
	pool    *encoderPool
	workers int

	// maxWorkers is GOMAXPROCS by default.
	maxWorkers int

	dieCh  chan struct{} // a worker exited
	jobCh  chan *Job     // incoming jobs
	workCh chan *Job     // jobs handed to workers

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Job is a single scale and encode request.
type Job struct {
	// Owner, if not nil, identifies who queued the job. A queued job that has
	// not reached a worker yet is replaced by a newer job with the same
	// owner, and its Done is never called. Owner must be comparable.
	Owner interface{}
	// ID is an arbitrary value for the owner to match results with.
	ID uint64

	Src  image.Image
	Size image.Point
	Opts ImageOpts

	// Done is called from a worker goroutine with the encoded SIXEL, which
	// the callee owns. The SIXEL is nil if Size is empty.
	Done func(Job, []byte)
}

// NewPipeline creates a pipeline bound to ctx. Start must be called before
// queueing jobs.
func NewPipeline(ctx context.Context) *Pipeline {
	ctx, cancel := context.WithCancel(ctx)

	return &Pipeline{
		pool:       newEncoderPool(),
		maxWorkers: runtime.GOMAXPROCS(-1),

		dieCh:  make(chan struct{}),
		jobCh:  make(chan *Job),
		workCh: make(chan *Job),

		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts distributing jobs. It does nothing once the pipeline is
// stopped.
func (p *Pipeline) Start() {
	if p.ctx.Err() != nil {
		return
	}

	p.wg.Add(1)
	go p.run()
}

// Stop stops the pipeline and waits for the distributor to exit. Jobs that
// have not reached a worker are dropped.
func (p *Pipeline) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Queue queues a job. It returns false if the pipeline is stopped.
func (p *Pipeline) Queue(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobCh <- &job:
		return true
	}
}

func (p *Pipeline) run() {
	defer p.wg.Done()

	for {
		// A nil channel blocks, so nothing is handed out while the queue is
		// empty.
		var next *Job
		var workCh chan *Job

		if len(p.pending) > 0 {
			next = p.pending[0]
			workCh = p.workCh
		}

		select {
		case <-p.ctx.Done():
			return

		case <-p.dieCh:
			p.workers--
			if p.workers < 0 {
				panic("negative pipeline workers")
			}

			// The worker may have idled out right as a job came in.
			if len(p.pending) > 0 {
				p.spawn()
			}

		case job := <-p.jobCh:
			p.enqueue(job)
			p.spawn()

		case workCh <- next:
			p.pending[0] = nil
			p.pending = p.pending[1:]
		}
	}
}

func (p *Pipeline) enqueue(job *Job) {
	if job.Owner != nil {
		for i, queued := range p.pending {
			if queued.Owner == job.Owner {
				p.pending[i] = job
				return
			}
		}
	}

	p.pending = append(p.pending, job)
}

func (p *Pipeline) spawn() {
	if p.workers >= p.maxWorkers {
		return
	}

	p.workers++
	go work(p.ctx, p.pool, p.workCh, p.dieCh)
}

// workerIdle is how long a worker waits for a job before exiting.
const workerIdle = time.Second

func work(ctx context.Context, pool *encoderPool, jobs <-chan *Job, die chan<- struct{}) {
	idle := time.NewTimer(workerIdle)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case job := <-jobs:
			job.Done(*job, encode(pool, job))
			idle.Reset(workerIdle)

		case <-idle.C:
			select {
			case <-ctx.Done():
			case die <- struct{}{}:
			}
			return
		}
	}
}

// encode scales the job's image to its size and encodes it. It returns nil for
// an empty size or a missing image.
func encode(pool *encoderPool, job *Job) []byte {
	if job.Src == nil || job.Size.X <= 0 || job.Size.Y <= 0 {
		return nil
	}

	dst := image.NewRGBA(image.Rectangle{Max: job.Size})
	src := job.Src.Bounds()

	if job.Opts.Scaler != nil {
		job.Opts.Scaler.Scale(dst, dst.Rect, job.Src, src, draw.Over, nil)
	} else {
		draw.Draw(dst, dst.Rect, job.Src, src.Min, draw.Over)
	}

	enc := pool.take()
	defer pool.put(enc)

	enc.Dither = job.Opts.Dither

	var img image.Image = dst
	if job.Opts.Colors > 0 {
		img = quantizeImage(dst, job.Opts.Colors, job.Opts.Dither)
	}

	if err := enc.Encode(img); err != nil {
		return nil
	}

	return enc.Bytes()
}

var medianCut = quantize.MedianCutQuantizer{
	Aggregation: quantize.Mean,
}

// quantizeImage reduces src to a palette of at most colors colors.
func quantizeImage(src *image.RGBA, colors int, dither bool) *image.Paletted {
	palette := medianCut.Quantize(make(color.Palette, 0, colors), src)
	paletted := image.NewPaletted(src.Rect, palette)

	if dither {
		draw.FloydSteinberg.Draw(paletted, paletted.Rect, src, src.Rect.Min)
	} else {
		draw.Draw(paletted, paletted.Rect, src, src.Rect.Min, draw.Src)
	}

	return paletted
}

// encoderPool reuses SIXEL encoders together with their output buffers.
type encoderPool struct {
	pool sync.Pool
}

type pooledEncoder struct {
	*sixel.Encoder
	out *bytes.Buffer
}

// Bytes returns a copy of the encoded output.
func (enc pooledEncoder) Bytes() []byte {
	return append([]byte(nil), enc.out.Bytes()...)
}

func newEncoderPool() *encoderPool {
	return &encoderPool{
		pool: sync.Pool{
			New: func() interface{} {
				out := bytes.NewBuffer(make([]byte, 0, SIXELBufferSize))
				return pooledEncoder{
					Encoder: sixel.NewEncoder(out),
					out:     out,
				}
			},
		},
	}
}

func (p *encoderPool) take() pooledEncoder {
	return p.pool.Get().(pooledEncoder)
}

func (p *encoderPool) put(enc pooledEncoder) {
	enc.out.Reset()
	p.pool.Put(enc)
}
