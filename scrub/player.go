// Package scrub plays a preloaded frame sequence driven by scroll position.
//
// A Player is mounted into a Host. It preloads every frame, shows the first
// frame as soon as one is available and, once all frames have settled, adds a
// virtual scroll track to the host document. Scrolling through that track
// selects the frame drawn onto the Player's Surface.
package scrub

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// TickInterval is the interval at which hosts are expected to call tick
// listeners.
const TickInterval = time.Second / 30

// ErrMounted is returned when mounting a player that is already mounted.
var ErrMounted = errors.New("player is already mounted")

// State is the lifecycle state of a Player.
type State uint8

const (
	Idle State = iota
	Preloading
	PartiallyReady // at least one frame is drawable, loading continues
	Ready          // all frames settled, scroll-driven playback active
	Destroyed
)

func (state State) String() string {
	switch state {
	case Idle:
		return "idle"
	case Preloading:
		return "preloading"
	case PartiallyReady:
		return "partially ready"
	case Ready:
		return "ready"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", uint8(state))
	}
}

// Options are the hooks and collaborators of a Player that stay the same
// across mounts.
type Options struct {
	// Scaler is the interpolator used to draw frames. draw.CatmullRom is used
	// if nil.
	Scaler draw.Interpolator
	// Present is called on the event thread whenever the surface buffer
	// changes. The buffer must not be retained past the call.
	Present func(buf *image.RGBA)
	// Loading is called on the event thread when the loading flag changes.
	Loading func(loading bool)
	// Logger defaults to a logger writing to the standard logger's output.
	Logger *log.Logger
}

// Player is the scroll-scrubbed frame sequence component. All of its methods
// must be called on the host's event thread.
type Player struct {
	cfg  Config
	src  Source
	opts Options

	host  Host
	id    uuid.UUID
	log   *log.Logger
	state State

	seq     *Sequence
	loader  *Loader
	surface *Surface
	region  *Region
	mapper  *Mapper
	cancel  context.CancelFunc

	current  int
	loading  bool
	resizing bool // inside resize; scroll samples are deferred

	// bindings owned by the current mount
	resized   Listener
	scrolling Listener
	ticking   Listener
}

// NewPlayer creates an idle player. It returns an error if the config is
// invalid.
func NewPlayer(cfg Config, src Source, opts Options) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &Player{
		cfg:  cfg,
		src:  src,
		opts: opts,
	}, nil
}

// Mount attaches the player to the host and starts preloading. The surface is
// sized to the host's viewport right away. A destroyed player may be mounted
// again, in which case everything is recreated.
func (player *Player) Mount(ctx context.Context, host Host) error {
	switch player.state {
	case Idle, Destroyed:
	default:
		return ErrMounted
	}

	player.host = host
	player.id = uuid.New()
	player.log = player.newLogger()

	player.seq = NewSequence(player.cfg)
	player.surface = NewSurface(player.seq, player.opts.Scaler)
	player.surface.Present = player.opts.Present
	player.region = NewRegion(host, player.cfg.TrackViewports)
	player.mapper = nil
	player.current = 0

	viewport := host.Viewport()
	player.surface.Resize(viewport.X, viewport.Y, player.cfg.Quality)
	player.resized = host.OnResize(player.resize)

	ctx, player.cancel = context.WithCancel(ctx)

	player.loader = NewLoader(player.seq, player.src, host.Post, player.cfg)
	player.loader.Logger = player.log
	player.loader.FrameLoaded = player.frameLoaded
	player.loader.Complete = player.preloaded

	player.state = Preloading
	player.setLoading(true)

	player.log.Printf("preloading %d frames", player.seq.Len())
	player.loader.Start(ctx)

	return nil
}

// Unmount tears the player down. It stops scroll-driven playback, removes the
// scroll track, unbinds the resize listener and clears the surface, in that
// order. Pending loads are abandoned, and the Loading hook reports false if
// they were still running. It is safe to call more than once.
func (player *Player) Unmount() {
	switch player.state {
	case Idle, Destroyed:
		return
	}

	player.unbindPlayback()

	player.region.Remove()

	if player.resized != nil {
		player.resized.Remove()
		player.resized = nil
	}

	player.surface.Clear()

	player.cancel()
	player.setLoading(false)
	player.state = Destroyed

	player.log.Printf("unmounted")
}

// Reconfigure recreates the player with a new configuration. If the player is
// mounted, it is unmounted and mounted again on the same host.
func (player *Player) Reconfigure(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	mounted := player.state != Idle && player.state != Destroyed

	player.Unmount()
	player.cfg = cfg

	if !mounted {
		return nil
	}

	return player.Mount(ctx, player.host)
}

func (player *Player) frameLoaded(index int, first bool) {
	if first && player.state == Preloading {
		player.state = PartiallyReady
	}

	// Show the selected frame as soon as it is available. This covers both
	// the very first load and frame 0 arriving after other frames did.
	if index == player.current && player.state != Ready {
		player.surface.DrawFrame(index)
	}
}

func (player *Player) preloaded() {
	player.log.Printf(
		"preloaded %d frames, %d failed",
		player.seq.Loaded(), player.seq.Failed(),
	)

	player.setLoading(false)

	player.region.Create(player.host.Viewport())

	start, end := player.region.Bounds()
	player.mapper = NewMapper(start, end, player.cfg.Scrub())
	player.mapper.Update = player.seek

	player.scrolling = player.host.OnScroll(player.scrolled)
	player.ticking = player.host.OnTick(player.mapper.Tick)

	player.state = Ready
	player.mapper.Sample(player.host.ScrollPosition())
}

func (player *Player) scrolled(pos float64) {
	// Resizing the track clamps the scroll position before the mapper has the
	// new bounds; resize samples once they are set.
	if player.resizing {
		return
	}
	player.mapper.Sample(pos)
}

// seek selects and draws the frame for the given progress. While resizing,
// only the index is updated and resize draws it.
func (player *Player) seek(progress float64) {
	ix := SelectIndex(progress, player.seq.MaxIndex())
	if ix == player.current {
		return
	}

	player.current = ix

	if !player.resizing {
		player.surface.DrawFrame(ix)
	}
}

// resize refreshes the track and the mapper bounds for the new viewport, then
// reallocates the surface with the selected frame drawn, so that a resize
// draws exactly once.
func (player *Player) resize(viewport image.Point) {
	player.resizing = true

	if player.mapper != nil && player.region.Active() {
		player.region.Refresh(viewport)
		player.mapper.SetBounds(player.region.Bounds())
		player.mapper.Sample(player.host.ScrollPosition())
	}

	player.resizing = false

	player.surface.ResizeTo(viewport.X, viewport.Y, player.cfg.Quality, player.current)
}

func (player *Player) unbindPlayback() {
	if player.scrolling != nil {
		player.scrolling.Remove()
		player.scrolling = nil
	}

	if player.ticking != nil {
		player.ticking.Remove()
		player.ticking = nil
	}

	if player.mapper != nil {
		player.mapper.Kill()
	}
}

func (player *Player) setLoading(loading bool) {
	if player.loading == loading {
		return
	}

	player.loading = loading
	if player.opts.Loading != nil {
		player.opts.Loading(loading)
	}
}

func (player *Player) newLogger() *log.Logger {
	prefix := fmt.Sprintf("[scrub %s] ", player.id.String()[:8])

	if player.opts.Logger != nil {
		return log.New(player.opts.Logger.Writer(), prefix, player.opts.Logger.Flags())
	}

	return log.New(log.Writer(), prefix, log.Flags())
}

// State returns the lifecycle state.
func (player *Player) State() State { return player.state }

// IsLoading returns true while frames are being preloaded.
func (player *Player) IsLoading() bool { return player.loading }

// CurrentIndex returns the index of the selected frame.
func (player *Player) CurrentIndex() int { return player.current }

// MaxIndex returns the index of the last frame.
func (player *Player) MaxIndex() int { return player.cfg.MaxIndex() }

// Progress returns the current playback progress, or 0 before playback
// starts.
func (player *Player) Progress() float64 {
	if player.mapper == nil {
		return 0
	}
	return player.mapper.Progress()
}

// Config returns the current configuration.
func (player *Player) Config() Config { return player.cfg }

// Sequence returns the frame sequence of the current mount, or nil.
func (player *Player) Sequence() *Sequence { return player.seq }

// Surface returns the surface of the current mount, or nil.
func (player *Player) Surface() *Surface { return player.surface }

// Region returns the scroll region controller of the current mount, or nil.
func (player *Player) Region() *Region { return player.region }

// MountID returns the identifier of the current mount.
func (player *Player) MountID() uuid.UUID { return player.id }
