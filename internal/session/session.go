package session

import (
	"context"
	"errors"
	"sync"

	"velvet/internal/catalog"
	"velvet/internal/frame"
	"velvet/internal/graph"
	"velvet/internal/library"
	"velvet/internal/metadata"
	"velvet/internal/picker"
	"velvet/internal/player"
	"velvet/internal/resolve"
	"velvet/internal/transport"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by intents issued after the session stopped
var ErrClosed = errors.New("session closed")

// ArtSource looks up album art bytes by ID
type ArtSource interface {
	AlbumArt(artID string) ([]byte, bool)
}

// Options configures a player session
type Options struct {
	Graph    graph.Config
	Output   graph.Output
	Decoder  graph.Decoder    // defaults to graph.DecodeFile
	Prober   graph.Prober     // optional background metadata reader
	Art      ArtSource        // album art found by the prober
	Resolver catalog.Resolver // defaults to resolve.ToSourceRef
	Selector picker.Selector

	// Clock paces the frame task; a ticker at RefreshRate when nil
	Clock       frame.Clock
	RefreshRate int
	BarCount    int

	// SeedName adds a selected but unloaded entry at startup when set
	SeedName string
	SeedPath string

	// WatchDir, when set, is scanned at startup and watched for new files
	WatchDir string
	Filter   library.AudioFilter

	Logger *logrus.Logger
}

// Session owns one player: catalog, signal graph, transport and frame
// task. All of them are driven from a single loop goroutine started by Run.
type Session struct {
	ID string

	catalog  *catalog.Catalog
	graph    *graph.Graph
	ctl      *transport.Controller
	state    *player.StateManager
	frames   *frame.Scheduler
	opts     Options
	resolver catalog.Resolver
	logger   *logrus.Entry

	queue  chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	running  bool
	doneOnce sync.Once
}

// New builds a session. Nothing is played and no device is opened until
// the first playback intent.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Resolver == nil {
		opts.Resolver = resolve.ToSourceRef
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       uuid.NewString(),
		catalog:  catalog.New(),
		state:    player.NewStateManager(),
		opts:     opts,
		resolver: opts.Resolver,
		queue:    make(chan func(), 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.logger = opts.Logger.WithField("session", s.ID[:8])

	s.graph = graph.New(opts.Graph, opts.Output, opts.Decoder, opts.Prober, opts.Logger)
	s.ctl = transport.NewController(s.catalog, s.graph, s, s.state, opts.Logger)
	s.frames = frame.NewScheduler(s.graph, opts.BarCount, s.state.PublishFrame, opts.Logger)

	if opts.SeedName != "" {
		seed := catalog.NewNamedTrack(opts.SeedPath, s.resolver(opts.SeedPath), opts.SeedName)
		s.catalog.Append(seed)
		if err := s.ctl.Select(0); err != nil {
			s.logger.WithError(err).Warn("Could not select seed entry")
		}
	} else {
		s.ctl.RefreshPlaylist()
	}

	return s
}

// Presentation returns the state fan-out consumed by the UI
func (s *Session) Presentation() *player.StateManager {
	return s.state
}

// AlbumArt returns the art referenced by NowPlaying.AlbumArtID and its MIME type
func (s *Session) AlbumArt(artID string) ([]byte, string, bool) {
	if s.opts.Art == nil || artID == "" {
		return nil, "", false
	}
	data, ok := s.opts.Art.AlbumArt(artID)
	if !ok {
		return nil, "", false
	}
	return data, metadata.ArtMimeType(data), true
}

// Run executes the session loop until ctx is cancelled or Close is called.
// It can only be run once.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running || s.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrClosed
	}
	s.running = true
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	defer s.markDone()

	clock := s.opts.Clock
	if clock == nil {
		clock = frame.NewTicker(s.opts.RefreshRate)
	}
	task := s.frames.Start(s.ctx, clock, func(fn func()) { s.Post(fn) })

	watcher := s.startWatcher()

	s.logger.Info("Player session started")
	for {
		select {
		case <-s.ctx.Done():
			task.Cancel()
			if watcher != nil {
				watcher.Close()
			}
			s.graph.Close()
			s.state.Close()
			s.logger.Info("Player session stopped")
			return nil

		case fn := <-s.queue:
			fn()

		case ev := <-s.graph.Events():
			if err := s.ctl.HandleEvent(ev); err != nil {
				s.logger.WithError(err).Warn("Could not advance playlist")
			}
		}
	}
}

func (s *Session) startWatcher() *library.Watcher {
	if s.opts.WatchDir == "" || s.opts.Filter == nil {
		return nil
	}

	w := library.NewWatcher(s.opts.WatchDir, s.opts.Filter, func(path string) {
		s.Post(func() { s.addFiles([]string{path}) })
	}, s.opts.Logger)

	files, err := w.Scan()
	if err != nil {
		s.logger.WithError(err).WithField("watch_dir", s.opts.WatchDir).Warn("Could not scan watch folder")
		return nil
	}
	s.addFiles(files)

	if err := w.Start(); err != nil {
		s.logger.WithError(err).Warn("Could not start file watcher")
		return nil
	}
	return w
}

// Close stops the loop and waits for it to tear down
func (s *Session) Close() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	s.cancel()
	if !running {
		s.graph.Close()
		s.state.Close()
		s.markDone()
	}
	<-s.done
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Post queues fn to run on the loop. It reports false once the session is stopping.
func (s *Session) Post(fn func()) bool {
	select {
	case s.queue <- fn:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Await delivers a start outcome back onto the loop
func (s *Session) Await(outcome <-chan graph.StartResult, apply func(graph.StartResult)) {
	go func() {
		select {
		case res := <-outcome:
			s.Post(func() { apply(res) })
		case <-s.ctx.Done():
		}
	}()
}

// do runs fn on the loop and waits for its result
func (s *Session) do(fn func() error) error {
	res := make(chan error, 1)
	if !s.Post(func() { res <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-res:
		return err
	case <-s.done:
		select {
		case err := <-res:
			return err
		default:
			return ErrClosed
		}
	}
}

// AddFiles appends paths to the playlist and returns how many were added.
// The first track is loaded when nothing was selected before.
func (s *Session) AddFiles(paths []string) (int, error) {
	var added int
	err := s.do(func() error {
		var err error
		added, err = s.addFiles(paths)
		return err
	})
	return added, err
}

func (s *Session) addFiles(paths []string) (int, error) {
	tracks := make([]catalog.Track, 0, len(paths))
	for _, p := range paths {
		tracks = append(tracks, catalog.NewTrack(p, s.resolver))
	}
	first, added := s.catalog.Append(tracks...)
	if added == 0 {
		return 0, nil
	}
	s.logger.WithFields(logrus.Fields{
		"added": added,
		"total": s.catalog.Len(),
	}).Info("Added tracks to playlist")

	s.ctl.RefreshPlaylist()
	if s.catalog.Current() == catalog.NoSelection {
		if err := s.ctl.Load(first); err != nil {
			return added, err
		}
	}
	return added, nil
}

// OpenFiles asks the configured selector for files and adds them.
// Cancelling adds nothing.
func (s *Session) OpenFiles(ctx context.Context) (int, error) {
	return s.OpenFrom(ctx, s.opts.Selector)
}

// OpenFrom adds whatever sel returns
func (s *Session) OpenFrom(ctx context.Context, sel picker.Selector) (int, error) {
	if sel == nil {
		return 0, nil
	}
	paths, err := sel.SelectFiles(ctx)
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		s.logger.Debug("File selection cancelled")
		return 0, nil
	}
	return s.AddFiles(paths)
}

// Load plays the track at index
func (s *Session) Load(index int) error {
	return s.do(func() error { return s.ctl.Load(index) })
}

// Select marks the track at index as current without playing it
func (s *Session) Select(index int) error {
	return s.do(func() error { return s.ctl.Select(index) })
}

// TogglePlayPause plays or pauses
func (s *Session) TogglePlayPause() error {
	return s.do(s.ctl.TogglePlayPause)
}

// Stop pauses and rewinds
func (s *Session) Stop() error {
	return s.do(func() error {
		s.ctl.Stop()
		return nil
	})
}

// Next plays the following track
func (s *Session) Next() error {
	return s.do(s.ctl.Next)
}

// Previous plays the preceding track
func (s *Session) Previous() error {
	return s.do(s.ctl.Previous)
}

// SeekByRatio seeks to a fraction of the current track
func (s *Session) SeekByRatio(ratio float64) error {
	return s.do(func() error {
		s.ctl.SeekByRatio(ratio)
		return nil
	})
}

// SetVolume sets the output volume in [0,1]
func (s *Session) SetVolume(v float64) error {
	return s.do(func() error {
		s.ctl.SetVolume(v)
		return nil
	})
}

// TransportState returns the controller state as seen from the loop
func (s *Session) TransportState() (transport.State, error) {
	var st transport.State
	err := s.do(func() error {
		st = s.ctl.State()
		return nil
	})
	return st, err
}
