package graph

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"velvet/internal/analysis"
	"velvet/internal/catalog"
	"velvet/internal/metadata"
	"velvet/internal/resolve"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnreadableSource is returned by Bind when a reference cannot be opened for decoding
	ErrUnreadableSource = errors.New("unreadable source")
	// ErrNotInitialized marks a deferred initialization: the platform output could not be opened
	ErrNotInitialized = errors.New("signal graph not initialized")
	// ErrPlaybackRejected is the soft-fail carried by a rejected StartResult
	ErrPlaybackRejected = errors.New("playback start rejected")
	// ErrNothingBound rejects a start with no source bound
	ErrNothingBound = errors.New("no source bound")
	// ErrStartSuperseded rejects a start overtaken by a pause or rebind
	ErrStartSuperseded = errors.New("start superseded")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("signal graph closed")
)

// State is the two-phase initialization state of the graph
type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

// Outcome tags a StartResult
type Outcome int

const (
	Started Outcome = iota + 1
	Rejected
)

// StartResult is the deferred outcome of Start
type StartResult struct {
	Outcome Outcome
	Err     error // set when Rejected
}

// EventKind identifies a graph event
type EventKind int

const (
	EventEnded EventKind = iota + 1
	EventMetadata
)

// Event is raised by the graph for the source bound at generation Seq
type Event struct {
	Kind EventKind
	Seq  uint64
	Info metadata.Info // EventMetadata only
}

// Prober reads metadata for a bound file in the background
type Prober interface {
	Probe(path string) (metadata.Info, error)
}

// Config holds signal graph parameters
type Config struct {
	SampleRate      beep.SampleRate
	BufferSize      time.Duration
	ResampleQuality int
	Gain            float64
	Analyser        analysis.Config
}

// Stage names in wiring order
const (
	StageSource   = "source"
	StageAnalysis = "analysis"
	StageGain     = "gain"
	StageOutput   = "output"
)

type binding struct {
	track    catalog.Track
	stream   beep.StreamSeekCloser
	format   beep.Format
	streamer beep.Streamer // stream resampled to the output rate
	seq      uint64
	ended    bool
}

// Graph owns the live audio path: source -> analysis -> gain -> output.
// Its methods are safe to call while the platform pulls audio on its own thread.
type Graph struct {
	cfg    Config
	out    Output
	decode Decoder
	probe  Prober
	logger *logrus.Logger

	initMu sync.Mutex

	mu       sync.Mutex
	state    State
	stages   []string
	tap      *tap
	gain     *effects.Gain
	analyser *analysis.Analyser
	bound    *binding
	seq      uint64
	playing  bool
	playGen  uint64
	volume   float64
	duration float64
	closed   bool

	events chan Event
}

// New creates an uninitialized graph. Nothing touches the platform until
// EnsureInitialized or Start is called.
func New(cfg Config, out Output, decode Decoder, probe Prober, logger *logrus.Logger) *Graph {
	if decode == nil {
		decode = DecodeFile
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Graph{
		cfg:      cfg,
		out:      out,
		decode:   decode,
		probe:    probe,
		logger:   logger,
		volume:   clampUnit(cfg.Gain),
		duration: math.NaN(),
		events:   make(chan Event, 16),
	}
}

// EnsureInitialized builds and wires the stages and hands the chain to the
// output. Subsequent calls are no-ops. A failure leaves the graph
// Uninitialized so that a later call can retry.
func (g *Graph) EnsureInitialized() error {
	g.initMu.Lock()
	defer g.initMu.Unlock()

	g.mu.Lock()
	state, closed := g.state, g.closed
	g.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if state == Ready {
		return nil
	}

	an, err := analysis.New(g.cfg.Analyser)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	if err := g.out.Init(g.cfg.SampleRate, g.cfg.SampleRate.N(g.cfg.BufferSize)); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}

	src := &sourceStage{g: g}
	tp := newTap(src, an.FFTSize())
	gain := &effects.Gain{Streamer: tp}

	g.mu.Lock()
	g.analyser = an
	g.tap = tp
	g.gain = gain
	g.gain.Gain = g.volume - 1
	g.stages = []string{StageSource, StageAnalysis, StageGain, StageOutput}
	g.state = Ready
	g.mu.Unlock()

	g.out.Play(guarded{mu: &g.mu, s: gain})

	g.logger.WithFields(logrus.Fields{
		"sampleRate": int(g.cfg.SampleRate),
		"fftSize":    an.FFTSize(),
	}).Info("Signal graph initialized")
	return nil
}

// State reports whether the graph has been initialized
func (g *Graph) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Topology returns the wired stage names, empty before initialization
func (g *Graph) Topology() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.stages...)
}

// Bind detaches the current source and attaches track. The new source starts paused.
func (g *Graph) Bind(track catalog.Track) error {
	stream, format, openErr := g.decode(track.SourceRef)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		if stream != nil {
			stream.Close()
		}
		return ErrClosed
	}
	old := g.bound
	g.bound = nil
	g.seq++
	g.playGen++
	g.playing = false
	g.duration = math.NaN()
	seq := g.seq

	if openErr == nil {
		streamer := beep.Streamer(stream)
		if format.SampleRate != g.cfg.SampleRate {
			streamer = beep.Resample(g.cfg.ResampleQuality, format.SampleRate, g.cfg.SampleRate, stream)
		}
		g.bound = &binding{
			track:    track,
			stream:   stream,
			format:   format,
			streamer: streamer,
			seq:      seq,
		}
		if n := stream.Len(); n > 0 {
			g.duration = format.SampleRate.D(n).Seconds()
		}
	}
	g.mu.Unlock()

	if old != nil {
		if err := old.stream.Close(); err != nil {
			g.logger.WithError(err).Debug("Closing previous source")
		}
	}

	if openErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreadableSource, track.DisplayName, openErr)
	}

	if g.probe != nil {
		go g.runProbe(seq, track)
	}
	return nil
}

func (g *Graph) runProbe(seq uint64, track catalog.Track) {
	path := track.Path
	if path == "" {
		path = resolve.ToPath(track.SourceRef)
	}
	info, err := g.probe.Probe(path)
	if err != nil {
		g.logger.WithError(err).WithField("track", track.DisplayName).Debug("Metadata probe failed")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.seq {
		return
	}
	if !isFinite(g.duration) && info.Duration > 0 {
		g.duration = info.Duration
	}
	g.emit(Event{Kind: EventMetadata, Seq: seq, Info: info})
}

// Start asynchronously initializes the output if needed and resumes the
// bound source. The result arrives on the returned channel exactly once.
func (g *Graph) Start() <-chan StartResult {
	ch := make(chan StartResult, 1)

	g.mu.Lock()
	gen := g.playGen
	g.mu.Unlock()

	go func() {
		ch <- g.start(gen)
	}()
	return ch
}

func (g *Graph) start(gen uint64) StartResult {
	if err := g.EnsureInitialized(); err != nil {
		return rejected(err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.playGen {
		return rejected(ErrStartSuperseded)
	}
	b := g.bound
	if b == nil {
		return rejected(ErrNothingBound)
	}
	if b.ended {
		// replay from the top like a media element does after "ended"
		if err := b.stream.Seek(0); err != nil {
			return rejected(err)
		}
		b.ended = false
	}
	g.playing = true
	return StartResult{Outcome: Started}
}

func rejected(err error) StartResult {
	return StartResult{Outcome: Rejected, Err: fmt.Errorf("%w: %v", ErrPlaybackRejected, err)}
}

// Pause stops pulling from the bound source and supersedes pending starts
func (g *Graph) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.playGen++
	g.playing = false
}

// Playing reports whether the bound source is being played
func (g *Graph) Playing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playing
}

// Generation returns the sequence number of the latest Bind
func (g *Graph) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// SetGain sets the linear output gain, clamped to [0,1]
func (g *Graph) SetGain(v float64) {
	v = clampUnit(v)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.volume = v
	if g.gain != nil {
		g.gain.Gain = v - 1
	}
}

// Gain returns the effective output gain
func (g *Graph) Gain() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.volume
}

// BinCount is the length of every frequency snapshot
func (g *Graph) BinCount() int {
	return g.cfg.Analyser.FFTSize / 2
}

// SnapshotFrequencies returns a fresh copy of the byte frequency data.
// It is all zero until the graph is initialized and a source has been bound.
func (g *Graph) SnapshotFrequencies() []byte {
	out := make([]byte, g.BinCount())

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Ready || g.seq == 0 {
		return out
	}
	g.analyser.ByteFrequencyData(g.tap.samples(), out)
	return out
}

// CurrentTime returns the playback position of the bound source in seconds
func (g *Graph) CurrentTime() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.bound
	if b == nil {
		return 0
	}
	return b.format.SampleRate.D(b.stream.Position()).Seconds()
}

// Duration returns the length of the bound source in seconds, NaN while unknown
func (g *Graph) Duration() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.duration
}

// Seek moves the bound source to seconds, clamped to [0, duration].
// It does nothing while the duration is unknown.
func (g *Graph) Seek(seconds float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := g.bound
	if b == nil || !isFinite(g.duration) || math.IsNaN(seconds) {
		return
	}
	seconds = math.Max(0, math.Min(seconds, g.duration))

	pos := b.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if n := b.stream.Len(); n > 0 && pos > n {
		pos = n
	}
	if err := b.stream.Seek(pos); err != nil {
		g.logger.WithError(err).WithField("seconds", seconds).Warn("Seek failed")
		return
	}
	b.ended = false
}

// Rewind moves the bound source back to its start, whether or not the
// duration is known yet
func (g *Graph) Rewind() {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := g.bound
	if b == nil {
		return
	}
	if err := b.stream.Seek(0); err != nil {
		g.logger.WithError(err).Warn("Rewind failed")
		return
	}
	b.ended = false
}

// Events delivers Ended and Metadata events
func (g *Graph) Events() <-chan Event {
	return g.events
}

// emit must be called with g.mu held; events are dropped when nobody keeps up
func (g *Graph) emit(ev Event) {
	select {
	case g.events <- ev:
	default:
		g.logger.WithField("kind", ev.Kind).Warn("Dropping graph event")
	}
}

// Close detaches the source and releases the output
func (g *Graph) Close() {
	g.initMu.Lock()
	defer g.initMu.Unlock()

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	b := g.bound
	g.bound = nil
	g.playing = false
	ready := g.state == Ready
	g.mu.Unlock()

	if ready {
		g.out.Close()
	}
	if b != nil {
		b.stream.Close()
	}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
