package frame

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultBarCount is the number of visualizer bands taken from the low end of the spectrum
const DefaultBarCount = 64

// Source is the read side of the signal graph polled once per frame
type Source interface {
	CurrentTime() float64
	Duration() float64
	BinCount() int
	SnapshotFrequencies() []byte
}

// State is one immutable frame handed to the presentation layer
type State struct {
	Elapsed       float64   `json:"elapsed"`
	Duration      float64   `json:"duration"` // 0 unless DurationKnown
	DurationKnown bool      `json:"durationKnown"`
	Progress      float64   `json:"progress"`
	Intensity     float64   `json:"intensity"`
	Pulse         float64   `json:"pulse"` // album art scale
	Bands         []float64 `json:"bands"`
}

// Scheduler turns graph snapshots into frame states
type Scheduler struct {
	src    Source
	bands  int
	emit   func(State)
	logger *logrus.Logger
}

// NewScheduler creates a scheduler emitting min(barCount, bins) bands per frame
func NewScheduler(src Source, barCount int, emit func(State), logger *logrus.Logger) *Scheduler {
	if barCount <= 0 {
		barCount = DefaultBarCount
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		src:    src,
		bands:  min(barCount, src.BinCount()),
		emit:   emit,
		logger: logger,
	}
}

// Tick computes and emits a single frame. It never panics: a failing
// computation is logged and replaced by a zeroed frame.
func (s *Scheduler) Tick() State {
	st := s.safeCompute()
	if s.emit != nil {
		s.emit(st)
	}
	return st
}

func (s *Scheduler) safeCompute() (st State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Frame computation failed")
			st = s.zero()
		}
	}()
	return s.compute()
}

func (s *Scheduler) compute() State {
	elapsed := s.src.CurrentTime()
	duration := s.src.Duration()

	known := !math.IsNaN(duration) && !math.IsInf(duration, 0)
	if !known {
		duration = 0
	}
	progress := 0.0
	if duration != 0 {
		progress = elapsed / duration
	}

	bins := s.src.SnapshotFrequencies()
	sum := 0
	for _, v := range bins {
		sum += int(v)
	}
	intensity := 0.0
	if len(bins) > 0 {
		intensity = float64(sum) / float64(len(bins)) / 255
	}

	bands := make([]float64, s.bands)
	for i := 0; i < s.bands && i < len(bins); i++ {
		bands[i] = float64(bins[i]) / 255
	}

	return State{
		Elapsed:       elapsed,
		Duration:      duration,
		DurationKnown: known,
		Progress:      progress,
		Intensity:     intensity,
		Pulse:         1 + intensity*0.06,
		Bands:         bands,
	}
}

func (s *Scheduler) zero() State {
	return State{Pulse: 1, Bands: make([]float64, s.bands)}
}

// Clock paces the frame task
type Clock interface {
	Ticks() <-chan time.Time
	Stop()
}

type tickerClock struct {
	t *time.Ticker
}

// NewTicker returns a clock firing rate times per second, 60 if rate is not positive
func NewTicker(rate int) Clock {
	if rate <= 0 {
		rate = 60
	}
	return tickerClock{t: time.NewTicker(time.Second / time.Duration(rate))}
}

func (c tickerClock) Ticks() <-chan time.Time { return c.t.C }
func (c tickerClock) Stop()                   { c.t.Stop() }

// Task is a running frame loop
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start runs the scheduler on every clock tick until ctx ends or the task is
// cancelled. Ticks are handed to post so they run on the caller's loop; a
// tick that is still pending swallows the ones that arrive meanwhile.
func (s *Scheduler) Start(ctx context.Context, clock Clock, post func(func())) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	var pending atomic.Bool
	go func() {
		defer close(t.done)
		defer clock.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-clock.Ticks():
				if !pending.CompareAndSwap(false, true) {
					continue
				}
				post(func() {
					defer pending.Store(false)
					s.Tick()
				})
			}
		}
	}()
	return t
}

// Cancel stops the task and waits for its goroutine. Safe to call more than once.
func (t *Task) Cancel() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the task has stopped
func (t *Task) Done() <-chan struct{} {
	return t.done
}
