package transport

import (
	"errors"
	"fmt"
	"math"

	"velvet/internal/catalog"
	"velvet/internal/graph"
	"velvet/internal/metadata"
	"velvet/internal/player"

	"github.com/sirupsen/logrus"
)

// State is the transport state
type State int

const (
	Idle State = iota
	Playing
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Graph is the part of the signal graph the controller drives
type Graph interface {
	EnsureInitialized() error
	Bind(track catalog.Track) error
	Start() <-chan graph.StartResult
	Pause()
	Seek(seconds float64)
	Rewind()
	Duration() float64
	SetGain(v float64)
	Gain() float64
	Generation() uint64
}

// Awaiter waits for a start outcome off the loop and runs apply back on it
type Awaiter interface {
	Await(outcome <-chan graph.StartResult, apply func(graph.StartResult))
}

// Publisher receives presentation updates
type Publisher interface {
	PublishNowPlaying(np player.NowPlaying)
	PublishPlaylist(entries []player.Entry)
}

// Controller is the playback state machine. Every method must run on the
// session loop.
type Controller struct {
	catalog *catalog.Catalog
	graph   Graph
	await   Awaiter
	pub     Publisher
	logger  *logrus.Logger

	state    State
	startSeq uint64
	rejected bool
	lastErr  error
	info     metadata.Info
}

// NewController creates a controller in the Idle state
func NewController(cat *catalog.Catalog, g Graph, await Awaiter, pub Publisher, logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Controller{
		catalog: cat,
		graph:   g,
		await:   await,
		pub:     pub,
		logger:  logger,
	}
}

// State returns the current transport state
func (c *Controller) State() State {
	return c.state
}

// StartRejected reports whether the last play attempt was declined
func (c *Controller) StartRejected() bool {
	return c.rejected
}

// LastError returns the failure of the last load, if any
func (c *Controller) LastError() error {
	return c.lastErr
}

// Load selects index, binds it and attempts to start playback.
// An unreadable source is reported and playback holds on that track.
func (c *Controller) Load(index int) error {
	if err := c.catalog.SetCurrent(index); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	track, err := c.catalog.Get(index)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	c.ensureGraph()

	c.startSeq++
	c.state = Stopped
	c.rejected = false
	c.lastErr = nil
	c.info = metadata.Info{}

	log := c.logger.WithFields(logrus.Fields{
		"index": index,
		"track": track.DisplayName,
	})

	if err := c.graph.Bind(track); err != nil {
		c.lastErr = err
		log.WithError(err).Error("Failed to open track")
		c.publish()
		c.publishPlaylist()
		return err
	}

	log.Info("Loaded track")
	c.publishPlaylist()
	c.start()
	c.publish()
	return nil
}

// TogglePlayPause pauses while playing and starts otherwise. From Idle it
// loads the selected track, if any.
func (c *Controller) TogglePlayPause() error {
	switch c.state {
	case Playing:
		c.pause()
	case Paused, Stopped:
		c.start()
		c.publish()
	case Idle:
		if cur := c.catalog.Current(); cur != catalog.NoSelection {
			return c.Load(cur)
		}
	}
	return nil
}

// Stop pauses and rewinds. Stop before anything was loaded does nothing.
func (c *Controller) Stop() {
	if c.state == Idle {
		return
	}
	c.startSeq++
	c.graph.Pause()
	c.graph.Rewind()
	c.state = Stopped
	c.rejected = false
	c.logger.Debug("Playback stopped")
	c.publish()
}

// Next loads the track after the current one, wrapping around
func (c *Controller) Next() error {
	next, err := c.catalog.Next(c.catalog.Current())
	if err != nil {
		return fmt.Errorf("next: %w", err)
	}
	return c.Load(next)
}

// Previous loads the track before the current one, wrapping around
func (c *Controller) Previous() error {
	prev, err := c.catalog.Previous(c.catalog.Current())
	if err != nil {
		return fmt.Errorf("previous: %w", err)
	}
	return c.Load(prev)
}

// Select marks index as current without loading it
func (c *Controller) Select(index int) error {
	if err := c.catalog.SetCurrent(index); err != nil {
		return fmt.Errorf("select: %w", err)
	}
	c.publishPlaylist()
	c.publish()
	return nil
}

// TrackEnded advances to the next track when the source bound at seq
// finishes while playing. Events for older bindings are ignored.
func (c *Controller) TrackEnded(seq uint64) error {
	if c.state != Playing {
		return nil
	}
	if seq != c.graph.Generation() {
		c.logger.WithField("seq", seq).Debug("Ignoring end of a replaced source")
		return nil
	}

	next, err := c.catalog.Next(c.catalog.Current())
	if errors.Is(err, catalog.ErrEmptyCatalog) {
		c.state = Idle
		c.publish()
		return nil
	}
	if err != nil {
		return err
	}
	return c.Load(next)
}

// HandleEvent applies a signal graph event
func (c *Controller) HandleEvent(ev graph.Event) error {
	switch ev.Kind {
	case graph.EventEnded:
		return c.TrackEnded(ev.Seq)
	case graph.EventMetadata:
		if ev.Seq != c.graph.Generation() {
			return nil
		}
		c.info = ev.Info
		c.logger.WithFields(logrus.Fields{
			"album":    ev.Info.Album,
			"duration": ev.Info.Duration,
		}).Debug("Track metadata loaded")
		c.publish()
	}
	return nil
}

// SeekByRatio seeks to ratio of the duration. Nothing happens while the duration is unknown.
func (c *Controller) SeekByRatio(ratio float64) {
	d := c.graph.Duration()
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return
	}
	if math.IsNaN(ratio) {
		ratio = 0
	}
	ratio = math.Max(0, math.Min(1, ratio))
	c.graph.Seek(ratio * d)
}

// SetVolume sets the output gain, clamped to [0,1]
func (c *Controller) SetVolume(v float64) {
	c.ensureGraph()
	c.graph.SetGain(v)
	c.publish()
}

// NowPlaying returns the presentation view of the transport
func (c *Controller) NowPlaying() player.NowPlaying {
	np := player.NowPlaying{
		Index:         c.catalog.Current(),
		State:         c.state.String(),
		IsPlaying:     c.state == Playing,
		StartRejected: c.rejected,
		Volume:        c.graph.Gain(),
		Album:         c.info.Album,
		HasAlbumArt:   c.info.HasAlbumArt,
		AlbumArtID:    c.info.AlbumArtID,
	}
	if track, ok := c.catalog.CurrentTrack(); ok {
		np.TrackID = track.ID
		np.Title, np.Artist = catalog.DeriveTitleArtist(track.DisplayName)
		// names without an artist fall back to the file's tags
		if np.Artist == catalog.UnknownArtist {
			if c.info.TagTitle != "" {
				np.Title = c.info.TagTitle
			}
			if c.info.TagArtist != "" {
				np.Artist = c.info.TagArtist
			}
		}
	}
	if c.lastErr != nil {
		np.Error = c.lastErr.Error()
	}
	return np
}

// Playlist returns the display list with the current track marked
func (c *Controller) Playlist() []player.Entry {
	tracks := c.catalog.Tracks()
	entries := make([]player.Entry, len(tracks))
	for i, t := range tracks {
		entries[i] = player.Entry{
			ID:     t.ID,
			Label:  t.Label(),
			Active: i == c.catalog.Current(),
		}
	}
	return entries
}

// RefreshPlaylist republishes the display list, e.g. after an append
func (c *Controller) RefreshPlaylist() {
	c.publishPlaylist()
}

func (c *Controller) start() {
	c.startSeq++
	seq := c.startSeq
	c.await.Await(c.graph.Start(), func(res graph.StartResult) {
		c.applyStart(seq, res)
	})
}

func (c *Controller) applyStart(seq uint64, res graph.StartResult) {
	if seq != c.startSeq {
		c.logger.WithField("seq", seq).Debug("Ignoring stale start outcome")
		return
	}

	switch res.Outcome {
	case graph.Started:
		c.state = Playing
		c.rejected = false
	default:
		c.state = Paused
		c.rejected = true
		c.logger.WithError(res.Err).Warn("Playback start rejected")
	}
	c.publish()
}

func (c *Controller) pause() {
	c.startSeq++
	c.graph.Pause()
	c.state = Paused
	c.rejected = false
	c.publish()
}

func (c *Controller) ensureGraph() {
	if err := c.graph.EnsureInitialized(); err != nil {
		c.logger.WithError(err).Warn("Signal graph not ready, will retry on play")
	}
}

func (c *Controller) publish() {
	if c.pub != nil {
		c.pub.PublishNowPlaying(c.NowPlaying())
	}
}

func (c *Controller) publishPlaylist() {
	if c.pub != nil {
		c.pub.PublishPlaylist(c.Playlist())
	}
}
