package player

import (
	"fmt"
	"math"
	"sync"
	"time"

	"velvet/internal/frame"
)

// NowPlaying is the transport state shown next to the album art
type NowPlaying struct {
	Index         int     `json:"index"`
	TrackID       string  `json:"trackId,omitempty"`
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	Album         string  `json:"album,omitempty"`
	HasAlbumArt   bool    `json:"hasAlbumArt"`
	AlbumArtID    string  `json:"albumArtId,omitempty"`
	State         string  `json:"state"`
	IsPlaying     bool    `json:"isPlaying"`     // drives the play/pause icon
	StartRejected bool    `json:"startRejected"` // a play attempt was declined by the platform
	Error         string  `json:"error,omitempty"`
	Volume        float64 `json:"volume"`
}

// Entry is one row of the playlist display list
type Entry struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// State is everything the presentation layer renders apart from frames
type State struct {
	NowPlaying NowPlaying `json:"nowPlaying"`
	Playlist   []Entry    `json:"playlist"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// StateManager fans presentation updates out to subscribers
type StateManager struct {
	state     *State
	mutex     sync.RWMutex
	listeners []chan *State

	frame          frame.State
	frameListeners []chan frame.State
}

// NewStateManager creates a new presentation state manager
func NewStateManager() *StateManager {
	return &StateManager{
		state: &State{
			NowPlaying: NowPlaying{Index: -1, Volume: 1.0, State: "idle"},
			UpdatedAt:  time.Now(),
		},
	}
}

// GetState returns a copy of the current state (thread-safe)
func (sm *StateManager) GetState() *State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.snapshot()
}

func (sm *StateManager) snapshot() *State {
	stateCopy := *sm.state
	stateCopy.Playlist = append([]Entry(nil), sm.state.Playlist...)
	return &stateCopy
}

// PublishNowPlaying replaces the now-playing state
func (sm *StateManager) PublishNowPlaying(np NowPlaying) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.NowPlaying = np
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// PublishPlaylist replaces the playlist display list
func (sm *StateManager) PublishPlaylist(entries []Entry) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.Playlist = append([]Entry(nil), entries...)
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// Subscribe adds a listener for now-playing and playlist changes.
// A listener that falls behind is dropped and its channel closed.
func (sm *StateManager) Subscribe() <-chan *State {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	ch := make(chan *State, 10)
	sm.listeners = append(sm.listeners, ch)
	return ch
}

// Unsubscribe removes a listener
func (sm *StateManager) Unsubscribe(ch <-chan *State) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for i, listener := range sm.listeners {
		if listener == ch {
			close(listener)
			sm.listeners = append(sm.listeners[:i], sm.listeners[i+1:]...)
			break
		}
	}
}

// notifyListeners must be called with the lock held
func (sm *StateManager) notifyListeners() {
	kept := sm.listeners[:0]
	for _, listener := range sm.listeners {
		select {
		case listener <- sm.snapshot():
			kept = append(kept, listener)
		default:
			close(listener)
		}
	}
	clear(sm.listeners[len(kept):])
	sm.listeners = kept
}

// PublishFrame hands a frame to every frame subscriber. Subscribers only
// ever see the latest frame; older unread frames are discarded.
func (sm *StateManager) PublishFrame(f frame.State) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.frame = f
	for _, ch := range sm.frameListeners {
		select {
		case ch <- f:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- f:
		default:
		}
	}
}

// SubscribeFrames adds a latest-wins frame listener
func (sm *StateManager) SubscribeFrames() <-chan frame.State {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	ch := make(chan frame.State, 1)
	sm.frameListeners = append(sm.frameListeners, ch)
	return ch
}

// UnsubscribeFrames removes a frame listener
func (sm *StateManager) UnsubscribeFrames(ch <-chan frame.State) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for i, listener := range sm.frameListeners {
		if listener == ch {
			close(listener)
			sm.frameListeners = append(sm.frameListeners[:i], sm.frameListeners[i+1:]...)
			break
		}
	}
}

// LatestFrame returns the most recently published frame
func (sm *StateManager) LatestFrame() frame.State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.frame
}

// Close closes every subscriber channel
func (sm *StateManager) Close() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for _, ch := range sm.listeners {
		close(ch)
	}
	for _, ch := range sm.frameListeners {
		close(ch)
	}
	sm.listeners = nil
	sm.frameListeners = nil
}

// FormatTime renders seconds as m:ss
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// BarAlpha is the opacity of a visualizer bar with normalized value v
func BarAlpha(v float64) float64 {
	return 0.15 + v*0.35
}
