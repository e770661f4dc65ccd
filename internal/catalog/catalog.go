package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCatalog is returned when navigating a catalog with no tracks
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrIndexOutOfRange marks an index that the catalog never produced
	ErrIndexOutOfRange = errors.New("track index out of range")
	// ErrNotFound is returned by Get for indices outside the catalog
	ErrNotFound = errors.New("track not found")
)

// NoSelection is the current index before any track has been selected
const NoSelection = -1

// Catalog is the ordered, append-only playlist of a player session.
// It is owned by the session loop and is not safe for concurrent use.
type Catalog struct {
	tracks  []Track
	current int
}

// New creates an empty catalog with nothing selected
func New() *Catalog {
	return &Catalog{current: NoSelection}
}

// Append adds tracks to the end preserving their order.
// It returns the index of the first appended track and how many were added.
func (c *Catalog) Append(tracks ...Track) (first, added int) {
	first = len(c.tracks)
	if len(tracks) == 0 {
		return first, 0
	}
	c.tracks = append(c.tracks, tracks...)
	return first, len(tracks)
}

// Get returns the track at index
func (c *Catalog) Get(index int) (Track, error) {
	if index < 0 || index >= len(c.tracks) {
		return Track{}, fmt.Errorf("%w: index %d of %d", ErrNotFound, index, len(c.tracks))
	}
	return c.tracks[index], nil
}

// Next returns the index after from, wrapping to 0
func (c *Catalog) Next(from int) (int, error) {
	n := len(c.tracks)
	if n == 0 {
		return 0, ErrEmptyCatalog
	}
	return wrap(from+1, n), nil
}

// Previous returns the index before from, wrapping to the last track
func (c *Catalog) Previous(from int) (int, error) {
	n := len(c.tracks)
	if n == 0 {
		return 0, ErrEmptyCatalog
	}
	return wrap(from-1+n, n), nil
}

// SetCurrent selects index as the current track
func (c *Catalog) SetCurrent(index int) error {
	if index < 0 || index >= len(c.tracks) {
		return fmt.Errorf("%w: index %d of %d", ErrIndexOutOfRange, index, len(c.tracks))
	}
	c.current = index
	return nil
}

// Current returns the selected index or NoSelection
func (c *Catalog) Current() int {
	return c.current
}

// CurrentTrack returns the selected track, if any
func (c *Catalog) CurrentTrack() (Track, bool) {
	if c.current == NoSelection {
		return Track{}, false
	}
	return c.tracks[c.current], true
}

// Len returns the number of tracks
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// Tracks returns a copy of the tracks in order
func (c *Catalog) Tracks() []Track {
	out := make([]Track, len(c.tracks))
	copy(out, c.tracks)
	return out
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}
