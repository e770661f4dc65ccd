package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(n int) *Catalog {
	c := New()
	for i := 0; i < n; i++ {
		c.Append(NewTrack(fmt.Sprintf("/music/Artist %d - Song %d.mp3", i, i), nil))
	}
	return c
}

func TestDeriveTitleArtist(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantTitle  string
		wantArtist string
	}{
		{"artist and title", "Sample Artist - Sample Track.mp3", "Sample Track", "Sample Artist"},
		{"no separator", "justafile.mp3", "justafile", UnknownArtist},
		{"multiple separators", "A - B - C.flac", "B - C", "A"},
		{"no extension", "Band - Song", "Song", "Band"},
		{"dotted name", "my.song.ogg", "my.song", UnknownArtist},
		{"trailing dot kept", "weird.", "weird.", UnknownArtist},
		{"hyphen without spaces", "Jay-Z-Track.mp3", "Jay-Z-Track", UnknownArtist},
		{"empty", "", "", UnknownArtist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, artist := DeriveTitleArtist(tt.input)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantArtist, artist)
		})
	}
}

func TestBasename(t *testing.T) {
	assert.Equal(t, "song.mp3", Basename("/home/me/music/song.mp3"))
	assert.Equal(t, "song.mp3", Basename(`C:\Users\me\song.mp3`))
	assert.Equal(t, "song.mp3", Basename("song.mp3"))
	// NFD "é" is normalized to its composed form
	assert.Equal(t, "caf\u00e9.mp3", Basename("/x/cafe\u0301.mp3"))
}

func TestNewTrack(t *testing.T) {
	tr := NewTrack("/music/Sample Artist - Sample Track.mp3", func(p string) string { return "file://" + p })
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "file:///music/Sample Artist - Sample Track.mp3", tr.SourceRef)
	assert.Equal(t, "Sample Track", tr.Title())
	assert.Equal(t, "Sample Artist", tr.Artist())
	assert.Equal(t, "Sample Track — Sample Artist", tr.Label())

	raw := NewTrack("/music/a.mp3", nil)
	assert.Equal(t, "/music/a.mp3", raw.SourceRef)
	assert.NotEqual(t, tr.ID, raw.ID)
}

func TestAppend(t *testing.T) {
	c := New()
	first, added := c.Append()
	assert.Equal(t, 0, first)
	assert.Equal(t, 0, added)
	assert.Equal(t, NoSelection, c.Current())

	a, b := NewTrack("/a.mp3", nil), NewTrack("/b.mp3", nil)
	first, added = c.Append(a, b)
	assert.Equal(t, 0, first)
	assert.Equal(t, 2, added)

	first, _ = c.Append(NewTrack("/c.mp3", nil))
	assert.Equal(t, 2, first)

	tracks := c.Tracks()
	require.Len(t, tracks, 3)
	assert.Equal(t, "a.mp3", tracks[0].DisplayName)
	assert.Equal(t, "c.mp3", tracks[2].DisplayName)
	// appending never selects
	assert.Equal(t, NoSelection, c.Current())
}

func TestGet(t *testing.T) {
	c := newCatalog(2)
	_, err := c.Get(1)
	assert.NoError(t, err)
	_, err = c.Get(2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Get(-1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNavigationEmpty(t *testing.T) {
	c := New()
	_, err := c.Next(0)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
	_, err = c.Previous(0)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestNavigationWraps(t *testing.T) {
	c := newCatalog(3)

	next, err := c.Next(2)
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	prev, err := c.Previous(0)
	require.NoError(t, err)
	assert.Equal(t, 2, prev)

	// nothing selected yet
	next, _ = c.Next(NoSelection)
	assert.Equal(t, 0, next)
	prev, _ = c.Previous(NoSelection)
	assert.Equal(t, 1, prev)

	single := newCatalog(1)
	prev, _ = single.Previous(NoSelection)
	assert.Equal(t, 0, prev)
}

func TestNavigationCycle(t *testing.T) {
	for n := 1; n <= 7; n++ {
		c := newCatalog(n)
		for start := 0; start < n; start++ {
			i, j := start, start
			for step := 0; step < n; step++ {
				i, _ = c.Next(i)
				j, _ = c.Previous(j)
			}
			assert.Equal(t, start, i, "next cycle n=%d start=%d", n, start)
			assert.Equal(t, start, j, "previous cycle n=%d start=%d", n, start)
		}
	}
}

func TestSetCurrent(t *testing.T) {
	c := newCatalog(2)
	assert.ErrorIs(t, c.SetCurrent(2), ErrIndexOutOfRange)
	assert.ErrorIs(t, c.SetCurrent(-1), ErrIndexOutOfRange)
	_, ok := c.CurrentTrack()
	assert.False(t, ok)

	require.NoError(t, c.SetCurrent(1))
	assert.Equal(t, 1, c.Current())
	tr, ok := c.CurrentTrack()
	assert.True(t, ok)
	assert.Equal(t, "Song 1", tr.Title())
}
