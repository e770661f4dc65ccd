package catalog

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const (
	// UnknownArtist is used when a display name carries no "Artist - Title" separator
	UnknownArtist = "Unknown Artist"

	titleSeparator = " - "
)

// Track represents a loadable entry in the catalog
type Track struct {
	ID          string `json:"id"`
	Path        string `json:"-"` // don't expose file path to presentation
	SourceRef   string `json:"-"` // reference the signal graph opens
	DisplayName string `json:"displayName"`
}

// Resolver converts a filesystem path into a reference the signal graph can open
type Resolver func(path string) string

// NewTrack builds a track for a filesystem path
func NewTrack(path string, resolve Resolver) Track {
	ref := path
	if resolve != nil {
		ref = resolve(path)
	}
	return Track{
		ID:          uuid.NewString(),
		Path:        path,
		SourceRef:   ref,
		DisplayName: Basename(path),
	}
}

// NewNamedTrack builds a track whose display name is given explicitly (seed entries)
func NewNamedTrack(path, ref, displayName string) Track {
	return Track{
		ID:          uuid.NewString(),
		Path:        path,
		SourceRef:   ref,
		DisplayName: norm.NFC.String(displayName),
	}
}

// Title returns the title derived from the display name
func (t Track) Title() string {
	title, _ := DeriveTitleArtist(t.DisplayName)
	return title
}

// Artist returns the artist derived from the display name
func (t Track) Artist() string {
	_, artist := DeriveTitleArtist(t.DisplayName)
	return artist
}

// Label returns the playlist row text, title then artist
func (t Track) Label() string {
	title, artist := DeriveTitleArtist(t.DisplayName)
	return title + " — " + artist
}

// Basename returns the last element of a Windows or POSIX path, NFC normalized.
func Basename(p string) string {
	i := strings.LastIndexAny(p, `/\`)
	name := p[i+1:]
	if name == "" {
		name = p
	}
	return norm.NFC.String(name)
}

// DeriveTitleArtist splits "Artist - Title.ext" display names.
// Names without the separator get UnknownArtist and the whole name as title.
// The trailing extension is stripped from the title in both cases.
func DeriveTitleArtist(displayName string) (title, artist string) {
	parts := strings.Split(displayName, titleSeparator)
	if len(parts) >= 2 {
		return stripExtension(strings.Join(parts[1:], titleSeparator)), parts[0]
	}
	return stripExtension(displayName), UnknownArtist
}

// stripExtension removes a trailing ".suffix" where suffix is non-empty and holds no '/' or '.'
func stripExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name
	}
	suffix := name[i+1:]
	if suffix == "" || strings.ContainsRune(suffix, '/') {
		return name
	}
	return name[:i]
}
