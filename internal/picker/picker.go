package picker

import (
	"context"
	"errors"
	"strings"

	"github.com/ncruces/zenity"
)

// Selector asks the user for audio files. An empty result means the user cancelled.
type Selector interface {
	SelectFiles(ctx context.Context) ([]string, error)
}

// Dialog is the native multi-select file dialog
type Dialog struct {
	Title      string
	Extensions []string // without the dot
}

// NewDialog returns the "Load Songs" dialog filtering common audio formats
func NewDialog() Dialog {
	return Dialog{
		Title:      "Load Songs",
		Extensions: []string{"mp3", "wav", "ogg", "flac"},
	}
}

// SelectFiles shows the dialog and blocks until it is closed
func (d Dialog) SelectFiles(ctx context.Context) ([]string, error) {
	paths, err := zenity.SelectFileMultiple(
		zenity.Context(ctx),
		zenity.Title(d.Title),
		zenity.FileFilters{d.filter()},
	)
	if errors.Is(err, zenity.ErrCanceled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (d Dialog) filter() zenity.FileFilter {
	patterns := make([]string, 0, len(d.Extensions))
	for _, ext := range d.Extensions {
		patterns = append(patterns, "*."+strings.TrimPrefix(ext, "."))
	}
	return zenity.FileFilter{Name: "Audio", Patterns: patterns}
}

// Static hands out a fixed list of paths once, e.g. from the command line
type Static struct {
	Paths []string
	used  bool
}

// SelectFiles returns the paths on the first call and nothing afterwards
func (s *Static) SelectFiles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.used {
		return nil, nil
	}
	s.used = true
	return append([]string(nil), s.Paths...), nil
}
