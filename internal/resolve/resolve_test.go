package resolve

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSourceRef(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX paths")
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"plain", "/music/song.mp3", "file:///music/song.mp3"},
		{"spaces escaped", "/music/A - B.mp3", "file:///music/A%20-%20B.mp3"},
		{"relative falls back", "./assets/audio/sample.mp3", "./assets/audio/sample.mp3"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToSourceRef(tt.path))
		})
	}
}

func TestToPathRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX paths")
	}

	for _, p := range []string{"/music/song.mp3", "/music/A - B#1?.flac", "/m/caf\u00e9.ogg"} {
		assert.Equal(t, p, ToPath(ToSourceRef(p)))
	}
	assert.Equal(t, "relative.mp3", ToPath("relative.mp3"))
}
