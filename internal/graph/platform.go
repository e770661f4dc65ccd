package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"velvet/internal/resolve"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Output is the platform audio sink. Play hands over the fully wired chain once;
// the sink pulls from it on its own realtime thread.
type Output interface {
	Init(sampleRate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Close()
}

// Decoder opens a source reference for decoding
type Decoder func(ref string) (beep.StreamSeekCloser, beep.Format, error)

// SpeakerOutput plays through the default audio device
type SpeakerOutput struct{}

// Init opens the audio device
func (SpeakerOutput) Init(sampleRate beep.SampleRate, bufferSize int) error {
	return speaker.Init(sampleRate, bufferSize)
}

// Play starts pulling from s
func (SpeakerOutput) Play(s beep.Streamer) {
	speaker.Play(s)
}

// Close releases the audio device
func (SpeakerOutput) Close() {
	speaker.Close()
}

// DecodeFile opens a file reference and picks a decoder by extension
func DecodeFile(ref string) (beep.StreamSeekCloser, beep.Format, error) {
	path := resolve.ToPath(ref)
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".flac":
		stream, format, err = flac.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".ogg", ".oga":
		stream, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("no decoder for %q", ext)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}
	return stream, format, nil
}
