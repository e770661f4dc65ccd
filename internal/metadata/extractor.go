package metadata

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"velvet/internal/cache"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Info is what a probe learns about an audio file ahead of (or alongside) decoding
type Info struct {
	Duration    float64 `json:"duration"` // seconds, 0 when unknown
	Album       string  `json:"album,omitempty"`
	TagTitle    string  `json:"tagTitle,omitempty"`
	TagArtist   string  `json:"tagArtist,omitempty"`
	HasAlbumArt bool    `json:"hasAlbumArt"`
	AlbumArtID  string  `json:"albumArtId,omitempty"`
	FileSize    int64   `json:"fileSize"`
}

// Extractor handles metadata extraction from audio files
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
	art              *cache.ArtCache
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string, art *cache.ArtCache, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Extractor{
		supportedFormats: supportedFormats,
		logger:           logger,
		art:              art,
	}
}

// Probe reads duration, tags and embedded art from an audio file.
// Tag and duration failures are logged and leave the fields empty.
func (e *Extractor) Probe(filePath string) (Info, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		return Info{}, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", filePath, err)
	}

	info := Info{FileSize: stat.Size()}

	info.Duration, err = e.calculateDuration(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Debug("Failed to calculate duration")
		info.Duration = 0
	}

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Debug("No readable tags")
		return info, nil
	}

	info.Album = metadata.Album()
	info.TagTitle = metadata.Title()
	info.TagArtist = metadata.Artist()
	info.AlbumArtID, info.HasAlbumArt = e.extractAlbumArt(metadata)

	e.logger.WithFields(logrus.Fields{
		"filePath":       filePath,
		"album":          info.Album,
		"duration":       info.Duration,
		"hasAlbumArt":    info.HasAlbumArt,
		"processingTime": time.Since(startTime),
	}).Debug("Probed audio file")

	return info, nil
}

// calculateDuration calculates the duration of an audio file in seconds
func (e *Extractor) calculateDuration(filePath string) (float64, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return durationMP3(filePath)
	case ".flac":
		return durationFLAC(filePath)
	case ".wav":
		return durationWAV(filePath)
	case ".m4a":
		return durationM4A(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// durationMP3 sums frame durations; falls back to a bitrate estimate only if no frame decodes.
func durationMP3(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return estimateFromFileSize(f, 192000)
			}
			break
		}
		total += fr.Duration()
		frames++
	}
	if frames == 0 {
		return 0, fmt.Errorf("no mp3 frames")
	}
	return total.Seconds(), nil
}

// durationFLAC reads the STREAMINFO block
func durationFLAC(path string) (float64, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		return float64(si.NSamples) / float64(si.SampleRate), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// durationWAV derives the duration from the header and the PCM payload size
func durationWAV(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	const headerSize = 44
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	return float64(pcmBytes/bytesPerSampleFrame) / float64(dec.SampleRate), nil
}

// durationM4A scans top-level atoms for moov/mvhd and reads timescale and duration.
func durationM4A(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	head := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, head); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if string(head[4:8]) != "moov" {
			if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			continue
		}

		limit := int64(size) - 8
		for read := int64(0); read < limit; {
			if _, err := io.ReadFull(f, head); err != nil {
				return 0, err
			}
			subSize := binary.BigEndian.Uint32(head[0:4])
			if string(head[4:8]) == "mvhd" {
				return readMVHD(f)
			}
			if subSize < 8 {
				return 0, fmt.Errorf("invalid sub-atom size")
			}
			if _, err := f.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += int64(subSize)
		}
		return 0, fmt.Errorf("mvhd atom not found")
	}
}

// readMVHD reads an mvhd body positioned just after its atom header
func readMVHD(r io.ReadSeeker) (float64, error) {
	version := make([]byte, 1)
	if _, err := io.ReadFull(r, version); err != nil {
		return 0, err
	}

	// flags + creation + modification times
	skip := int64(3 + 4 + 4)
	if version[0] == 1 {
		skip = 3 + 8 + 8
	}
	if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
		return 0, err
	}

	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	timescale := binary.BigEndian.Uint32(buf)
	if timescale == 0 {
		return 0, fmt.Errorf("invalid timescale")
	}

	var units uint64
	if version[0] == 1 {
		wide := make([]byte, 8)
		if _, err := io.ReadFull(r, wide); err != nil {
			return 0, err
		}
		units = binary.BigEndian.Uint64(wide)
	} else {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, err
		}
		units = uint64(binary.BigEndian.Uint32(buf))
	}
	return float64(units) / float64(timescale), nil
}

// estimateFromFileSize is the last resort when no mp3 frame parses
func estimateFromFileSize(f *os.File, bitrate int) (float64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	return float64(st.Size()*8) / float64(bitrate), nil
}

// extractAlbumArt caches embedded art under its content hash
func (e *Extractor) extractAlbumArt(metadata tag.Metadata) (string, bool) {
	if metadata == nil {
		return "", false
	}
	picture := metadata.Picture()
	if picture == nil || len(picture.Data) == 0 {
		return "", false
	}

	artID := fmt.Sprintf("%x", md5.Sum(picture.Data))
	if e.art != nil {
		e.art.SetArt(artID, picture.Data)
	}
	return artID, true
}

// AlbumArt retrieves cached album art by ID
func (e *Extractor) AlbumArt(artID string) ([]byte, bool) {
	if e.art == nil {
		return nil, false
	}
	return e.art.GetArt(artID)
}

// ArtMimeType guesses the MIME type of album art bytes
func ArtMimeType(data []byte) string {
	if len(data) < 4 {
		return "application/octet-stream"
	}

	switch {
	case data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46:
		return "image/gif"
	}
	return "application/octet-stream"
}

// IsAudioFile checks if a file has a supported audio extension
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
