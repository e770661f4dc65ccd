package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	calls []string
}

func (r *recordingTransport) record(s string) error {
	r.calls = append(r.calls, s)
	return nil
}

func (r *recordingTransport) TogglePlayPause() error { return r.record("toggle") }
func (r *recordingTransport) Stop() error            { return r.record("stop") }
func (r *recordingTransport) Next() error            { return r.record("next") }
func (r *recordingTransport) Previous() error        { return r.record("previous") }
func (r *recordingTransport) Load(i int) error       { return r.record(fmt.Sprintf("load %d", i)) }
func (r *recordingTransport) SetVolume(v float64) error {
	return r.record(fmt.Sprintf("volume %.2f", v))
}
func (r *recordingTransport) SeekByRatio(v float64) error {
	return r.record(fmt.Sprintf("seek %.2f", v))
}
func (r *recordingTransport) OpenFiles(context.Context) (int, error) {
	return 0, r.record("open")
}

func TestRunCommand(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"p", "toggle"},
		{"s", "stop"},
		{"n", "next"},
		{"b", "previous"},
		{"o", "open"},
		{"v 0.5", "volume 0.50"},
		{"k 0.25", "seek 0.25"},
		{" 2 ", "load 2"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			tr := &recordingTransport{}
			require.NoError(t, runCommand(context.Background(), tr, tt.line))
			assert.Equal(t, []string{tt.want}, tr.calls)
		})
	}
}

func TestRunCommandErrors(t *testing.T) {
	tr := &recordingTransport{}
	ctx := context.Background()

	assert.NoError(t, runCommand(ctx, tr, "   "))
	assert.ErrorIs(t, runCommand(ctx, tr, "q"), errQuit)
	assert.Error(t, runCommand(ctx, tr, "v"))
	assert.Error(t, runCommand(ctx, tr, "k loud"))
	assert.ErrorContains(t, runCommand(ctx, tr, "x"), "unknown command")
	assert.Empty(t, tr.calls)
}

func TestReadCommandsStopsAtQuit(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	tr := &recordingTransport{}
	quit := readCommands(context.Background(), tr, strings.NewReader("p\nbogus\nn\nq\ns\n"), logger)
	assert.True(t, quit)
	assert.Equal(t, []string{"toggle", "next"}, tr.calls)
}

func TestReadCommandsEOFIsNotQuit(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	tr := &recordingTransport{}
	assert.False(t, readCommands(context.Background(), tr, strings.NewReader(""), logger))

	quit := readCommands(context.Background(), tr, strings.NewReader("p\ns"), logger)
	assert.False(t, quit)
	assert.Equal(t, []string{"toggle", "stop"}, tr.calls)
}
