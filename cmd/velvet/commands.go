package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var errQuit = errors.New("quit")

// Transport is what the command line drives
type Transport interface {
	TogglePlayPause() error
	Stop() error
	Next() error
	Previous() error
	Load(index int) error
	SetVolume(v float64) error
	SeekByRatio(ratio float64) error
	OpenFiles(ctx context.Context) (int, error)
}

const usage = "commands: p play/pause, s stop, n next, b previous, o open, v <0-1> volume, k <0-1> seek, <n> play track n, q quit"

// readCommands executes one command per line until EOF, q or ctx ends.
// It reports whether q was entered.
func readCommands(ctx context.Context, t Transport, r io.Reader, logger *logrus.Logger) bool {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Info(usage)
	for {
		select {
		case <-ctx.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				logger.Debug("Command input closed")
				return false
			}
			err := runCommand(ctx, t, line)
			if errors.Is(err, errQuit) {
				return true
			}
			if err != nil {
				logger.WithError(err).WithField("command", line).Warn("Command failed")
			}
		}
	}
}

func runCommand(ctx context.Context, t Transport, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch cmd := fields[0]; cmd {
	case "p":
		return t.TogglePlayPause()
	case "s":
		return t.Stop()
	case "n":
		return t.Next()
	case "b":
		return t.Previous()
	case "o":
		_, err := t.OpenFiles(ctx)
		return err
	case "q":
		return errQuit
	case "v", "k":
		if len(fields) != 2 {
			return fmt.Errorf("%s needs a value between 0 and 1", cmd)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", fields[1], err)
		}
		if cmd == "v" {
			return t.SetVolume(v)
		}
		return t.SeekByRatio(v)
	default:
		index, err := strconv.Atoi(cmd)
		if err != nil {
			return fmt.Errorf("unknown command %q (%s)", cmd, usage)
		}
		return t.Load(index)
	}
}
