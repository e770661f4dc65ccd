package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"velvet/internal/analysis"
	"velvet/internal/cache"
	"velvet/internal/config"
	"velvet/internal/graph"
	"velvet/internal/metadata"
	"velvet/internal/picker"
	"velvet/internal/player"
	"velvet/internal/session"

	"github.com/gopxl/beep/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	appLogger, err := cfg.Logging.NewLogger()
	if err != nil {
		logger.WithError(err).Fatal("Error configuring logger")
	}
	logger = appLogger

	art := cache.NewArtCache()
	defer art.Close()
	extractor := metadata.NewExtractor(cfg.Library.SupportedFormats, art, logger)

	sess := session.New(session.Options{
		Graph:       graphConfig(cfg),
		Output:      graph.SpeakerOutput{},
		Prober:      extractor,
		Art:         extractor,
		Selector:    picker.NewDialog(),
		RefreshRate: cfg.Display.RefreshRate,
		BarCount:    cfg.Display.BarCount,
		SeedName:    cfg.Library.SeedName,
		SeedPath:    cfg.Library.SeedPath,
		WatchDir:    cfg.Library.WatchDir,
		Filter:      extractor,
		Logger:      logger,
	})

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go logUpdates(sess, logger)

	go func() {
		if err := sess.Run(ctx); err != nil {
			logger.WithError(err).Error("Player session failed")
		}
		stop()
	}()

	if args := os.Args[1:]; len(args) > 0 {
		if _, err := sess.OpenFrom(ctx, &picker.Static{Paths: args}); err != nil {
			logger.WithError(err).Warn("Could not play the first file")
		}
	} else if cfg.Library.OpenDialogOnStart {
		if _, err := sess.OpenFiles(ctx); err != nil {
			logger.WithError(err).Warn("File selection failed")
		}
	}

	// stdin closing leaves the player running until a signal
	go func() {
		if readCommands(ctx, sess, os.Stdin, logger) {
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	sess.Close()
}

func graphConfig(cfg *config.Config) graph.Config {
	return graph.Config{
		SampleRate:      beep.SampleRate(cfg.Audio.SampleRate),
		BufferSize:      time.Duration(cfg.Audio.BufferMillis) * time.Millisecond,
		ResampleQuality: cfg.Audio.ResampleQuality,
		Gain:            cfg.Audio.InitialVolume,
		Analyser: analysis.Config{
			FFTSize:     cfg.Analyser.FFTSize,
			Smoothing:   cfg.Analyser.Smoothing,
			MinDecibels: cfg.Analyser.MinDecibels,
			MaxDecibels: cfg.Analyser.MaxDecibels,
		},
	}
}

// logUpdates prints now-playing and playlist changes
func logUpdates(sess *session.Session, logger *logrus.Logger) {
	var last player.NowPlaying
	lastLen := -1
	for st := range sess.Presentation().Subscribe() {
		np := st.NowPlaying
		if np != last {
			last = np
			fields := logrus.Fields{
				"title":  np.Title,
				"artist": np.Artist,
				"state":  np.State,
			}
			if np.Album != "" {
				fields["album"] = np.Album
			}
			if data, mime, ok := sess.AlbumArt(np.AlbumArtID); ok {
				fields["art"] = fmt.Sprintf("%s, %d bytes", mime, len(data))
			}
			if np.StartRejected {
				fields["startRejected"] = true
			}
			if np.Error != "" {
				fields["error"] = np.Error
			}
			logger.WithFields(fields).Info("Now playing")
		}
		if len(st.Playlist) != lastLen {
			lastLen = len(st.Playlist)
			for i, e := range st.Playlist {
				marker := " "
				if e.Active {
					marker = ">"
				}
				logger.Infof("%s %2d  %s", marker, i, e.Label)
			}
		}
	}
}
