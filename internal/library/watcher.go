package library

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultSettleDelay gives a copy in progress time to finish before the file is reported
const DefaultSettleDelay = 500 * time.Millisecond

// AudioFilter decides which files belong in the playlist
type AudioFilter interface {
	IsAudioFile(path string) bool
}

// Watcher reports audio files appearing below a folder
type Watcher struct {
	dir         string
	filter      AudioFilter
	onAdd       func(path string)
	logger      *logrus.Logger
	SettleDelay time.Duration

	watcher   *fsnotify.Watcher
	mu        sync.Mutex
	seen      map[string]bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWatcher creates a watcher for dir. onAdd is called from the watcher's
// goroutines, once per new file.
func NewWatcher(dir string, filter AudioFilter, onAdd func(path string), logger *logrus.Logger) *Watcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Watcher{
		dir:         dir,
		filter:      filter,
		onAdd:       onAdd,
		logger:      logger,
		SettleDelay: DefaultSettleDelay,
		seen:        make(map[string]bool),
	}
}

// Scan returns the audio files already present, sorted by path, and marks
// them as seen so that later events do not report them again
func (w *Watcher) Scan() ([]string, error) {
	var files []string
	err := filepath.Walk(w.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && !ignored(path) && w.filter.IsAudioFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	w.mu.Lock()
	for _, f := range files {
		w.seen[f] = true
	}
	w.mu.Unlock()
	return files, nil
}

// Start begins monitoring the folder and its subfolders
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := w.addDirectory(w.dir); err != nil {
		watcher.Close()
		w.watcher = nil
		return err
	}

	w.wg.Add(1)
	go w.watchFiles()

	w.logger.WithField("watch_dir", w.dir).Info("File watcher started")
	return nil
}

func (w *Watcher) addDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) watchFiles() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("File watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) || ignored(event.Name) {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if err := w.addDirectory(event.Name); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
			w.logger.WithError(err).WithField("directory", event.Name).Warn("Could not watch new directory")
			return
		}
		w.logger.WithField("directory", event.Name).Info("Watching new directory")
		return
	}

	if !w.filter.IsAudioFile(event.Name) {
		return
	}

	w.mu.Lock()
	if w.seen[event.Name] {
		w.mu.Unlock()
		return
	}
	w.seen[event.Name] = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func(name string) {
		defer w.wg.Done()
		time.Sleep(w.SettleDelay)
		w.logger.WithField("file_path", name).Info("New audio file detected")
		w.onAdd(name)
	}(event.Name)
}

// Close stops the watcher and waits for pending reports
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		if w.watcher != nil {
			err = w.watcher.Close()
		}
		w.wg.Wait()
	})
	return err
}

// ignored skips hidden and temporary files
func ignored(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp")
}
