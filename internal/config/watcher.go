package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/walletperm/internal/logging"
	"github.com/opencode-ai/walletperm/pkg/types"
)

// reloadDelay coalesces the bursts of writes editors make when saving.
const reloadDelay = 200 * time.Millisecond

// Watcher reloads the configuration when one of the files Load reads changes.
type Watcher struct {
	watcher   *fsnotify.Watcher
	directory string
	onChange  func(*types.Config)
	log       zerolog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	mu        sync.Mutex
}

// NewWatcher watches the config directories of directory that exist and
// calls onChange with the freshly loaded configuration after each change.
// A file that fails to load is logged and the previous configuration stays.
func NewWatcher(directory string, onChange func(*types.Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := configDirs(directory)
	if configPath := os.Getenv("WALLETPERM_CONFIG"); configPath != "" {
		dirs = append(dirs, filepath.Dir(configPath))
	}

	watched := 0
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, err
		}
		watched++
	}
	logger := logging.Component("config")
	logger.Debug().Int("dirs", watched).Str("directory", directory).Msg("config watcher initialized")

	return &Watcher{
		watcher:   w,
		directory: directory,
		onChange:  onChange,
		log:       logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start begins watching for changes.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if w.isConfigFile(ev.Name) {
				timer.Reset(reloadDelay)
			}
		case <-timer.C:
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) isConfigFile(name string) bool {
	name = filepath.Clean(name)
	for _, path := range ConfigFiles(w.directory) {
		if name == filepath.Clean(path) {
			return true
		}
	}
	return false
}

func (w *Watcher) reload() {
	cfg, err := Load(w.directory)
	if err != nil {
		w.log.Warn().Err(err).Msg("config reload failed, keeping previous config")
		return
	}
	w.log.Info().Msg("config reloaded")
	w.onChange(cfg)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}

	if started {
		<-w.doneCh
	}

	return w.watcher.Close()
}
