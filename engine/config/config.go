package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/refract/engine/core"
)

// Config holds the engine options consumed by the renderer backend. It is
// loaded from a TOML file and may be live-reloaded while the engine runs.
type Config struct {
	// Enables the background pipeline precompiler. Can still be vetoed
	// at runtime with REFRACT_STATE_CACHE=0.
	EnableStateCache bool `toml:"enable_state_cache"`
	// Number of precompiler worker goroutines.
	StateCacheWorkers int `toml:"state_cache_workers"`
	// Log level: debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

const defaultStateCacheWorkers = 2

func defaults() Config {
	return Config{
		EnableStateCache:  true,
		StateCacheWorkers: defaultStateCacheWorkers,
		LogLevel:          "debug",
	}
}

// Load reads and parses the configuration file. Missing keys fall back to
// their defaults; a missing file yields the full default configuration.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return defaults(), err
	}
	if cfg.StateCacheWorkers <= 0 {
		cfg.StateCacheWorkers = defaultStateCacheWorkers
	}
	return cfg, nil
}

// Watcher re-parses the configuration file whenever it changes on disk and
// hands the result to the registered callback.
type Watcher struct {
	fsnotify *fsnotify.Watcher
	path     string
	onChange func(Config)

	done     chan struct{}
	isClosed bool
	mutex    sync.Mutex
}

func NewWatcher(path string, onChange func(Config)) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsnotify: fsWatch,
		path:     path,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	// Watch the directory rather than the file so that editors which
	// rename-and-replace do not silently drop the watch.
	if err := fsWatch.Add(filepath.Dir(path)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	go w.start()
	return w, nil
}

func (w *Watcher) start() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				core.LogWarn("config reload failed for %s: %s", w.path, err.Error())
				continue
			}
			core.LogInfo("configuration reloaded from %s", w.path)
			w.onChange(cfg)
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("config watcher error: %s", err.Error())
		}
	}
}

func (w *Watcher) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.isClosed {
		return nil
	}
	w.isClosed = true
	close(w.done)
	return w.fsnotify.Close()
}
