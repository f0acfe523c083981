package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"travis/internal/logging"
)

// Watcher reloads the config file when it changes on disk and delivers the
// new Config on a channel. Used by long-running sessions so edits to
// config.yaml take effect without a restart.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	updates chan *Config
	done    chan struct{}
}

// NewWatcher starts watching the config file's directory. Watching the
// directory instead of the file survives editors that replace the file.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		updates: make(chan *Config, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Updates returns the channel receiving reloaded configs.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logging.Session("config reload failed: %v", err)
				continue
			}
			logging.Session("config reloaded from %s", w.path)
			if err := logging.ReloadConfig(); err != nil {
				logging.Session("logging config reload failed: %v", err)
			}
			// Drop a stale pending update rather than block
			select {
			case w.updates <- cfg:
			default:
				select {
				case <-w.updates:
				default:
				}
				w.updates <- cfg
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Session("config watcher error: %v", err)
		}
	}
}
