package core

import (
	"github.com/fsnotify/fsnotify"
)

// ShaderWatcher watches a directory of shader sources and invokes a
// callback with the changed path on every write event. The engine uses
// this to trigger shader recompilation + pipeline recreation (§7:
// "Shader compilation failure at runtime ... caller decides").
type ShaderWatcher struct {
	watcher *fsnotify.Watcher
	logger  *Logger
	done    chan struct{}
}

// NewShaderWatcher starts watching dir and dispatches onChange for every
// Write event observed. onChange is invoked on a dedicated goroutine.
func NewShaderWatcher(dir string, logger *Logger, onChange func(path string)) (*ShaderWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	sw := &ShaderWatcher{watcher: w, logger: logger, done: make(chan struct{})}

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					if logger != nil {
						logger.LogInfo("shader source changed: %s", event.Name)
					}
					onChange(event.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if logger != nil {
					logger.LogWarn("shader watcher error: %s", err)
				}
			case <-sw.done:
				return
			}
		}
	}()

	return sw, nil
}

// Close stops the watcher.
func (sw *ShaderWatcher) Close() error {
	close(sw.done)
	return sw.watcher.Close()
}
