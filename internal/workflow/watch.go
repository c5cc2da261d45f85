package workflow

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a workflow definition file during development,
// invoking onLoad whenever WORKFLOW_FILE changes on disk.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	onLoad  func(*Definition)
}

// NewWatcher starts watching path and invokes onLoad once immediately with
// the file's current contents, then again on every subsequent write.
func NewWatcher(path string, onLoad func(*Definition)) (*Watcher, error) {
	def, err := Load(path)
	if err != nil {
		return nil, err
	}
	onLoad(def)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, watcher: fw, onLoad: onLoad}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			def, err := Load(w.path)
			if err != nil {
				slog.Warn("workflow: reload failed, keeping previous definition", "path", w.path, "error", err)
				continue
			}
			w.onLoad(def)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("workflow: watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
