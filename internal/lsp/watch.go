package lsp

import (
	"errors"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/rulesls"
	"github.com/jward/rulesls/internal/config"
)

// watchDebounce batches the bursts of events editors and tools produce for
// a single save.
const watchDebounce = 200 * time.Millisecond

// watcher keeps closed rule files in the source dirs in sync with disk.
type watcher struct {
	s  *Server
	fw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]bool // path -> removed
	timer   *time.Timer

	done chan struct{}
}

func newWatcher(s *Server, dirs []string) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(dirs) && len(dirs) > 0 {
		fw.Close()
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		s.logger.Warn("watch directory failed", "error", err)
	}
	w := &watcher{s: s, fw: fw, pending: make(map[string]bool), done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.event(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.s.logger.Warn("file watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *watcher) event(ev fsnotify.Event) {
	if !config.IsRuleFile(ev.Name) {
		return
	}
	var removed bool
	switch {
	case ev.Op.Has(fsnotify.Write), ev.Op.Has(fsnotify.Create):
		removed = false
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		removed = true
	default:
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[ev.Name] = removed
	if w.timer == nil {
		w.timer = time.AfterFunc(watchDebounce, w.flush)
	} else {
		w.timer.Reset(watchDebounce)
	}
}

// flush hands the collected changes to the dispatcher.
func (w *watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]bool)
	w.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	w.s.submit(func() { w.s.applyDiskChanges(batch) })
}

func (w *watcher) close() {
	select {
	case <-w.done:
		return
	default:
	}
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.fw.Close()
}

// applyDiskChanges reloads or evicts files changed on disk. Files open in
// the editor are owned by the document events and skipped, as are files the
// project settings exclude.
func (s *Server) applyDiskChanges(batch map[string]bool) {
	for path, removed := range batch {
		if s.open[path] || s.project.Excluded(s.root, path) {
			continue
		}
		if removed {
			if s.ws.Remove(path) {
				s.logger.Debug("watched file removed", "path", path)
			}
			continue
		}
		changed, err := s.ws.Update(path, rulesls.UpdateOptions{ReadFromDisk: true})
		if err != nil {
			s.logger.Warn("watched file reload failed", "path", path, "error", err)
			continue
		}
		if changed {
			s.logger.Debug("watched file reloaded", "path", path)
		}
	}
}
