// Package watch reports settled changes to files on disk.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"promptkit/pkg/logger"
)

// DefaultDebounce is used when no debounce is configured.
const DefaultDebounce = 100 * time.Millisecond

// ChangeFunc is called with the changed file once its writes settle.
type ChangeFunc func(path string)

// Watcher reports changes to a set of files. Parent directories are
// watched instead of the files themselves so that editors saving through a
// rename are still followed.
type Watcher struct {
	fsw      *fsnotify.Watcher
	files    map[string]struct{}
	delay    time.Duration
	onChange ChangeFunc

	stopOnce sync.Once
	stopCh   chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher creates a watcher for files. onChange runs on a timer
// goroutine, at most once per settled burst of writes to one file.
func NewWatcher(delay time.Duration, onChange ChangeFunc, files ...string) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]struct{}, len(files)),
		delay:    delay,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = struct{}{}
	}
	return w, nil
}

// Start begins watching. Directories that cannot be watched fail the call.
func (w *Watcher) Start() error {
	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	go w.run()
	return nil
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, tracked := w.files[filepath.Clean(event.Name)]; tracked {
				w.schedule(filepath.Clean(event.Name))
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("watch: file watcher error")
		}
	}
}

// schedule restarts the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.stopCh:
			return
		default:
		}
		logger.Debug().Str("path", path).Msg("watch: file changed")
		w.onChange(path)
	})
}

// Stop stops watching and cancels pending notifications. It is safe to
// call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)

		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.mu.Unlock()

		w.fsw.Close()
	})
}
