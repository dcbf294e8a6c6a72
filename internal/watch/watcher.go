// Package watch observes a conversation-log root and reports
// debounced batches of changes that can affect the index.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wesm/agenthistory/internal/parser"
)

// Watcher uses fsnotify to watch the root log, the projects
// directory and each project directory, and calls onChange
// once a path has been quiet for the debounce period.
type Watcher struct {
	root        string
	projectsDir string
	onChange    func(paths []string)
	watcher     *fsnotify.Watcher
	debounce    time.Duration
	pending     map[string]time.Time
	mu          sync.Mutex
	stop        chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
	log         *zap.Logger
}

// New creates a watcher for root. log may be nil.
func New(
	root string, debounce time.Duration, log *zap.Logger,
	onChange func(paths []string),
) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is nil: %w", os.ErrInvalid)
	}
	if debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive, got %s: %w",
			debounce, os.ErrInvalid)
	}
	if log == nil {
		log = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:        root,
		projectsDir: filepath.Join(root, parser.ProjectsDirName),
		onChange:    onChange,
		watcher:     fsw,
		debounce:    debounce,
		pending:     make(map[string]time.Time),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		now:         time.Now,
		log:         log,
	}, nil
}

// WatchTree adds the root, the projects directory and every
// project directory directly under it. Nested directories are
// not indexed and so not watched. Returns the number of
// directories watched and unwatched (failed to add).
func (w *Watcher) WatchTree() (watched int, unwatched int, err error) {
	if err := w.watcher.Add(w.root); err != nil {
		return 0, 1, fmt.Errorf("watching %s: %w", w.root, err)
	}
	watched++

	entries, err := os.ReadDir(w.projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return watched, unwatched, nil
		}
		return watched, unwatched, err
	}
	if err := w.watcher.Add(w.projectsDir); err != nil {
		unwatched++
	} else {
		watched++
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := w.watcher.Add(filepath.Join(w.projectsDir, e.Name())); err != nil {
			unwatched++
		} else {
			watched++
		}
	}
	return watched, unwatched, nil
}

// Start begins processing file events in a goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop stops the watcher and waits for it to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))

		case <-ticker.C:
			w.flush()
		}
	}
}

// relevant reports whether a change at path can alter the
// index: the root log, a project directory, or a transcript
// directly inside one.
func (w *Watcher) relevant(path string) bool {
	dir, base := filepath.Dir(path), filepath.Base(path)
	switch {
	case dir == w.root:
		return base == parser.HistoryFileName ||
			base == parser.ProjectsDirName
	case dir == w.projectsDir:
		return !strings.HasPrefix(base, ".")
	case filepath.Dir(dir) == w.projectsDir:
		return parser.IsTranscriptName(base)
	}
	return false
}

// handleEvent records a pending change and starts watching
// newly created directories at the watched depths.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	const ops = fsnotify.Write | fsnotify.Create |
		fsnotify.Remove | fsnotify.Rename
	if event.Op&ops == 0 || !w.relevant(event.Name) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		w.watchIfDir(event.Name)
	}

	w.mu.Lock()
	w.pending[event.Name] = w.now()
	w.mu.Unlock()
}

// watchIfDir adds path to the watch list if it is a real
// directory. When the projects directory itself appears, its
// existing children are added too.
func (w *Watcher) watchIfDir(path string) {
	info, err := os.Lstat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if filepath.Dir(path) != w.root && filepath.Dir(path) != w.projectsDir {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.log.Debug("cannot watch directory",
			zap.String("path", path), zap.Error(err))
		return
	}
	if path != w.projectsDir {
		return
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			_ = w.watcher.Add(filepath.Join(path, e.Name()))
		}
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}

	now := w.now()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, path)
		}
	}

	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if len(ready) > 0 {
		w.log.Info("changes detected, triggering rebuild",
			zap.Int("paths", len(ready)))
		w.onChange(ready)
	}
}
