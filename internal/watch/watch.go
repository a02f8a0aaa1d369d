// Package watch coalesces filesystem events on the tracked project
// directories into serialized rebuild requests. Builds are not re-entrant, so
// the worker runs at most one build at a time and folds every request that
// arrives mid-build into a single followup pass.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// DefaultDebounce is how long after the last event a rebuild fires. Editors
// write in bursts; one save can be a create, a write and a rename.
const DefaultDebounce = 300 * time.Millisecond

// Watcher observes a set of directory roots recursively.
type Watcher struct {
	fs       *fsnotify.Watcher
	log      *slog.Logger
	debounce time.Duration
	req      chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// New starts watching every given root recursively. Directories created later
// under a watched root are picked up from their create events.
func New(dirs []string, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	w := &Watcher{
		fs:       fs,
		log:      log,
		debounce: debounce,
		req:      make(chan struct{}, 1),
	}
	for _, d := range dirs {
		if err := w.addRecursive(d); err != nil {
			_ = fs.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error { return w.fs.Close() }

// Trigger requests a rebuild immediately, bypassing the debounce. The
// periodic rescan job uses this as a fallback for missed events.
func (w *Watcher) Trigger() {
	select {
	case w.req <- struct{}{}:
	default:
	}
}

// bump (re)arms the debounce timer; the rebuild request fires once the burst
// of events goes quiet.
func (w *Watcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.Trigger)
}

// Run processes events until ctx is done, calling rebuild for each coalesced
// request. rebuild is never called concurrently with itself.
func (w *Watcher) Run(ctx context.Context, rebuild func(context.Context)) error {
	go w.worker(ctx, rebuild)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// worker drains rebuild requests one at a time. A request arriving while a
// build runs marks it pending and replays it once, no matter how many came
// in.
func (w *Watcher) worker(ctx context.Context, rebuild func(context.Context)) {
	var mu sync.Mutex
	running := false
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.req:
			mu.Lock()
			if running {
				pending = true
				mu.Unlock()
				continue
			}
			running = true
			mu.Unlock()

			rebuild(ctx)

			mu.Lock()
			running = false
			replay := pending
			pending = false
			mu.Unlock()
			if replay {
				w.Trigger()
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ignoreEvent(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addRecursive(ev.Name)
		}
	}
	w.log.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.bump()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(filepath.Base(p), ".") && p != root {
				return filepath.SkipDir
			}
			if err := w.fs.Add(p); err != nil {
				w.log.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
			}
		}
		return nil
	})
}

// ignoreEvent filters hidden files and editor temp/swap files so saves do not
// double-trigger.
func ignoreEvent(p string) bool {
	base := filepath.Base(p)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		(strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")) {
		return true
	}
	return base == "Thumbs.db"
}
