package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thedaily/assetfix/internal/logging"
	"github.com/thedaily/assetfix/internal/walker"
)

const defaultDebounce = 200 * time.Millisecond

// Processor rewrites a single file. *walker.Walker satisfies it.
type Processor interface {
	Matches(path string) bool
	ProcessFile(ctx context.Context, path string) (walker.FileResult, error)
}

type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher reprocesses files under a build directory as the generator writes
// them. Its own writes trigger one more event per file, which is a no-op
// because the rewrite is idempotent.
type Watcher struct {
	root     string
	proc     Processor
	debounce time.Duration
	logger   *slog.Logger

	fsw *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

func New(root string, proc Processor, opts Options) (*Watcher, error) {
	if proc == nil {
		return nil, errors.New("processor is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	return &Watcher{
		root:     root,
		proc:     proc,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		fsw:      fsw,
		timers:   map[string]*time.Timer{},
	}, nil
}

// Run blocks until ctx is done or the underlying watcher fails. Matching
// files already in the tree are queued once as the tree is registered, so
// nothing written before the watch started is missed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.shutdown()

	if err := w.addRecursive(ctx, w.root, true); err != nil {
		return err
	}
	w.logger.Info("watching", slog.String("root", w.root), slog.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ctx, event.Name, true); err != nil {
				w.logger.Error("watch new directory", slog.String("path", event.Name), slog.Any("error", err))
			}
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.proc.Matches(event.Name) {
		return
	}
	w.logger.Debug("file event", slog.String("op", event.Op.String()), slog.String("path", event.Name))
	w.schedule(ctx, event.Name)
}

// addRecursive watches dir and everything below it. When scan is set the
// matching files already present are queued, covering writes that landed
// before the directory was watched.
func (w *Watcher) addRecursive(ctx context.Context, dir string, scan bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if scan && w.proc.Matches(path) {
			w.schedule(ctx, path)
		}
		return nil
	})
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	// A stopped timer hands its WaitGroup slot to the replacement.
	if prev, ok := w.timers[path]; !ok || !prev.Stop() {
		w.wg.Add(1)
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if w.timers[path] == timer {
			delete(w.timers, path)
		}
		w.mu.Unlock()

		w.process(ctx, path)
	})
	w.timers[path] = timer
}

func (w *Watcher) process(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.proc.ProcessFile(ctx, path); err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, context.Canceled) {
			w.logger.Debug("skipped", slog.String("path", path), slog.Any("error", err))
			return
		}
		w.logger.Error("rewrite failed", slog.String("path", path), slog.Any("error", err))
	}
}

// Pending returns the number of files waiting for their debounce window.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.closed = true
	for path, timer := range w.timers {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	_ = w.fsw.Close()
}
