package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/thedaily/assetfix/internal/logging"
	"github.com/thedaily/assetfix/internal/observability"
	"github.com/thedaily/assetfix/internal/rewrite"
)

const defaultWorkers = 4

type Options struct {
	Root       string
	Extensions []string
	Workers    int
	DryRun     bool

	Rewriter *rewrite.Rewriter
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Changes  *logging.ChangeLogger
}

// FileResult describes one read/transform/write step.
type FileResult struct {
	Path         string
	Modified     bool
	Written      bool
	Replacements map[string]int
}

type Summary struct {
	RunID        string
	Scanned      int
	Rewritten    int
	Replacements map[string]int
	Duration     time.Duration
}

type Walker struct {
	opts  Options
	exts  []string
	runID string
}

func New(opts Options) (*Walker, error) {
	if opts.Root == "" {
		return nil, errors.New("root directory is required")
	}
	if opts.Rewriter == nil {
		return nil, errors.New("rewriter is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	exts := normalizeExtensions(opts.Extensions)
	if len(exts) == 0 {
		exts = []string{".html"}
	}
	return &Walker{opts: opts, exts: exts, runID: uuid.NewString()}, nil
}

func (w *Walker) RunID() string { return w.runID }

// Matches reports whether path carries one of the configured extensions.
func (w *Walker) Matches(path string) bool {
	return hasExtension(path, w.exts)
}

// Files lists files under root whose name ends in one of exts, in lexical
// order. Every directory is descended into regardless of its name. Symlinks
// to files are listed; a dangling link is listed too so that reading it fails
// the run. Symlinked directories are not followed.
func Files(root string, exts []string) ([]string, error) {
	exts = normalizeExtensions(exts)

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExtension(d.Name(), exts) {
			return nil
		}
		switch {
		case d.Type().IsRegular():
		case d.Type()&fs.ModeSymlink != 0:
			if info, err := os.Stat(path); err == nil && !info.Mode().IsRegular() {
				return nil
			}
		default:
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Run rewrites every matching file under the root. Files are independent so
// they are processed by a bounded worker pool; the first error stops the run.
func (w *Walker) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: w.runID, Replacements: map[string]int{}}

	files, err := Files(w.opts.Root, w.exts)
	if err != nil {
		return summary, err
	}

	w.opts.Logger.Debug("starting pass",
		slog.String("run_id", w.runID),
		slog.String("root", w.opts.Root),
		slog.Int("files", len(files)),
		slog.Int("workers", w.opts.Workers),
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Workers)

	for _, path := range files {
		path := path // per-iteration copy (go1.21 loop semantics)
		g.Go(func() error {
			res, err := w.ProcessFile(gctx, path)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			summary.Scanned++
			if res.Modified {
				summary.Rewritten++
			}
			for rule, n := range res.Replacements {
				summary.Replacements[rule] += n
			}
			return nil
		})
	}

	err = g.Wait()
	summary.Duration = time.Since(start)
	w.opts.Metrics.ObserveRun(w.mode(), summary.Duration)
	if err != nil {
		return summary, err
	}

	w.opts.Logger.Info("pass complete",
		slog.String("run_id", w.runID),
		slog.Int("scanned", summary.Scanned),
		slog.Int("rewritten", summary.Rewritten),
		slog.Bool("dry_run", w.opts.DryRun),
		slog.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// ProcessFile reads path, applies the rewriter and overwrites the file only
// when something changed.
func (w *Walker) ProcessFile(ctx context.Context, path string) (FileResult, error) {
	res := FileResult{Path: path}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	info, err := os.Stat(path)
	if err != nil {
		w.opts.Metrics.ObserveError("read")
		return res, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.opts.Metrics.ObserveError("read")
		return res, fmt.Errorf("read %s: %w", path, err)
	}

	out := w.opts.Rewriter.Apply(string(data))
	res.Modified = out.Modified
	res.Replacements = out.Replacements

	if out.Modified && !w.opts.DryRun {
		if err := writeAtomic(path, []byte(out.Content), info.Mode().Perm()); err != nil {
			w.opts.Metrics.ObserveError("write")
			_ = w.recordChange(path, res, len(data), len(out.Content), err)
			return res, fmt.Errorf("write %s: %w", path, err)
		}
		res.Written = true
	}

	w.opts.Metrics.ObserveFile(path, out.Modified, w.opts.DryRun, out.Replacements)
	if err := w.recordChange(path, res, len(data), len(out.Content), nil); err != nil {
		return res, fmt.Errorf("change log: %w", err)
	}

	if out.Modified {
		verb := "fixed paths"
		if w.opts.DryRun {
			verb = "would fix paths"
		}
		w.opts.Logger.Info(verb,
			slog.String("path", w.rel(path)),
			slog.Int("replacements", out.Total()),
		)
	}
	return res, nil
}

// writeAtomic replaces the file behind path through a temp file in the same
// directory, so readers see either the old page or the new one. A symlink
// keeps pointing at its rewritten target.
func writeAtomic(path string, data []byte, perm fs.FileMode) (err error) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (w *Walker) recordChange(path string, res FileResult, before, after int, failure error) error {
	change := logging.Change{
		Timestamp:    time.Now().UTC(),
		RunID:        w.runID,
		Path:         w.rel(path),
		Modified:     res.Modified,
		DryRun:       w.opts.DryRun,
		BasePath:     w.opts.Rewriter.BasePath(),
		Replacements: res.Replacements,
		BytesBefore:  before,
		BytesAfter:   after,
	}
	if failure != nil {
		change.Error = failure.Error()
	}
	return w.opts.Changes.Write(change)
}

func (w *Walker) rel(path string) string {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Walker) mode() string {
	if w.opts.DryRun {
		return "dry_run"
	}
	return "rewrite"
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
