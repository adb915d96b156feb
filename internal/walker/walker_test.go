package walker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thedaily/assetfix/internal/logging"
	"github.com/thedaily/assetfix/internal/observability"
	"github.com/thedaily/assetfix/internal/rewrite"
)

const (
	indexHTML = `<!DOCTYPE html>
<link rel="preload" as="style" href="./_import/style.f3b25c2f.css">
<script type="module">import {define} from "./_observablehq/client.4d77b266.js";</script>
<a href="./en/cpi-november-2025/">CPI</a>`

	articleHTML = `<link href="../../_import/style.f3b25c2f.css">
<script src="../../_observablehq/runtime.js"></script>`

	plainHTML = `<p>Hello world</p>`
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newRewriter(t *testing.T, base string) *rewrite.Rewriter {
	t.Helper()
	r, err := rewrite.New(rewrite.Options{BasePath: base})
	require.NoError(t, err)
	return r
}

func buildSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "index.html", indexHTML)
	writeFile(t, root, "en/cpi-november-2025/index.html", articleHTML)
	writeFile(t, root, "fr/ipc-novembre-2025/index.html", plainHTML)
	writeFile(t, root, "_observablehq/client.4d77b266.js", `import "./_npm/x.js"; import("./_npm/y.js")`)
	writeFile(t, root, "_import/notes.txt", `href="./_import/a.css"`)
	return root
}

func TestFilesListsMatchingExtensions(t *testing.T) {
	root := buildSite(t)

	files, err := Files(root, []string{".html"})
	require.NoError(t, err)

	rels := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{
		"en/cpi-november-2025/index.html",
		"fr/ipc-novembre-2025/index.html",
		"index.html",
	}, rels)
}

func TestFilesMissingRoot(t *testing.T) {
	_, err := Files(filepath.Join(t.TempDir(), "missing"), []string{".html"})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunRewritesOnlyHTML(t *testing.T) {
	root := buildSite(t)
	var changes bytes.Buffer

	w, err := New(Options{
		Root:       root,
		Extensions: []string{".html"},
		Workers:    2,
		Rewriter:   newRewriter(t, ""),
		Changes:    logging.NewChangeLogger(&changes),
	})
	require.NoError(t, err)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 2, summary.Rewritten)
	assert.Equal(t, map[string]int{"href-dot": 1, "from-dot": 1, "href-parent": 1, "src-parent": 1}, summary.Replacements)
	assert.Equal(t, w.RunID(), summary.RunID)

	index := readFile(t, filepath.Join(root, "index.html"))
	assert.Contains(t, index, `href="/thedaily/_import/style.f3b25c2f.css"`)
	assert.Contains(t, index, `from "/thedaily/_observablehq/client.4d77b266.js"`)
	assert.Contains(t, index, `href="./en/cpi-november-2025/"`)

	article := readFile(t, filepath.Join(root, "en/cpi-november-2025/index.html"))
	assert.Equal(t, `<link href="/thedaily/_import/style.f3b25c2f.css">
<script src="/thedaily/_observablehq/runtime.js"></script>`, article)

	assert.Equal(t, plainHTML, readFile(t, filepath.Join(root, "fr/ipc-novembre-2025/index.html")))
	assert.Equal(t, `import "./_npm/x.js"; import("./_npm/y.js")`, readFile(t, filepath.Join(root, "_observablehq/client.4d77b266.js")))
	assert.Equal(t, `href="./_import/a.css"`, readFile(t, filepath.Join(root, "_import/notes.txt")))

	lines := strings.Split(strings.TrimSpace(changes.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var c logging.Change
		require.NoError(t, json.Unmarshal([]byte(line), &c))
		assert.Equal(t, summary.RunID, c.RunID)
		assert.Equal(t, "/thedaily", c.BasePath)
		assert.False(t, filepath.IsAbs(c.Path))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	root := buildSite(t)

	w, err := New(Options{Root: root, Rewriter: newRewriter(t, "/custom-base")})
	require.NoError(t, err)

	_, err = w.Run(context.Background())
	require.NoError(t, err)
	first := readFile(t, filepath.Join(root, "index.html"))
	info, err := os.Stat(filepath.Join(root, "index.html"))
	require.NoError(t, err)

	second, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, second.Scanned)
	assert.Zero(t, second.Rewritten)
	assert.Equal(t, first, readFile(t, filepath.Join(root, "index.html")))

	after, err := os.Stat(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
}

func TestDryRunLeavesFilesUntouched(t *testing.T) {
	root := buildSite(t)
	reg := prometheus.NewRegistry()

	w, err := New(Options{
		Root:     root,
		DryRun:   true,
		Rewriter: newRewriter(t, ""),
		Metrics:  observability.NewMetrics(reg),
	})
	require.NoError(t, err)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rewritten)
	assert.Equal(t, indexHTML, readFile(t, filepath.Join(root, "index.html")))
	assert.Equal(t, articleHTML, readFile(t, filepath.Join(root, "en/cpi-november-2025/index.html")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestProcessFilePreservesPermissions(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "page.html", articleHTML)
	require.NoError(t, os.Chmod(path, 0o640))

	w, err := New(Options{Root: root, Rewriter: newRewriter(t, "")})
	require.NoError(t, err)

	res, err := w.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.Modified)
	assert.True(t, res.Written)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestRunMissingRootFails(t *testing.T) {
	w, err := New(Options{Root: filepath.Join(t.TempDir(), "dist"), Rewriter: newRewriter(t, "")})
	require.NoError(t, err)

	_, err = w.Run(context.Background())
	require.Error(t, err)
}

func TestProcessFileMissingFile(t *testing.T) {
	root := buildSite(t)
	w, err := New(Options{Root: root, Rewriter: newRewriter(t, "")})
	require.NoError(t, err)

	files, err := Files(root, []string{".html"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(files[0]))

	_, err = w.ProcessFile(context.Background(), files[0])
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRunFailsOnUnreadableFile(t *testing.T) {
	root := buildSite(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "gone.html"), filepath.Join(root, "broken.html")))

	w, err := New(Options{Root: root, Rewriter: newRewriter(t, ""), Workers: 1})
	require.NoError(t, err)

	_, err = w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "broken.html")
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestChangeLogFailureAbortsRun(t *testing.T) {
	errDiskFull := errors.New("disk full")
	root := buildSite(t)
	w, err := New(Options{
		Root:     root,
		Rewriter: newRewriter(t, ""),
		Changes:  logging.NewChangeLogger(failingWriter{err: errDiskFull}),
	})
	require.NoError(t, err)

	_, err = w.ProcessFile(context.Background(), filepath.Join(root, "index.html"))
	require.ErrorIs(t, err, errDiskFull)
	assert.Contains(t, err.Error(), "change log")

	_, err = w.Run(context.Background())
	require.ErrorIs(t, err, errDiskFull)
}

func TestProcessFileFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := writeFile(t, root, "shared/page.html", articleHTML)
	link := filepath.Join(root, "en", "page.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(link), 0o755))
	require.NoError(t, os.Symlink(target, link))

	files, err := Files(root, []string{".html"})
	require.NoError(t, err)
	assert.Equal(t, []string{link, target}, files)

	w, err := New(Options{Root: root, Rewriter: newRewriter(t, "")})
	require.NoError(t, err)

	res, err := w.ProcessFile(context.Background(), link)
	require.NoError(t, err)
	assert.True(t, res.Written)

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "link replaced by a regular file")
	assert.Contains(t, readFile(t, target), `href="/thedaily/_import/style.f3b25c2f.css"`)
}

func TestProcessFileLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "page.html", articleHTML)

	w, err := New(Options{Root: root, Rewriter: newRewriter(t, "")})
	require.NoError(t, err)
	_, err = w.ProcessFile(context.Background(), path)
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "page.html", entries[0].Name())
}

func TestRunHonorsCancellation(t *testing.T) {
	root := buildSite(t)
	w, err := New(Options{Root: root, Rewriter: newRewriter(t, "")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, indexHTML, readFile(t, filepath.Join(root, "index.html")))
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Rewriter: newRewriter(t, "")})
	require.Error(t, err)

	_, err = New(Options{Root: t.TempDir()})
	require.Error(t, err)

	w, err := New(Options{Root: t.TempDir(), Rewriter: newRewriter(t, ""), Extensions: []string{"HTM", " "}})
	require.NoError(t, err)
	assert.True(t, w.Matches("a/b/page.htm"))
	assert.False(t, w.Matches("a/b/page.html"))
}
