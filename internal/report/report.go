package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/thedaily/assetfix/internal/logging"
)

type Summary struct {
	Runs         int         `json:"runs"`
	Scanned      int         `json:"scanned"`
	Rewritten    int         `json:"rewritten"`
	DryRun       int         `json:"dry_run"`
	Failed       int         `json:"failed"`
	Replacements int         `json:"replacements"`
	BytesAdded   int         `json:"bytes_added"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	BasePaths    []string    `json:"base_paths"`
	TopRules     []CountItem `json:"top_rules"`
	TopDirs      []CountItem `json:"top_dirs"`
}

type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type Reader struct {
	Since time.Time
}

func (r *Reader) Read(p string) ([]logging.Change, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var changes []logging.Change
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var c logging.Change
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, err
		}
		if !r.Since.IsZero() && c.Timestamp.Before(r.Since) {
			continue
		}
		changes = append(changes, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

func Summarize(changes []logging.Change) Summary {
	var summary Summary
	if len(changes) == 0 {
		return summary
	}

	summary.Start = changes[0].Timestamp
	summary.End = changes[0].Timestamp

	runs := map[string]struct{}{}
	bases := map[string]struct{}{}
	ruleCounts := map[string]int{}
	dirCounts := map[string]int{}

	for _, c := range changes {
		summary.Scanned++
		if c.Timestamp.Before(summary.Start) {
			summary.Start = c.Timestamp
		}
		if c.Timestamp.After(summary.End) {
			summary.End = c.Timestamp
		}
		if c.RunID != "" {
			runs[c.RunID] = struct{}{}
		}
		if c.BasePath != "" {
			bases[c.BasePath] = struct{}{}
		}

		if c.Error != "" {
			summary.Failed++
			continue
		}
		if !c.Modified {
			continue
		}
		if c.DryRun {
			summary.DryRun++
		} else {
			summary.Rewritten++
			summary.BytesAdded += c.BytesAfter - c.BytesBefore
		}

		for rule, n := range c.Replacements {
			ruleCounts[rule] += n
			summary.Replacements += n
		}
		dirCounts[topDir(c.Path)]++
	}

	summary.Runs = len(runs)
	summary.BasePaths = sortedKeys(bases)
	summary.TopRules = topCounts(ruleCounts, 8)
	summary.TopDirs = topCounts(dirCounts, 5)

	return summary
}

func topDir(p string) string {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return "."
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func topCounts(counts map[string]int, n int) []CountItem {
	items := make([]CountItem, 0, len(counts))
	for key, count := range counts {
		items = append(items, CountItem{Key: key, Count: count})
	}
	if len(items) == 0 {
		return nil
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})

	if len(items) > n {
		items = items[:n]
	}
	return items
}

func RenderText(summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Runs: %d\n", summary.Runs)
	fmt.Fprintf(&b, "Files scanned: %d\n", summary.Scanned)
	fmt.Fprintf(&b, "Files rewritten: %d\n", summary.Rewritten)
	fmt.Fprintf(&b, "Dry-run changes: %d\n", summary.DryRun)
	fmt.Fprintf(&b, "Failures: %d\n", summary.Failed)
	fmt.Fprintf(&b, "Replacements: %d\n", summary.Replacements)
	fmt.Fprintf(&b, "Base paths: %s\n", joinOrNone(summary.BasePaths))

	writeCounts(&b, "Top rules", summary.TopRules)
	writeCounts(&b, "Top directories", summary.TopDirs)

	return b.String()
}

func RenderMarkdown(summary Summary) string {
	var b strings.Builder
	b.WriteString("# Asset Path Report\n\n")
	b.WriteString("## Totals\n\n")
	fmt.Fprintf(&b, "- Runs: %d\n", summary.Runs)
	fmt.Fprintf(&b, "- Files scanned: %d\n", summary.Scanned)
	fmt.Fprintf(&b, "- Files rewritten: %d\n", summary.Rewritten)
	fmt.Fprintf(&b, "- Dry-run changes: %d\n", summary.DryRun)
	fmt.Fprintf(&b, "- Failures: %d\n", summary.Failed)
	fmt.Fprintf(&b, "- Replacements: %d\n", summary.Replacements)
	fmt.Fprintf(&b, "- Base paths: %s\n\n", joinOrNone(summary.BasePaths))

	writeCountsMarkdown(&b, "Top rules", summary.TopRules)
	writeCountsMarkdown(&b, "Top directories", summary.TopDirs)

	return b.String()
}

func RenderJSON(summary Summary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func writeCounts(b *strings.Builder, title string, items []CountItem) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: none\n", title)
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
}

func writeCountsMarkdown(b *strings.Builder, title string, items []CountItem) {
	b.WriteString("## ")
	b.WriteString(title)
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString("- none\n\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
	b.WriteString("\n")
}

// WriteOutput writes content to path, or to w when path is empty.
func WriteOutput(w io.Writer, path string, content []byte) error {
	if path == "" {
		_, err := io.Copy(w, bytes.NewReader(content))
		return err
	}
	return os.WriteFile(path, content, 0o600)
}
