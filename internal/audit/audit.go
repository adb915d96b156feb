// Package audit finds relative generated-asset references left in built HTML.
//
// The rewriter only handles the double-quoted forms emitted by the site
// generator. Audit tokenizes the document instead, so single-quoted or
// unquoted attributes and bare `import "..."` statements are reported too.
package audit

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/thedaily/assetfix/internal/normalize"
)

// Finding is one relative reference to a generated asset.
type Finding struct {
	Path  string `json:"path,omitempty"`
	Line  int    `json:"line"`
	Tag   string `json:"tag"`
	Attr  string `json:"attr"`
	Value string `json:"value"`
}

func (f Finding) String() string {
	loc := f.Path
	if loc == "" {
		loc = "<input>"
	}
	return fmt.Sprintf("%s:%d: <%s %s> %s", loc, f.Line, f.Tag, f.Attr, f.Value)
}

var linkAttrs = map[string]bool{
	"href":       true,
	"src":        true,
	"data-src":   true,
	"poster":     true,
	"xlink:href": true,
}

var scriptRef = regexp.MustCompile(`\b(from|import)\s*\(?\s*["']([^"'\n]+)["']`)

// Scan tokenizes r and reports references that would break when the page is
// served from a sub-path.
func Scan(r io.Reader, prefix string) ([]Finding, error) {
	z := html.NewTokenizer(r)

	var findings []Finding
	line := 1
	inScript := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return findings, err
			}
			return findings, nil
		}

		raw := z.Raw()
		start := line

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				attr := strings.ToLower(string(key))
				if !linkAttrs[attr] {
					continue
				}
				value := strings.TrimSpace(string(val))
				if normalize.IsRelativeAsset(value, prefix) {
					findings = append(findings, Finding{Line: start, Tag: tag, Attr: attr, Value: value})
				}
			}
			if tag == "script" && tt == html.StartTagToken {
				inScript = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "script" {
				inScript = false
			}
		case html.TextToken:
			if inScript {
				findings = append(findings, scanScript(raw, start, prefix)...)
			}
		}

		line += bytes.Count(raw, []byte{'\n'})
	}
}

func scanScript(text []byte, startLine int, prefix string) []Finding {
	var out []Finding
	for _, loc := range scriptRef.FindAllSubmatchIndex(text, -1) {
		value := string(text[loc[4]:loc[5]])
		if !normalize.IsRelativeAsset(value, prefix) {
			continue
		}
		out = append(out, Finding{
			Line:  startLine + bytes.Count(text[:loc[0]], []byte{'\n'}),
			Tag:   "script",
			Attr:  string(text[loc[2]:loc[3]]),
			Value: value,
		})
	}
	return out
}

func ScanFile(path, prefix string) ([]Finding, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	findings, err := Scan(file, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	for i := range findings {
		findings[i].Path = path
	}
	return findings, nil
}

// ScanFiles audits each file and reports paths relative to root.
func ScanFiles(root string, files []string, prefix string) ([]Finding, error) {
	var all []Finding
	for _, path := range files {
		findings, err := ScanFile(path, prefix)
		if err != nil {
			return all, err
		}
		for i := range findings {
			if rel, err := filepath.Rel(root, path); err == nil {
				findings[i].Path = filepath.ToSlash(rel)
			}
		}
		all = append(all, findings...)
	}
	return all, nil
}
