package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thedaily/assetfix/internal/normalize"
)

var (
	ErrInvalidBasePath = errors.New("invalid base path")
	ErrInvalidPrefix   = errors.New("invalid asset prefix")
)

type Options struct {
	BasePath    string
	AssetPrefix string
}

// Result is the outcome of one transform. Modified is true iff at least one
// rule changed the content.
type Result struct {
	Content      string
	Modified     bool
	Replacements map[string]int
}

// Total returns the number of substitutions across all rules.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Replacements {
		n += c
	}
	return n
}

// Rewriter applies a compiled rule set. It holds no mutable state and is safe
// for concurrent use.
type Rewriter struct {
	basePath string
	prefix   string
	rules    []Rule
}

func New(opts Options) (*Rewriter, error) {
	// A quote would terminate the attribute it is substituted into.
	if strings.Contains(opts.BasePath, `"`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBasePath, opts.BasePath)
	}
	base := cleanBase(opts.BasePath)

	prefix := opts.AssetPrefix
	if prefix == "" {
		prefix = DefaultAssetPrefix
	}
	if strings.ContainsAny(prefix, `"/`) || strings.TrimSpace(prefix) != prefix {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, opts.AssetPrefix)
	}

	return &Rewriter{
		basePath: base,
		prefix:   prefix,
		rules:    Rules(base, prefix),
	}, nil
}

// cleanBase picks the default for an empty base path. Scheme-qualified bases
// such as "https://cdn.example.com/thedaily" are kept as given minus trailing
// slashes; anything else is cleaned as a URL path.
func cleanBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return DefaultBasePath
	}
	if strings.Contains(base, "://") {
		return strings.TrimRight(base, "/")
	}
	return normalize.BasePath(base)
}

func (r *Rewriter) BasePath() string    { return r.basePath }
func (r *Rewriter) AssetPrefix() string { return r.prefix }

// Rules returns a copy of the compiled rule set.
func (r *Rewriter) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Apply runs every rule in sequence against the accumulating content.
func (r *Rewriter) Apply(content string) Result {
	return apply(r.rules, content)
}

func apply(rules []Rule, content string) Result {
	res := Result{Content: content}

	for _, rule := range rules {
		n := len(rule.Pattern.FindAllStringIndex(res.Content, -1))
		if n == 0 {
			continue
		}
		next := rule.Pattern.ReplaceAllString(res.Content, rule.Template)
		if next == res.Content {
			continue
		}
		res.Content = next
		res.Modified = true
		if res.Replacements == nil {
			res.Replacements = map[string]int{}
		}
		res.Replacements[rule.Name] += n
	}

	return res
}

// Rewrite converts relative generated-asset references in content into
// absolute ones under basePath, using the default asset prefix. An empty
// basePath selects DefaultBasePath. Unlike New, any base path is accepted
// and substituted as given.
func Rewrite(content, basePath string) (string, bool) {
	res := apply(Rules(cleanBase(basePath), DefaultAssetPrefix), content)
	return res.Content, res.Modified
}
