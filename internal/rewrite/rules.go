package rewrite

import (
	"regexp"
	"strings"
)

// Site served behind the reverse proxy at this prefix unless told otherwise.
const DefaultBasePath = "/thedaily"

// DefaultAssetPrefix marks build-generated asset paths (_import, _npm,
// _observablehq) as opposed to author-written content links.
const DefaultAssetPrefix = "_"

type Form string

const (
	FormHref   Form = "href"
	FormSrc    Form = "src"
	FormFrom   Form = "from"
	FormImport Form = "import"
)

type Depth string

const (
	DepthDot    Depth = "dot"
	DepthParent Depth = "parent"
)

// Rule is one (pattern, replacement-template) pair. Rules are never mutated
// after construction.
type Rule struct {
	Name     string
	Form     Form
	Depth    Depth
	Pattern  *regexp.Regexp
	Template string
}

var forms = []struct {
	form  Form
	open  string
	close string
}{
	{FormHref, `href="`, `"`},
	{FormSrc, `src="`, `"`},
	{FormFrom, `from "`, `"`},
	{FormImport, `import("`, `")`},
}

// Rules builds the eight rewrite rules for an already-normalized base path,
// in application order: "./" href and src, "../" href and src, then the
// module import and dynamic import() pairs.
func Rules(basePath, assetPrefix string) []Rule {
	capture := "(" + regexp.QuoteMeta(assetPrefix) + `[^"]+)`
	base := strings.ReplaceAll(basePath, "$", "$$")

	out := make([]Rule, 0, len(forms)*2)
	for _, f := range forms {
		open := regexp.QuoteMeta(f.open)
		closing := regexp.QuoteMeta(f.close)
		tmpl := f.open + base + "/${1}" + f.close

		out = append(out,
			Rule{
				Name:     string(f.form) + "-" + string(DepthDot),
				Form:     f.form,
				Depth:    DepthDot,
				Pattern:  regexp.MustCompile(open + `\./` + capture + closing),
				Template: tmpl,
			},
			Rule{
				Name:     string(f.form) + "-" + string(DepthParent),
				Form:     f.form,
				Depth:    DepthParent,
				Pattern:  regexp.MustCompile(open + `(?:\.\./)+` + capture + closing),
				Template: tmpl,
			},
		)
	}

	return []Rule{out[0], out[2], out[1], out[3], out[4], out[5], out[6], out[7]}
}
