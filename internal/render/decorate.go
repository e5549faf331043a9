package render

import (
	"strings"

	"promptkit/internal/elision"
	"promptkit/internal/walker"
)

type commentStyle struct {
	open  string
	close string
}

var (
	slashes = commentStyle{open: "//"}
	hashes  = commentStyle{open: "#"}
	dashes  = commentStyle{open: "--"}
	semis   = commentStyle{open: ";"}
	percent = commentStyle{open: "%"}
	markup  = commentStyle{open: "<!--", close: "-->"}
)

// commentStyles maps language ids to their single-line comment markers.
// Unknown languages use //.
var commentStyles = map[string]commentStyle{
	"bat":             {open: "REM"},
	"c":               slashes,
	"clojure":         semis,
	"cpp":             slashes,
	"csharp":          slashes,
	"css":             {open: "/*", close: "*/"},
	"dart":            slashes,
	"dockerfile":      hashes,
	"elixir":          hashes,
	"erlang":          percent,
	"fsharp":          slashes,
	"go":              slashes,
	"graphql":         hashes,
	"haskell":         dashes,
	"html":            markup,
	"java":            slashes,
	"javascript":      slashes,
	"javascriptreact": slashes,
	"json":            slashes,
	"jsonc":           slashes,
	"julia":           hashes,
	"kotlin":          slashes,
	"latex":           percent,
	"lua":             dashes,
	"makefile":        hashes,
	"markdown":        markup,
	"matlab":          percent,
	"ocaml":           {open: "(*", close: "*)"},
	"perl":            hashes,
	"php":             slashes,
	"powershell":      hashes,
	"python":          hashes,
	"r":               hashes,
	"ruby":            hashes,
	"rust":            slashes,
	"scala":           slashes,
	"scheme":          semis,
	"scss":            slashes,
	"shellscript":     hashes,
	"sql":             dashes,
	"swift":           slashes,
	"terraform":       hashes,
	"toml":            hashes,
	"typescript":      slashes,
	"typescriptreact": slashes,
	"vb":              {open: "'"},
	"xml":             markup,
	"yaml":            hashes,
}

// Commentize turns every line of text into a single-line comment in the
// given language.
func Commentize(text, languageID string) string {
	style, ok := commentStyles[languageID]
	if !ok {
		style = slashes
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		switch {
		case line == "" && style.close == "":
			lines[i] = style.open
		case style.close == "":
			lines[i] = style.open + " " + line
		default:
			lines[i] = style.open + " " + line + " " + style.close
		}
	}
	out := strings.Join(lines, "\n")
	if strings.HasSuffix(text, "\n") {
		out += "\n"
	}
	return out
}

func isShebang(text string) bool {
	return strings.HasPrefix(text, "#!")
}

// decorate prepares a prefix block for elision. Anchor content is left
// alone; context is turned into comments and delimited; other loose prefix
// content is delimited unless pinned.
func decorate(b walker.Block, delimiter, languageID string) walker.Block {
	if b.InAnchor {
		return b
	}
	switch {
	case b.Kind == walker.KindContext:
		if !isShebang(b.Text) {
			b.Text = Commentize(b.Text, languageID)
		}
	case b.Pinned():
		return b
	}
	if delimiter != "" && !strings.HasSuffix(b.Text, delimiter) {
		b.Text += delimiter
	}
	return b
}

// join concatenates elided prefix blocks in document order. In split mode
// context blocks go to their group instead of the prefix.
func join(blocks []elision.Elided, split bool) (prefix string, prefixTokens int, groups []string) {
	var sb strings.Builder
	if split {
		n := 0
		for _, b := range blocks {
			if b.Kind == walker.KindContext && b.GroupIndex >= n {
				n = b.GroupIndex + 1
			}
		}
		groups = make([]string, n)
	}
	for _, b := range blocks {
		if split && b.Kind == walker.KindContext && b.GroupIndex != walker.NoGroup {
			groups[b.GroupIndex] += b.FinalText
			continue
		}
		sb.WriteString(b.FinalText)
		prefixTokens += b.FinalTokenCount
	}
	return sb.String(), prefixTokens, groups
}
