package workflow

import (
	"strings"

	"github.com/tidwall/gjson"
)

// SourceLocation is a resolved position in the original source text.
type SourceLocation struct {
	Line    int `json:"line"`
	Col     int `json:"col"`
	EndLine int `json:"endLine,omitempty"`
	EndCol  int `json:"endCol,omitempty"`
	Offset  int `json:"offset,omitempty"`
	Length  int `json:"length,omitempty"`
}

// SnippetLine is one source line of a snippet.
type SnippetLine struct {
	Number    int    `json:"number"`
	Text      string `json:"text"`
	Highlight bool   `json:"highlight,omitempty"`
}

// SourceSnippet is a contiguous run of source lines with one highlighted.
type SourceSnippet struct {
	Lines []SnippetLine `json:"lines"`
}

// Locator maps logical paths over a workflow document back to source
// positions. A locator over a document without raw text degrades gracefully:
// every lookup misses.
type Locator struct {
	raw []byte
}

// NewLocator builds a locator over the document's original text.
func NewLocator(doc *Document) *Locator {
	if doc == nil {
		return &Locator{}
	}
	return &Locator{raw: doc.Raw}
}

// Locate resolves a dotted/indexed path (nodes[3].parameters.url) to the
// smallest containing source range. Returns nil when the raw text is absent
// or the path cannot be resolved.
func (l *Locator) Locate(path string) *SourceLocation {
	if len(l.raw) == 0 || path == "" {
		return nil
	}
	result := gjson.GetBytes(l.raw, toGJSONPath(path))
	if !result.Exists() || result.Index <= 0 {
		return nil
	}
	loc := &SourceLocation{Offset: result.Index, Length: len(result.Raw)}
	loc.Line, loc.Col = lineColAt(l.raw, result.Index)
	loc.EndLine, loc.EndCol = lineColAt(l.raw, result.Index+len(result.Raw))
	return loc
}

// Snippet extracts ±context lines around the located line, highlighting it.
func (l *Locator) Snippet(loc *SourceLocation, context int) *SourceSnippet {
	if loc == nil || len(l.raw) == 0 {
		return nil
	}
	lines := strings.Split(string(l.raw), "\n")
	start := loc.Line - 1 - context
	if start < 0 {
		start = 0
	}
	end := loc.Line - 1 + context
	if end > len(lines)-1 {
		end = len(lines) - 1
	}
	snippet := &SourceSnippet{}
	for i := start; i <= end; i++ {
		snippet.Lines = append(snippet.Lines, SnippetLine{
			Number:    i + 1,
			Text:      lines[i],
			Highlight: i == loc.Line-1,
		})
	}
	return snippet
}

// toGJSONPath converts nodes[3].parameters.url to nodes.3.parameters.url.
func toGJSONPath(path string) string {
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '[':
			b.WriteByte('.')
		case ']':
		default:
			b.WriteByte(path[i])
		}
	}
	return b.String()
}
