package models

import (
	"bytes"
	"fmt"
	"regexp"

	chromahtml "github.com/alecthomas/chroma/formatters/html"
	"github.com/alecthomas/chroma/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
)

// MarkdownRenderer converts assistant markdown into sanitized HTML. Fenced code blocks are highlighted with
// CSS classes; the matching stylesheet is available from CSS.
type MarkdownRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	style  string
}

const defaultCodeStyle = "monokai"

var classPattern = regexp.MustCompile(`^[\w\- ]+$`)

// NewMarkdownRenderer creates a renderer using the given chroma style. An empty style selects monokai.
func NewMarkdownRenderer(style string) MarkdownRenderer {
	if style == "" {
		style = defaultCodeStyle
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(classPattern).Globally()
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return MarkdownRenderer{
		md:     md,
		policy: policy,
		style:  style,
	}
}

// Render converts text to HTML in a single pass. It must only be given complete text: a partial document
// (for example an unclosed code fence) renders differently from the finished one.
func (r MarkdownRenderer) Render(text string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// CSS returns the stylesheet for highlighted code blocks.
func (r MarkdownRenderer) CSS() (string, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(r.style)); err != nil {
		return "", fmt.Errorf("failed to write code style: %w", err)
	}
	return buf.String(), nil
}
