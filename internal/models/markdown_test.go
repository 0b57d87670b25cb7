package models_test

import (
	"strings"
	"testing"

	"github.com/MegaGrindStone/argus-console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownRendererFormatting(t *testing.T) {
	r := models.NewMarkdownRenderer("")

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "bold and italic",
			input: "**bold** and *italic*",
			want:  []string{"<strong>bold</strong>", "<em>italic</em>"},
		},
		{
			name:  "inline code",
			input: "run `go test`",
			want:  []string{"<code>go test</code>"},
		},
		{
			name:  "link",
			input: "[docs](https://example.com)",
			want:  []string{`href="https://example.com"`, ">docs</a>"},
		},
		{
			name:  "fenced code is highlighted",
			input: "```go\nfunc main() {}\n```",
			want:  []string{`class="chroma"`, "main"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.input)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}

func TestMarkdownRendererSanitizes(t *testing.T) {
	r := models.NewMarkdownRenderer("")

	got, err := r.Render("hello <script>alert(1)</script> [x](javascript:alert(1))")
	require.NoError(t, err)
	assert.NotContains(t, got, "<script")
	assert.NotContains(t, got, "javascript:")
}

func TestMarkdownRendererCSS(t *testing.T) {
	css, err := models.NewMarkdownRenderer("").CSS()
	require.NoError(t, err)
	assert.True(t, strings.Contains(css, ".chroma"))
}

func TestUserContentEscapes(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt;<br>c", models.UserContent("a <b>\nc"))
}
