package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"promptkit/internal/walker"
)

func TestCommentize(t *testing.T) {
	tests := []struct {
		lang string
		text string
		want string
	}{
		{lang: "go", text: "Path: a.go", want: "// Path: a.go"},
		{lang: "python", text: "a\n\nb\n", want: "# a\n#\n# b\n"},
		{lang: "html", text: "x", want: "<!-- x -->"},
		{lang: "sql", text: "x\ny", want: "-- x\n-- y"},
		{lang: "unknown", text: "x", want: "// x"},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			assert.Equal(t, tt.want, Commentize(tt.text, tt.lang))
		})
	}
}

func TestDecorate(t *testing.T) {
	tests := []struct {
		name  string
		block walker.Block
		want  string
	}{
		{
			name:  "anchor untouched",
			block: walker.Block{Kind: walker.KindPrefix, Text: "func f", Weight: 1, InAnchor: true},
			want:  "func f",
		},
		{
			name:  "context commented",
			block: walker.Block{Kind: walker.KindContext, Text: "Language: go", Weight: 0.8},
			want:  "// Language: go\n",
		},
		{
			name:  "shebang not wrapped",
			block: walker.Block{Kind: walker.KindContext, Text: "#!/bin/sh", Weight: 0.8},
			want:  "#!/bin/sh\n",
		},
		{
			name:  "loose prefix delimited",
			block: walker.Block{Kind: walker.KindPrefix, Text: "note", Weight: 0.5},
			want:  "note\n",
		},
		{
			name:  "pinned prefix left alone",
			block: walker.Block{Kind: walker.KindPrefix, Text: "header", Weight: 1},
			want:  "header",
		},
		{
			name:  "delimiter not doubled",
			block: walker.Block{Kind: walker.KindPrefix, Text: "done\n", Weight: 0.5},
			want:  "done\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decorate(tt.block, "\n", "go").Text)
		})
	}
}
