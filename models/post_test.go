package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Hello World!", "hello-world"},
		{"  Trimmed   Title  ", "trimmed-title"},
		{"Already-Kebab-Case", "already-kebab-case"},
		{"Symbols & Punctuation, Stripped?", "symbols-punctuation-stripped"},
		{"Numbers 123 stay", "numbers-123-stay"},
		{"UPPER lower", "upper-lower"},
		{"a - b -- c", "a-b-c"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.title), "title %q", tc.title)
	}
}

func TestSlugifyDeterministic(t *testing.T) {
	assert.Equal(t, Slugify("My Great Post"), Slugify("My Great Post"))
}
