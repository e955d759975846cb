package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string cut", "hello world this is a long string", 15, "hello world ..."},
		{"json body on one line", "{\n  \"error\": \"invalid_request\"\n}", 100, `{ "error": "invalid_request" }`},
		{"carriage returns and tabs", "a\r\n\tb", 10, "a b"},
		{"unicode cut on rune boundary", "héllo wörld", 8, "héllo..."},
		{"tiny max clamped", "hello world", 1, "h..."},
		{"empty", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Excerpt(tt.input, tt.maxLen))
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask("", 4))
	assert.Equal(t, "****", Mask("short", 4))
	assert.Equal(t, "****", Mask("anything", 0))
	assert.Equal(t, "****cdef", Mask("ya29.a0-abcdef", 4))
}
