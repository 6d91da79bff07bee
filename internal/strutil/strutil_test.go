package strutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short", in: "abc", max: 5, want: "abc"},
		{name: "exact", in: "abcde", max: 5, want: "abcde"},
		{name: "ascii cut", in: "abcdef", max: 4, want: "abcd"},
		{name: "hangul at limit", in: strings.Repeat("a", 999) + "잠금", max: 1000, want: strings.Repeat("a", 999)},
		{name: "two byte rune at limit", in: strings.Repeat("b", 999) + "é", max: 1000, want: strings.Repeat("b", 999)},
		{name: "rune fits", in: "a잠", max: 4, want: "a잠"},
		{name: "zero", in: "abc", max: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), max(tt.max, 0))
		})
	}
}
