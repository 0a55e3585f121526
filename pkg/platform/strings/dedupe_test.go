package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupe(t *testing.T) {
	tests := []struct {
		name     string
		input    []int
		expected []int
	}{
		{"nil input", nil, []int{}},
		{"no duplicates", []int{3, 1, 2}, []int{3, 1, 2}},
		{"keeps first occurrence", []int{2, 1, 2, 3, 1}, []int{2, 1, 3}},
		{"skips zero", []int{0, 4, 0}, []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedupe(tt.input, func(v int) bool { return v == 0 })
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDedupeWithoutSkip(t *testing.T) {
	assert.Equal(t, []string{"", "a"}, Dedupe([]string{"", "a", ""}, nil))
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", []string{}},
		{"only separators", " , ,", []string{}},
		{"trims and dedupes", " a, b,,a ", []string{"a", "b"}},
		{"case sensitive", "A,a", []string{"A", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}
