package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKeywords(t *testing.T) {
	tests := []struct {
		name  string
		in    []string
		limit int
		want  []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "trim and drop empty", in: []string{" a ", "", "  ", "b"}, want: []string{"a", "b"}},
		{name: "dedupe keeps first", in: []string{"b", "a", "b"}, want: []string{"b", "a"}},
		{name: "limit", in: []string{"a", "b", "c"}, limit: 2, want: []string{"a", "b"}},
		{name: "limit counts unique", in: []string{"a", "a", "b", "c"}, limit: 2, want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKeywords(tt.in, tt.limit))
		})
	}
}
