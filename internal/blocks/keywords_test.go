package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionKeywords(t *testing.T) {
	tests := []struct {
		name     string
		in       []string
		wantHead []string
		wantTail []string
	}{
		{name: "none", in: nil, wantHead: []string{}, wantTail: []string{}},
		{name: "fewer than cutoff", in: []string{"a", "b"}, wantHead: []string{"a", "b"}, wantTail: []string{}},
		{name: "exactly cutoff", in: []string{"a", "b", "c"}, wantHead: []string{"a", "b", "c"}, wantTail: []string{}},
		{name: "more", in: []string{"a", "b", "c", "d", "e"}, wantHead: []string{"a", "b", "c"}, wantTail: []string{"d", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head, tail := partitionKeywords(tt.in)
			assert.Equal(t, tt.wantHead, head)
			assert.Equal(t, tt.wantTail, tail)
		})
	}
}
