package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbsmedya/lookupbench/internal/types"
)

func summary(name string, rows int, digest string) types.Summary {
	return types.Summary{Name: name, RowsReturned: rows, RowsDigest: digest, CompletedRuns: 1}
}

func TestCrossCheck(t *testing.T) {
	long := "abcdef0123456789abcdef"

	tests := []struct {
		name      string
		summaries []types.Summary
		want      []Discrepancy
	}{
		{
			name:      "All agree",
			summaries: []types.Summary{summary("a", 5, "d1"), summary("b", 5, "d1"), summary("c", 5, "d1")},
		},
		{
			name:      "Single strategy",
			summaries: []types.Summary{summary("a", 5, "d1")},
		},
		{
			name:      "Row count outlier",
			summaries: []types.Summary{summary("a", 5, "d1"), summary("b", 3, "d2"), summary("c", 5, "d1")},
			want:      []Discrepancy{{Strategy: "b", Check: CheckRowCount, Got: "3", Want: "5"}},
		},
		{
			name:      "Digest outlier",
			summaries: []types.Summary{summary("a", 5, long), summary("b", 5, long), summary("c", 5, "ffffffffffffffff")},
			want:      []Discrepancy{{Strategy: "c", Check: CheckDigest, Got: "ffffffffffff", Want: "abcdef012345"}},
		},
		{
			name:      "Tie goes to first seen",
			summaries: []types.Summary{summary("a", 4, "d1"), summary("b", 5, "d1")},
			want:      []Discrepancy{{Strategy: "b", Check: CheckRowCount, Got: "5", Want: "4"}},
		},
		{
			name: "Strategies without trials are ignored",
			summaries: []types.Summary{
				summary("a", 5, "d1"),
				{Name: "broken", CompletedRuns: 0},
				summary("c", 5, "d1"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CrossCheck(tt.summaries))
		})
	}
}

func TestDiscrepancy_String(t *testing.T) {
	d := Discrepancy{Strategy: "b", Check: CheckRowCount, Got: "3", Want: "5"}
	assert.Equal(t, "b: row_count 3, majority 5", d.String())
}
