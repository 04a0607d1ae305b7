package dna

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{"simple", "ACGTGA", "ACGTGA", true},
		{"lowercase and spaces", "  acgtga \n", "ACGTGA", true},
		{"empty", "", "", false},
		{"whitespace only", "   ", "", false},
		{"not divisible by 3", "ACGT", "", false},
		{"bad character", "ACGTXA", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodonDistance(t *testing.T) {
	tests := []struct {
		name        string
		ref, sample string
		want        int
	}{
		{"identical", "ACGTGA", "ACGTGA", 0},
		{"one substitution", "ACGTGA", "ACGTTT", 1},
		{"one insertion", "ACG", "ACGTGA", 1},
		{"one deletion", "ACGTGA", "ACG", 1},
		{"disjoint", "ACGACG", "TTTTTT", 2},
		{"empty vs codon", "", "ACG", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodonDistance(tt.ref, tt.sample, 10))
		})
	}
}

func TestCodonDistanceCutoff(t *testing.T) {
	// Length gap alone exceeds the budget: early exit with maxDiff+1.
	ref := strings.Repeat("ACG", 10)
	assert.Equal(t, 3, CodonDistance(ref, "ACG", 2))

	// Within length bounds but all substitutions: cut off mid-DP.
	assert.Equal(t, 2, CodonDistance("ACGACGACG", "TTTTTTTTT", 1))
}

func TestAllowedEdits(t *testing.T) {
	assert.Equal(t, 0, AllowedEdits(strings.Repeat("ACG", 99_999)))
	assert.Equal(t, 1, AllowedEdits(strings.Repeat("ACG", 100_000)))
	assert.Equal(t, 2, AllowedEdits(strings.Repeat("ACG", 200_000)))
}

func TestMatches(t *testing.T) {
	// Zero tolerance: only an exact sample matches, and a length
	// mismatch short-circuits before the DP runs.
	assert.True(t, Matches("ACGTGA", "ACGTGA"))
	assert.False(t, Matches("ACGTGA", "ACGTGT"))
	assert.False(t, Matches("ACGTGA", "ACG"))

	// One tolerated edit at 100k reference codons.
	ref := strings.Repeat("ACG", 100_000)
	mutated := "TTT" + ref[3:]
	assert.True(t, Matches(ref, mutated))
	twice := "TTTTTT" + ref[6:]
	assert.False(t, Matches(ref, twice))
}
