// Package dna implements the codon-level sample matching used for DNA
// login. A sample is a string over {A,C,G,T} whose length is divisible
// by 3; matching tolerance is a Levenshtein distance counted in whole
// codons.
package dna

import "strings"

// codonsPerAllowedEdit: one edit is tolerated per 100000 reference codons.
const codonsPerAllowedEdit = 100000

// Normalize strips whitespace and uppercases the sample, then validates
// it: non-empty, only C/G/A/T, length divisible by 3. Returns the
// normalized sample and whether it is valid.
func Normalize(sample string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(sample))
	if s == "" || len(s)%3 != 0 {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'C', 'G', 'A', 'T':
		default:
			return "", false
		}
	}
	return s, true
}

// AllowedEdits returns the tolerance for a reference sample:
// floor(codons / 100000).
func AllowedEdits(ref string) int {
	return (len(ref) / 3) / codonsPerAllowedEdit
}

// Matches reports whether sample is within the reference's tolerance.
// Both inputs must already be normalized.
func Matches(ref, sample string) bool {
	allowed := AllowedEdits(ref)
	if allowed == 0 && len(ref) != len(sample) {
		return false
	}
	return CodonDistance(ref, sample, allowed) <= allowed
}

// CodonDistance is the Levenshtein distance between the codon sequences
// of ref and sample (insert/delete/substitute whole codons, unit cost).
// Returns maxDiff+1 as soon as the distance provably exceeds maxDiff.
func CodonDistance(ref, sample string, maxDiff int) int {
	n := len(ref) / 3
	m := len(sample) / 3

	// Length difference is a lower bound on the distance.
	if abs(n-m) > maxDiff {
		return maxDiff + 1
	}

	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}

	for i := 1; i <= n; i++ {
		curr[0] = i
		rowMin := curr[0]
		rc := ref[(i-1)*3 : i*3]
		for j := 1; j <= m; j++ {
			cost := 1
			if rc == sample[(j-1)*3:j*3] {
				cost = 0
			}
			v := prev[j] + 1 // deletion
			if ins := curr[j-1] + 1; ins < v {
				v = ins
			}
			if sub := prev[j-1] + cost; sub < v {
				v = sub
			}
			curr[j] = v
			if v < rowMin {
				rowMin = v
			}
		}
		if rowMin > maxDiff {
			return maxDiff + 1
		}
		prev, curr = curr, prev
	}
	return prev[m]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
