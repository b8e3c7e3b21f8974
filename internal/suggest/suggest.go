// Package suggest finds the closest known name to a misspelled one.
package suggest

// maxDistance is the largest edit distance still offered as a suggestion.
const maxDistance = 2

// Distance returns the Levenshtein edit distance between a and b, using a
// single column of O(min(len(a), len(b))) ints.
func Distance(a, b string) int {
	s1, s2 := []rune(a), []rune(b)
	if len(s1) < len(s2) {
		s1, s2 = s2, s1
	}

	if len(s2) == 0 {
		return len(s1)
	}

	column := make([]int, len(s2)+1)
	for i := range column {
		column[i] = i
	}

	for _, r1 := range s1 {
		diag := column[0]
		column[0]++

		for j, r2 := range s2 {
			above := column[j+1]

			cost := 1
			if r1 == r2 {
				cost = 0
			}

			column[j+1] = min(above+1, column[j]+1, diag+cost)
			diag = above
		}
	}

	return column[len(s2)]
}

// Closest returns the candidate nearest to name when it is within a small
// edit distance. Ties go to the earlier candidate.
func Closest(name string, candidates []string) (string, bool) {
	best, bestDist := "", maxDistance+1

	for _, candidate := range candidates {
		if candidate == name {
			return candidate, true
		}

		if d := Distance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}

	return best, best != ""
}
