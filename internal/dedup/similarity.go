package dedup

import "strings"

// Ratio measures similarity between two strings as 2*M/T, where M is the
// total length of matching blocks and T the combined length. Inputs are
// lower-cased and whitespace-normalized first. Returns a value in [0, 1];
// two empty strings are identical.
func Ratio(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)
	if a == b {
		return 1.0
	}
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}
	matched := matchingLength(a, b)
	return 2.0 * float64(matched) / float64(total)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// matchingLength sums the lengths of non-overlapping matching blocks, found
// by recursively splitting around the longest common substring.
func matchingLength(a, b string) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	left := matchingLength(a[:ai], b[:bi])
	right := matchingLength(a[ai+size:], b[bi+size:])
	return left + size + right
}

// longestMatch finds the longest common substring of a and b, returning its
// start offsets and length. Dynamic programming over byte positions; strings
// here are short titles and organization names.
func longestMatch(a, b string) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > size {
					size = curr[j]
					ai = i - size
					bi = j - size
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return ai, bi, size
}
