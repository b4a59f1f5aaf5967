package similarity

import "github.com/pmezard/go-difflib/difflib"

// Ratio returns the Ratcliff/Obershelp similarity 2*M/T of a and b compared
// rune by rune. It is 1 for equal strings and 0 when either is empty.
func Ratio(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
