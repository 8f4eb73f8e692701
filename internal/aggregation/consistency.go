package aggregation

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// NormalizeName uppercases s and strips whitespace and punctuation.
func NormalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeID strips everything but digits and letters from an identifier.
func NormalizeID(s string) string {
	return NormalizeName(s)
}

// Similarity returns the matching-block ratio of a and b in [0, 1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// Agreement scores how well the non-empty normalized values agree:
// no values score 0, a single value 0.5, otherwise the mean pairwise
// similarity.
func Agreement(values []string, normalize func(string) string) float64 {
	present := make([]string, 0, len(values))
	for _, v := range values {
		if n := normalize(v); n != "" {
			present = append(present, n)
		}
	}

	switch len(present) {
	case 0:
		return 0
	case 1:
		return 0.5
	}

	var sum float64
	var pairs int
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			sum += Similarity(present[i], present[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}
