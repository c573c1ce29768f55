package detector

import (
	"fmt"
	"strings"
)

// Fallback compares whitespace-normalized content. It is total and returns the
// same Outcome for the same inputs.
func Fallback(previous, current string) Outcome {
	before := Normalize(previous)
	after := Normalize(current)

	if before == after {
		return Outcome{Method: MethodFallback}
	}

	return Outcome{
		Changed: true,
		Summary: fmt.Sprintf("content changed, %d characters differ", differingRunes(before, after)),
		Method:  MethodFallback,
	}
}

// Normalize collapses every run of whitespace to a single space and trims both ends.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// differingRunes counts positions whose runes differ plus the length difference.
func differingRunes(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	shorter, longer := len(ra), len(rb)
	if shorter > longer {
		shorter, longer = longer, shorter
	}

	diff := longer - shorter
	for i := range shorter {
		if ra[i] != rb[i] {
			diff++
		}
	}

	return diff
}
