package classifier

import (
	"fmt"
	"strings"

	"github.com/dukex/changewatch/pkg/models"
)

// MaxSummaryWords bounds the summary length requested from the model and
// enforced on its answer.
const MaxSummaryWords = 200

func focusFor(targetType models.TargetType) []string {
	switch targetType {
	case models.TargetTypeProfile:
		return []string{
			"Job title or role changes",
			"New positions, promotions or departures",
			"New posts or announcements",
			"Contact information changes",
		}
	case models.TargetTypeCompany:
		return []string{
			"Company news, announcements or press releases",
			"Personnel and leadership changes",
			"Product launches or updates",
			"Policy or service changes",
		}
	default:
		return []string{
			"Major content additions or removals",
			"Product, pricing or service changes",
			"Policy updates",
			"Contact information changes",
		}
	}
}

// SystemPrompt returns the instructions sent ahead of the content.
func SystemPrompt(targetType models.TargetType) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert content analyst for a %s monitoring system.\n", targetType)
	b.WriteString("Your job is to identify MEANINGFUL changes between two versions of the same content.\n\n")
	b.WriteString("IGNORE: whitespace, formatting, timestamps, counters and other insignificant updates.\n\n")
	b.WriteString("FOCUS ON:\n")

	for _, item := range focusFor(targetType) {
		b.WriteString("- " + item + "\n")
	}

	b.WriteString("\nAnswer with a JSON object {\"meaningful\": boolean, \"summary\": string}.\n")
	fmt.Fprintf(&b, "When there are meaningful changes, summary is a concise description of what changed (max %d words).\n", MaxSummaryWords)
	fmt.Fprintf(&b, "When there are none, answer {\"meaningful\": false, \"summary\": \"%s\"}.\n", NoMeaningfulChange)

	return b.String()
}

// UserPrompt returns the comparison request carrying both content versions.
func UserPrompt(req Request) string {
	return fmt.Sprintf(
		"Compare these two content versions for %s:\n\nBEFORE CONTENT:\n%s\n\nAFTER CONTENT:\n%s\n\nAnalyze and summarize any meaningful changes.",
		req.TargetType, req.Before, req.After,
	)
}

// TruncateWords keeps at most n words of s, collapsing whitespace.
func TruncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}

	return strings.Join(words[:n], " ")
}
