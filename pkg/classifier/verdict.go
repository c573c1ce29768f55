package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var verdictSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["meaningful", "summary"],
	"properties": {
		"meaningful": {"type": "boolean"},
		"summary": {"type": "string"}
	}
}`)

// ParseVerdict turns a raw model answer into a Verdict. A JSON object
// (optionally fenced in a markdown code block) must match the verdict schema.
// Any other text is the summary itself unless it contains the
// NoMeaningfulChange sentinel.
func ParseVerdict(raw string) (Verdict, error) {
	text := stripFences(strings.TrimSpace(raw))
	if text == "" {
		return Verdict{}, fmt.Errorf("%w: empty answer", ErrMalformedResponse)
	}

	if !strings.HasPrefix(text, "{") {
		if strings.Contains(strings.ToUpper(text), NoMeaningfulChange) {
			return Verdict{}, nil
		}

		return Verdict{Meaningful: true, Summary: TruncateWords(text, MaxSummaryWords)}, nil
	}

	result, err := gojsonschema.Validate(verdictSchema, gojsonschema.NewStringLoader(text))
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return Verdict{}, fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(details, "; "))
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	summary := strings.TrimSpace(verdict.Summary)
	if !verdict.Meaningful || strings.EqualFold(summary, NoMeaningfulChange) {
		return Verdict{}, nil
	}

	if summary == "" {
		return Verdict{}, fmt.Errorf("%w: meaningful verdict without summary", ErrMalformedResponse)
	}

	verdict.Summary = TruncateWords(summary, MaxSummaryWords)

	return verdict, nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}

	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
