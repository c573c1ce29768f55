package classifier_test

import (
	"strings"
	"testing"

	"github.com/dukex/changewatch/pkg/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		want      classifier.Verdict
		malformed bool
	}{
		{
			name: "meaningful verdict",
			raw:  `{"meaningful": true, "summary": "Title changed from A to B"}`,
			want: classifier.Verdict{Meaningful: true, Summary: "Title changed from A to B"},
		},
		{
			name: "fenced verdict",
			raw:  "```json\n{\"meaningful\": true, \"summary\": \"New post\"}\n```",
			want: classifier.Verdict{Meaningful: true, Summary: "New post"},
		},
		{
			name: "not meaningful",
			raw:  `{"meaningful": false, "summary": ""}`,
			want: classifier.Verdict{},
		},
		{
			name: "sentinel inside json",
			raw:  `{"meaningful": true, "summary": "NO_MEANINGFUL_CHANGES"}`,
			want: classifier.Verdict{},
		},
		{
			name: "plain sentinel",
			raw:  "no_meaningful_changes",
			want: classifier.Verdict{},
		},
		{
			name: "plain text summary",
			raw:  "Title changed from A to B",
			want: classifier.Verdict{Meaningful: true, Summary: "Title changed from A to B"},
		},
		{
			name: "plain text with sentinel",
			raw:  "Only the footer moved. NO_MEANINGFUL_CHANGES",
			want: classifier.Verdict{},
		},
		{
			name:      "missing field",
			raw:       `{"meaningful": true}`,
			malformed: true,
		},
		{
			name:      "wrong type",
			raw:       `{"meaningful": "yes", "summary": "x"}`,
			malformed: true,
		},
		{
			name:      "meaningful without summary",
			raw:       `{"meaningful": true, "summary": "   "}`,
			malformed: true,
		},
		{
			name:      "empty",
			raw:       "  ",
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := classifier.ParseVerdict(tt.raw)
			if tt.malformed {
				require.ErrorIs(t, err, classifier.ErrMalformedResponse)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVerdict_TruncatesSummary(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", classifier.MaxSummaryWords+50)

	got, err := classifier.ParseVerdict(`{"meaningful": true, "summary": "` + long + `"}`)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(got.Summary), classifier.MaxSummaryWords)
}

func TestParseVerdict_TruncatesPlainText(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", classifier.MaxSummaryWords+10)

	got, err := classifier.ParseVerdict(long)
	require.NoError(t, err)
	assert.True(t, got.Meaningful)
	assert.Len(t, strings.Fields(got.Summary), classifier.MaxSummaryWords)
}

func TestSystemPrompt_BiasesByTargetType(t *testing.T) {
	t.Parallel()

	assert.Contains(t, classifier.SystemPrompt("profile"), "Job title")
	assert.Contains(t, classifier.SystemPrompt("company"), "announcements")
	assert.NotContains(t, classifier.SystemPrompt("generic_site"), "Job title")
	assert.Contains(t, classifier.SystemPrompt("generic_site"), classifier.NoMeaningfulChange)
}
