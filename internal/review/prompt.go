package review

import "strings"

const summaryPrompt = `You are a code review assistant. Summarize the following GitHub pull request diff for a reviewer.
Describe what changed and why it matters in a few short paragraphs of plain prose.
Do not include code blocks.

Diff:
`

const feedbackPrompt = `You are a code review assistant. Analyze the following GitHub pull request diff and provide feedback as a JSON array with objects: { "file": string, "line": number, "comment": string }.
Cover every file touched by the diff. "line" is the line number in the new version of the file.
Respond with ONLY the JSON array. If there is nothing to say, respond with [].

Diff:
`

// SummaryPrompt builds the prompt asking for a prose summary of diff.
func SummaryPrompt(diff string) string {
	return buildPrompt(summaryPrompt, diff)
}

// FeedbackPrompt builds the prompt asking for line comments on diff.
func FeedbackPrompt(diff string) string {
	return buildPrompt(feedbackPrompt, diff)
}

func buildPrompt(instructions, diff string) string {
	var b strings.Builder
	b.Grow(len(instructions) + len(diff) + 1)
	b.WriteString(instructions)
	b.WriteString(diff)
	b.WriteString("\n")
	return b.String()
}
