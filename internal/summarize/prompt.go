package summarize

const promptTemplate = "Summarize this coding session in 3-8 bullet points. " +
	"Focus on: what was accomplished, key decisions made, problems encountered. " +
	"Keep each bullet under 20 words. Output ONLY the bullet list, no preamble.\n\n" +
	"Session transcript:\n"

// BuildPrompt wraps an excerpt in the summarization instructions.
func BuildPrompt(excerpt string) string {
	return promptTemplate + excerpt
}
