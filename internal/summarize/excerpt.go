package summarize

import "unicode/utf8"

// OmittedMarker joins the head and tail of a truncated excerpt.
const OmittedMarker = "\n\n[... earlier conversation omitted ...]\n\n"

// Excerpt bounds text to budget runes. It keeps the first head runes, where
// the problem is framed, and as much of the end as fits after the marker.
// Text that already fits is returned unchanged.
func Excerpt(text string, budget, head int) string {
	budget = max(budget, 0)
	markerLen := utf8.RuneCountInString(OmittedMarker)
	if head > budget-markerLen {
		head = max(budget-markerLen, 0)
	}
	tail := max(budget-head-markerLen, 0)

	runes := []rune(text)
	if len(runes) <= head+tail {
		return text
	}
	if budget < markerLen {
		return string(runes[len(runes)-budget:])
	}
	return string(runes[:head]) + OmittedMarker + string(runes[len(runes)-tail:])
}
