package compose

import "unicode/utf8"

// charsPerToken is the calibration factor for token estimation,
// approximately four characters per token for English prose.
const charsPerToken = 4

// EstimateTokens estimates the token cost of a text block. Non-empty text
// always costs at least one token so zero-cost blocks cannot bypass the
// budget.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	n := utf8.RuneCountInString(s) / charsPerToken
	if n < 1 {
		n = 1
	}
	return n
}
