package tokenizer

// Estimator approximates token counts without an encoding table.
// CJK runes count as ~2 tokens, ASCII as ~0.25 tokens per byte.
type Estimator struct{}

// Count implements Tokenizer.
func (Estimator) Count(text string) int {
	return EstimateTokens(text)
}

// EstimateTokens estimates the token count for a string.
func EstimateTokens(content string) int {
	if len(content) == 0 {
		return 0
	}

	wideCount := 0
	asciiCount := 0

	for _, r := range content {
		if r < 128 {
			asciiCount++
		} else {
			wideCount++
		}
	}

	tokens := wideCount*2 + asciiCount/4
	if tokens == 0 {
		tokens = 1
	}

	return tokens
}
