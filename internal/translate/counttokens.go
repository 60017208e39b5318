package translate

import "github.com/gabrielmaialva33/anthropic-proxy/internal/anthropic"

// EstimateInputTokens implements spec.md §6.1's POST /v1/messages/count_tokens
// estimator: sum the character length of every string of text in system and
// messages[*].content[*].text, integer-divide by 4, minimum 1. This is a
// cheap local estimate, not a call to any upstream tokenizer.
func EstimateInputTokens(req anthropic.TokenCountRequest) int {
	var chars int

	if req.System != nil {
		if req.System.Blocks != nil {
			for _, b := range req.System.Blocks {
				chars += len(b.Text)
			}
		} else {
			chars += len(req.System.Text)
		}
	}

	for _, m := range req.Messages {
		if m.Content.IsString() {
			chars += len(m.Content.String())
			continue
		}
		for _, b := range m.Content.Blocks() {
			chars += len(b.Text)
		}
	}

	tokens := chars / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
