package translate_test

import (
	"testing"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/translate"
)

func TestDetermineToolRendering(t *testing.T) {
	tests := []struct {
		model string
		want  translate.ToolRendering
	}{
		{"claude-3-5-sonnet-20241022", translate.StructuredBlocks},
		{"claude-3-5-haiku-20241022", translate.StructuredBlocks},
		{"openai/gpt-4o", translate.TextSummary},
		{"groq/llama-3.1-70b", translate.TextSummary},
	}
	for _, tt := range tests {
		if got := translate.DetermineToolRendering(tt.model); got != tt.want {
			t.Errorf("DetermineToolRendering(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
