package translate_test

import (
	"testing"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/anthropic"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/translate"
)

func TestEstimateInputTokens(t *testing.T) {
	tests := []struct {
		name string
		req  anthropic.TokenCountRequest
		want int
	}{
		{
			name: "empty request floors to one token",
			req:  anthropic.TokenCountRequest{},
			want: 1,
		},
		{
			name: "string system plus string message",
			req: anthropic.TokenCountRequest{
				System: &anthropic.SystemPrompt{Text: "01234567"}, // 8 chars
				Messages: []anthropic.Message{
					{Role: anthropic.RoleUser, Content: anthropic.NewStringContent("0123456789ab")}, // 12 chars
				},
			},
			want: 5, // (8+12)/4
		},
		{
			name: "block system and block messages sum text only",
			req: anthropic.TokenCountRequest{
				System: &anthropic.SystemPrompt{Blocks: []anthropic.Block{
					{Type: anthropic.BlockTypeText, Text: "01234567"},
				}},
				Messages: []anthropic.Message{
					{Role: anthropic.RoleUser, Content: anthropic.NewBlocksContent([]anthropic.Block{
						{Type: anthropic.BlockTypeText, Text: "0123"},
						{Type: anthropic.BlockTypeImage, Text: ""},
					})},
				},
			},
			want: 3, // (8+4)/4
		},
		{
			name: "short content floors to one",
			req: anthropic.TokenCountRequest{
				Messages: []anthropic.Message{
					{Role: anthropic.RoleUser, Content: anthropic.NewStringContent("hi")},
				},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate.EstimateInputTokens(tt.req)
			if got != tt.want {
				t.Errorf("EstimateInputTokens() = %d, want %d", got, tt.want)
			}
		})
	}
}
