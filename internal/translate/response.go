package translate

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/anthropic"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/openaiwire"
)

// MapFinishReason maps an upstream finish_reason to an Anthropic stop_reason
// per spec.md §3 invariant 5 / §8 P4. Unknown or absent reasons map to end_turn.
func MapFinishReason(finishReason string) string {
	switch finishReason {
	case openaiwire.FinishStop:
		return anthropic.StopEndTurn
	case openaiwire.FinishLength:
		return anthropic.StopMaxTokens
	case openaiwire.FinishToolCalls:
		return anthropic.StopToolUse
	default:
		return anthropic.StopEndTurn
	}
}

// ToMessagesResponse translates a non-streaming upstream completion into an
// Anthropic MessagesResponse per spec.md §4.2. Translation failures never
// propagate: a degraded response is returned and the failure logged.
func ToMessagesResponse(logger *slog.Logger, upstream openaiwire.ChatCompletion, originalModel string, rendering ToolRendering) anthropic.MessagesResponse {
	resp, err := buildMessagesResponse(upstream, originalModel, rendering)
	if err != nil {
		if logger != nil {
			logger.Error("response translation failed", "error", err)
		}
		stopReason := anthropic.StopEndTurn
		return anthropic.MessagesResponse{
			ID:         newID("msg_"),
			Type:       "message",
			Role:       anthropic.RoleAssistant,
			Model:      originalModel,
			Content:    []anthropic.Block{anthropic.TextBlock(fmt.Sprintf("Error converting response: %v", err))},
			StopReason: &stopReason,
			Usage:      anthropic.Usage{},
		}
	}
	return resp
}

func buildMessagesResponse(upstream openaiwire.ChatCompletion, originalModel string, rendering ToolRendering) (anthropic.MessagesResponse, error) {
	if len(upstream.Choices) == 0 {
		return anthropic.MessagesResponse{}, fmt.Errorf("upstream completion has no choices")
	}
	choice := upstream.Choices[0]

	text := ""
	if choice.Message.Content != nil {
		text = *choice.Message.Content
	}

	stopReason := MapFinishReason(choice.FinishReason)

	var blocks []anthropic.Block
	if text != "" {
		blocks = append(blocks, anthropic.TextBlock(text))
	}

	for _, call := range choice.Message.ToolCalls {
		parsed, parseErr := parseToolArguments(call.Function.Arguments)

		switch rendering {
		case StructuredBlocks:
			id := call.ID
			if id == "" {
				id = newID("toolu_")
			}
			input := parsed
			if parseErr != nil {
				input = rawObject(map[string]any{"raw": call.Function.Arguments})
			}
			blocks = append(blocks, anthropic.ToolUseBlock(id, call.Function.Name, input))
		case TextSummary:
			var pretty []byte
			if parseErr == nil {
				pretty, _ = json.MarshalIndent(jsonRawToAny(parsed), "", "  ")
			} else {
				pretty = []byte(call.Function.Arguments)
			}
			summary := fmt.Sprintf("\n\nTool usage:\nTool: %s\nArguments: %s\n\n", call.Function.Name, string(pretty))
			blocks = appendToolSummary(blocks, summary)
		}
	}

	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.TextBlock(""))
	}

	var stopSeqPtr *string
	if stopReason == anthropic.StopStopSequence {
		s := ""
		stopSeqPtr = &s
	}

	id := upstream.ID
	if id == "" {
		id = newID("msg_")
	}

	return anthropic.MessagesResponse{
		ID:           id,
		Type:         "message",
		Role:         anthropic.RoleAssistant,
		Model:        originalModel,
		Content:      blocks,
		StopReason:   &stopReason,
		StopSequence: stopSeqPtr,
		Usage: anthropic.Usage{
			InputTokens:  upstream.Usage.PromptTokens,
			OutputTokens: upstream.Usage.CompletionTokens,
		},
	}, nil
}

// appendToolSummary appends a tool-usage summary to the first TextBlock in
// blocks if there is one, otherwise pushes a new TextBlock.
func appendToolSummary(blocks []anthropic.Block, summary string) []anthropic.Block {
	for i := range blocks {
		if blocks[i].Type == anthropic.BlockTypeText {
			blocks[i].Text += summary
			return blocks
		}
	}
	return append(blocks, anthropic.TextBlock(summary))
}

// parseToolArguments decodes a tool call's JSON argument string. On failure,
// per spec.md §4.2 step 4, the caller wraps as {raw: <original string>}.
func parseToolArguments(arguments string) (json.RawMessage, error) {
	if arguments == "" {
		return json.RawMessage("{}"), nil
	}
	var v any
	if err := json.Unmarshal([]byte(arguments), &v); err != nil {
		return nil, err
	}
	return json.RawMessage(arguments), nil
}

func rawObject(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

func jsonRawToAny(raw json.RawMessage) any {
	var v any
	_ = json.Unmarshal(raw, &v)
	return v
}
