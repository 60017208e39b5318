package translate

import (
	"encoding/json"
	"strings"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/anthropic"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/openaiwire"
)

// ToUpstreamRequest translates an Anthropic MessagesRequest into the
// OpenAI-Chat-Completions-shaped request this proxy sends upstream.
// Pure function; never performs I/O (spec.md §4.1).
func ToUpstreamRequest(req anthropic.MessagesRequest, maxTokensLimit int) openaiwire.ChatCompletionRequest {
	out := openaiwire.ChatCompletionRequest{
		Model: req.Model,
	}

	var messages []openaiwire.ChatMessage

	if sys := systemMessage(req.System); sys != nil {
		messages = append(messages, *sys)
	}

	for _, m := range req.Messages {
		messages = append(messages, translateMessage(m)...)
	}
	out.Messages = messages

	maxTokens := req.MaxTokens
	if maxTokens > maxTokensLimit {
		maxTokens = maxTokensLimit
	}
	out.MaxTokens = maxTokens

	out.Temperature = req.Temperature
	out.TopP = req.TopP
	// TopK has no OpenAI-dialect equivalent; silently dropped per spec.md §4.1 step 4.

	if len(req.StopSequences) > 0 {
		out.Stop = req.StopSequences
	}

	if len(req.Tools) > 0 {
		tools := make([]openaiwire.ToolDef, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, openaiwire.ToolDef{
				Type: "function",
				Function: openaiwire.FunctionDef{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			})
		}
		out.Tools = tools
	}

	out.ToolChoice = translateToolChoice(req.ToolChoice, len(out.Tools) > 0)

	if req.Stream {
		out.Stream = true
		out.StreamOptions = &openaiwire.StreamOptions{IncludeUsage: true}
	}

	return out
}

// systemMessage builds the single leading system message, if any, per
// spec.md §4.1 step 1.
func systemMessage(sys *anthropic.SystemPrompt) *openaiwire.ChatMessage {
	if sys == nil {
		return nil
	}
	if sys.Blocks == nil {
		if sys.Text == "" {
			return nil
		}
		return &openaiwire.ChatMessage{Role: openaiwire.RoleSystem, Content: sys.Text}
	}

	var parts []string
	for _, b := range sys.Blocks {
		if b.Type == anthropic.BlockTypeText {
			parts = append(parts, b.Text)
		}
	}
	content := strings.TrimRight(strings.Join(parts, "\n\n"), " \t\n")
	if content == "" {
		return nil
	}
	return &openaiwire.ChatMessage{Role: openaiwire.RoleSystem, Content: content}
}

// translateMessage maps one inbound message to zero or more upstream messages
// per spec.md §4.1 step 2.
func translateMessage(m anthropic.Message) []openaiwire.ChatMessage {
	if m.Content.IsString() {
		return []openaiwire.ChatMessage{{Role: m.Role, Content: m.Content.String()}}
	}

	blocks := m.Content.Blocks()
	hasToolResult := false
	for _, b := range blocks {
		if b.Type == anthropic.BlockTypeToolResult {
			hasToolResult = true
			break
		}
	}

	if m.Role == anthropic.RoleUser && hasToolResult {
		var sb strings.Builder
		for _, b := range blocks {
			switch b.Type {
			case anthropic.BlockTypeText:
				sb.WriteString(b.Text)
				sb.WriteString("\n")
			case anthropic.BlockTypeToolResult:
				sb.WriteString("Tool result for ")
				sb.WriteString(b.ToolUseID)
				sb.WriteString(":\n")
				sb.WriteString(stringifyToolResult(b.Content))
				sb.WriteString("\n")
			}
		}
		return []openaiwire.ChatMessage{{
			Role:    openaiwire.RoleUser,
			Content: strings.TrimRight(sb.String(), " \t\n"),
		}}
	}

	// Otherwise, emit each block transliterated, preserving structure.
	out := make([]openaiwire.ChatMessage, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case anthropic.BlockTypeText:
			out = append(out, openaiwire.ChatMessage{Role: m.Role, Content: b.Text})
		case anthropic.BlockTypeImage:
			// No typed-block representation on the upstream side; fall back to a
			// textual placeholder so the turn is not silently dropped.
			out = append(out, openaiwire.ChatMessage{Role: m.Role, Content: "[image omitted]"})
		case anthropic.BlockTypeToolUse:
			args := "{}"
			if len(b.Input) > 0 {
				args = string(b.Input)
			}
			out = append(out, openaiwire.ChatMessage{
				Role: openaiwire.RoleAssistant,
				ToolCalls: []openaiwire.ToolCall{{
					ID:   b.ID,
					Type: "function",
					Function: openaiwire.FunctionCall{
						Name:      b.Name,
						Arguments: args,
					},
				}},
			})
		case anthropic.BlockTypeToolResult:
			out = append(out, openaiwire.ChatMessage{
				Role:       openaiwire.RoleTool,
				ToolCallID: b.ToolUseID,
				Content:    stringifyToolResult(b.Content),
			})
		}
	}
	return out
}

// translateToolChoice maps an Anthropic ToolChoice to the OpenAI-dialect
// tool_choice value per spec.md §4.1 step 6.
func translateToolChoice(tc *anthropic.ToolChoice, hasTools bool) json.RawMessage {
	if tc == nil {
		if hasTools {
			return json.RawMessage(`"auto"`)
		}
		return nil
	}
	switch tc.Type {
	case anthropic.ToolChoiceAuto:
		return json.RawMessage(`"auto"`)
	case anthropic.ToolChoiceAny:
		return json.RawMessage(`"any"`)
	case anthropic.ToolChoiceTool:
		b, _ := json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": tc.Name},
		})
		return b
	default:
		if hasTools {
			return json.RawMessage(`"auto"`)
		}
		return nil
	}
}
