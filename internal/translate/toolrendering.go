package translate

import "strings"

// ToolRendering selects how a non-streaming response renders upstream tool_calls
// back to the Anthropic-dialect client. Claude-shaped targets get structured
// tool_use blocks; anything else gets a readable text summary, since a
// non-Claude target's own client tooling has no concept of Anthropic tool_use
// blocks to begin with (spec.md §4.2, §9).
type ToolRendering int

const (
	StructuredBlocks ToolRendering = iota
	TextSummary
)

// DetermineToolRendering derives the rendering strategy once per request from
// the original inbound model string (before RewriteModel).
func DetermineToolRendering(model string) ToolRendering {
	if strings.HasPrefix(model, "claude-") {
		return StructuredBlocks
	}
	return TextSummary
}
