// Package anthropic defines the canonical wire types for the Anthropic Messages API
// dialect: the inbound request shape this proxy accepts and the outbound response/SSE
// shape it produces.
package anthropic

import "encoding/json"

// Stop reasons.
const (
	StopEndTurn      = "end_turn"
	StopMaxTokens    = "max_tokens"
	StopStopSequence = "stop_sequence"
	StopToolUse      = "tool_use"
)

// Content block types.
const (
	BlockTypeText       = "text"
	BlockTypeImage      = "image"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessagesRequest is the body of POST /v1/messages.
type MessagesRequest struct {
	Model         string          `json:"model" validate:"required"`
	MaxTokens     int             `json:"max_tokens" validate:"required,gt=0"`
	Messages      []Message       `json:"messages" validate:"required,min=1,dive"`
	System        *SystemPrompt   `json:"system,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    *ToolChoice     `json:"tool_choice,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// SystemPrompt holds either a plain string system prompt or a list of text blocks.
// Exactly one of Text or Blocks is populated after unmarshaling.
type SystemPrompt struct {
	Text   string
	Blocks []Block
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Text = str
		return nil
	}
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	s.Blocks = blocks
	return nil
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.Blocks != nil {
		return json.Marshal(s.Blocks)
	}
	return json.Marshal(s.Text)
}

// Message is one turn of the conversation. Content is either a plain string or a
// list of content blocks.
type Message struct {
	Role    string  `json:"role" validate:"required,oneof=user assistant"`
	Content Content `json:"content"`
}

// Content holds either a plain string or a block list. Exactly one is non-empty
// after unmarshaling (IsString reports which).
type Content struct {
	str      string
	blocks   []Block
	isString bool
}

func NewStringContent(s string) Content { return Content{str: s, isString: true} }
func NewBlocksContent(b []Block) Content { return Content{blocks: b} }

func (c Content) IsString() bool   { return c.isString }
func (c Content) String() string   { return c.str }
func (c Content) Blocks() []Block  { return c.blocks }

func (c *Content) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		c.str = str
		c.isString = true
		return nil
	}
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	c.blocks = blocks
	c.isString = false
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.isString {
		return json.Marshal(c.str)
	}
	if c.blocks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.blocks)
}

// ImageSource describes an inline or referenced image payload.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Block is a tagged union over the four Anthropic content block kinds.
// Only the fields relevant to Type are populated.
type Block struct {
	Type string `json:"type"`

	// TextBlock
	Text string `json:"text,omitempty"`

	// ImageBlock
	Source *ImageSource `json:"source,omitempty"`

	// ToolUseBlock
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// ToolResultBlock
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

func TextBlock(text string) Block { return Block{Type: BlockTypeText, Text: text} }

func ToolUseBlock(id, name string, input json.RawMessage) Block {
	return Block{Type: BlockTypeToolUse, ID: id, Name: name, Input: input}
}

// Tool describes a callable function the client has made available.
type Tool struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema" validate:"required"`
}

// ToolChoice is a discriminated union: auto, any, or a specific named tool.
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
	ToolChoiceTool = "tool"
)

// Usage reports token accounting for a response.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// MessagesResponse is the non-streaming response body for POST /v1/messages.
type MessagesResponse struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Role         string  `json:"role"`
	Model        string  `json:"model"`
	Content      []Block `json:"content"`
	StopReason   *string `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
	Usage        Usage   `json:"usage"`
}

// TokenCountRequest is the body of POST /v1/messages/count_tokens.
type TokenCountRequest struct {
	Model    string        `json:"model"`
	System   *SystemPrompt `json:"system,omitempty"`
	Messages []Message     `json:"messages"`
	Tools    []Tool        `json:"tools,omitempty"`
}

// TokenCountResponse is the response body of POST /v1/messages/count_tokens.
type TokenCountResponse struct {
	InputTokens int `json:"input_tokens"`
}

// ErrorBody is the envelope for all error responses on the Anthropic-dialect surface.
type ErrorBody struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorBody(errType, message string) ErrorBody {
	return ErrorBody{Type: "error", Error: ErrorDetail{Type: errType, Message: message}}
}
