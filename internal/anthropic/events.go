package anthropic

// SSE event names emitted on the streaming /v1/messages surface.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// Delta subtypes carried inside a content_block_delta event.
const (
	DeltaTypeText      = "text_delta"
	DeltaTypeInputJSON = "input_json_delta"
)

// MessageStartPayload is the data payload of a message_start event.
type MessageStartPayload struct {
	Type    string           `json:"type"`
	Message StreamingMessage `json:"message"`
}

// StreamingMessage is the partial MessagesResponse announced by message_start.
type StreamingMessage struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Role         string  `json:"role"`
	Model        string  `json:"model"`
	Content      []Block `json:"content"`
	StopReason   *string `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
	Usage        Usage   `json:"usage"`
}

// ContentBlockStartPayload is the data payload of a content_block_start event.
type ContentBlockStartPayload struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock Block  `json:"content_block"`
}

// TextDelta is the delta payload for a text content block.
type TextDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewTextDelta(text string) TextDelta { return TextDelta{Type: DeltaTypeText, Text: text} }

// InputJSONDelta is the delta payload for a tool_use content block's incrementally
// assembled input JSON.
type InputJSONDelta struct {
	Type        string `json:"type"`
	PartialJSON string `json:"partial_json"`
}

func NewInputJSONDelta(partial string) InputJSONDelta {
	return InputJSONDelta{Type: DeltaTypeInputJSON, PartialJSON: partial}
}

// ContentBlockDeltaPayload is the data payload of a content_block_delta event.
// Delta holds a TextDelta or an InputJSONDelta value, marshaled with the payload.
type ContentBlockDeltaPayload struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta any    `json:"delta"`
}

// ContentBlockStopPayload is the data payload of a content_block_stop event.
type ContentBlockStopPayload struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDeltaPayload is the data payload of a message_delta event.
type MessageDeltaPayload struct {
	Type  string            `json:"type"`
	Delta MessageDeltaFields `json:"delta"`
	Usage MessageDeltaUsage  `json:"usage"`
}

type MessageDeltaFields struct {
	StopReason   *string `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

type MessageDeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

// MessageStopPayload is the data payload of a message_stop event.
type MessageStopPayload struct {
	Type string `json:"type"`
}

// PingPayload is the data payload of a ping event.
type PingPayload struct {
	Type string `json:"type"`
}

// ErrorPayload is the data payload of an error event emitted mid-stream.
type ErrorPayload struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

func strPtr(s string) *string { return &s }

// StopReasonPtr converts a stop-reason string to the pointer form the wire types need.
func StopReasonPtr(reason string) *string { return strPtr(reason) }
