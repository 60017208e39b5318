package translate

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/anthropic"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/openaiwire"
)

// Frame is one SSE frame the streaming translator wants written to the
// client. An empty Event denotes the literal "data: [DONE]\n\n" sentinel.
type Frame struct {
	Event string
	Data  any
}

func doneFrame() Frame { return Frame{} }

func eventFrame(event string, data any) Frame { return Frame{Event: event, Data: data} }

// StreamState is the explicit finite-state-machine object driving one
// streaming translation (spec.md §4.3, §9 "Implement as an explicit FSM
// object"). It is owned by a single consumer goroutine per request and
// requires no locking; droppedTextEvents is atomic only so DroppedTextEvents
// can be called from another goroutine.
type StreamState struct {
	originalModel string
	logger        *slog.Logger

	textSent                 bool
	textBlockClosed          bool
	toolActive               bool
	lastToolIndex            int
	currentUpstreamToolIndex *int
	accumulatedText          strings.Builder

	inputTokens  int
	outputTokens int
	terminated   bool

	droppedTextEvents atomic.Int64
}

// NewStreamState creates a fresh FSM for one streaming request.
func NewStreamState(originalModel string, logger *slog.Logger) *StreamState {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamState{originalModel: originalModel, logger: logger}
}

// DroppedTextEvents reports how many text fragments were silently dropped
// because they arrived after a tool block had already opened (spec.md §9
// Open Question).
func (s *StreamState) DroppedTextEvents() int64 { return s.droppedTextEvents.Load() }

func (s *StreamState) Terminated() bool { return s.terminated }

// Init emits the frames that precede the first upstream chunk: message_start,
// the empty text block's content_block_start, and a ping (spec.md §4.3.2).
func (s *StreamState) Init() []Frame {
	msgID := newID("msg_")
	return []Frame{
		eventFrame(anthropic.EventMessageStart, anthropic.MessageStartPayload{
			Type: "message_start",
			Message: anthropic.StreamingMessage{
				ID:           msgID,
				Type:         "message",
				Role:         anthropic.RoleAssistant,
				Model:        s.originalModel,
				Content:      []anthropic.Block{},
				StopReason:   nil,
				StopSequence: nil,
				Usage:        anthropic.Usage{},
			},
		}),
		eventFrame(anthropic.EventContentBlockStart, anthropic.ContentBlockStartPayload{
			Type:         "content_block_start",
			Index:        0,
			ContentBlock: anthropic.TextBlock(""),
		}),
		eventFrame(anthropic.EventPing, anthropic.PingPayload{Type: "ping"}),
	}
}

// HandleChunk is a pure method taking one upstream chunk and returning the
// frames it produces (spec.md §9: "each chunk handler is a pure method on
// the FSM"). Once it returns a terminal sequence (Terminated() becomes
// true), the caller must stop invoking HandleChunk for this stream.
func (s *StreamState) HandleChunk(chunk openaiwire.ChatCompletionChunk) []Frame {
	if s.terminated {
		return nil
	}

	var frames []Frame

	if chunk.Usage != nil {
		s.inputTokens = chunk.Usage.PromptTokens
		s.outputTokens = chunk.Usage.CompletionTokens
	}

	if len(chunk.Choices) == 0 {
		return frames
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	// Text delta, processed before tool-calls (spec.md §4.3.6 ordering).
	if delta.Content != nil && *delta.Content != "" {
		if !s.toolActive && !s.textBlockClosed {
			s.accumulatedText.WriteString(*delta.Content)
			s.textSent = true
			frames = append(frames, eventFrame(anthropic.EventContentBlockDelta, anthropic.ContentBlockDeltaPayload{
				Type:  "content_block_delta",
				Index: 0,
				Delta: anthropic.NewTextDelta(*delta.Content),
			}))
		} else {
			s.droppedTextEvents.Add(1)
			s.logger.Debug("dropped text after tool block opened", "fragment_length", len(*delta.Content))
		}
	}

	for _, call := range delta.ToolCalls {
		frames = append(frames, s.handleToolCallDelta(call)...)
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		frames = append(frames, s.terminal(*choice.FinishReason)...)
	}

	return frames
}

func (s *StreamState) handleToolCallDelta(call openaiwire.ToolCallDelta) []Frame {
	var frames []Frame

	if !s.toolActive {
		frames = append(frames, s.closeTextBlockOnFirstTool()...)
	}

	idx := call.Index

	if s.currentUpstreamToolIndex == nil || *s.currentUpstreamToolIndex != idx {
		s.lastToolIndex++
		id := call.ID
		if id == "" {
			id = newID("toolu_")
		}
		frames = append(frames, eventFrame(anthropic.EventContentBlockStart, anthropic.ContentBlockStartPayload{
			Type:  "content_block_start",
			Index: s.lastToolIndex,
			ContentBlock: anthropic.Block{
				Type:  anthropic.BlockTypeToolUse,
				ID:    id,
				Name:  call.Function.Name,
				Input: []byte("{}"),
			},
		}))
		s.toolActive = true
		s.currentUpstreamToolIndex = &idx
	}

	if call.Function.Arguments != "" {
		frames = append(frames, eventFrame(anthropic.EventContentBlockDelta, anthropic.ContentBlockDeltaPayload{
			Type:  "content_block_delta",
			Index: s.lastToolIndex,
			Delta: anthropic.NewInputJSONDelta(call.Function.Arguments),
		}))
	}

	return frames
}

// closeTextBlockOnFirstTool implements spec.md §4.3.3 step 1, run exactly
// once, the moment the first tool block is about to open.
func (s *StreamState) closeTextBlockOnFirstTool() []Frame {
	var frames []Frame
	switch {
	case s.textSent && !s.textBlockClosed:
		frames = append(frames, s.stopBlock(0))
		s.textBlockClosed = true
	case s.accumulatedText.Len() > 0 && !s.textSent && !s.textBlockClosed:
		frames = append(frames, eventFrame(anthropic.EventContentBlockDelta, anthropic.ContentBlockDeltaPayload{
			Type:  "content_block_delta",
			Index: 0,
			Delta: anthropic.NewTextDelta(s.accumulatedText.String()),
		}))
		frames = append(frames, s.stopBlock(0))
		s.textBlockClosed = true
	case !s.textBlockClosed:
		frames = append(frames, s.stopBlock(0))
		s.textBlockClosed = true
	}
	return frames
}

func (s *StreamState) stopBlock(index int) Frame {
	return eventFrame(anthropic.EventContentBlockStop, anthropic.ContentBlockStopPayload{
		Type:  "content_block_stop",
		Index: index,
	})
}

// terminal implements spec.md §4.3.3's finish_reason handling: close every
// open block, emit message_delta/message_stop/[DONE], and mark the FSM
// terminated so no further chunks are processed.
func (s *StreamState) terminal(finishReason string) []Frame {
	s.terminated = true

	var frames []Frame
	for i := 1; i <= s.lastToolIndex; i++ {
		frames = append(frames, s.stopBlock(i))
	}

	if !s.textBlockClosed {
		if s.accumulatedText.Len() > 0 && !s.textSent {
			frames = append(frames, eventFrame(anthropic.EventContentBlockDelta, anthropic.ContentBlockDeltaPayload{
				Type:  "content_block_delta",
				Index: 0,
				Delta: anthropic.NewTextDelta(s.accumulatedText.String()),
			}))
		}
		frames = append(frames, s.stopBlock(0))
		s.textBlockClosed = true
	}

	stopReason := MapFinishReason(finishReason)
	frames = append(frames, eventFrame(anthropic.EventMessageDelta, anthropic.MessageDeltaPayload{
		Type: "message_delta",
		Delta: anthropic.MessageDeltaFields{
			StopReason:   &stopReason,
			StopSequence: nil,
		},
		Usage: anthropic.MessageDeltaUsage{OutputTokens: s.outputTokens},
	}))
	frames = append(frames, eventFrame(anthropic.EventMessageStop, anthropic.MessageStopPayload{Type: "message_stop"}))
	frames = append(frames, doneFrame())

	return frames
}

// Finalize implements spec.md §4.3.4: the upstream sequence ended without
// ever reporting a finish_reason. No accumulated-text flush happens on this
// path, matching the spec's explicit carve-out.
func (s *StreamState) Finalize() []Frame {
	if s.terminated {
		return nil
	}
	s.terminated = true

	var frames []Frame
	for i := 1; i <= s.lastToolIndex; i++ {
		frames = append(frames, s.stopBlock(i))
	}
	if !s.textBlockClosed {
		frames = append(frames, s.stopBlock(0))
		s.textBlockClosed = true
	}

	stopReason := anthropic.StopEndTurn
	frames = append(frames, eventFrame(anthropic.EventMessageDelta, anthropic.MessageDeltaPayload{
		Type: "message_delta",
		Delta: anthropic.MessageDeltaFields{
			StopReason:   &stopReason,
			StopSequence: nil,
		},
		Usage: anthropic.MessageDeltaUsage{OutputTokens: s.outputTokens},
	}))
	frames = append(frames, eventFrame(anthropic.EventMessageStop, anthropic.MessageStopPayload{Type: "message_stop"}))
	frames = append(frames, doneFrame())
	return frames
}

// Fail implements spec.md §4.3.5: any failure mid-stream (upstream generator
// error, translation step failure) is logged and converted into the same
// terminal shape with stop_reason "error", never re-raised.
func (s *StreamState) Fail(err error) []Frame {
	if s.terminated {
		return nil
	}
	s.terminated = true
	s.logger.Error("streaming translation failed", "error", err)

	errorStopReason := "error"
	return []Frame{
		eventFrame(anthropic.EventMessageDelta, anthropic.MessageDeltaPayload{
			Type: "message_delta",
			Delta: anthropic.MessageDeltaFields{
				StopReason:   &errorStopReason,
				StopSequence: nil,
			},
			Usage: anthropic.MessageDeltaUsage{OutputTokens: 0},
		}),
		eventFrame(anthropic.EventMessageStop, anthropic.MessageStopPayload{Type: "message_stop"}),
		doneFrame(),
	}
}
