package assistant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlasassist/config"
	"atlasassist/llm"
	"atlasassist/logging"
	"atlasassist/mcp"
	"atlasassist/metrics"
)

// scriptedModel plays back a fixed sequence of completion streams.
type scriptedModel struct {
	t       *testing.T
	streams []*llm.TextStreamResult
	calls   int
}

func modelWithT(t *testing.T, streams ...*llm.TextStreamResult) *scriptedModel {
	return &scriptedModel{t: t, streams: streams}
}

func (m *scriptedModel) ChatCompletion(request llm.CompletionRequest, opts ...llm.LanguageModelOption) (*llm.TextStreamResult, error) {
	require.Less(m.t, m.calls, len(m.streams), "model called more times than scripted")
	stream := m.streams[m.calls]
	m.calls++
	return stream, nil
}

func (m *scriptedModel) ChatCompletionNoStream(request llm.CompletionRequest, opts ...llm.LanguageModelOption) (string, error) {
	stream, err := m.ChatCompletion(request, opts...)
	if err != nil {
		return "", err
	}
	return stream.ReadAll()
}

func (m *scriptedModel) CountTokens(text string) int { return len(text) / 4 }
func (m *scriptedModel) InputTokenLimit() int        { return 100000 }

func streamOf(events ...llm.TextStreamEvent) *llm.TextStreamResult {
	stream := make(chan llm.TextStreamEvent, len(events))
	for _, event := range events {
		stream <- event
	}
	close(stream)
	return &llm.TextStreamResult{Stream: stream}
}

func textEvent(text string) llm.TextStreamEvent {
	return llm.TextStreamEvent{Type: llm.EventTypeText, Value: text}
}

func endEvent() llm.TextStreamEvent {
	return llm.TextStreamEvent{Type: llm.EventTypeEnd}
}

func toolCallsEvent(calls []llm.ToolCall) llm.TextStreamEvent {
	return llm.TextStreamEvent{Type: llm.EventTypeToolCalls, Value: calls}
}

func newTestAssistant(t *testing.T, model llm.LanguageModel) *Assistant {
	t.Helper()

	log := logging.NewDefault()
	container := &config.Container{}
	container.Update(&config.Config{
		Service:       llm.ServiceConfig{Name: "test", Type: llm.ServiceTypeOpenAI, APIKey: "key"},
		AssistantName: "Atlas",
	})

	clientManager := mcp.NewClientManager(mcp.Config{Enabled: false}, log)
	t.Cleanup(clientManager.Close)

	a, err := New(container, clientManager, metrics.NewNoopMetrics(), log)
	require.NoError(t, err)
	a.llmFactory = func() llm.LanguageModel { return model }

	return a
}

func TestProcessMessagePlainAnswer(t *testing.T) {
	model := modelWithT(t, streamOf(textEvent("Hello "), textEvent("there."), endEvent()))
	a := newTestAssistant(t, model)

	response, err := a.ProcessMessage("", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", response.Message)
	assert.NotEmpty(t, response.SessionID)
	assert.Empty(t, response.ToolCalls)
}

func TestProcessMessageKeepsSessionHistory(t *testing.T) {
	model := modelWithT(t,
		streamOf(textEvent("first answer"), endEvent()),
		streamOf(textEvent("second answer"), endEvent()),
	)
	a := newTestAssistant(t, model)

	first, err := a.ProcessMessage("", "hello")
	require.NoError(t, err)

	second, err := a.ProcessMessage(first.SessionID, "and again")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	session, ok := a.sessions.Get(first.SessionID)
	require.True(t, ok)
	require.Len(t, session.Posts, 4)
	assert.Equal(t, llm.PostRoleUser, session.Posts[0].Role)
	assert.Equal(t, "first answer", session.Posts[1].Message)
	assert.Equal(t, "and again", session.Posts[2].Message)
	assert.Equal(t, llm.PostRoleBot, session.Posts[3].Role)
}

func TestProcessMessageResolvesToolCalls(t *testing.T) {
	pending := []llm.ToolCall{{
		ID:        "call-1",
		Name:      "get_ticket_status",
		Arguments: json.RawMessage(`{"issue_key":"DEMO-1"}`),
		Status:    llm.ToolCallStatusPending,
	}}

	model := modelWithT(t,
		streamOf(toolCallsEvent(pending)),
		streamOf(textEvent("DEMO-1 is Done."), endEvent()),
	)
	a := newTestAssistant(t, model)

	response, err := a.ProcessMessage("", "what is the status of DEMO-1?")
	require.NoError(t, err)
	assert.Equal(t, "DEMO-1 is Done.", response.Message)

	// No MCP servers are connected, so the call resolves as a failure and
	// the conversation still completes.
	require.Len(t, response.ToolCalls, 1)
	assert.Equal(t, "get_ticket_status", response.ToolCalls[0].Name)
	assert.Equal(t, llm.ToolCallStatusError, response.ToolCalls[0].Status)
	assert.Equal(t, "Tool call failed", response.ToolCalls[0].Result)

	assert.Equal(t, 2, model.calls)
}

func TestProcessMessageToolIterationLimit(t *testing.T) {
	streams := make([]*llm.TextStreamResult, 0, MaxToolIterations+1)
	for i := 0; i <= MaxToolIterations; i++ {
		streams = append(streams, streamOf(toolCallsEvent([]llm.ToolCall{{
			ID:        "call",
			Name:      "get_ticket_status",
			Arguments: json.RawMessage(`{}`),
			Status:    llm.ToolCallStatusPending,
		}})))
	}

	model := modelWithT(t, streams...)
	a := newTestAssistant(t, model)

	response, err := a.ProcessMessage("", "loop forever")
	require.NoError(t, err)
	assert.Equal(t, MaxToolIterations+1, model.calls)
	assert.Len(t, response.ToolCalls, MaxToolIterations)
}

func TestProcessMessageUnknownServiceType(t *testing.T) {
	a := newTestAssistant(t, nil)
	a.llmFactory = a.GetLLM

	broken := a.configContainer.Config().Clone()
	broken.Service.Type = "foo"
	a.configContainer.Update(broken)

	_, err := a.ProcessMessage("", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no language model available")
}

func TestConsumeStream(t *testing.T) {
	t.Run("text then end", func(t *testing.T) {
		text, toolCalls, err := consumeStream(streamOf(textEvent("a"), textEvent("b"), endEvent()))
		require.NoError(t, err)
		assert.Equal(t, "ab", text)
		assert.Nil(t, toolCalls)
	})

	t.Run("tool calls interrupt the stream", func(t *testing.T) {
		calls := []llm.ToolCall{{Name: "create_ticket"}}
		text, toolCalls, err := consumeStream(streamOf(textEvent("thinking"), toolCallsEvent(calls)))
		require.NoError(t, err)
		assert.Equal(t, "thinking", text)
		require.Len(t, toolCalls, 1)
		assert.Equal(t, "create_ticket", toolCalls[0].Name)
	})

	t.Run("error event", func(t *testing.T) {
		_, _, err := consumeStream(streamOf(llm.TextStreamEvent{Type: llm.EventTypeError, Value: assert.AnError}))
		require.Error(t, err)
	})

	t.Run("closed without end", func(t *testing.T) {
		text, toolCalls, err := consumeStream(streamOf(textEvent("partial")))
		require.NoError(t, err)
		assert.Equal(t, "partial", text)
		assert.Nil(t, toolCalls)
	})
}
