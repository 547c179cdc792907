package openai

import (
	"encoding/json"
	"testing"

	openaiClient "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlasassist/llm"
)

func TestPostsToChatCompletionMessages(t *testing.T) {
	posts := []llm.Post{
		{Role: llm.PostRoleSystem, Message: "You are a project assistant."},
		{Role: llm.PostRoleUser, Message: "status of DEMO-1?"},
		{
			Role:    llm.PostRoleBot,
			Message: "Let me check.",
			ToolUse: []llm.ToolCall{{
				ID:        "call-1",
				Name:      "get_ticket_status",
				Arguments: json.RawMessage(`{"issue_key":"DEMO-1"}`),
				Result:    `{"key":"DEMO-1","status":"Done"}`,
				Status:    llm.ToolCallStatusSuccess,
			}},
		},
	}

	messages := postsToChatCompletionMessages(posts)
	require.Len(t, messages, 4)

	assert.Equal(t, openaiClient.ChatMessageRoleSystem, messages[0].Role)
	assert.Equal(t, openaiClient.ChatMessageRoleUser, messages[1].Role)

	assert.Equal(t, openaiClient.ChatMessageRoleAssistant, messages[2].Role)
	require.Len(t, messages[2].ToolCalls, 1)
	assert.Equal(t, "call-1", messages[2].ToolCalls[0].ID)
	assert.Equal(t, "get_ticket_status", messages[2].ToolCalls[0].Function.Name)
	assert.Equal(t, `{"issue_key":"DEMO-1"}`, messages[2].ToolCalls[0].Function.Arguments)

	assert.Equal(t, openaiClient.ChatMessageRoleTool, messages[3].Role)
	assert.Equal(t, "call-1", messages[3].ToolCallID)
	assert.Equal(t, `{"key":"DEMO-1","status":"Done"}`, messages[3].Content)
}

func TestToolsToOpenAITools(t *testing.T) {
	type args struct {
		IssueKey string `json:"issue_key" jsonschema_description:"The issue key."`
	}

	tools := toolsToOpenAITools([]llm.Tool{{
		Name:        "get_ticket_status",
		Description: "Gets the status of a ticket.",
		Schema:      llm.NewJSONSchemaFromStruct(args{}),
	}})

	require.Len(t, tools, 1)
	assert.Equal(t, openaiClient.ToolTypeFunction, tools[0].Type)
	require.NotNil(t, tools[0].Function)
	assert.Equal(t, "get_ticket_status", tools[0].Function.Name)
	assert.Equal(t, "Gets the status of a ticket.", tools[0].Function.Description)
}

func TestCountTokensAndLimit(t *testing.T) {
	s := New(Config{DefaultModel: "gpt-4o-mini", InputTokenLimit: 1000}, nil, nil)
	assert.Equal(t, 1000, s.InputTokenLimit())
	assert.Greater(t, s.CountTokens("a longer sentence to count some tokens"), 0)
}
