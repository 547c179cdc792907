// Package assistant implements the chat agent: it carries conversations
// with the configured language model and resolves the model's tool calls
// against the MCP servers.
package assistant

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"atlasassist/anthropic"
	"atlasassist/config"
	"atlasassist/llm"
	"atlasassist/logging"
	"atlasassist/mcp"
	"atlasassist/metrics"
	"atlasassist/openai"
)

// MaxToolIterations bounds how many rounds of tool calls a single user
// message may trigger before the conversation is returned as-is.
const MaxToolIterations = 5

// ChatResponse is the result of one user message exchange.
type ChatResponse struct {
	SessionID string         `json:"sessionId"`
	Message   string         `json:"message"`
	ToolCalls []llm.ToolCall `json:"toolCalls,omitempty"`
}

// Assistant wires the language model, the prompt templates, and the MCP
// tool clients together.
type Assistant struct {
	configContainer       *config.Container
	prompts               *llm.Prompts
	mcpClientManager      *mcp.ClientManager
	metricsService        metrics.Metrics
	llmUpstreamHTTPClient *http.Client
	sessions              *SessionStore
	log                   logging.Logger

	// llmFactory builds the model for each exchange. Overridable in tests.
	llmFactory func() llm.LanguageModel
}

func New(configContainer *config.Container, mcpClientManager *mcp.ClientManager, metricsService metrics.Metrics, log logging.Logger) (*Assistant, error) {
	prompts, err := llm.NewPrompts(llm.PromptsFolder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load prompt templates")
	}

	a := &Assistant{
		configContainer:       configContainer,
		prompts:               prompts,
		mcpClientManager:      mcpClientManager,
		metricsService:        metricsService,
		llmUpstreamHTTPClient: &http.Client{},
		sessions:              NewSessionStore(),
		log:                   log,
	}
	a.llmFactory = a.GetLLM

	return a, nil
}

// GetLLM builds the language model client for the configured service.
func (a *Assistant) GetLLM() llm.LanguageModel {
	cfg := a.configContainer.Config()
	llmMetrics := a.metricsService.GetMetricsForAIService(cfg.Service.Name)

	var result llm.LanguageModel
	switch cfg.Service.Type {
	case llm.ServiceTypeOpenAI:
		result = openai.New(config.OpenAIConfigFromServiceConfig(cfg.Service), a.llmUpstreamHTTPClient, llmMetrics)
	case llm.ServiceTypeOpenAICompatible:
		result = openai.NewCompatible(config.OpenAIConfigFromServiceConfig(cfg.Service), a.llmUpstreamHTTPClient, llmMetrics)
	case llm.ServiceTypeAzure:
		result = openai.NewAzure(config.OpenAIConfigFromServiceConfig(cfg.Service), a.llmUpstreamHTTPClient, llmMetrics)
	case llm.ServiceTypeAnthropic:
		result = anthropic.New(cfg.Service, a.llmUpstreamHTTPClient, llmMetrics)
	default:
		a.log.Error("Unknown LLM service type", "type", cfg.Service.Type)
		return nil
	}

	if cfg.EnableLLMTrace {
		result = llm.NewLanguageModelLogWrapper(a.log, result)
	}

	result = llm.NewLLMTruncationWrapper(result)

	return result
}

// ToolsForSession returns the MCP tools available to a session.
func (a *Assistant) ToolsForSession(sessionID string) ([]llm.Tool, error) {
	return a.mcpClientManager.GetToolsForSession(sessionID)
}

// ProcessMessage runs one exchange: it appends the user message to the
// session, requests a completion, resolves any tool calls the model
// makes, and repeats until the model answers with text.
func (a *Assistant) ProcessMessage(sessionID, message string) (*ChatResponse, error) {
	cfg := a.configContainer.Config()

	session := a.sessions.GetOrCreate(sessionID)
	session.mu.Lock()
	defer session.mu.Unlock()

	toolStore := llm.NewToolStore(a.log, cfg.EnableLLMTrace)
	tools, err := a.mcpClientManager.GetToolsForSession(session.ID)
	if err != nil {
		// Degrade to a plain conversation when the MCP servers are down.
		a.log.Error("Failed to get MCP tools, continuing without tools", "sessionID", session.ID, "error", err)
	} else {
		toolStore.AddTools(tools)
	}

	llmContext := llm.NewContext(
		llm.WithTools(toolStore),
		llm.WithSessionID(session.ID),
		llm.WithAssistantName(cfg.AssistantName),
		llm.WithCustomInstructions(cfg.CustomInstructions),
	)

	systemMessage, err := a.prompts.Format(llm.PromptChatSystem, llmContext)
	if err != nil {
		return nil, errors.Wrap(err, "failed to format system prompt")
	}

	session.Posts = append(session.Posts, llm.Post{
		Role:    llm.PostRoleUser,
		Message: message,
	})

	posts := make([]llm.Post, 0, len(session.Posts)+1)
	posts = append(posts, llm.Post{
		Role:    llm.PostRoleSystem,
		Message: systemMessage,
	})
	posts = append(posts, session.Posts...)

	model := a.llmFactory()
	if model == nil {
		return nil, errors.Errorf("no language model available for service type %q", cfg.Service.Type)
	}
	var allToolCalls []llm.ToolCall

	for iteration := 0; ; iteration++ {
		result, err := model.ChatCompletion(llm.CompletionRequest{
			Posts:   posts,
			Context: llmContext,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get chat completion")
		}

		text, pendingToolCalls, err := consumeStream(result)
		if err != nil {
			return nil, errors.Wrap(err, "streaming completion failed")
		}

		if len(pendingToolCalls) == 0 || iteration >= MaxToolIterations {
			botPost := llm.Post{
				Role:    llm.PostRoleBot,
				Message: text,
			}
			session.Posts = append(session.Posts, botPost)

			return &ChatResponse{
				SessionID: session.ID,
				Message:   text,
				ToolCalls: allToolCalls,
			}, nil
		}

		resolved := a.resolveToolCalls(llmContext, pendingToolCalls)
		allToolCalls = append(allToolCalls, resolved...)

		botPost := llm.Post{
			Role:    llm.PostRoleBot,
			Message: text,
			ToolUse: resolved,
		}
		session.Posts = append(session.Posts, botPost)
		posts = append(posts, botPost)
	}
}

// resolveToolCalls executes every tool call the model requested. Tools are
// resolved without user approval since the chat surface has a single
// trusted operator.
func (a *Assistant) resolveToolCalls(llmContext *llm.Context, toolCalls []llm.ToolCall) []llm.ToolCall {
	cfg := a.configContainer.Config()
	llmMetrics := a.metricsService.GetMetricsForAIService(cfg.Service.Name)

	for i := range toolCalls {
		llmMetrics.IncrementToolCalls(toolCalls[i].Name)

		arguments := toolCalls[i].Arguments
		result, err := llmContext.Tools.ResolveTool(toolCalls[i].Name, func(args any) error {
			return json.Unmarshal(arguments, args)
		}, llmContext)
		if err != nil {
			a.log.Error("Tool call failed", "tool", toolCalls[i].Name, "error", err)
			toolCalls[i].Result = "Tool call failed"
			toolCalls[i].Status = llm.ToolCallStatusError
			continue
		}
		toolCalls[i].Result = result
		toolCalls[i].Status = llm.ToolCallStatusSuccess
	}

	return toolCalls
}

// consumeStream drains a completion stream, returning the accumulated
// text and any pending tool calls the model finished with.
func consumeStream(result *llm.TextStreamResult) (string, []llm.ToolCall, error) {
	var text strings.Builder
	for event := range result.Stream {
		switch event.Type {
		case llm.EventTypeText:
			if chunk, ok := event.Value.(string); ok {
				text.WriteString(chunk)
			}
		case llm.EventTypeToolCalls:
			if toolCalls, ok := event.Value.([]llm.ToolCall); ok {
				return text.String(), toolCalls, nil
			}
		case llm.EventTypeError:
			if err, ok := event.Value.(error); ok {
				return "", nil, err
			}
			return "", nil, errors.New("unknown stream error")
		case llm.EventTypeEnd:
			return text.String(), nil, nil
		}
	}

	return text.String(), nil, nil
}
