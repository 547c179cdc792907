// Package llm provides a unified abstraction layer for Large Language Model
// interactions within the assistant.
//
// This package defines the core interfaces and data structures for working with
// LLM providers (OpenAI, Anthropic, and compatible services) in a consistent
// manner. It handles:
//
//   - LanguageModel interface abstraction for different LLM providers
//   - Conversation management with structured posts and roles
//   - Prompt template system with embedded templates and variable substitution
//   - Streaming text responses for real-time chat interactions
//   - Tool/function calling capabilities with JSON schema validation
//   - Request/response structures with token counting and truncation
//
// The package is designed to be provider-agnostic, allowing the assistant to
// work with multiple LLM services through a common interface while preserving
// provider-specific capabilities like JSON output and tool calling.
package llm

type LanguageModel interface {
	ChatCompletion(conversation CompletionRequest, opts ...LanguageModelOption) (*TextStreamResult, error)
	ChatCompletionNoStream(conversation CompletionRequest, opts ...LanguageModelOption) (string, error)

	CountTokens(text string) int
	InputTokenLimit() int
}

type LanguageModelConfig struct {
	Model              string
	MaxGeneratedTokens int
	JSONOutputFormat   any
}

type LanguageModelOption func(*LanguageModelConfig)

func WithModel(model string) LanguageModelOption {
	return func(cfg *LanguageModelConfig) {
		cfg.Model = model
	}
}
func WithMaxGeneratedTokens(maxGeneratedTokens int) LanguageModelOption {
	return func(cfg *LanguageModelConfig) {
		cfg.MaxGeneratedTokens = maxGeneratedTokens
	}
}
func WithJSONOutput(format any) LanguageModelOption {
	return func(cfg *LanguageModelConfig) {
		cfg.JSONOutputFormat = format
	}
}

type LanguageModelWrapper func(LanguageModel) LanguageModel
