package llm

import (
	"fmt"
	"strings"
	"time"
)

// Context represents the data necessary to build the context of the LLM.
// For consumers none of the fields can be assumed to be present.
type Context struct {
	// Server
	Time          string
	AssistantName string

	// Session making the request
	SessionID string

	CustomInstructions string

	Tools      *ToolStore
	Parameters map[string]interface{}
}

// ContextOption defines a function that configures a Context
type ContextOption func(*Context)

// NewContext creates a new Context with the given options
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		Time: time.Now().UTC().Format(time.RFC1123),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func WithTools(tools *ToolStore) ContextOption {
	return func(c *Context) {
		c.Tools = tools
	}
}

func WithSessionID(sessionID string) ContextOption {
	return func(c *Context) {
		c.SessionID = sessionID
	}
}

func WithAssistantName(name string) ContextOption {
	return func(c *Context) {
		c.AssistantName = name
	}
}

func WithCustomInstructions(instructions string) ContextOption {
	return func(c *Context) {
		c.CustomInstructions = instructions
	}
}

func WithParameters(params map[string]interface{}) ContextOption {
	return func(c *Context) {
		c.Parameters = params
	}
}

func (c Context) String() string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Time: %v\nAssistantName: %v", c.Time, c.AssistantName))
	if c.SessionID != "" {
		result.WriteString(fmt.Sprintf("\nSessionID: %v", c.SessionID))
	}

	result.WriteString("\n--- Parameters ---\n")
	for key := range c.Parameters {
		result.WriteString(fmt.Sprintf(" %v", key))
	}

	if c.Tools != nil {
		result.WriteString("\n--- Tools ---\n")
		for _, tool := range c.Tools.GetTools() {
			result.WriteString(tool.Name)
			result.WriteString(" ")
		}
	}

	return result.String()
}
