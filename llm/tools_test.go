package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createTicketArgs struct {
	ProjectKey string `json:"project_key" jsonschema_description:"The project key of the ticket"`
	Summary    string `json:"summary" jsonschema_description:"The ticket summary"`
}

func TestNewJSONSchemaFromStruct(t *testing.T) {
	schema := NewJSONSchemaFromStruct(createTicketArgs{})

	require.NotNil(t, schema)
	require.NotNil(t, schema.Properties)
	assert.Equal(t, 2, schema.Properties.Len())

	projectKey, ok := schema.Properties.Get("project_key")
	require.True(t, ok)
	assert.Equal(t, "string", projectKey.Type)
	assert.Contains(t, schema.Required, "project_key")
	assert.Contains(t, schema.Required, "summary")
}

func TestToolStoreResolveTool(t *testing.T) {
	store := NewToolStore(nil, false)
	store.AddTools([]Tool{
		{
			Name:        "echo",
			Description: "echoes the input",
			Schema:      NewJSONSchemaFromStruct(createTicketArgs{}),
			Resolver: func(context *Context, argsGetter ToolArgumentGetter) (string, error) {
				var args createTicketArgs
				if err := argsGetter(&args); err != nil {
					return "", err
				}
				return args.ProjectKey + ": " + args.Summary, nil
			},
		},
	})

	llmContext := NewContext(WithTools(store))

	argsGetter := func(args any) error {
		return json.Unmarshal([]byte(`{"project_key": "DEMO", "summary": "a ticket"}`), args)
	}

	t.Run("resolves a known tool", func(t *testing.T) {
		result, err := store.ResolveTool("echo", argsGetter, llmContext)
		require.NoError(t, err)
		assert.Equal(t, "DEMO: a ticket", result)
	})

	t.Run("errors on an unknown tool", func(t *testing.T) {
		_, err := store.ResolveTool("missing", argsGetter, llmContext)
		require.Error(t, err)
	})

	t.Run("lists registered tools", func(t *testing.T) {
		tools := store.GetTools()
		require.Len(t, tools, 1)
		assert.Equal(t, "echo", tools[0].Name)
	})
}
