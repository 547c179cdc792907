package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	countTokens := func(text string) int {
		return len(text) / 4
	}

	t.Run("no truncation needed", func(t *testing.T) {
		request := CompletionRequest{
			Posts: []Post{
				{Role: PostRoleUser, Message: strings.Repeat("a", 40)},
				{Role: PostRoleBot, Message: strings.Repeat("b", 40)},
			},
		}

		truncated := request.Truncate(100, countTokens)

		assert.False(t, truncated)
		require.Len(t, request.Posts, 2)
		assert.Equal(t, strings.Repeat("a", 40), request.Posts[0].Message)
		assert.Equal(t, strings.Repeat("b", 40), request.Posts[1].Message)
	})

	t.Run("oldest post is cut first", func(t *testing.T) {
		request := CompletionRequest{
			Posts: []Post{
				{Role: PostRoleUser, Message: strings.Repeat("a", 40)},
				{Role: PostRoleBot, Message: strings.Repeat("b", 40)},
			},
		}

		truncated := request.Truncate(15, countTokens)

		assert.True(t, truncated)
		require.Len(t, request.Posts, 2)
		// The newest post survives whole, the older one loses its head.
		assert.Equal(t, strings.Repeat("a", 20), request.Posts[0].Message)
		assert.Equal(t, strings.Repeat("b", 40), request.Posts[1].Message)
	})

	t.Run("posts beyond the budget are dropped", func(t *testing.T) {
		request := CompletionRequest{
			Posts: []Post{
				{Role: PostRoleUser, Message: strings.Repeat("a", 40)},
				{Role: PostRoleBot, Message: strings.Repeat("b", 40)},
				{Role: PostRoleUser, Message: strings.Repeat("c", 40)},
			},
		}

		truncated := request.Truncate(10, countTokens)

		assert.True(t, truncated)
		require.Len(t, request.Posts, 1)
		assert.Equal(t, strings.Repeat("c", 40), request.Posts[0].Message)
	})
}

func TestExtractSystemMessage(t *testing.T) {
	request := CompletionRequest{
		Posts: []Post{
			{Role: PostRoleSystem, Message: "system instructions"},
			{Role: PostRoleUser, Message: "hello"},
		},
	}
	assert.Equal(t, "system instructions", request.ExtractSystemMessage())

	empty := CompletionRequest{
		Posts: []Post{
			{Role: PostRoleUser, Message: "hello"},
		},
	}
	assert.Equal(t, "", empty.ExtractSystemMessage())
}
