package translator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pplx-bridge/internal/models"
)

func TestChatCompletionRequestUnmarshal(t *testing.T) {
	t.Parallel()

	t.Run("accepts a minimal request", func(t *testing.T) {
		var req ChatCompletionRequest
		err := json.Unmarshal([]byte(`{
			"model": "gpt-5.2",
			"messages": [{"role": "user", "content": "hello"}]
		}`), &req)
		require.NoError(t, err)
		assert.Equal(t, "gpt-5.2", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)
	})

	t.Run("ignores sampling parameters", func(t *testing.T) {
		var req ChatCompletionRequest
		err := json.Unmarshal([]byte(`{
			"model": "gpt-5.2",
			"messages": [{"role": "user", "content": "hello"}],
			"temperature": 0.2,
			"max_tokens": 100,
			"stream": true
		}`), &req)
		require.NoError(t, err)
		assert.True(t, req.Stream)
	})

	t.Run("rejects missing model", func(t *testing.T) {
		var req ChatCompletionRequest
		err := json.Unmarshal([]byte(`{"messages": [{"role": "user", "content": "hi"}]}`), &req)
		assert.ErrorIs(t, err, errEmptyModel)
	})

	t.Run("rejects empty messages", func(t *testing.T) {
		var req ChatCompletionRequest
		err := json.Unmarshal([]byte(`{"model": "gpt-5.2", "messages": []}`), &req)
		assert.ErrorIs(t, err, errEmptyMessages)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		var req ChatCompletionRequest
		err := json.Unmarshal([]byte(`{
			"model": "gpt-5.2",
			"messages": [{"role": "tool", "content": "hi"}]
		}`), &req)
		assert.ErrorIs(t, err, errInvalidRole)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		var req ChatCompletionRequest
		err := json.Unmarshal([]byte(`{
			"model": "gpt-5.2",
			"messages": [{"role": "user", "content": "  "}]
		}`), &req)
		assert.ErrorIs(t, err, errInvalidContent)
	})

	t.Run("joins segmented content", func(t *testing.T) {
		var req ChatCompletionRequest
		err := json.Unmarshal([]byte(`{
			"model": "gpt-5.2",
			"messages": [{"role": "user", "content": [
				{"type": "text", "text": "part one "},
				{"type": "text", "text": "part two"}
			]}]
		}`), &req)
		require.NoError(t, err)
		assert.Equal(t, "part one part two", req.Messages[0].Content)
	})

	t.Run("rejects non-text segments", func(t *testing.T) {
		var req ChatCompletionRequest
		err := json.Unmarshal([]byte(`{
			"model": "gpt-5.2",
			"messages": [{"role": "user", "content": [{"type": "image_url", "image_url": {}}]}]
		}`), &req)
		assert.ErrorIs(t, err, errInvalidContent)
	})
}

func TestPrompt(t *testing.T) {
	t.Parallel()

	t.Run("single user message passes through", func(t *testing.T) {
		req := ChatCompletionRequest{Messages: []ChatMessage{
			{Role: "user", Content: "what is Go?"},
		}}
		assert.Equal(t, "what is Go?", req.Prompt())
	})

	t.Run("system message becomes context preamble", func(t *testing.T) {
		req := ChatCompletionRequest{Messages: []ChatMessage{
			{Role: "system", Content: "answer briefly"},
			{Role: "user", Content: "what is Go?"},
		}}
		assert.Equal(t, "[Context: answer briefly]\n\nwhat is Go?", req.Prompt())
	})

	t.Run("multi-turn history renders as transcript", func(t *testing.T) {
		req := ChatCompletionRequest{Messages: []ChatMessage{
			{Role: "user", Content: "what is Go?"},
			{Role: "assistant", Content: "a language"},
			{Role: "user", Content: "who made it?"},
		}}
		assert.Equal(t, "User: what is Go?\n\nAssistant: a language\n\nUser: who made it?", req.Prompt())
	})
}

func TestNewCompletionID(t *testing.T) {
	t.Parallel()

	id := NewCompletionID()
	assert.True(t, strings.HasPrefix(id, "chatcmpl-"))
	assert.Len(t, id, len("chatcmpl-")+24)
	assert.NotEqual(t, id, NewCompletionID())
}

func TestTrailer(t *testing.T) {
	t.Parallel()

	t.Run("empty answer has no trailer", func(t *testing.T) {
		assert.Empty(t, Trailer(models.Answer{Text: "hi"}))
	})

	t.Run("citations only", func(t *testing.T) {
		a := models.Answer{Citations: []models.Citation{
			{URL: "https://a"}, {URL: "https://b"},
		}}
		assert.Equal(t, "\n\nSources: https://a, https://b", Trailer(a))
	})

	t.Run("citations and related queries", func(t *testing.T) {
		a := models.Answer{
			Citations:      []models.Citation{{URL: "https://a"}},
			RelatedQueries: []string{"q1", "q2"},
		}
		assert.Equal(t, "\n\nSources: https://a\n\nRelated: q1, q2", Trailer(a))
	})
}

func TestNewResponse(t *testing.T) {
	t.Parallel()

	resp := NewResponse("gpt-5.2", models.Answer{
		Text:      "Hello",
		Citations: []models.Citation{{URL: "https://a"}},
	})

	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "gpt-5.2", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "Hello\n\nSources: https://a", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Zero(t, resp.Usage.TotalTokens)
}

func TestStreamFormatter(t *testing.T) {
	t.Parallel()

	f := NewStreamFormatter("gpt-5.2")

	role := f.Role()
	assert.Equal(t, "chat.completion.chunk", role.Object)
	assert.Equal(t, "assistant", role.Choices[0].Delta.Role)
	assert.Nil(t, role.Choices[0].FinishReason)

	content := f.Content("Hel")
	assert.Equal(t, role.ID, content.ID)
	assert.Equal(t, role.Created, content.Created)
	assert.Equal(t, "Hel", content.Choices[0].Delta.Content)

	final := f.Final()
	require.NotNil(t, final.Choices[0].FinishReason)
	assert.Equal(t, "stop", *final.Choices[0].FinishReason)
	assert.Empty(t, final.Choices[0].Delta.Content)
}

// Concatenating every streamed delta plus the trailer must equal the
// content field of the equivalent non-streaming response.
func TestStreamingMatchesNonStreaming(t *testing.T) {
	t.Parallel()

	answer := models.Answer{
		Text:           "Hello world",
		Citations:      []models.Citation{{URL: "https://a"}, {URL: "https://b"}},
		RelatedQueries: []string{"more?"},
	}

	var streamed strings.Builder
	for _, delta := range []string{"Hello", " world"} {
		streamed.WriteString(delta)
	}
	streamed.WriteString(Trailer(answer))

	resp := NewResponse("gpt-5.2", answer)
	assert.Equal(t, resp.Choices[0].Message.Content, streamed.String())
}

func TestNewModelList(t *testing.T) {
	t.Parallel()

	list := NewModelList([]models.Model{
		{ID: "gpt-5.2"},
		{ID: "claude-sonnet-4-5"},
	})
	assert.Equal(t, "list", list.Object)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "gpt-5.2", list.Data[0].ID)
	assert.Equal(t, "model", list.Data[0].Object)
	assert.Equal(t, "perplexity", list.Data[0].OwnedBy)
}
