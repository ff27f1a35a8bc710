package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pplx-bridge/internal/models"
)

var (
	errEmptyModel     = errors.New("model must be provided")
	errEmptyMessages  = errors.New("at least one message is required")
	errInvalidRole    = errors.New("invalid role")
	errInvalidContent = errors.New("invalid message content")
)

var allowedRoles = map[string]struct{}{
	"system":    {},
	"user":      {},
	"assistant": {},
}

// ChatCompletionRequest models the OpenAI chat/completions request payload.
// Sampling parameters are accepted for compatibility and ignored; the
// upstream offers no control over them.
type ChatCompletionRequest struct {
	Model    string
	Messages []ChatMessage
	Stream   bool
}

// UnmarshalJSON implements custom parsing to enforce validation.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Model            string        `json:"model"`
		Messages         []ChatMessage `json:"messages"`
		Stream           bool          `json:"stream"`
		MaxTokens        *int          `json:"max_tokens"`
		Temperature      *float64      `json:"temperature"`
		TopP             *float64      `json:"top_p"`
		FrequencyPenalty *float64      `json:"frequency_penalty"`
		PresencePenalty  *float64      `json:"presence_penalty"`
		User             string        `json:"user"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chat request: %w", err)
	}

	r.Model = strings.TrimSpace(raw.Model)
	r.Messages = raw.Messages
	r.Stream = raw.Stream

	return r.validate()
}

func (r *ChatCompletionRequest) validate() error {
	if r.Model == "" {
		return errEmptyModel
	}
	if len(r.Messages) == 0 {
		return errEmptyMessages
	}
	for i, msg := range r.Messages {
		if err := msg.validate(); err != nil {
			return fmt.Errorf("message[%d]: %w", i, err)
		}
	}
	return nil
}

// Prompt flattens the conversation into the single query string the
// upstream accepts. System messages become a context preamble; a lone user
// message passes through untouched; longer histories are rendered as a
// labelled transcript.
func (r ChatCompletionRequest) Prompt() string {
	var system []string
	var dialogue []ChatMessage
	for _, m := range r.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
		} else {
			dialogue = append(dialogue, m)
		}
	}

	var b strings.Builder
	if len(system) > 0 {
		b.WriteString("[Context: ")
		b.WriteString(strings.Join(system, " "))
		b.WriteString("]\n\n")
	}

	if len(dialogue) == 1 && dialogue[0].Role == "user" {
		b.WriteString(dialogue[0].Content)
		return b.String()
	}

	for i, m := range dialogue {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := "User"
		if m.Role == "assistant" {
			label = "Assistant"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// ChatMessage captures a single message within the chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// UnmarshalJSON supports string and array-of-text content formats.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
		Name    string          `json:"name"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	content, err := extractMessageContent(raw.Content)
	if err != nil {
		return err
	}

	m.Role = strings.TrimSpace(raw.Role)
	m.Content = content
	m.Name = strings.TrimSpace(raw.Name)

	return m.validate()
}

func (m *ChatMessage) validate() error {
	if _, ok := allowedRoles[m.Role]; !ok {
		return fmt.Errorf("%w: %s", errInvalidRole, m.Role)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: message content must not be empty", errInvalidContent)
	}
	return nil
}

func extractMessageContent(raw json.RawMessage) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("%w: missing content", errInvalidContent)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var segments []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err == nil {
		var builder strings.Builder
		for _, segment := range segments {
			if segment.Type != "text" {
				return "", fmt.Errorf("%w: segment type %q not supported", errInvalidContent, segment.Type)
			}
			builder.WriteString(segment.Text)
		}
		return builder.String(), nil
	}

	return "", fmt.Errorf("%w: unsupported content structure", errInvalidContent)
}

// NewCompletionID mints an identifier in the OpenAI chatcmpl format.
func NewCompletionID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "chatcmpl-" + hex[:24]
}

// Trailer renders the citations and related-query suffix appended after the
// answer text. Empty when the answer carries neither.
func Trailer(a models.Answer) string {
	var b strings.Builder
	if len(a.Citations) > 0 {
		urls := make([]string, 0, len(a.Citations))
		for _, c := range a.Citations {
			urls = append(urls, c.URL)
		}
		b.WriteString("\n\nSources: ")
		b.WriteString(strings.Join(urls, ", "))
	}
	if len(a.RelatedQueries) > 0 {
		b.WriteString("\n\nRelated: ")
		b.WriteString(strings.Join(a.RelatedQueries, ", "))
	}
	return b.String()
}

// ChatCompletionResponse models the OpenAI-compatible chat response.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   OpenAIUsage  `json:"usage"`
}

// ChatChoice represents a single choice in the response payload.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// OpenAIUsage mirrors the token usage block in OpenAI responses. The
// upstream reports no token counts, so every field stays zero.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewResponse assembles the non-streaming response for a finished answer.
func NewResponse(modelID string, a models.Answer) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:      NewCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   modelID,
		Choices: []ChatChoice{
			{
				Index: 0,
				Message: ChatMessage{
					Role:    "assistant",
					Content: a.Text + Trailer(a),
				},
				FinishReason: "stop",
			},
		},
	}
}

// ChatCompletionChunk models one streaming SSE frame body.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is the delta-bearing choice within a streaming frame.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta carries the incremental part of the assistant message.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamDone is the sentinel frame closing an OpenAI-style SSE stream.
const StreamDone = "data: [DONE]\n\n"

// StreamFormatter renders the chunk sequence for one streamed completion:
// a role-announcing chunk, one chunk per content delta, then a closing
// chunk carrying finish_reason. All frames share one id and timestamp.
type StreamFormatter struct {
	id      string
	model   string
	created int64
}

// NewStreamFormatter starts a formatter for one completion.
func NewStreamFormatter(modelID string) *StreamFormatter {
	return &StreamFormatter{
		id:      NewCompletionID(),
		model:   modelID,
		created: time.Now().Unix(),
	}
}

// Role returns the opening chunk that announces the assistant role.
func (f *StreamFormatter) Role() ChatCompletionChunk {
	return f.chunk(ChunkDelta{Role: "assistant"}, nil)
}

// Content returns a chunk carrying one content delta.
func (f *StreamFormatter) Content(delta string) ChatCompletionChunk {
	return f.chunk(ChunkDelta{Content: delta}, nil)
}

// Final returns the closing chunk with an empty delta and finish_reason.
func (f *StreamFormatter) Final() ChatCompletionChunk {
	reason := "stop"
	return f.chunk(ChunkDelta{}, &reason)
}

func (f *StreamFormatter) chunk(delta ChunkDelta, finish *string) ChatCompletionChunk {
	return ChatCompletionChunk{
		ID:      f.id,
		Object:  "chat.completion.chunk",
		Created: f.created,
		Model:   f.model,
		Choices: []ChunkChoice{
			{Index: 0, Delta: delta, FinishReason: finish},
		},
	}
}

// ModelList models the GET /v1/models response payload.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// NewModelList renders the catalog in OpenAI model-list form.
func NewModelList(entries []models.Model) ModelList {
	now := time.Now().Unix()
	data := make([]ModelInfo, 0, len(entries))
	for _, m := range entries {
		data = append(data, ModelInfo{
			ID:      m.ID,
			Object:  "model",
			Created: now,
			OwnedBy: "perplexity",
		})
	}
	return ModelList{Object: "list", Data: data}
}
