package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pplx-bridge/internal/catalog"
	"pplx-bridge/internal/config"
	"pplx-bridge/internal/service"
	"pplx-bridge/internal/translator"
	"pplx-bridge/internal/upstream"
)

const answerStream = "event: answer\n" +
	"data: {\"text\":\"Hel\"}\n\n" +
	"event: answer\n" +
	"data: {\"text\":\"lo\"}\n\n" +
	"event: citations\n" +
	"data: {\"urls\":[\"https://a\"]}\n\n" +
	"event: done\n" +
	"data: {}\n\n"

func fakeUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func answerUpstream(t *testing.T) *httptest.Server {
	return fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, answerStream)
	})
}

func newTestServer(t *testing.T, upstreamURL, apiKey string, strict bool) *Server {
	t.Helper()

	cfg := config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8045, APIKey: apiKey},
		Upstream: config.UpstreamConfig{
			BaseURL:              upstreamURL,
			StreamTimeoutMinutes: 1,
			SessionToken:         "tok",
			CFClearance:          "cf",
			VisitorID:            "vid",
		},
		Defaults: config.DefaultsConfig{
			Model:       "claude-sonnet-4-5-thinking",
			Mode:        "copilot",
			SearchFocus: "internet",
		},
	}

	client, err := upstream.New(cfg.Upstream, nil)
	require.NoError(t, err)

	cat, err := catalog.New(cfg.Defaults.Model, strict)
	require.NoError(t, err)

	srv, err := New(cfg, service.New(client, cat, cfg.Defaults), nil)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	srv.app.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const chatBody = `{"model":"gpt-5.2","messages":[{"role":"user","content":"hello"}]}`

func TestChatCompletions(t *testing.T) {
	t.Parallel()

	t.Run("non-streaming answer with trailer", func(t *testing.T) {
		srv := newTestServer(t, answerUpstream(t).URL, "", false)

		rec := doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp translator.ChatCompletionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "chat.completion", resp.Object)
		assert.Equal(t, "gpt-5.2", resp.Model)
		require.Len(t, resp.Choices, 1)
		assert.Equal(t, "Hello\n\nSources: https://a", resp.Choices[0].Message.Content)
		assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		srv := newTestServer(t, answerUpstream(t).URL, "", false)

		rec := doJSON(t, srv, http.MethodPost, "/v1/chat/completions", "{not json", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request_error", decodeError(t, rec).Error.Type)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		srv := newTestServer(t, answerUpstream(t).URL, "", false)

		rec := doJSON(t, srv, http.MethodPost, "/v1/chat/completions", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown model under strict resolution", func(t *testing.T) {
		srv := newTestServer(t, answerUpstream(t).URL, "", true)

		body := `{"model":"no-such-model","messages":[{"role":"user","content":"hi"}]}`
		rec := doJSON(t, srv, http.MethodPost, "/v1/chat/completions", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "model_not_found", decodeError(t, rec).Error.Code)
	})

	t.Run("upstream auth rejection maps to 401", func(t *testing.T) {
		up := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "expired", http.StatusForbidden)
		})
		srv := newTestServer(t, up.URL, "", false)

		rec := doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "authentication_error", decodeError(t, rec).Error.Type)
	})

	t.Run("unreachable upstream maps to 502", func(t *testing.T) {
		up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		up.Close()
		srv := newTestServer(t, up.URL, "", false)

		rec := doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody, nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "upstream_error", decodeError(t, rec).Error.Type)
	})
}

func TestChatCompletionsStreaming(t *testing.T) {
	t.Parallel()

	t.Run("chunk sequence reconstructs the answer", func(t *testing.T) {
		srv := newTestServer(t, answerUpstream(t).URL, "", false)

		body := `{"model":"gpt-5.2","stream":true,"messages":[{"role":"user","content":"hello"}]}`
		rec := doJSON(t, srv, http.MethodPost, "/v1/chat/completions", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

		raw := rec.Body.String()
		assert.True(t, strings.HasSuffix(raw, "data: [DONE]\n\n"))

		var chunks []translator.ChatCompletionChunk
		for _, frame := range strings.Split(raw, "\n\n") {
			data, ok := strings.CutPrefix(frame, "data: ")
			if !ok || data == "[DONE]" {
				continue
			}
			var chunk translator.ChatCompletionChunk
			require.NoError(t, json.Unmarshal([]byte(data), &chunk))
			chunks = append(chunks, chunk)
		}
		require.GreaterOrEqual(t, len(chunks), 3)

		assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)

		var content strings.Builder
		for _, chunk := range chunks[1 : len(chunks)-1] {
			content.WriteString(chunk.Choices[0].Delta.Content)
		}
		assert.Equal(t, "Hello\n\nSources: https://a", content.String())

		last := chunks[len(chunks)-1]
		require.NotNil(t, last.Choices[0].FinishReason)
		assert.Equal(t, "stop", *last.Choices[0].FinishReason)

		for _, chunk := range chunks {
			assert.Equal(t, chunks[0].ID, chunk.ID)
			assert.Equal(t, "chat.completion.chunk", chunk.Object)
		}
	})

	t.Run("failure before any output is a JSON error", func(t *testing.T) {
		up := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		})
		srv := newTestServer(t, up.URL, "", false)

		body := `{"model":"gpt-5.2","stream":true,"messages":[{"role":"user","content":"hello"}]}`
		rec := doJSON(t, srv, http.MethodPost, "/v1/chat/completions", body, nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "upstream_error", decodeError(t, rec).Error.Type)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	t.Parallel()

	t.Run("missing key is rejected", func(t *testing.T) {
		srv := newTestServer(t, answerUpstream(t).URL, "secret", false)

		rec := doJSON(t, srv, http.MethodGet, "/v1/models", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "authentication_error", decodeError(t, rec).Error.Type)
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		srv := newTestServer(t, answerUpstream(t).URL, "secret", false)

		rec := doJSON(t, srv, http.MethodGet, "/v1/models", "", map[string]string{"X-API-Key": "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key passes", func(t *testing.T) {
		srv := newTestServer(t, answerUpstream(t).URL, "secret", false)

		rec := doJSON(t, srv, http.MethodGet, "/v1/models", "", map[string]string{"X-API-Key": "secret"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health skips auth", func(t *testing.T) {
		srv := newTestServer(t, answerUpstream(t).URL, "secret", false)

		rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestListModels(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, answerUpstream(t).URL, "", false)

	rec := doJSON(t, srv, http.MethodGet, "/v1/models", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list translator.ModelList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "list", list.Object)
	assert.NotEmpty(t, list.Data)

	ids := make(map[string]bool, len(list.Data))
	for _, m := range list.Data {
		ids[m.ID] = true
	}
	assert.True(t, ids["claude-sonnet-4-5-thinking"])
	assert.True(t, ids["gpt-5.2"])
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, answerUpstream(t).URL, "", false)

	rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
