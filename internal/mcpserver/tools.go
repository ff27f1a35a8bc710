package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"pplx-bridge/internal/catalog"
	"pplx-bridge/internal/config"
	"pplx-bridge/internal/models"
	"pplx-bridge/internal/research"
	"pplx-bridge/internal/service"
	"pplx-bridge/internal/upstream"
)

// completer runs one query to completion. Satisfied by *service.Service.
type completer interface {
	Complete(ctx context.Context, req service.Request) (models.Answer, models.Model, error)
}

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// askResult is the JSON payload returned by the dict-shaped tools.
type askResult struct {
	Text           string            `json:"text"`
	Citations      []models.Citation `json:"citations"`
	RelatedQueries []string          `json:"related_queries"`
}

func registerTools(s *server.MCPServer, svc completer, defaults config.DefaultsConfig) {
	s.AddTool(mcp.NewTool(
		"perplexity_ask",
		mcp.WithDescription("Search the web using Perplexity AI. Returns the answer text together with citations and related queries."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query to send to Perplexity")),
		mcp.WithString("mode",
			mcp.Description("Search mode: 'copilot' for comprehensive answers, 'concise' for quick results")),
		mcp.WithString("model_preference",
			mcp.Description(fmt.Sprintf("Model to answer with (default: %s)", defaults.Model))),
		mcp.WithString("search_focus",
			mcp.Description("Focus area: 'internet' for web, 'academic' for scholarly sources")),
	), newAskHandler(svc))

	s.AddTool(mcp.NewTool(
		"perplexity_quick_search",
		mcp.WithDescription("Quick web search using Perplexity AI. Returns just the answer text."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query")),
		mcp.WithString("model_preference",
			mcp.Description("Model to answer with")),
	), newQuickSearchHandler(svc))

	s.AddTool(mcp.NewTool(
		"perplexity_academic_search",
		mcp.WithDescription("Search academic sources using Perplexity AI. Answers are grounded in scholarly material."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The topic to research")),
		mcp.WithString("model_preference",
			mcp.Description("Model to answer with")),
	), newAcademicSearchHandler(svc))

	s.AddTool(mcp.NewTool(
		"perplexity_comprehensive_search",
		mcp.WithDescription("Search both web and academic sources using Perplexity AI for a combined answer."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query")),
		mcp.WithString("model_preference",
			mcp.Description("Model to answer with")),
	), newComprehensiveSearchHandler(svc))

	s.AddTool(mcp.NewTool(
		"perplexity_research",
		mcp.WithDescription("Research a programming topic using category-specific prompts. Best for API docs, library guides, implementation patterns, debugging and comparisons."),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("The programming topic to research")),
		mcp.WithString("category",
			mcp.Description("Research category: 'api', 'library', 'implementation', 'debugging', 'comparison' or 'general' (default)")),
		mcp.WithString("model_preference",
			mcp.Description("Model to answer with")),
	), newResearchHandler(svc))

	s.AddTool(mcp.NewTool(
		"perplexity_general_research",
		mcp.WithDescription("Research a topic with an academic-style prompt. Best for non-programming topics needing definitions, principles and credible sources."),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("The topic to research")),
		mcp.WithString("category",
			mcp.Description("Free-text context for the topic (e.g. 'machine learning', 'physics')")),
		mcp.WithString("model_preference",
			mcp.Description("Model to answer with")),
	), newGeneralResearchHandler(svc))
}

func newAskHandler(svc completer) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, query, errResult := requireStringArg(request, "query")
		if errResult != nil {
			return errResult, nil
		}

		mode, _ := args["mode"].(string)
		model, _ := args["model_preference"].(string)
		focus, _ := args["search_focus"].(string)

		return callAsResult(ctx, svc, service.Request{
			Prompt:      query,
			Model:       model,
			Mode:        mode,
			SearchFocus: focus,
		})
	}
}

func newQuickSearchHandler(svc completer) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, query, errResult := requireStringArg(request, "query")
		if errResult != nil {
			return errResult, nil
		}
		model, _ := args["model_preference"].(string)

		answer, _, err := svc.Complete(ctx, service.Request{Prompt: query, Model: model})
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(answer.Text), nil
	}
}

func newAcademicSearchHandler(svc completer) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, query, errResult := requireStringArg(request, "query")
		if errResult != nil {
			return errResult, nil
		}
		model, _ := args["model_preference"].(string)

		return callAsResult(ctx, svc, service.Request{
			Prompt:      query,
			Model:       model,
			SearchFocus: "academic",
			Sources:     []string{"scholar"},
		})
	}
}

func newComprehensiveSearchHandler(svc completer) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, query, errResult := requireStringArg(request, "query")
		if errResult != nil {
			return errResult, nil
		}
		model, _ := args["model_preference"].(string)

		return callAsResult(ctx, svc, service.Request{
			Prompt:  query,
			Model:   model,
			Sources: []string{"web", "scholar"},
		})
	}
}

func newResearchHandler(svc completer) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, topic, errResult := requireStringArg(request, "topic")
		if errResult != nil {
			return errResult, nil
		}
		category, _ := args["category"].(string)
		model, _ := args["model_preference"].(string)

		return callAsResult(ctx, svc, service.Request{
			Prompt:  research.Prompt(topic, category),
			Model:   model,
			Sources: []string{"web", "scholar"},
		})
	}
}

func newGeneralResearchHandler(svc completer) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, topic, errResult := requireStringArg(request, "topic")
		if errResult != nil {
			return errResult, nil
		}
		category, _ := args["category"].(string)
		model, _ := args["model_preference"].(string)

		return callAsResult(ctx, svc, service.Request{
			Prompt:  research.GeneralPrompt(topic, category),
			Model:   model,
			Sources: []string{"web", "scholar"},
		})
	}
}

func requireStringArg(request mcp.CallToolRequest, name string) (map[string]any, string, *mcp.CallToolResult) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, "", mcp.NewToolResultError("invalid arguments format")
	}
	value, ok := args[name].(string)
	if !ok || value == "" {
		return nil, "", mcp.NewToolResultError(name + " parameter is required")
	}
	return args, value, nil
}

func callAsResult(ctx context.Context, svc completer, req service.Request) (*mcp.CallToolResult, error) {
	answer, _, err := svc.Complete(ctx, req)
	if err != nil {
		return toolError(err)
	}

	result := askResult{
		Text:           answer.Text,
		Citations:      answer.Citations,
		RelatedQueries: answer.RelatedQueries,
	}
	if result.Citations == nil {
		result.Citations = []models.Citation{}
	}
	if result.RelatedQueries == nil {
		result.RelatedQueries = []string{}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError reports upstream failures as tool errors so MCP clients see a
// readable message instead of a protocol-level fault.
func toolError(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, upstream.ErrAuthentication),
		errors.Is(err, upstream.ErrUnavailable),
		errors.Is(err, upstream.ErrTimeout),
		errors.Is(err, catalog.ErrUnknownModel):
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}
