package catalog

import "pplx-bridge/internal/models"

// builtinModels maps every OpenAI-style name the API accepts to its
// upstream model preference. Several aliases point at the same upstream
// model; legacy gpt-* names are kept so stock OpenAI clients work unchanged.
var builtinModels = []models.Model{
	// Perplexity native
	{ID: "sonar", Upstream: "experimental", Description: "Perplexity Sonar (experimental)"},
	{ID: "experimental", Upstream: "experimental", Description: "Perplexity Sonar (experimental)"},
	{ID: "pplx-alpha", Upstream: "pplx_alpha", Description: "Perplexity Alpha - faster responses"},
	{ID: "perplexity-alpha", Upstream: "pplx_alpha", Description: "Perplexity Alpha - faster responses"},

	// Claude
	{ID: "claude-4.5-sonnet", Upstream: "claude45sonnet", Description: "Claude 4.5 Sonnet"},
	{ID: "claude45sonnet", Upstream: "claude45sonnet", Description: "Claude 4.5 Sonnet"},
	{ID: "claude-sonnet-4-5-thinking", Upstream: "claude45sonnetthinking", Description: "Claude 4.5 Sonnet with Reasoning (recommended)"},
	{ID: "claude-4.5-sonnet-thinking", Upstream: "claude45sonnetthinking", Description: "Claude 4.5 Sonnet with Reasoning"},
	{ID: "claude45sonnetthinking", Upstream: "claude45sonnetthinking", Description: "Claude 4.5 Sonnet with Reasoning"},
	{ID: "claude-4.5-opus", Upstream: "claude45opus", Description: "Claude 4.5 Opus"},
	{ID: "claude45opus", Upstream: "claude45opus", Description: "Claude 4.5 Opus"},
	{ID: "claude-opus-4-5-thinking", Upstream: "claude45opusthinking", Description: "Claude 4.5 Opus with Reasoning"},
	{ID: "claude-4.5-opus-thinking", Upstream: "claude45opusthinking", Description: "Claude 4.5 Opus with Reasoning"},
	{ID: "claude45opusthinking", Upstream: "claude45opusthinking", Description: "Claude 4.5 Opus with Reasoning"},

	// Gemini
	{ID: "gemini-3-flash", Upstream: "gemini30flash", Description: "Gemini 3 Flash"},
	{ID: "gemini30flash", Upstream: "gemini30flash", Description: "Gemini 3 Flash"},
	{ID: "gemini-3-flash-thinking", Upstream: "gemini30flash_high", Description: "Gemini 3 Flash with Reasoning"},
	{ID: "gemini30flash_high", Upstream: "gemini30flash_high", Description: "Gemini 3 Flash with Reasoning"},
	{ID: "gemini-3-pro", Upstream: "gemini30pro", Description: "Gemini Pro with Reasoning"},
	{ID: "gemini30pro", Upstream: "gemini30pro", Description: "Gemini Pro with Reasoning"},

	// GPT
	{ID: "gpt-5.2", Upstream: "gpt52", Description: "GPT 5.2"},
	{ID: "gpt52", Upstream: "gpt52", Description: "GPT 5.2"},
	{ID: "gpt-5.2-thinking", Upstream: "gpt52_thinking", Description: "GPT 5.2 with Reasoning"},
	{ID: "gpt52_thinking", Upstream: "gpt52_thinking", Description: "GPT 5.2 with Reasoning"},
	{ID: "gpt-4", Upstream: "gpt52", Description: "GPT-4 compatibility (maps to GPT 5.2)"},
	{ID: "gpt-4o", Upstream: "gpt52", Description: "GPT-4o compatibility (maps to GPT 5.2)"},
	{ID: "gpt-4-turbo", Upstream: "gpt52", Description: "GPT-4 Turbo compatibility (maps to GPT 5.2)"},
	{ID: "gpt-3.5-turbo", Upstream: "pplx_alpha", Description: "GPT-3.5 compatibility (maps to Perplexity Alpha)"},

	// Grok
	{ID: "grok-4.1", Upstream: "grok41nonreasoning", Description: "Grok 4.1"},
	{ID: "grok41", Upstream: "grok41nonreasoning", Description: "Grok 4.1"},
	{ID: "grok41nonreasoning", Upstream: "grok41nonreasoning", Description: "Grok 4.1"},
	{ID: "grok-4.1-thinking", Upstream: "grok41reasoning", Description: "Grok 4.1 with Reasoning"},
	{ID: "grok41reasoning", Upstream: "grok41reasoning", Description: "Grok 4.1 with Reasoning"},

	// Kimi
	{ID: "kimi-k2", Upstream: "kimik2thinking", Description: "Kimi K2 Thinking"},
	{ID: "kimi-k2-thinking", Upstream: "kimik2thinking", Description: "Kimi K2 Thinking"},
	{ID: "kimik2thinking", Upstream: "kimik2thinking", Description: "Kimi K2 Thinking"},
}
