package upstream

import (
	"net/http"

	"github.com/google/uuid"

	"pplx-bridge/internal/models"
)

// supportedBlockUseCases advertises the answer block types this client can
// consume. The upstream tailors its schematized stream to this list.
var supportedBlockUseCases = []string{
	"answer_modes",
	"media_items",
	"knowledge_cards",
	"inline_entity_cards",
	"place_widgets",
	"finance_widgets",
	"prediction_market_widgets",
	"sports_widgets",
	"flight_status_widgets",
	"news_widgets",
	"shopping_widgets",
	"jobs_widgets",
	"search_result_widgets",
	"inline_images",
	"inline_assets",
	"placeholder_cards",
	"diff_blocks",
	"inline_knowledge_cards",
	"entity_group_v2",
	"refinement_filters",
	"canvas_mode",
	"maps_preview",
	"answer_tabs",
	"price_comparison_widgets",
	"preserve_latex",
	"in_context_suggestions",
}

type askParams struct {
	Attachments              []string `json:"attachments"`
	Language                 string   `json:"language"`
	Timezone                 string   `json:"timezone"`
	SearchFocus              string   `json:"search_focus"`
	Sources                  []string `json:"sources"`
	SearchRecencyFilter      *string  `json:"search_recency_filter"`
	FrontendUUID             string   `json:"frontend_uuid"`
	Mode                     string   `json:"mode"`
	ModelPreference          string   `json:"model_preference"`
	IsRelatedQuery           bool     `json:"is_related_query"`
	IsSponsored              bool     `json:"is_sponsored"`
	FrontendContextUUID      string   `json:"frontend_context_uuid"`
	PromptSource             string   `json:"prompt_source"`
	QuerySource              string   `json:"query_source"`
	IsIncognito              bool     `json:"is_incognito"`
	TimeFromFirstType        float64  `json:"time_from_first_type"`
	LocalSearchEnabled       bool     `json:"local_search_enabled"`
	UseSchematizedAPI        bool     `json:"use_schematized_api"`
	SendBackTextInStreaming  bool     `json:"send_back_text_in_streaming_api"`
	SupportedBlockUseCases   []string `json:"supported_block_use_cases"`
	DSLQuery                 string   `json:"dsl_query"`
	SkipSearchEnabled        bool     `json:"skip_search_enabled"`
	Version                  string   `json:"version"`
}

type askPayload struct {
	Params   askParams `json:"params"`
	QueryStr string    `json:"query_str"`
}

func buildPayload(q models.Query) askPayload {
	sources := q.Sources
	if len(sources) == 0 {
		sources = []string{"web", "scholar"}
	}

	return askPayload{
		Params: askParams{
			Attachments:             []string{},
			Language:                "en-US",
			Timezone:                "Asia/Bangkok",
			SearchFocus:             q.SearchFocus,
			Sources:                 sources,
			FrontendUUID:            uuid.NewString(),
			Mode:                    q.Mode,
			ModelPreference:         q.Model,
			FrontendContextUUID:     uuid.NewString(),
			PromptSource:            "user",
			QuerySource:             "home",
			IsIncognito:             q.Incognito,
			TimeFromFirstType:       2000.0,
			UseSchematizedAPI:       true,
			SupportedBlockUseCases:  supportedBlockUseCases,
			DSLQuery:                q.Text,
			SkipSearchEnabled:       true,
			Version:                 "2.18",
		},
		QueryStr: q.Text,
	}
}

// browserHeaders replays the Edge-on-Windows fingerprint the captured
// session was issued against. Header names stay lowercase on purpose; the
// transport canonicalizes them on the wire.
func browserHeaders(req *http.Request, baseURL, requestID string) {
	req.Header.Set("accept", "text/event-stream")
	req.Header.Set("accept-language", "en-US,en;q=0.9")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("origin", baseURL)
	req.Header.Set("referer", baseURL+"/?")
	req.Header.Set("sec-ch-ua", `"Microsoft Edge";v="143", "Chromium";v="143", "Not A(Brand";v="24"`)
	req.Header.Set("sec-ch-ua-mobile", "?0")
	req.Header.Set("sec-ch-ua-platform", `"Windows"`)
	req.Header.Set("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("x-perplexity-request-reason", "perplexity-query-state-provider")
	req.Header.Set("x-request-id", requestID)
}
