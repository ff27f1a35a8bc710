package models

// Query captures a single upstream search request. Immutable once built;
// one Query produces exactly one Answer.
type Query struct {
	Text        string
	Mode        string
	Model       string
	SearchFocus string
	Sources     []string
	Incognito   bool
}

// Citation is a source reference extracted from the upstream stream.
type Citation struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Answer is the accumulated result of one upstream stream: running text,
// citations in first-seen order without duplicates, and the latest
// related-query list the upstream sent.
type Answer struct {
	Text           string
	Citations      []Citation
	RelatedQueries []string
}

// Model describes one entry of the static model mapping: the OpenAI-style
// name clients use and the upstream settings it resolves to.
type Model struct {
	ID          string
	Upstream    string
	Mode        string
	SearchFocus string
	Sources     []string
	Description string
}
