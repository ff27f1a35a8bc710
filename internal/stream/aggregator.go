package stream

import (
	"strings"

	"pplx-bridge/internal/models"
)

// Aggregator folds a sequence of events into one Answer. It is a
// single-pass fold: no lookahead, no state beyond the running accumulators.
// Not safe for concurrent use; each request owns its own Aggregator.
type Aggregator struct {
	text     strings.Builder
	cites    []models.Citation
	seenURLs map[string]struct{}
	related  []string
}

// NewAggregator returns an empty accumulator.
func NewAggregator() *Aggregator {
	return &Aggregator{seenURLs: make(map[string]struct{})}
}

// Apply folds one event into the accumulator and returns the answer text it
// contributed, if any. Unrecognized payload shapes contribute nothing.
func (a *Aggregator) Apply(ev Event) string {
	switch shape := classify(ev.Data); shape.kind {
	case shapeBlocks, shapeChunks, shapeText:
		a.text.WriteString(shape.text)
		return shape.text
	case shapeCitations:
		a.addCitations(shape.citations)
	case shapeRelated:
		// The upstream re-sends the full list each time; last write wins.
		a.related = shape.related
	}
	return ""
}

// Answer snapshots the accumulated state. The citation list never shrinks
// across calls.
func (a *Aggregator) Answer() models.Answer {
	cites := make([]models.Citation, len(a.cites))
	copy(cites, a.cites)

	related := make([]string, len(a.related))
	copy(related, a.related)

	return models.Answer{
		Text:           a.text.String(),
		Citations:      cites,
		RelatedQueries: related,
	}
}

func (a *Aggregator) addCitations(cites []models.Citation) {
	for _, c := range cites {
		if c.URL == "" {
			continue
		}
		if _, dup := a.seenURLs[c.URL]; dup {
			continue
		}
		a.seenURLs[c.URL] = struct{}{}
		a.cites = append(a.cites, c)
	}
}
