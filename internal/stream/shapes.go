package stream

import (
	"strings"

	"pplx-bridge/internal/models"
)

// The upstream payloads are not self-describing, so recognition is purely
// structural: each matcher is tried in a fixed priority order and a total
// mismatch falls through to shapeUnrecognized. A missing key always means
// "not this shape", never an error.

type shapeKind int

const (
	shapeUnrecognized shapeKind = iota
	shapeBlocks
	shapeChunks
	shapeText
	shapeCitations
	shapeRelated
)

type shape struct {
	kind      shapeKind
	text      string
	citations []models.Citation
	related   []string
}

func classify(data map[string]any) shape {
	if text, ok := matchBlocks(data); ok {
		return shape{kind: shapeBlocks, text: text}
	}
	if text, ok := matchChunks(data); ok {
		return shape{kind: shapeChunks, text: text}
	}
	if text, ok := matchText(data); ok {
		return shape{kind: shapeText, text: text}
	}
	if cites, ok := matchCitations(data); ok {
		return shape{kind: shapeCitations, citations: cites}
	}
	if related, ok := matchRelated(data); ok {
		return shape{kind: shapeRelated, related: related}
	}
	return shape{kind: shapeUnrecognized}
}

// matchBlocks handles the schematized answer format: a list of blocks whose
// markdown diff blocks carry JSON Patch operations appending text chunks.
func matchBlocks(data map[string]any) (string, bool) {
	rawBlocks, ok := data["blocks"].([]any)
	if !ok {
		return "", false
	}

	var b strings.Builder
	matched := false
	for _, rawBlock := range rawBlocks {
		block, ok := rawBlock.(map[string]any)
		if !ok {
			continue
		}
		usage, _ := block["intended_usage"].(string)
		if !isMarkdownUsage(usage) {
			continue
		}
		diff, ok := block["diff_block"].(map[string]any)
		if !ok {
			continue
		}
		patches, ok := diff["patches"].([]any)
		if !ok {
			continue
		}
		matched = true
		for _, rawPatch := range patches {
			b.WriteString(patchText(rawPatch))
		}
	}
	if !matched {
		return "", false
	}
	return b.String(), true
}

// patchText extracts appended answer text from a single JSON Patch
// operation: an add into the chunks array, or the initial replace-at-root
// that seeds the chunk list.
func patchText(rawPatch any) string {
	patch, ok := rawPatch.(map[string]any)
	if !ok {
		return ""
	}
	op, _ := patch["op"].(string)
	path, _ := patch["path"].(string)

	switch {
	case op == "add" && strings.HasPrefix(path, "/chunks/"):
		text, _ := patch["value"].(string)
		return text
	case op == "replace" && path == "":
		initial, ok := patch["value"].(map[string]any)
		if !ok {
			return ""
		}
		chunks, ok := initial["chunks"].([]any)
		if !ok {
			return ""
		}
		var b strings.Builder
		for _, chunk := range chunks {
			if s, ok := chunk.(string); ok {
				b.WriteString(s)
			}
		}
		return b.String()
	}
	return ""
}

// isMarkdownUsage reports whether a block holds answer markdown:
// "ask_text_markdown" or "ask_text_<n>_markdown" for sectioned answers.
func isMarkdownUsage(usage string) bool {
	if usage == "ask_text_markdown" {
		return true
	}
	return strings.HasPrefix(usage, "ask_text_") && strings.HasSuffix(usage, "_markdown")
}

func matchChunks(data map[string]any) (string, bool) {
	chunks, ok := data["chunks"].([]any)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, chunk := range chunks {
		if s, ok := chunk.(string); ok {
			b.WriteString(s)
		}
	}
	return b.String(), true
}

func matchText(data map[string]any) (string, bool) {
	text, ok := data["text"].(string)
	return text, ok
}

func matchCitations(data map[string]any) ([]models.Citation, bool) {
	if urls, ok := data["urls"].([]any); ok {
		cites := make([]models.Citation, 0, len(urls))
		for _, raw := range urls {
			if url, ok := raw.(string); ok && url != "" {
				cites = append(cites, models.Citation{URL: url})
			}
		}
		return cites, true
	}

	rawCites, ok := data["citations"].([]any)
	if !ok {
		rawCites, ok = data["web_results"].([]any)
	}
	if !ok {
		return nil, false
	}

	cites := make([]models.Citation, 0, len(rawCites))
	for _, raw := range rawCites {
		switch v := raw.(type) {
		case string:
			if v != "" {
				cites = append(cites, models.Citation{URL: v})
			}
		case map[string]any:
			url, _ := v["url"].(string)
			if url == "" {
				continue
			}
			title, _ := v["title"].(string)
			if title == "" {
				title, _ = v["name"].(string)
			}
			snippet, _ := v["snippet"].(string)
			cites = append(cites, models.Citation{Title: title, URL: url, Snippet: snippet})
		}
	}
	return cites, true
}

func matchRelated(data map[string]any) ([]string, bool) {
	raw, ok := data["related_queries"].([]any)
	if !ok {
		return nil, false
	}
	related := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			related = append(related, s)
		}
	}
	return related, true
}
