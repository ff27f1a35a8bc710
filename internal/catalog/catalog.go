package catalog

import (
	"errors"
	"fmt"

	"pplx-bridge/internal/models"
)

// ErrUnknownModel indicates the requested model name is not in the mapping.
// Only surfaced when strict resolution is enabled.
var ErrUnknownModel = errors.New("unknown model")

// Catalog is the static mapping from OpenAI-style model names to upstream
// model settings. Built once at startup and read-only afterwards, so it is
// safe to share across requests without locking.
type Catalog struct {
	entries   map[string]models.Model
	order     []string
	defaultID string
	strict    bool
}

// New builds the catalog from the built-in model table. The default model
// must itself be a known name.
func New(defaultModel string, strict bool) (*Catalog, error) {
	c := &Catalog{
		entries:   make(map[string]models.Model, len(builtinModels)),
		order:     make([]string, 0, len(builtinModels)),
		defaultID: defaultModel,
		strict:    strict,
	}

	for _, entry := range builtinModels {
		if _, exists := c.entries[entry.ID]; exists {
			return nil, fmt.Errorf("model %q registered twice", entry.ID)
		}
		if entry.Mode == "" {
			entry.Mode = "copilot"
		}
		if entry.SearchFocus == "" {
			entry.SearchFocus = "internet"
		}
		if len(entry.Sources) == 0 {
			entry.Sources = []string{"web", "scholar"}
		}
		c.entries[entry.ID] = entry
		c.order = append(c.order, entry.ID)
	}

	if _, ok := c.entries[defaultModel]; !ok {
		return nil, fmt.Errorf("default model %q is not in the catalog", defaultModel)
	}
	return c, nil
}

// Resolve maps an OpenAI-style model name to its upstream settings. Unknown
// names resolve to the configured default model; with strict resolution
// they fail with ErrUnknownModel instead.
func (c *Catalog) Resolve(id string) (models.Model, error) {
	if entry, ok := c.entries[id]; ok {
		return entry, nil
	}
	if c.strict {
		return models.Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return c.entries[c.defaultID], nil
}

// Default returns the fallback model entry.
func (c *Catalog) Default() models.Model {
	return c.entries[c.defaultID]
}

// List returns all known models in registration order.
func (c *Catalog) List() []models.Model {
	out := make([]models.Model, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}
