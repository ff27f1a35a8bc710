package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"pplx-bridge/internal/catalog"
	"pplx-bridge/internal/config"
	"pplx-bridge/internal/models"
	"pplx-bridge/internal/stream"
	"pplx-bridge/internal/upstream"
)

// EventStream is a single-pass sequence of decoded upstream events.
type EventStream interface {
	Next() (stream.Event, error)
	Close() error
}

type askFunc func(ctx context.Context, q models.Query) (EventStream, error)

// Request carries one query through the service. Model, Mode, SearchFocus
// and Sources are optional; catalog and configuration defaults fill them.
type Request struct {
	Prompt      string
	Model       string
	Mode        string
	SearchFocus string
	Sources     []string
	Incognito   bool
}

// Service resolves a model for each request, opens the upstream stream and
// aggregates it into an answer. It owns the stream lifecycle: the upstream
// connection is closed on every exit path.
type Service struct {
	ask      askFunc
	catalog  *catalog.Catalog
	defaults config.DefaultsConfig
}

// New constructs a service on top of the upstream client.
func New(client *upstream.Client, cat *catalog.Catalog, defaults config.DefaultsConfig) *Service {
	return &Service{
		ask: func(ctx context.Context, q models.Query) (EventStream, error) {
			return client.Ask(ctx, q)
		},
		catalog:  cat,
		defaults: defaults,
	}
}

// Complete runs the query and returns the fully aggregated answer together
// with the catalog entry the request resolved to.
func (s *Service) Complete(ctx context.Context, req Request) (models.Answer, models.Model, error) {
	return s.run(ctx, req, nil)
}

// Stream runs the query, calling emit for each text delta in arrival order.
// The aggregated answer is returned once the stream ends so the caller can
// append trailing material. A non-nil error from emit aborts the stream.
func (s *Service) Stream(ctx context.Context, req Request, emit func(delta string) error) (models.Answer, models.Model, error) {
	return s.run(ctx, req, emit)
}

func (s *Service) run(ctx context.Context, req Request, emit func(string) error) (models.Answer, models.Model, error) {
	entry, err := s.resolve(req.Model)
	if err != nil {
		return models.Answer{}, models.Model{}, err
	}

	sources := req.Sources
	if len(sources) == 0 {
		sources = entry.Sources
	}

	q := models.Query{
		Text:        req.Prompt,
		Mode:        firstNonEmpty(req.Mode, entry.Mode, s.defaults.Mode),
		Model:       entry.Upstream,
		SearchFocus: firstNonEmpty(req.SearchFocus, entry.SearchFocus, s.defaults.SearchFocus),
		Sources:     sources,
		Incognito:   req.Incognito,
	}

	st, err := s.ask(ctx, q)
	if err != nil {
		return models.Answer{}, entry, err
	}
	defer st.Close()

	agg := stream.NewAggregator()
	for {
		ev, err := st.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return models.Answer{}, entry, ctx.Err()
			}
			return models.Answer{}, entry, err
		}

		if delta := agg.Apply(ev); delta != "" && emit != nil {
			if err := emit(delta); err != nil {
				return models.Answer{}, entry, fmt.Errorf("emit delta: %w", err)
			}
		}
		if ev.Terminal() {
			break
		}
	}

	return agg.Answer(), entry, nil
}

func (s *Service) resolve(modelID string) (models.Model, error) {
	if modelID == "" {
		return s.catalog.Default(), nil
	}
	return s.catalog.Resolve(modelID)
}

// Models lists the catalog entries in registration order.
func (s *Service) Models() []models.Model {
	return s.catalog.List()
}

// Healthy reports readiness. The upstream session cannot be probed without
// spending a query, so this only confirms the service is wired.
func (s *Service) Healthy() bool {
	return s.ask != nil && s.catalog != nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ EventStream = (*upstream.Stream)(nil)
