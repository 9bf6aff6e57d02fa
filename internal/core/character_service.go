package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/characterverse/character-facade/internal/engine"
	"github.com/characterverse/character-facade/internal/query"
)

const unknownField = "Unknown"

// Engine runs statements against the knowledge-base and model backend.
// Implementations must be safe for concurrent use.
type Engine interface {
	Query(ctx context.Context, stmt query.Statement) (*engine.ResultSet, error)
}

// CharacterService turns character requests into engine queries and reshapes the rows.
// It holds no mutable state.
type CharacterService struct {
	engine Engine
	res    query.Resources
	log    zerolog.Logger
}

func NewCharacterService(e Engine, res query.Resources, logger zerolog.Logger) (*CharacterService, error) {
	if e == nil {
		return nil, fmt.Errorf("engine is nil")
	}
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resources: %w", err)
	}
	return &CharacterService{
		engine: e,
		res:    res,
		log:    logger.With().Str("component", "character_service").Logger(),
	}, nil
}

// Search returns up to the configured limit of knowledge-base matches, in engine order.
func (s *CharacterService) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	rs, err := s.engine.Query(ctx, query.Search(s.res, req.Query, req.MediaType))
	if err != nil {
		s.log.Error().Err(err).Msg("Search failed")
		return nil, &UpstreamError{Op: "search", Err: err}
	}
	if rs.Empty() {
		return nil, ErrNotFound
	}

	results := make([]SearchResult, 0, rs.Len())
	for i := 0; i < rs.Len(); i++ {
		row := rs.Row(i)
		meta := s.parseMetadata(i, row)

		description, ok := row.String("chunk_content")
		if !ok {
			description = meta.str("chunk_content", "")
		}
		relevance, ok := row.Float("relevance")
		if !ok {
			relevance = meta.float("relevance", 0)
		}

		results = append(results, SearchResult{
			CharacterName: meta.str("character_name", unknownField),
			Genre:         meta.str("genre", unknownField),
			MediaType:     meta.str("media_type", unknownField),
			Description:   description,
			Relevance:     relevance,
		})
	}
	return results, nil
}

// Chat returns the in-character answer to a question.
func (s *CharacterService) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	stmt := query.Chat(s.res, req.CharacterName, req.CharacterDescription, req.Question)
	text, err := s.firstText(ctx, stmt, s.res.ChatColumn)
	if err != nil {
		s.log.Error().Err(err).Str("character", req.CharacterName).Msg("Chat failed")
		return nil, &UpstreamError{Op: "chat", Err: err}
	}
	if text == nil {
		return nil, ErrNoResponse
	}
	return &ChatResponse{Response: *text}, nil
}

// Insights returns the personality insight text for a character.
func (s *CharacterService) Insights(ctx context.Context, req InsightRequest) (*InsightResponse, error) {
	stmt := query.Insights(s.res, req.CharacterName, req.CharacterDescription)
	text, err := s.firstText(ctx, stmt, s.res.InsightsColumn)
	if err != nil {
		s.log.Error().Err(err).Str("character", req.CharacterName).Msg("Insight generation failed")
		return nil, &UpstreamError{Op: "insights", Err: err}
	}
	if text == nil {
		return nil, ErrNoInsights
	}
	return &InsightResponse{Response: *text}, nil
}

// HealthCheck probes the engine with a trivial query.
func (s *CharacterService) HealthCheck(ctx context.Context) HealthStatus {
	if _, err := s.engine.Query(ctx, query.Health()); err != nil {
		s.log.Warn().Err(err).Msg("Health check failed")
		return HealthStatus{Status: "unhealthy", EngineConnected: false, Error: err.Error()}
	}
	return HealthStatus{Status: "healthy", EngineConnected: true}
}

// firstText returns column from the first row, or nil when there are no rows.
func (s *CharacterService) firstText(ctx context.Context, stmt query.Statement, column string) (*string, error) {
	rs, err := s.engine.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if rs.Empty() {
		return nil, nil
	}
	text, ok := rs.Row(0).String(column)
	if !ok {
		return nil, fmt.Errorf("result has no %q column", column)
	}
	return &text, nil
}

type metadata map[string]any

// parseMetadata decodes the row's metadata blob. A blob that is not valid JSON is
// logged and treated as empty.
func (s *CharacterService) parseMetadata(i int, row engine.Row) metadata {
	raw, ok := row["metadata"]
	if !ok || raw == nil {
		return metadata{}
	}
	if m, ok := raw.(map[string]any); ok {
		return m
	}

	text, _ := row.String("metadata")
	var m metadata
	if err := json.Unmarshal([]byte(text), &m); err != nil || m == nil {
		s.log.Warn().Err(err).Int("row", i).Msg("Failed to parse row metadata, using defaults")
		return metadata{}
	}
	return m
}

func (m metadata) str(key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (m metadata) float(key string, def float64) float64 {
	f, ok := engine.Row(m).Float(key)
	if !ok {
		return def
	}
	return f
}
