package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/characterverse/character-facade/internal/core"
)

// CharacterService is the facade the handlers delegate to.
type CharacterService interface {
	Search(ctx context.Context, req core.SearchRequest) ([]core.SearchResult, error)
	Chat(ctx context.Context, req core.ChatRequest) (*core.ChatResponse, error)
	Insights(ctx context.Context, req core.InsightRequest) (*core.InsightResponse, error)
	HealthCheck(ctx context.Context) core.HealthStatus
}

type APIHandler struct {
	service CharacterService
	log     zerolog.Logger
}

func NewAPIHandler(s CharacterService, logger zerolog.Logger) *APIHandler {
	return &APIHandler{service: s, log: logger.With().Str("component", "api").Logger()}
}

// Wire shapes use pointers so absent required fields can be told apart from empty ones.
type searchBody struct {
	Query     *string `json:"query"`
	MediaType *string `json:"media_type"`
}

type chatBody struct {
	CharacterName        *string `json:"character_name"`
	CharacterDescription *string `json:"character_description"`
	Question             *string `json:"question"`
}

type insightBody struct {
	CharacterName        *string `json:"character_name"`
	CharacterDescription *string `json:"character_description"`
}

// decode reads the JSON body into dst, writing a 400 on failure.
func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// requireFields writes a 422 naming every nil field.
func (h *APIHandler) requireFields(w http.ResponseWriter, fields map[string]*string) bool {
	var missing []string
	for _, name := range []string{"query", "character_name", "character_description", "question"} {
		if v, ok := fields[name]; ok && v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		writeError(w, h.log, http.StatusUnprocessableEntity, "Missing required fields: "+strings.Join(missing, ", "))
		return false
	}
	return true
}

func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if !h.decode(w, r, &body) || !h.requireFields(w, map[string]*string{"query": body.Query}) {
		return
	}

	results, err := h.service.Search(r.Context(), core.SearchRequest{Query: *body.Query, MediaType: body.MediaType})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, h.log, http.StatusNotFound, "No matching characters found")
			return
		}
		h.writeFailure(w, "Search failed", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, results)
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if !h.decode(w, r, &body) {
		return
	}
	if !h.requireFields(w, map[string]*string{
		"character_name":        body.CharacterName,
		"character_description": body.CharacterDescription,
		"question":              body.Question,
	}) {
		return
	}

	resp, err := h.service.Chat(r.Context(), core.ChatRequest{
		CharacterName:        *body.CharacterName,
		CharacterDescription: *body.CharacterDescription,
		Question:             *body.Question,
	})
	if err != nil {
		if errors.Is(err, core.ErrNoResponse) {
			writeError(w, h.log, http.StatusInternalServerError, "No response generated")
			return
		}
		h.writeFailure(w, "Chat failed", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, resp)
}

func (h *APIHandler) InsightsHandler(w http.ResponseWriter, r *http.Request) {
	var body insightBody
	if !h.decode(w, r, &body) {
		return
	}
	if !h.requireFields(w, map[string]*string{
		"character_name":        body.CharacterName,
		"character_description": body.CharacterDescription,
	}) {
		return
	}

	resp, err := h.service.Insights(r.Context(), core.InsightRequest{
		CharacterName:        *body.CharacterName,
		CharacterDescription: *body.CharacterDescription,
	})
	if err != nil {
		if errors.Is(err, core.ErrNoInsights) {
			writeError(w, h.log, http.StatusInternalServerError, "No insights generated")
			return
		}
		h.writeFailure(w, "Insight generation failed", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, resp)
}

// HealthHandler always answers 200; the body says whether the engine is reachable.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, h.service.HealthCheck(r.Context()))
}

func (h *APIHandler) writeFailure(w http.ResponseWriter, prefix string, err error) {
	var upstream *core.UpstreamError
	if errors.As(err, &upstream) {
		err = upstream.Err
	} else {
		h.log.Error().Err(err).Msg(prefix)
	}
	writeError(w, h.log, http.StatusInternalServerError, prefix+": "+err.Error())
}
