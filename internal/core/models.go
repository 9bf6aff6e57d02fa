package core

type SearchRequest struct {
	Query     string  `json:"query"`
	MediaType *string `json:"media_type,omitempty"`
}

type SearchResult struct {
	CharacterName string  `json:"character_name"`
	Genre         string  `json:"genre"`
	MediaType     string  `json:"media_type"`
	Description   string  `json:"description"`
	Relevance     float64 `json:"relevance"`
}

type ChatRequest struct {
	CharacterName        string `json:"character_name"`
	CharacterDescription string `json:"character_description"`
	Question             string `json:"question"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type InsightRequest struct {
	CharacterName        string `json:"character_name"`
	CharacterDescription string `json:"character_description"`
}

type InsightResponse struct {
	Response string `json:"response"`
}

// HealthStatus is always returned, never an error.
type HealthStatus struct {
	Status          string `json:"status"`
	EngineConnected bool   `json:"mindsdb_connected"`
	Error           string `json:"error,omitempty"`
}
