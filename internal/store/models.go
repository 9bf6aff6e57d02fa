package store

// Character is one knowledge-base entry as ingested from a data file.
type Character struct {
	ChunkID     string  `json:"chunk_id"`
	Name        string  `json:"character_name"`
	Genre       string  `json:"genre"`
	MediaType   string  `json:"media_type"`
	Description string  `json:"description"`
	Relevance   float64 `json:"relevance"`
}

// metadata is the JSON blob stored alongside each chunk, mirroring what the
// MindsDB knowledge base returns in its metadata column.
type metadata struct {
	CharacterName string `json:"character_name"`
	Genre         string `json:"genre"`
	MediaType     string `json:"media_type"`
}
