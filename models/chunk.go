package models

// DocumentChunk is one contiguous segment of an ingested document.
// Offset and SourceLength are measured in runes.
type DocumentChunk struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	Offset       int    `json:"offset"`
	SourceLength int    `json:"source_length"`
}

// End returns the rune offset one past the last rune of the chunk
func (c DocumentChunk) End() int {
	return c.Offset + len([]rune(c.Text))
}

// EmbeddedChunk pairs a chunk with its embedding vector
type EmbeddedChunk struct {
	Chunk  DocumentChunk `json:"chunk"`
	Vector []float32     `json:"-"`
}

// SearchResult is a retrieved chunk with its cosine similarity to the query
type SearchResult struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"` // Cosine similarity, higher is closer
}
