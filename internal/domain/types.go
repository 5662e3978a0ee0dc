package domain

// Document represents a single source file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a bounded segment of a document used for retrieval indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Index      int
	Offset     int
	Text       string
}

// SearchResult represents a matching chunk with a similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}
