package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/akshayavb99/offline-rag-cli/internal/domain"
)

// separators are tried in priority order when looking for a cut point
// near the end of a window: paragraph break, line break, word break.
var separators = []string{"\n\n", "\n", " "}

// RecursiveChunker splits text into overlapping character windows, preferring
// to cut at paragraph, line, or word boundaries near the window end.
type RecursiveChunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewRecursiveChunker creates a chunker with the given size and overlap in
// runes. Overlap must be smaller than size.
func NewRecursiveChunker(chunkSize, chunkOverlap int) (*RecursiveChunker, error) {
	if chunkSize <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if chunkOverlap < 0 {
		return nil, errors.New("chunk overlap must not be negative")
	}
	if chunkOverlap >= chunkSize {
		return nil, errors.New("chunk overlap must be smaller than chunk size")
	}
	return &RecursiveChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits the document into chunks of at most chunkSize runes where
// consecutive chunks share chunkOverlap runes. Documents shorter than the
// chunk size yield exactly one chunk equal to the whole document.
func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	runes := []rune(document.Content)
	if len(runes) <= c.chunkSize {
		return []domain.Chunk{c.newChunk(document, 0, 0, document.Content)}, nil
	}

	var chunks []domain.Chunk
	start := 0
	idx := 0
	for {
		end := start + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.snapToBoundary(runes, start, end)
		}
		chunks = append(chunks, c.newChunk(document, idx, start, string(runes[start:end])))
		if end >= len(runes) {
			break
		}
		start = end - c.chunkOverlap
		idx++
	}
	return chunks, nil
}

// snapToBoundary walks back from end looking for the highest-priority
// separator inside the last quarter of the window. Hard character cuts are
// the fallback when no separator is close enough.
func (c *RecursiveChunker) snapToBoundary(runes []rune, start, end int) int {
	minEnd := end - c.chunkSize/4
	if minEnd <= start+c.chunkOverlap {
		minEnd = start + c.chunkOverlap + 1
	}
	window := string(runes[minEnd:end])
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			// cut after the separator so it stays with the left chunk
			return minEnd + len([]rune(window[:i])) + len([]rune(sep))
		}
	}
	return end
}

func (c *RecursiveChunker) newChunk(document domain.Document, idx, offset int, text string) domain.Chunk {
	return domain.Chunk{
		DocumentID: document.ID,
		ChunkID:    chunkID(document.ID, idx, text),
		Index:      idx,
		Offset:     offset,
		Text:       text,
	}
}

// chunkID is deterministic over content so re-indexing unchanged sources
// produces identical identifiers.
func chunkID(documentID string, idx int, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", documentID, idx, text)))
	return hex.EncodeToString(h[:8])
}
