package service

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akshayavb99/offline-rag-cli/internal/chunker"
	"github.com/akshayavb99/offline-rag-cli/internal/domain"
	"github.com/akshayavb99/offline-rag-cli/internal/vectorstore/memory"
)

// bagEmbedder hashes tokens into a fixed-size bag-of-words vector. It is
// deterministic and gives higher cosine similarity to texts sharing words,
// which is all the pipeline needs for end-to-end tests.
type bagEmbedder struct {
	calls int
}

const bagDim = 32

func (e *bagEmbedder) Name() string   { return "bag" }
func (e *bagEmbedder) Dimension() int { return bagDim }

func (e *bagEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	vec := make([]float32, bagDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?")
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%bagDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

type staticSource struct {
	docs []domain.Document
}

func (s *staticSource) LoadDirectory(string) ([]domain.Document, error) {
	return s.docs, nil
}

func newTestService(t *testing.T, docs []domain.Document, chunkSize, overlap int) (*RAGService, *bagEmbedder) {
	t.Helper()
	ch, err := chunker.NewRecursiveChunker(chunkSize, overlap)
	require.NoError(t, err)
	emb := &bagEmbedder{}
	return New(&staticSource{docs: docs}, ch, emb, memory.NewStorage(), zap.NewNop(), "data", 0), emb
}

func TestReindex_BuildsIndex(t *testing.T) {
	svc, _ := newTestService(t, []domain.Document{
		{ID: "d1", Path: "facts.txt", Content: "The sky is blue. Grass is green."},
	}, 1000, 200)

	stats, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 1, stats.Chunks)
}

func TestReindex_NoDocumentsIsError(t *testing.T) {
	svc, _ := newTestService(t, nil, 1000, 200)
	_, err := svc.Reindex(context.Background())
	assert.Error(t, err)
}

func TestRetrieve_RanksRelevantChunkFirst(t *testing.T) {
	// two chunks by keeping the chunk size tiny
	svc, _ := newTestService(t, []domain.Document{
		{ID: "d1", Path: "facts.txt", Content: "The sky is blue.\n\nGrass is green."},
	}, 20, 4)

	ctx := context.Background()
	stats, err := svc.Reindex(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.Chunks, 2)

	results, err := svc.Retrieve(ctx, "What color is the sky?", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Contains(t, results[0].Chunk.Text, "sky is blue")
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestRetrieve_RespectsTopK(t *testing.T) {
	svc, _ := newTestService(t, []domain.Document{
		{ID: "d1", Path: "a.txt", Content: strings.Repeat("many words to split into several chunks here. ", 10)},
	}, 60, 10)

	ctx := context.Background()
	_, err := svc.Reindex(ctx)
	require.NoError(t, err)

	results, err := svc.Retrieve(ctx, "words", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestRetrieve_BlankQueryReturnsNothing(t *testing.T) {
	svc, emb := newTestService(t, []domain.Document{
		{ID: "d1", Path: "a.txt", Content: "content"},
	}, 1000, 200)

	ctx := context.Background()
	_, err := svc.Reindex(ctx)
	require.NoError(t, err)

	embedsAfterIndex := emb.calls
	results, err := svc.Retrieve(ctx, "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, embedsAfterIndex, emb.calls, "blank query must not call the embedder")
}

func TestReindex_Idempotent(t *testing.T) {
	svc, _ := newTestService(t, []domain.Document{
		{ID: "d1", Path: "facts.txt", Content: "The sky is blue.\n\nGrass is green.\n\nSnow is white."},
	}, 20, 4)

	ctx := context.Background()
	first, err := svc.Reindex(ctx)
	require.NoError(t, err)
	second, err := svc.Reindex(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	r1, err := svc.Retrieve(ctx, "What color is the sky?", 3)
	require.NoError(t, err)
	_, err = svc.Reindex(ctx)
	require.NoError(t, err)
	r2, err := svc.Retrieve(ctx, "What color is the sky?", 3)
	require.NoError(t, err)

	require.Equal(t, len(r1), len(r2))
	for i := range r1 {
		assert.Equal(t, r1[i].Chunk.ChunkID, r2[i].Chunk.ChunkID)
		assert.Equal(t, r1[i].Chunk.Text, r2[i].Chunk.Text)
	}
}

func TestRetrieve_MinScoreFilters(t *testing.T) {
	ch, err := chunker.NewRecursiveChunker(20, 4)
	require.NoError(t, err)
	emb := &bagEmbedder{}
	docs := []domain.Document{
		{ID: "d1", Path: "facts.txt", Content: "The sky is blue.\n\nZebra quagga xylophone."},
	}
	svc := New(&staticSource{docs: docs}, ch, emb, memory.NewStorage(), zap.NewNop(), "data", 0.99)

	ctx := context.Background()
	_, err = svc.Reindex(ctx)
	require.NoError(t, err)

	results, err := svc.Retrieve(ctx, "completely unrelated question", 5)
	require.NoError(t, err)
	assert.Empty(t, results, "low-similarity results should be filtered out")
}
