package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OLLAMA_MODEL_NAME", "llama3.2:3b")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL())
	assert.Equal(t, "nomic-embed-text", cfg.Ollama.EmbeddingModel)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, "chromem", cfg.VectorStore.Type)
	assert.Equal(t, "data/vector_store", cfg.VectorStore.Chromem.Path)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.True(t, cfg.Runtime.IsManaged())
}

func TestLoad_ParsesYAML(t *testing.T) {
	content := `
data_dir: corpus
ollama:
  model: mistral
  port: 11500
chunker:
  chunk_size: 400
  chunk_overlap: 50
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
    collection: docs
retrieval:
  top_k: 3
runtime:
  managed: false
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "corpus", cfg.DataDir)
	assert.Equal(t, "mistral", cfg.Ollama.Model)
	assert.Equal(t, "http://localhost:11500", cfg.Ollama.BaseURL())
	assert.Equal(t, 400, cfg.Chunker.ChunkSize)
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.False(t, cfg.Runtime.IsManaged())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	content := `
ollama:
  model: from-file
  port: 11434
data_dir: from-file
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("OLLAMA_MODEL_NAME", "from-env")
	t.Setenv("OLLAMA_PORT", "12000")
	t.Setenv("DATA_DIR", "env-data")
	t.Setenv("VECTOR_STORE_DIR", "env-store")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Ollama.Model)
	assert.Equal(t, 12000, cfg.Ollama.Port)
	assert.Equal(t, "env-data", cfg.DataDir)
	assert.Equal(t, "env-store", cfg.VectorStore.Chromem.Path)
}

func TestLoad_MissingModelIsFatal(t *testing.T) {
	t.Setenv("OLLAMA_MODEL_NAME", "")
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model")
}

func TestValidate_ChunkerBounds(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 1000, 200, false},
		{"zero size", 0, 0, true},
		{"negative size", -1, 0, true},
		{"negative overlap", 100, -1, true},
		{"overlap equals size", 100, 100, true},
		{"overlap exceeds size", 100, 150, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &AppConfig{
				Ollama:      OllamaConfig{Model: "m"},
				Chunker:     ChunkerConfig{ChunkSize: tt.size, ChunkOverlap: tt.overlap},
				VectorStore: VectorStoreConfig{Type: "memory"},
			}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_QdrantRequiresConnectionDetails(t *testing.T) {
	cfg := &AppConfig{
		Ollama:      OllamaConfig{Model: "m"},
		Chunker:     ChunkerConfig{ChunkSize: 100, ChunkOverlap: 10},
		VectorStore: VectorStoreConfig{Type: "qdrant"},
	}
	require.Error(t, cfg.Validate())

	cfg.VectorStore.Qdrant = &QdrantConfig{URL: "http://localhost:6333", Collection: "docs"}
	require.NoError(t, cfg.Validate())
}

func TestValidate_UnknownStore(t *testing.T) {
	cfg := &AppConfig{
		Ollama:      OllamaConfig{Model: "m"},
		Chunker:     ChunkerConfig{ChunkSize: 100, ChunkOverlap: 10},
		VectorStore: VectorStoreConfig{Type: "faiss"},
	}
	assert.Error(t, cfg.Validate())
}
