package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// OllamaConfig holds connection details for the local Ollama server.
type OllamaConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// BaseURL returns the Ollama HTTP endpoint derived from host and port.
func (o OllamaConfig) BaseURL() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// RuntimeConfig controls the managed Docker container for Ollama.
// When Managed is false the endpoint is assumed to be running already.
type RuntimeConfig struct {
	Managed       *bool  `yaml:"managed"`
	ContainerName string `yaml:"container_name"`
	Volume        string `yaml:"volume"`
}

// IsManaged reports whether the Ollama container lifecycle is owned by this
// process. Defaults to true when unset.
func (r RuntimeConfig) IsManaged() bool {
	if r.Managed != nil {
		return *r.Managed
	}
	return true
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// ChromemConfig contains settings for the embedded persistent vector store.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type    string         `yaml:"type"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
	Qdrant  *QdrantConfig  `yaml:"qdrant,omitempty"`
}

// RetrievalConfig bounds similarity search.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Debug       bool              `yaml:"debug"`
	DataDir     string            `yaml:"data_dir"`
	Ollama      OllamaConfig      `yaml:"ollama"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
}

// Load reads a config from the specified path. If the file does not exist,
// defaults are used. Environment variables (typically loaded from a .env file)
// override file values for the endpoint, model, and data path settings.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that must be present before startup.
func (c *AppConfig) Validate() error {
	if c.Ollama.Model == "" {
		return errors.New("ollama model is not set (config ollama.model or OLLAMA_MODEL_NAME)")
	}
	if c.Chunker.ChunkSize <= 0 {
		return errors.New("chunker chunk_size must be positive")
	}
	if c.Chunker.ChunkOverlap < 0 {
		return errors.New("chunker chunk_overlap must not be negative")
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return errors.New("chunker chunk_overlap must be smaller than chunk_size")
	}
	switch c.VectorStore.Type {
	case "memory", "chromem":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" || c.VectorStore.Qdrant.Collection == "" {
			return errors.New("qdrant vector store requires url and collection")
		}
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = "http://localhost"
	}
	if cfg.Ollama.Port == 0 {
		cfg.Ollama.Port = 11434
	}
	if cfg.Ollama.EmbeddingModel == "" {
		cfg.Ollama.EmbeddingModel = "nomic-embed-text"
	}
	if cfg.Ollama.TimeoutSecs == 0 {
		cfg.Ollama.TimeoutSecs = 120
	}
	if cfg.Runtime.ContainerName == "" {
		cfg.Runtime.ContainerName = "offline-rag-ollama"
	}
	if cfg.Runtime.Volume == "" {
		cfg.Runtime.Volume = "ollama_data"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 200
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "chromem"
	}
	if cfg.VectorStore.Type == "chromem" && cfg.VectorStore.Chromem == nil {
		cfg.VectorStore.Chromem = &ChromemConfig{}
	}
	if cfg.VectorStore.Chromem != nil {
		if cfg.VectorStore.Chromem.Path == "" {
			cfg.VectorStore.Chromem.Path = "data/vector_store"
		}
		if cfg.VectorStore.Chromem.Collection == "" {
			cfg.VectorStore.Chromem.Collection = "documents"
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
}

// applyEnvOverrides maps the .env keys onto the config. Environment always
// wins over the file so a .env next to the binary stays authoritative.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("OLLAMA_MODEL_NAME"); v != "" {
		cfg.Ollama.Model = v
	}
	if v := os.Getenv("EMBEDDING_MODEL_NAME"); v != "" {
		cfg.Ollama.EmbeddingModel = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv("OLLAMA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Ollama.Port = port
		}
	}
	if v := os.Getenv("OLLAMA_CONTAINER_NAME"); v != "" {
		cfg.Runtime.ContainerName = v
	}
	if v := os.Getenv("OLLAMA_DATA_DIR"); v != "" {
		cfg.Runtime.Volume = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("VECTOR_STORE_DIR"); v != "" {
		if cfg.VectorStore.Chromem == nil {
			cfg.VectorStore.Chromem = &ChromemConfig{}
		}
		cfg.VectorStore.Chromem.Path = v
	}
}
