package config

import "time"

// Config holds all application configuration.
type Config struct {
	Index      Index      `mapstructure:"index"`
	Embeddings Embeddings `mapstructure:"embeddings"`
	Crawler    Crawler    `mapstructure:"crawler"`
	Splitter   Splitter   `mapstructure:"splitter"`
	Retrieval  Retrieval  `mapstructure:"retrieval"`
	Google     Google     `mapstructure:"google"`
	Archive    Archive    `mapstructure:"archive"`
	Server     Server     `mapstructure:"server"`
	MCP        MCP        `mapstructure:"mcp"`
}

// Index holds vector index configuration. Backend selects between the
// Pinecone and Elasticsearch implementations.
type Index struct {
	Backend   string `mapstructure:"backend"` // "pinecone" or "elasticsearch"
	Name      string `mapstructure:"name"`
	Namespace string `mapstructure:"namespace"`

	// Pinecone
	APIKey        string `mapstructure:"api_key"`
	Cloud         string `mapstructure:"cloud"`
	Region        string `mapstructure:"region"`
	ControllerURL string `mapstructure:"controller_url"`

	// Elasticsearch
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Embeddings holds embedding generation configuration.
type Embeddings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// Crawler holds web crawling configuration.
type Crawler struct {
	MaxDepth  int           `mapstructure:"max_depth"`
	MaxPages  int           `mapstructure:"max_pages"`
	Delay     time.Duration `mapstructure:"delay"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Splitter holds chunking configuration.
type Splitter struct {
	Method       string `mapstructure:"method"` // "recursive" or "markdown"
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

// Retrieval holds query-time tuning.
type Retrieval struct {
	TopK           int      `mapstructure:"top_k"`
	MinScore       float32  `mapstructure:"min_score"`
	MaxChars       int      `mapstructure:"max_chars"`
	ExtraStopwords []string `mapstructure:"extra_stopwords"`
}

// Google holds Google Drive export credentials for hosted documents.
type Google struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

// Archive holds S3/MinIO crawl snapshot configuration.
type Archive struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port     int  `mapstructure:"port"`
	AllowAll bool `mapstructure:"allow_all_origins"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Index: Index{
			Backend:   "pinecone",
			Name:      "jaco-rag",
			Namespace: "",
			Cloud:     "aws",
			Region:    "us-east-1",
			Addresses: []string{"http://localhost:9200"},
		},
		Embeddings: Embeddings{
			Model: "text-embedding-ada-002",
		},
		Crawler: Crawler{
			MaxDepth:  2,
			MaxPages:  100,
			Delay:     200 * time.Millisecond,
			Timeout:   30 * time.Second,
			UserAgent: "jaco-rag/1.0",
		},
		Splitter: Splitter{
			Method:       "recursive",
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Retrieval: Retrieval{
			TopK:     10,
			MinScore: 0.7,
			MaxChars: 3000,
		},
		Archive: Archive{
			Enabled:         false,
			Endpoint:        "localhost:9000",
			Bucket:          "jaco-rag",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		Server: Server{
			Port: 8080,
		},
		MCP: MCP{
			Name:    "jaco-rag",
			Version: "1.0.0",
		},
	}
}
