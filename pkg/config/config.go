// Package config loads service configuration in layers: built-in defaults,
// an optional YAML file named by CONFIG_FILE, a .env file, then environment
// variables. Later layers win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PlaceholderKey is the sample API key shipped in example env files. It is
// treated as no key at all.
const PlaceholderKey = "your_deepseek_api_key_here"

const (
	BackendQdrant = "qdrant"
	BackendNeo4j  = "neo4j"
	BackendMemory = "memory"
)

// Config holds every tunable of the services.
type Config struct {
	Port       string `yaml:"port"`
	UploadDir  string `yaml:"upload_dir"`
	CORSOrigin string `yaml:"cors_origin"`
	// UploadRate is uploads per second allowed across clients; 0 disables limiting.
	UploadRate float64 `yaml:"upload_rate"`

	QdrantURL        string `yaml:"qdrant_url"`
	QdrantCollection string `yaml:"qdrant_collection"`
	VectorBackend    string `yaml:"vector_backend"`

	Neo4jURL        string `yaml:"neo4j_url"`
	Neo4jUser       string `yaml:"neo4j_user"`
	Neo4jPass       string `yaml:"neo4j_pass"`
	RegistryBackend string `yaml:"registry_backend"`

	// NATSURL enables queued ingestion when set.
	NATSURL string `yaml:"nats_url"`

	OllamaURL  string `yaml:"ollama_url"`
	EmbedModel string `yaml:"embed_model"`
	EmbedDims  int    `yaml:"embed_dims"`

	LLMType             string        `yaml:"llm_type"`
	DeepSeekAPIKey      string        `yaml:"deepseek_api_key"`
	DeepSeekBaseURL     string        `yaml:"deepseek_base_url"`
	DeepSeekModel       string        `yaml:"deepseek_model"`
	DeepSeekTemperature float64       `yaml:"deepseek_temperature"`
	DeepSeekMaxTokens   int           `yaml:"deepseek_max_tokens"`
	DeepSeekTimeout     time.Duration `yaml:"deepseek_timeout"`
	// LLMBreaker puts a process-wide circuit breaker in front of the
	// generative backend. Off by default: an open breaker shortens the
	// attempts of unrelated questions.
	LLMBreaker bool `yaml:"llm_breaker"`

	MaxSearchResults     int `yaml:"max_search_results"`
	MaxRelevantSentences int `yaml:"max_relevant_sentences"`
	ContextSummaryWords  int `yaml:"context_summary_words"`
	ChunkSize            int `yaml:"chunk_size"`
	ChunkOverlap         int `yaml:"chunk_overlap"`

	DocServiceURL string `yaml:"doc_service_url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:       "8000",
		UploadDir:  "./uploads",
		CORSOrigin: "*",
		UploadRate: 2,

		QdrantURL:        "localhost:6334",
		QdrantCollection: "documents",
		VectorBackend:    BackendQdrant,

		Neo4jURL:        "neo4j://localhost:7687",
		Neo4jUser:       "neo4j",
		Neo4jPass:       "password",
		RegistryBackend: BackendMemory,

		OllamaURL:  "http://localhost:11434",
		EmbedModel: "all-minilm",
		EmbedDims:  384,

		LLMType:             "keyword",
		DeepSeekBaseURL:     "https://api.deepseek.com/v1",
		DeepSeekModel:       "deepseek-chat",
		DeepSeekTemperature: 0.1,
		DeepSeekMaxTokens:   500,
		DeepSeekTimeout:     30 * time.Second,

		MaxSearchResults:     5,
		MaxRelevantSentences: 2,
		ContextSummaryWords:  100,
		ChunkSize:            1000,
		ChunkOverlap:         200,

		DocServiceURL: "http://localhost:8000",
	}
}

// Load builds the configuration from every layer. A missing .env file or
// unset CONFIG_FILE is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()
	if path := getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.mergeEnv(getenv); err != nil {
		return Config{}, err
	}
	if cfg.DeepSeekAPIKey == PlaceholderKey {
		cfg.DeepSeekAPIKey = ""
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(getenv func(string) string) error {
	e := env{get: getenv}
	e.str(&c.Port, "PORT")
	e.str(&c.UploadDir, "UPLOAD_DIR")
	e.str(&c.CORSOrigin, "CORS_ORIGIN")
	e.float(&c.UploadRate, "UPLOAD_RATE")
	e.str(&c.QdrantURL, "QDRANT_URL")
	e.str(&c.QdrantCollection, "QDRANT_COLLECTION")
	e.str(&c.VectorBackend, "VECTOR_BACKEND")
	e.str(&c.Neo4jURL, "NEO4J_URL")
	e.str(&c.Neo4jUser, "NEO4J_USER")
	e.str(&c.Neo4jPass, "NEO4J_PASS")
	e.str(&c.RegistryBackend, "REGISTRY_BACKEND")
	e.str(&c.NATSURL, "NATS_URL")
	e.str(&c.OllamaURL, "OLLAMA_URL")
	e.str(&c.EmbedModel, "EMBED_MODEL")
	e.int(&c.EmbedDims, "EMBED_DIMS")
	e.str(&c.LLMType, "LLM_TYPE")
	e.str(&c.DeepSeekAPIKey, "DEEPSEEK_API_KEY")
	e.str(&c.DeepSeekBaseURL, "DEEPSEEK_BASE_URL")
	e.str(&c.DeepSeekModel, "DEEPSEEK_MODEL")
	e.float(&c.DeepSeekTemperature, "DEEPSEEK_TEMPERATURE")
	e.int(&c.DeepSeekMaxTokens, "DEEPSEEK_MAX_TOKENS")
	e.seconds(&c.DeepSeekTimeout, "DEEPSEEK_TIMEOUT")
	e.bool(&c.LLMBreaker, "LLM_BREAKER")
	e.int(&c.MaxSearchResults, "MAX_SEARCH_RESULTS")
	e.int(&c.MaxRelevantSentences, "MAX_RELEVANT_SENTENCES")
	e.int(&c.ContextSummaryWords, "CONTEXT_SUMMARY_WORDS")
	e.int(&c.ChunkSize, "CHUNK_SIZE")
	e.int(&c.ChunkOverlap, "CHUNK_OVERLAP")
	e.str(&c.DocServiceURL, "DOC_SERVICE_URL")
	return errors.Join(e.errs...)
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("config: chunk_size %d / chunk_overlap %d: overlap must be in [0, size)", c.ChunkSize, c.ChunkOverlap))
	}
	if c.MaxSearchResults <= 0 {
		errs = append(errs, fmt.Errorf("config: max_search_results must be positive, got %d", c.MaxSearchResults))
	}
	if c.EmbedDims <= 0 {
		errs = append(errs, fmt.Errorf("config: embed_dims must be positive, got %d", c.EmbedDims))
	}
	switch c.VectorBackend {
	case BackendQdrant, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("config: unknown vector_backend %q", c.VectorBackend))
	}
	switch c.RegistryBackend {
	case BackendNeo4j, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("config: unknown registry_backend %q", c.RegistryBackend))
	}
	return errors.Join(errs...)
}

// HasAPIKey reports whether a usable generative-backend key is configured.
func (c Config) HasAPIKey() bool {
	k := strings.TrimSpace(c.DeepSeekAPIKey)
	return k != "" && k != PlaceholderKey
}

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(dst *string, key string) {
	if v := e.get(key); v != "" {
		*dst = v
	}
}

func (e *env) int(dst *int, key string) {
	v := e.get(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s=%q: not an integer", key, v))
		return
	}
	*dst = n
}

func (e *env) float(dst *float64, key string) {
	v := e.get(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s=%q: not a number", key, v))
		return
	}
	*dst = f
}

func (e *env) bool(dst *bool, key string) {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s=%q: not a boolean", key, v))
		return
	}
	*dst = b
}

// seconds accepts either a Go duration ("45s") or a bare number of seconds.
func (e *env) seconds(dst *time.Duration, key string) {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s=%q: not a duration", key, v))
		return
	}
	*dst = time.Duration(f * float64(time.Second))
}
