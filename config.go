package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gamma-omg/rag-ingest/chunker"
	"github.com/gamma-omg/rag-ingest/docstore"
)

const envPrefix = "RAG_"

const (
	backendChromem = "chromem"
	backendChroma  = "chroma"
)

type ProviderConfig struct {
	Model  string `yaml:"model" env:"MODEL"`
	ApiKey string `yaml:"api_key" env:"API_KEY"`
	URL    string `yaml:"url" env:"URL"`
}

type StoreConfig struct {
	Backend       string  `yaml:"backend" env:"BACKEND"`
	Path          string  `yaml:"path" env:"PATH"`
	Compress      bool    `yaml:"compress" env:"COMPRESS"`
	ChromaAddr    string  `yaml:"chroma_addr" env:"CHROMA_ADDR"`
	Collection    string  `yaml:"collection" env:"COLLECTION"`
	RequestSize   int     `yaml:"request_size" env:"REQUEST_SIZE"`
	Results       int     `yaml:"results" env:"RESULTS"`
	MinSimilarity float32 `yaml:"min_similarity" env:"MIN_SIMILARITY"`
}

type Config struct {
	LogFile        string         `yaml:"log" env:"LOG"`
	LogLevel       string         `yaml:"log_level" env:"LOG_LEVEL"`
	DocRoot        string         `yaml:"doc_root" env:"DOC_ROOT"`
	ChunkSize      int            `yaml:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap   int            `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	AtomicCode     bool           `yaml:"atomic_code" env:"ATOMIC_CODE"`
	AtomicTables   bool           `yaml:"atomic_tables" env:"ATOMIC_TABLES"`
	MediaDir       string         `yaml:"media_dir" env:"MEDIA_DIR"`
	MarkdownTables bool           `yaml:"md_tables" env:"MD_TABLES"`
	Workers        int            `yaml:"workers" env:"WORKERS"`
	Store          StoreConfig    `yaml:"store" envPrefix:"STORE_"`
	ServerAddr     string         `yaml:"server_addr" env:"SERVER_ADDR"`
	OpenAI         ProviderConfig `yaml:"open_ai" envPrefix:"OPENAI_"`
	Gemini         ProviderConfig `yaml:"gemini" envPrefix:"GEMINI_"`
	Ollama         ProviderConfig `yaml:"ollama" envPrefix:"OLLAMA_"`
}

func defaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		ChunkSize:      chunker.DefaultMaxLen,
		ChunkOverlap:   chunker.DefaultOverlap,
		MarkdownTables: true,
		Workers:        1,
		ServerAddr:     "localhost:8080",
		Store: StoreConfig{
			Backend:       backendChromem,
			Collection:    docstore.DefaultCollection,
			Results:       docstore.DefaultResults,
			MinSimilarity: docstore.DefaultMinSimilarity,
		},
	}
}

// readConfig layers the YAML file and RAG_* environment variables over the
// defaults. A missing file is only an error when mustExist is set.
func readConfig(cfgPath string, mustExist bool) (*Config, error) {
	cfg := defaultConfig()

	cfgFile, err := os.Open(cfgPath)
	switch {
	case err == nil:
		defer cfgFile.Close()

		dec := yaml.NewDecoder(cfgFile)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !mustExist:
	default:
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("unable to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadEnvFile exports the variables of a dotenv file that are not already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to load env file %s: %w", path, err)
	}

	return nil
}

func (c *Config) Validate() error {
	if err := c.chunking().Validate(); err != nil {
		return fmt.Errorf("chunk_size/chunk_overlap: %w", err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := c.level(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case backendChromem, backendChroma:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Store.MinSimilarity < 0 || c.Store.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity must be within [0, 1], got %v", c.Store.MinSimilarity)
	}

	return nil
}

func (c *Config) chunking() chunker.Config {
	return chunker.Config{
		MaxLen:       c.ChunkSize,
		Overlap:      c.ChunkOverlap,
		AtomicCode:   c.AtomicCode,
		AtomicTables: c.AtomicTables,
	}
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

func (c *Config) storeOptions(reset bool) docstore.Options {
	return docstore.Options{
		Collection:    c.Store.Collection,
		Results:       c.Store.Results,
		RequestSize:   c.Store.RequestSize,
		MinSimilarity: c.Store.MinSimilarity,
		Reset:         reset,
	}
}
