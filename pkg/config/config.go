package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrMissingOption marks a required option that was not configured. Callers
// treat it as fatal at startup, never as a per-request condition.
var ErrMissingOption = errors.New("missing required configuration option")

type Config struct {
	Server     ServerConfig
	Search     SearchConfig
	Redis      RedisConfig
	SQLite     SQLiteConfig
	LLM        LLMConfig
	Session    SessionConfig
	Evaluation EvaluationConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SearchConfig struct {
	Host              string
	Scheme            string
	APIKey            string
	IndexName         string
	VectorDimensions  int
	HNSWM             int
	HNSWEfConstruct   int
	HNSWEfSearch      int
	HybridAlpha       float64
	VectorTopK        int
	MaxResults        int
	RerankerThreshold float64
	TimeoutSec        int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	TopP           float32
	MaxTokens      int
	TimeoutSec     int
}

type SessionConfig struct {
	// Durable selects the Redis-backed transcript store; when false the
	// in-memory store is used and transcripts die with the process.
	Durable       bool
	ExpiryMinutes int
	SweepSchedule string
}

type EvaluationConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/support-assistant")

	viper.SetEnvPrefix("SUPPORT_ASSISTANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the options that have no sensible default.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm.apiKey", ErrMissingOption)
	}
	if c.Search.Host == "" {
		return fmt.Errorf("%w: search.host", ErrMissingOption)
	}
	if c.Search.IndexName == "" {
		return fmt.Errorf("%w: search.indexName", ErrMissingOption)
	}
	if c.Search.RerankerThreshold < 0 || c.Search.RerankerThreshold > 10 {
		return fmt.Errorf("search.rerankerThreshold must be within [0,10], got %v", c.Search.RerankerThreshold)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("search.scheme", "http")
	viper.SetDefault("search.indexName", "Knowledgebase")
	viper.SetDefault("search.vectorDimensions", 1536)
	viper.SetDefault("search.hnswM", 4)
	viper.SetDefault("search.hnswEfConstruct", 400)
	viper.SetDefault("search.hnswEfSearch", 500)
	viper.SetDefault("search.hybridAlpha", 0.7)
	viper.SetDefault("search.vectorTopK", 5)
	viper.SetDefault("search.maxResults", 3)
	viper.SetDefault("search.rerankerThreshold", 2.0)
	viper.SetDefault("search.timeoutSec", 15)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("sqlite.path", "./data/assistant.db")

	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.8)
	viper.SetDefault("llm.topP", 0.0)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("session.durable", false)
	viper.SetDefault("session.expiryMinutes", 60)
	viper.SetDefault("session.sweepSchedule", "@every 10m")

	viper.SetDefault("evaluation.model", "gpt-4o")
	viper.SetDefault("evaluation.temperature", 0.1)
	viper.SetDefault("evaluation.maxTokens", 800)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
