package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Host:              "localhost:8080",
			IndexName:         "Knowledgebase",
			RerankerThreshold: 2.0,
		},
		LLM: LLMConfig{
			APIKey: "sk-test",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("missing llm api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.APIKey = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingOption)
	})

	t.Run("missing search host", func(t *testing.T) {
		cfg := validConfig()
		cfg.Search.Host = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingOption)
	})

	t.Run("missing index name", func(t *testing.T) {
		cfg := validConfig()
		cfg.Search.IndexName = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingOption)
	})

	t.Run("reranker threshold outside the score scale", func(t *testing.T) {
		cfg := validConfig()
		cfg.Search.RerankerThreshold = 10.5
		assert.Error(t, cfg.Validate())

		cfg.Search.RerankerThreshold = -0.1
		assert.Error(t, cfg.Validate())
	})

	t.Run("threshold bounds are inclusive", func(t *testing.T) {
		cfg := validConfig()
		cfg.Search.RerankerThreshold = 0
		assert.NoError(t, cfg.Validate())

		cfg.Search.RerankerThreshold = 10
		assert.NoError(t, cfg.Validate())
	})
}
