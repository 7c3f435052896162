// Package config loads gateway configuration from the environment.
//
// Secrets (provider and connector API keys) are not part of this struct; they
// are resolved lazily from SSM Parameter Store under ParamPrefix.
package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	ConversationsTable string `env:"CONVERSATIONS_TABLE" env-required:"true"`
	ParamPrefix        string `env:"PARAM_PREFIX" env-required:"true"`

	Provider    string `env:"PROVIDER" env-default:"gemini"`
	GeminiModel string `env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	OpenAIModel string `env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	OpenAIBase  string `env:"OPENAI_BASE_URL"`

	HistoryWindow  int    `env:"HISTORY_WINDOW" env-default:"4"`
	MaxTeamLookups int    `env:"MAX_TEAM_LOOKUPS" env-default:"3"`
	KnowledgeTopK  int    `env:"KNOWLEDGE_TOP_K" env-default:"3"`
	KnowledgeBase  string `env:"KNOWLEDGE_BASE_URL"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read environment: %w", err)
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if cfg.ParamPrefix == "" {
		return nil, fmt.Errorf("config: parameter prefix must not be empty")
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 4
	}
	if cfg.MaxTeamLookups <= 0 {
		cfg.MaxTeamLookups = 3
	}
	if cfg.KnowledgeTopK <= 0 || cfg.KnowledgeTopK > 5 {
		cfg.KnowledgeTopK = 3
	}
	return &cfg, nil
}
