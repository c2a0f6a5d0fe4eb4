package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	LLMBaseURL    string `yaml:"llm_base_url"`
	LLMAPIKey     string `yaml:"llm_api_key"`
	LLMGenModel   string `yaml:"llm_gen_model"`
	LLMEmbedModel string `yaml:"llm_embed_model"`

	StatutesDir   string `yaml:"statutes_dir"`
	IndexPath     string `yaml:"index_path"`
	MetadataPath  string `yaml:"metadata_path"`
	MarkerPattern string `yaml:"marker_pattern"`
	LawNameSuffix string `yaml:"law_name_suffix"`

	TopK           int `yaml:"top_k"`
	WindowPairs    int `yaml:"window_pairs"`
	EmbedBatchSize int `yaml:"embed_batch_size"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	MaxInFlight    int     `yaml:"max_in_flight"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	PostgresDSN string `yaml:"postgres_dsn"`

	IndexerMetricsPort string `yaml:"indexer_metrics_port"`
}

// Load resolves configuration in three layers: built-in defaults, then an
// optional YAML file named by CONFIG_PATH, then environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		LLMBaseURL:    "https://api.deepseek.com/v1",
		LLMGenModel:   "deepseek-chat",
		LLMEmbedModel: "embedding-2",

		StatutesDir:   "./data/statutes",
		IndexPath:     "./data/index/statutes.index",
		MetadataPath:  "./data/index/statutes.meta.json",
		MarkerPattern: "",
		LawNameSuffix: "English.txt",

		TopK:           5,
		WindowPairs:    3,
		EmbedBatchSize: 32,

		RateLimitRPS:   10,
		RateLimitBurst: 20,
		MaxInFlight:    64,

		NATSURL:     "nats://localhost:4222",
		NATSSubject: "statutes.reindex",

		IndexerMetricsPort: "9090",
	}
}

func applyEnv(cfg *Config) {
	cfg.APIPort = envStr("API_PORT", cfg.APIPort)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)

	cfg.LLMBaseURL = envStr("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMAPIKey = envStr("LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMGenModel = envStr("LLM_GEN_MODEL", cfg.LLMGenModel)
	cfg.LLMEmbedModel = envStr("LLM_EMBED_MODEL", cfg.LLMEmbedModel)

	cfg.StatutesDir = envStr("STATUTES_DIR", cfg.StatutesDir)
	cfg.IndexPath = envStr("INDEX_PATH", cfg.IndexPath)
	cfg.MetadataPath = envStr("METADATA_PATH", cfg.MetadataPath)
	cfg.MarkerPattern = envStr("MARKER_PATTERN", cfg.MarkerPattern)
	cfg.LawNameSuffix = envStr("LAW_NAME_SUFFIX", cfg.LawNameSuffix)

	cfg.TopK = envInt("TOP_K", cfg.TopK)
	cfg.WindowPairs = envInt("WINDOW_PAIRS", cfg.WindowPairs)
	cfg.EmbedBatchSize = envInt("EMBED_BATCH_SIZE", cfg.EmbedBatchSize)

	cfg.RateLimitRPS = envFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.MaxInFlight = envInt("MAX_IN_FLIGHT", cfg.MaxInFlight)

	cfg.NATSURL = envStr("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = envStr("NATS_SUBJECT", cfg.NATSSubject)

	cfg.PostgresDSN = envStr("POSTGRES_DSN", cfg.PostgresDSN)

	cfg.IndexerMetricsPort = envStr("INDEXER_METRICS_PORT", cfg.IndexerMetricsPort)
}

func envStr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
