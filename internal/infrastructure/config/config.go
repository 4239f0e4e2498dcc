// Package config loads runtime configuration for the orchestrator from
// defaults, an optional config file, and environment variables, in that
// order of increasing precedence, using viper (A1).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// VectorBackend selects which ports.VectorStore implementation to wire.
type VectorBackend string

const (
	VectorBackendQdrant VectorBackend = "qdrant"
	VectorBackendSQLite VectorBackend = "sqlite"
	VectorBackendMemory VectorBackend = "memory"
)

// Config is every externally tunable knob the cmd entrypoint needs to wire
// the adapters and start serving.
type Config struct {
	HTTPAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	VectorBackend VectorBackend
	QdrantHost    string
	QdrantPort    int
	VectorSize    uint64
	SQLitePath    string

	OllamaBaseURL     string
	OllamaEmbedModel  string
	OllamaCompleteModel string

	LogLevel  string
	LogFormat string // "json" or "console"
}

// Load reads configuration from (in increasing precedence) built-in
// defaults, a config file named "kborchestrator" on the given search paths,
// and environment variables prefixed KBORCHESTRATOR_.
func Load(configPaths ...string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("kborchestrator")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("kborchestrator")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := Config{
		HTTPAddr:            v.GetString("http.addr"),
		RedisAddr:           v.GetString("redis.addr"),
		RedisPassword:       v.GetString("redis.password"),
		RedisDB:             v.GetInt("redis.db"),
		VectorBackend:       VectorBackend(v.GetString("vector.backend")),
		QdrantHost:          v.GetString("vector.qdrant.host"),
		QdrantPort:          v.GetInt("vector.qdrant.port"),
		VectorSize:          uint64(v.GetInt("vector.size")),
		SQLitePath:          v.GetString("vector.sqlite.path"),
		OllamaBaseURL:       v.GetString("ollama.base_url"),
		OllamaEmbedModel:    v.GetString("ollama.embed_model"),
		OllamaCompleteModel: v.GetString("ollama.complete_model"),
		LogLevel:            v.GetString("log.level"),
		LogFormat:           v.GetString("log.format"),
	}

	return cfg, cfg.validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("vector.backend", string(VectorBackendQdrant))
	v.SetDefault("vector.qdrant.host", "localhost")
	v.SetDefault("vector.qdrant.port", 6334)
	v.SetDefault("vector.size", 768)
	v.SetDefault("vector.sqlite.path", "./data")
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.embed_model", "nomic-embed-text")
	v.SetDefault("ollama.complete_model", "llama3")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func (c Config) validate() error {
	switch c.VectorBackend {
	case VectorBackendQdrant, VectorBackendSQLite, VectorBackendMemory:
	default:
		return fmt.Errorf("unknown vector.backend %q", c.VectorBackend)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("vector.size must be greater than zero")
	}
	return nil
}
