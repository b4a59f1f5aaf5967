package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type StoreConfig struct {
	// Backend is one of "sqlite", "memgraph" or "memory".
	Backend string `toml:"backend"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type CRMConfig struct {
	BaseURL string `toml:"base_url"`
	// Token is a static bearer token. When ClientID is set the OAuth2 client
	// credentials flow is used instead.
	Token          string   `toml:"token"`
	TokenURL       string   `toml:"token_url"`
	ClientID       string   `toml:"client_id"`
	ClientSecret   string   `toml:"client_secret"`
	Scopes         []string `toml:"scopes"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	DryRun         bool     `toml:"dry_run"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// File, when set, receives logs through a size-rotated writer.
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type ScoringConfig struct {
	MatchThreshold    float64 `toml:"match_threshold"`
	ConflictThreshold float64 `toml:"conflict_threshold"`
	// NameBoost is added to the full-name ratio when first and last names both match.
	NameBoost float64 `toml:"name_boost"`
}

// BatchConfig tunes a reconciliation run. MinScore is nil when unset; an
// explicit 0 keeps every scored pair.
type BatchConfig struct {
	Workers             int      `toml:"workers"`
	MinScore            *float64 `toml:"min_score"`
	BlockPrefixLen      int      `toml:"block_prefix_len"`
	FullCompareMaxPairs int      `toml:"full_compare_max_pairs"`
	AutoApprove         bool     `toml:"auto_approve"`
	AutoRejectAINone    bool     `toml:"auto_reject_ai_none"`
}

// MinScoreValue returns MinScore, or DefaultMinScore when it is unset.
func (b BatchConfig) MinScoreValue() float64 {
	if b.MinScore == nil {
		return DefaultMinScore
	}
	return *b.MinScore
}

type AdjudicationConfig struct {
	Enabled bool `toml:"enabled"`
	// CacheMinutes keeps successful judgments for identical pairs. Zero disables the cache.
	CacheMinutes      int     `toml:"cache_minutes"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxConcurrent     int     `toml:"max_concurrent"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Prompt            string  `toml:"prompt"`
}

// SourceSchema lists, per canonical field, the source-specific keys to read in
// order of preference.
type SourceSchema struct {
	ID           []string `toml:"id"`
	FirstName    []string `toml:"first_name"`
	LastName     []string `toml:"last_name"`
	FullName     []string `toml:"full_name"`
	Email        []string `toml:"email"`
	Organization []string `toml:"organization"`
	Title        []string `toml:"title"`
	// Position holds "Title at Company" strings used when Title or Organization is absent.
	Position []string `toml:"position"`
}

type SchemasConfig struct {
	Profile SourceSchema `toml:"profile"`
	CRM     SourceSchema `toml:"crm"`
}

type MergeConfig struct {
	// Fields maps a profile key to the CRM key it updates.
	Fields map[string]string `toml:"fields"`
	// Append lists CRM keys whose new value is appended instead of replacing.
	Append []string `toml:"append"`
}

type ClusterConfig struct {
	// Method is "components" or "lpa".
	Method string `toml:"method"`
}

type Config struct {
	LLM          LLMConfig          `toml:"llm"`
	Memgraph     MemgraphConfig     `toml:"memgraph"`
	Store        StoreConfig        `toml:"store"`
	SQLite       SQLiteConfig       `toml:"sqlite"`
	CRM          CRMConfig          `toml:"crm"`
	Logging      LoggingConfig      `toml:"logging"`
	Server       ServerConfig       `toml:"server"`
	Scoring      ScoringConfig      `toml:"scoring"`
	Batch        BatchConfig        `toml:"batch"`
	Adjudication AdjudicationConfig `toml:"adjudication"`
	Schemas      SchemasConfig      `toml:"schemas"`
	Merge        MergeConfig        `toml:"merge"`
	Clusters     ClusterConfig      `toml:"clusters"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path when it exists and otherwise starts from an empty
// config. Env overrides and defaults are applied and the result validated.
func LoadOrDefault(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := Load(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides config values with environment variables when present.
func (c *Config) ApplyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.Memgraph.URI, "MEMGRAPH_URI")
	setString(&c.Memgraph.User, "MEMGRAPH_USER")
	setString(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.SQLite.Path, "SQLITE_PATH")
	setString(&c.CRM.BaseURL, "CRM_BASE_URL")
	setString(&c.CRM.Token, "CRM_TOKEN")
	setString(&c.CRM.ClientID, "CRM_CLIENT_ID")
	setString(&c.CRM.ClientSecret, "CRM_CLIENT_SECRET")
	setString(&c.CRM.TokenURL, "CRM_TOKEN_URL")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Server.Port, "PORT")

	if v := os.Getenv("ADJUDICATION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Adjudication.Enabled = b
		}
	}
}
