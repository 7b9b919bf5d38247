package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`

	// Rule engine subprocess. RuleEngineBin is the interpreter,
	// RuleEngineScript the classification script it runs.
	RuleEngineBin     string        `mapstructure:"RULE_ENGINE_BIN"`
	RuleEngineScript  string        `mapstructure:"RULE_ENGINE_SCRIPT"`
	RuleEngineTimeout time.Duration `mapstructure:"RULE_ENGINE_TIMEOUT"`

	NarrativeAPIURL  string        `mapstructure:"NARRATIVE_API_URL"`
	NarrativeAPIKey  string        `mapstructure:"NARRATIVE_API_KEY"`
	NarrativeTimeout time.Duration `mapstructure:"NARRATIVE_TIMEOUT"`

	UploadDir string `mapstructure:"UPLOAD_DIR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RULE_ENGINE_BIN", "python3")
	v.SetDefault("RULE_ENGINE_TIMEOUT", "30s")
	v.SetDefault("NARRATIVE_API_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("NARRATIVE_TIMEOUT", "60s")
	v.SetDefault("UPLOAD_DIR", "uploads")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("RULE_ENGINE_BIN")
	v.BindEnv("RULE_ENGINE_SCRIPT")
	v.BindEnv("RULE_ENGINE_TIMEOUT")
	v.BindEnv("NARRATIVE_API_URL")
	v.BindEnv("NARRATIVE_API_KEY")
	v.BindEnv("NARRATIVE_TIMEOUT")
	v.BindEnv("UPLOAD_DIR")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// mode JWT_SECRET must be set so the admin upload routes are actually guarded.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RuleEngineScript == "" {
		return fmt.Errorf("RULE_ENGINE_SCRIPT is required")
	}
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV is not development")
	}
	if c.RuleEngineTimeout <= 0 {
		return fmt.Errorf("RULE_ENGINE_TIMEOUT must be positive")
	}
	if c.NarrativeTimeout <= 0 {
		return fmt.Errorf("NARRATIVE_TIMEOUT must be positive")
	}
	return nil
}
