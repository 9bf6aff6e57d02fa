package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/characterverse/character-facade/internal/query"
)

const (
	DriverMindsDB = "mindsdb"
	DriverSQLite  = "sqlite"
)

type Config struct {
	HTTPPort string `envconfig:"HTTP_PORT" default:"8000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	EngineDriver  string        `envconfig:"ENGINE_DRIVER" default:"mindsdb"`
	EngineTimeout time.Duration `envconfig:"ENGINE_TIMEOUT" default:"0s"`

	MindsDBURL      string `envconfig:"MINDSDB_URL" default:"http://127.0.0.1:47334"`
	MindsDBProject  string `envconfig:"MINDSDB_PROJECT" default:"mindsdb"`
	MindsDBUser     string `envconfig:"MINDSDB_USER"`
	MindsDBPassword string `envconfig:"MINDSDB_PASSWORD"`

	SQLitePath string `envconfig:"SQLITE_PATH" default:"characters.db"`

	KnowledgeBase  string `envconfig:"KB_TABLE" default:"character_kb_10000"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"character_agent"`
	ChatColumn     string `envconfig:"CHAT_ANSWER_COLUMN" default:"answer"`
	InsightsModel  string `envconfig:"INSIGHTS_MODEL" default:"character_insights"`
	InsightsColumn string `envconfig:"INSIGHTS_COLUMN" default:"response"`
	SearchLimit    int    `envconfig:"SEARCH_LIMIT" default:"5"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load reads a .env file if one exists, then the environment.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, dotenv, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, dotenv, err
	}
	return &cfg, dotenv, nil
}

func (c *Config) Validate() error {
	switch c.EngineDriver {
	case DriverMindsDB:
		if c.MindsDBURL == "" || c.MindsDBProject == "" {
			return fmt.Errorf("MINDSDB_URL and MINDSDB_PROJECT are required for the mindsdb driver")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported ENGINE_DRIVER: %s", c.EngineDriver)
	}
	if c.EngineTimeout < 0 {
		return fmt.Errorf("ENGINE_TIMEOUT must not be negative")
	}
	if err := c.Resources().Validate(); err != nil {
		return fmt.Errorf("invalid resource configuration: %w", err)
	}
	return nil
}

// Resources returns the engine object names the facade queries.
func (c *Config) Resources() query.Resources {
	return query.Resources{
		KnowledgeBase:  c.KnowledgeBase,
		ChatModel:      c.ChatModel,
		ChatColumn:     c.ChatColumn,
		InsightsModel:  c.InsightsModel,
		InsightsColumn: c.InsightsColumn,
		SearchLimit:    c.SearchLimit,
	}
}
