package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting, populated from the environment
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	DBHost      string   `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string   `env:"DB_PORT" envDefault:"5432"`
	DBUser      string   `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string   `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName      string   `env:"DB_NAME" envDefault:"tirestock"`
	DBSSLMode   string   `env:"DB_SSLMODE" envDefault:"disable"`
	JWTSecret   string   `env:"JWT_SECRET"`
	GinMode     string   `env:"GIN_MODE" envDefault:"debug"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`
}

// Load reads configs/.env if present, then parses the environment
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// DSN assembles the postgres connection string
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort +
		"/" + c.DBName + "?sslmode=" + c.DBSSLMode
}
