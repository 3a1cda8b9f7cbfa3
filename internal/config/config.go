// Package config handles loading and parsing application configuration.
// Sources, lowest to highest priority:
//  1. Defaults from the env-default struct tags below.
//  2. An optional YAML file named by CONFIG_PATH or --config.
//  3. Environment variables, including those loaded from an optional .env
//     file in the working directory.
//
// Every setting is optional: the service starts with no configuration at
// all, using a local SQLite file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/aanand-mishra/student-records-api/internal/storage"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden by the
// corresponding environment variable (env:"...").
type Config struct {
	// Env is the deployment profile. It controls log format and verbosity.
	// Known values: "dev", "staging", "prod".
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	Storage Storage `yaml:"storage"`

	// HTTPServer is embedded so its fields and methods are promoted:
	// cfg.Addr() works as well as cfg.HTTPServer.Addr().
	HTTPServer `yaml:"http_server"`
}

// Storage selects and configures the persistence backend.
type Storage struct {
	// Driver is one of "sqlite", "postgres", "mongo".
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`

	// Path is the SQLite database file.
	Path string `yaml:"path" env:"STORAGE_PATH" env-default:"storage/students.db"`

	PostgresDSN string `yaml:"postgres_dsn" env:"DB_DSN" env-default:"postgres://localhost:5432/students?sslmode=disable"`

	MongoURI      string `yaml:"mongo_uri" env:"MONGODB_URI" env-default:"mongodb://localhost:27017"`
	MongoDatabase string `yaml:"mongo_database" env:"MONGODB_DATABASE" env-default:"students"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	// Host is empty to listen on all interfaces.
	Host string `yaml:"host" env:"HTTP_SERVER_HOST"`
	Port string `yaml:"port" env:"SERVER_PORT" env-default:"8080"`

	// AllowedOrigins lists the origins allowed to call /api/* from a browser.
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`

	// RateLimit is requests per second per client address; 0 disables it.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT_RPS" env-default:"0"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_LIMIT_BURST" env-default:"20"`
}

// Addr is the TCP address the server listens on, e.g. ":8080".
func (h HTTPServer) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// Load reads the configuration. args are the command-line arguments
// without the program name.
func Load(args []string) (*Config, error) {
	// The .env file is a convenience for local runs; its absence is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: ignoring unreadable .env file: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		flags := flag.NewFlagSet("student-records", flag.ContinueOnError)
		path := flags.String("config", "", "Path to the configuration YAML file")
		if err := flags.Parse(args); err != nil {
			return nil, fmt.Errorf("parse flags: %w", err)
		}
		configPath = *path
	}

	var cfg Config
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configPath)
		}
		// ReadConfig parses the YAML file, then applies env overrides and
		// env-default values for anything still unset.
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read environment: %w", err)
	}

	switch cfg.Storage.Driver {
	case storage.DriverSQLite, storage.DriverPostgres, storage.DriverMongo:
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	return &cfg, nil
}

// MustLoad reads, validates, and returns the application config.
//
// Functions prefixed with "Must" are allowed to exit on failure. Callers
// do not need to check a returned error: if this function returns, the
// config is valid.
func MustLoad() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	return cfg
}
