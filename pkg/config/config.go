// Package config reads the YAML document that describes a surrealodm setup: the storage
// backend, logging, the model types to define and their validation schemas.
//
// Every storage and log setting can be overridden through the environment:
//
//	SURREALODM_DRIVER:    memory|sqlite|postgres|surrealdb (default memory)
//	SURREALODM_URL:       DSN for sqlite and postgres, endpoint URL for surrealdb
//	SURREALODM_NAMESPACE: SurrealDB namespace
//	SURREALODM_DATABASE:  SurrealDB database
//	SURREALODM_LOG_LEVEL: zerolog level name (default info)
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/surrealdb/surrealodm/pkg/casts"
	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/validation"
	"gopkg.in/yaml.v3"
)

type Driver string

const (
	DriverMemory    Driver = "memory"
	DriverSQLite    Driver = "sqlite"
	DriverPostgres  Driver = "postgres"
	DriverSurrealDB Driver = "surrealdb"
)

const (
	EnvDriver    = "SURREALODM_DRIVER"
	EnvURL       = "SURREALODM_URL"
	EnvNamespace = "SURREALODM_NAMESPACE"
	EnvDatabase  = "SURREALODM_DATABASE"
	EnvLogLevel  = "SURREALODM_LOG_LEVEL"
)

type Config struct {
	Storage Storage                       `yaml:"storage"`
	Log     Log                           `yaml:"log"`
	Models  map[string]*Model             `yaml:"models"`
	Schemas map[string]*validation.Schema `yaml:"schemas"`
}

type Storage struct {
	Driver    Driver `yaml:"driver"`
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type Log struct {
	Level string `yaml:"level"`
	// Path is a file to append to. Empty logs to stdout.
	Path string `yaml:"path"`
}

// Model configures one model type. Casts maps attribute keys to cast names as
// accepted by casts.ByName.
type Model struct {
	Collection string            `yaml:"collection"`
	Schema     string            `yaml:"schema"`
	Timestamps bool              `yaml:"timestamps"`
	Hidden     []string          `yaml:"hidden"`
	Casts      map[string]string `yaml:"casts"`
}

// Default returns an in-memory setup logging at info.
func Default() *Config {
	return &Config{
		Storage: Storage{Driver: DriverMemory},
		Log:     Log{Level: "info"},
	}
}

// Parse decodes data on top of Default, applies the environment and validates the result.
func Parse(data []byte) (*Config, error) {
	conf := Default()
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	conf.ApplyEnv()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ApplyEnv overrides storage and log settings from the environment.
func (c *Config) ApplyEnv() {
	c.Storage.Driver = Driver(strings.ToLower(getEnvOrDefault(EnvDriver, string(c.Storage.Driver))))
	c.Storage.URL = getEnvOrDefault(EnvURL, c.Storage.URL)
	c.Storage.Namespace = getEnvOrDefault(EnvNamespace, c.Storage.Namespace)
	c.Storage.Database = getEnvOrDefault(EnvDatabase, c.Storage.Database)
	c.Log.Level = getEnvOrDefault(EnvLogLevel, c.Log.Level)
}

// Validate checks the driver, the cast names of every model and that every schema a
// model names is defined.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Storage.URL == "" {
			return fmt.Errorf("storage %s: url is required", c.Storage.Driver)
		}
	case DriverSurrealDB:
		if c.Storage.URL == "" || c.Storage.Namespace == "" || c.Storage.Database == "" {
			return fmt.Errorf("storage %s: url, namespace and database are required", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage: %w: %q", constants.ErrUnknownDriver, c.Storage.Driver)
	}

	for name, m := range c.Models {
		if m == nil {
			continue
		}
		for key, cast := range m.Casts {
			if _, err := casts.ByName(cast); err != nil {
				return fmt.Errorf("model %s: cast of %s: %w", name, key, err)
			}
		}
		if m.Schema != "" {
			if _, ok := c.Schemas[m.Schema]; !ok {
				return fmt.Errorf("model %s: schema %q is not defined", name, m.Schema)
			}
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}
