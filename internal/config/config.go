// Package config loads the termgraph configuration: built-in defaults, then a
// strict YAML file, then environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sanonone/termgraph/pkg/cache"
	"github.com/sanonone/termgraph/pkg/client"
	"github.com/sanonone/termgraph/pkg/definitions"
	"github.com/sanonone/termgraph/pkg/uts"
)

// Environment variables read by Load.
const (
	EnvAPIKey    = "UMLS_API_KEY"
	EnvCachePath = "TERMGRAPH_CACHE_PATH"
)

// Authentication modes.
const (
	AuthAPIKey = "apikey"
	AuthTicket = "ticket"
)

// Config is the whole termgraph configuration.
type Config struct {
	UMLS   UMLSConfig   `yaml:"umls"`
	Cache  cache.Config `yaml:"cache"`
	Search SearchConfig `yaml:"search"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`

	// VocabularyFile replaces the built-in vocabulary table when set.
	VocabularyFile string `yaml:"vocabulary_file"`
}

// UMLSConfig describes the upstream service and how to talk to it.
type UMLSConfig struct {
	APIKey  string `yaml:"api_key"`
	Auth    string `yaml:"auth" validate:"oneof=apikey ticket"`
	BaseURL string `yaml:"base_url" validate:"required,url"`
	AuthURL string `yaml:"auth_url" validate:"omitempty,url"`
	Version string `yaml:"version" validate:"required"`

	RateLimit   int           `yaml:"rate_limit" validate:"gte=1"`
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=1"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`

	RetryInitialInterval time.Duration `yaml:"retry_initial_interval" validate:"gte=0"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval" validate:"gte=0"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig enables the circuit breaker around upstream calls.
type BreakerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" validate:"required_if=Enabled true"`
	OpenTimeout         time.Duration `yaml:"open_timeout" validate:"gte=0"`
}

// SearchConfig holds the defaults applied to searches that do not override them.
type SearchConfig struct {
	Direction            string   `yaml:"direction" validate:"oneof=broader narrower"`
	StopOnFound          bool     `yaml:"stop_on_found"`
	MaxDistance          int      `yaml:"max_distance" validate:"gte=0"`
	Language             string   `yaml:"language" validate:"required"`
	Vocabularies         []string `yaml:"vocabularies" validate:"dive,required"`
	PreserveSemanticType bool     `yaml:"preserve_semantic_type"`
	TopK                 int      `yaml:"top_k" validate:"gte=1"`
	Distance             string   `yaml:"distance" validate:"oneof=jaccard cosine"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns a configuration that works against the public UTS
// once an API key is supplied.
func DefaultConfig() Config {
	return Config{
		UMLS: UMLSConfig{
			Auth:                 AuthAPIKey,
			BaseURL:              client.DefaultBaseURL,
			Version:              uts.DefaultVersion,
			RateLimit:            client.DefaultRateLimit,
			MaxAttempts:          client.DefaultMaxAttempts,
			Timeout:              30 * time.Second,
			RetryInitialInterval: 500 * time.Millisecond,
			RetryMaxInterval:     10 * time.Second,
			Breaker: BreakerConfig{
				ConsecutiveFailures: 5,
				OpenTimeout:         30 * time.Second,
			},
		},
		Cache: cache.Config{
			Backend: cache.BackendMemory,
			TTL:     24 * time.Hour,
		},
		Search: SearchConfig{
			Direction:   string(definitions.Broader),
			StopOnFound: true,
			Language:    definitions.DefaultLanguage,
			TopK:        definitions.DefaultTopK,
			Distance:    "jaccard",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    5 * time.Minute, // exhaustive searches can be slow
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults. Unknown keys are
// rejected. An empty path loads the defaults only. Environment overrides
// are applied last, then the result is validated.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to open config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("YAML syntax error in config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.UMLS.APIKey = v
	}
	if v, ok := lookup(EnvCachePath); ok && v != "" {
		c.Cache.Path = v
	}
}

// Validate checks field constraints and reports the first violation by its YAML path.
func (c Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(yamlName)
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s: failed %q check (value %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Backend == cache.BackendSQLite && c.Cache.Path == "" {
		return errors.New("invalid config: cache.path: required by the sqlite backend")
	}
	return nil
}

// SearchOptions returns the configured search defaults.
func (c Config) SearchOptions() definitions.SearchOptions {
	return definitions.SearchOptions{
		Direction:            definitions.Direction(c.Search.Direction),
		StopOnFound:          c.Search.StopOnFound,
		MaxDistance:          c.Search.MaxDistance,
		TargetVocabularies:   append([]string(nil), c.Search.Vocabularies...),
		TargetLanguage:       c.Search.Language,
		PreserveSemanticType: c.Search.PreserveSemanticType,
	}
}

func yamlName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// fieldPath drops the root type name from a validator namespace ("Config.umls.base_url").
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
