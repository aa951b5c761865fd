package config

import (
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Config struct {
	Dictionary  DictionaryConfig  `mapstructure:"dictionary"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Suggestions SuggestionsConfig `mapstructure:"suggestions"`
	Normalizer  NormalizerConfig  `mapstructure:"normalizer"`
	Search      SearchConfig      `mapstructure:"search"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Server      ServerConfig      `mapstructure:"server"`
}

type DictionaryConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	Token          string        `mapstructure:"token"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts    uint          `mapstructure:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
	// RateLimit is requests per second; 0 disables throttling.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
}

type CacheConfig struct {
	Capacity       int           `mapstructure:"capacity" validate:"min=1"`
	TTL            time.Duration `mapstructure:"ttl" validate:"gte=0"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout" validate:"gt=0"`
	// Directory enables on-disk persistence of cached entries when set.
	Directory string `mapstructure:"directory"`
}

type SuggestionsConfig struct {
	MaxResults     int    `mapstructure:"max_results" validate:"min=1,max=100"`
	KnownTermsFile string `mapstructure:"known_terms_file" validate:"omitempty,file"`
}

type NormalizerConfig struct {
	Locale         string `mapstructure:"locale" validate:"omitempty,locale"`
	FoldDiacritics bool   `mapstructure:"fold_diacritics"`
}

type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
}

type StorageConfig struct {
	Driver     string      `mapstructure:"driver" validate:"oneof=sqlite mysql"`
	SQLitePath string      `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	MySQL      MySQLConfig `mapstructure:"mysql"`
}

type MySQLConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port" validate:"min=1,max=65535"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/owl")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("dictionary.base_url", "https://owlbot.info/api/v4")
	v.SetDefault("dictionary.timeout", 10*time.Second)
	v.SetDefault("dictionary.max_attempts", 3)
	v.SetDefault("dictionary.initial_backoff", 200*time.Millisecond)
	v.SetDefault("dictionary.max_backoff", 2*time.Second)
	v.SetDefault("dictionary.rate_limit", 5)
	v.SetDefault("cache.capacity", 50)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.refresh_timeout", 30*time.Second)
	v.SetDefault("cache.directory", "")
	v.SetDefault("suggestions.max_results", 10)
	v.SetDefault("suggestions.known_terms_file", "")
	v.SetDefault("normalizer.locale", "en")
	v.SetDefault("normalizer.fold_diacritics", false)
	v.SetDefault("search.debounce", 300*time.Millisecond)
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "owl.db")
	v.SetDefault("storage.mysql.host", "localhost")
	v.SetDefault("storage.mysql.port", 3306)
	v.SetDefault("storage.mysql.database", "owl")
	v.SetDefault("storage.mysql.username", "owl")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})

	// Secrets are read from environment variables as well as the config file
	if err := v.BindEnv("dictionary.token", "OWLBOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind OWLBOT_TOKEN environment variable: %w", err)
	}
	if err := v.BindEnv("storage.mysql.password", "OWL_DB_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind OWL_DB_PASSWORD environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}
