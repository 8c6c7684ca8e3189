// Package config loads application settings with viper. Sources are merged
// in order: built-in defaults, a config file, a config directory, a .env file
// and RESTFUL_ environment variables.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/asaidimu/go-restful/cache"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables that override settings.
const EnvPrefix = "RESTFUL_"

// DefaultDatabaseURL is a SQLite file in the working directory.
const DefaultDatabaseURL = "file:restful.db?_busy_timeout=5000&_journal_mode=WAL&_cslike=1"

// requiredKeys must be set once every source is merged.
var requiredKeys = []string{"name", "bind.host", "bind.port"}

type BindConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Address joins host and port.
func (b BindConfig) Address() string {
	if strings.Contains(b.Host, ":") {
		return fmt.Sprintf("[%s]:%d", b.Host, b.Port)
	}
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

type DBConfig struct {
	Driver       string `mapstructure:"driver"`
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
	DB  int    `mapstructure:"db"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// Cache converts the settings into a cache.Config.
func (c CacheConfig) Cache() cache.Config {
	return cache.Config{
		Backend:  c.Backend,
		Size:     c.Size,
		TTL:      c.TTL,
		RedisURL: c.Redis.URL,
		RedisDB:  c.Redis.DB,
	}
}

type AuthConfig struct {
	// TokenDuration is the lifetime of login tokens.
	TokenDuration time.Duration `mapstructure:"token_duration"`
	// TokenCacheMax caps how long a resolved token stays cached.
	TokenCacheMax time.Duration `mapstructure:"token_cache_max"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type MigrationsConfig struct {
	Dir string `mapstructure:"dir"`
}

type CipherConfig struct {
	Key string `mapstructure:"key"`
	IV  string `mapstructure:"iv"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Config is the merged application configuration.
type Config struct {
	Name       string           `mapstructure:"name"`
	Debug      bool             `mapstructure:"debug"`
	UTC        bool             `mapstructure:"utc"`
	TimeZone   string           `mapstructure:"time_zone"`
	Bind       BindConfig       `mapstructure:"bind"`
	DB         DBConfig         `mapstructure:"db"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Cipher     CipherConfig     `mapstructure:"cipher"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

// Options names the sources to load. Empty fields are skipped.
type Options struct {
	File    string
	Dir     string
	EnvFile string
	// Environ replaces os.Environ, mainly for tests.
	Environ []string
}

// MissingKeyError reports a required key that no source set.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("config: attribute %q must be set", e.Key)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("utc", true)
	v.SetDefault("time_zone", "UTC")
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.url", DefaultDatabaseURL)
	v.SetDefault("db.max_open_conns", 0)
	v.SetDefault("logger.level", "info")
	v.SetDefault("cache.backend", cache.BackendMemory)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", "1800s")
	v.SetDefault("cache.redis.url", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("auth.token_duration", "7200s")
	v.SetDefault("auth.token_cache_max", "1800s")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("ratelimit.rps", 0)
	v.SetDefault("ratelimit.burst", 0)
	v.SetDefault("migrations.dir", "migrations")
	v.SetDefault("cipher.key", "")
	v.SetDefault("cipher.iv", "")
	v.SetDefault("cors.allowed_origins", []string{})
}

// Load merges every source and checks the required keys.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.File, err)
		}
	}

	if opts.Dir != "" {
		files, err := configFiles(opts.Dir)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			v.SetConfigFile(file)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
			}
		}
	}

	env := make(map[string]string)
	if opts.EnvFile != "" {
		values, err := godotenv.Read(opts.EnvFile)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read env file %s: %w", opts.EnvFile, err)
		}
		for k, val := range values {
			env[k] = val
		}
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	for _, kv := range environ {
		if k, val, ok := strings.Cut(kv, "="); ok {
			env[k] = val
		}
	}
	applyEnv(v, env)

	for _, key := range requiredKeys {
		if !v.IsSet(key) || v.GetString(key) == "" {
			return nil, &MissingKeyError{Key: key}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// configFiles lists the files viper can parse under dir, recursively, in
// lexical order.
func configFiles(dir string) ([]string, error) {
	supported := make(map[string]bool, len(viper.SupportedExts))
	for _, ext := range viper.SupportedExts {
		supported["."+ext] = true
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && supported[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read config dir %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// applyEnv maps RESTFUL_ variables onto keys. Known keys match exactly, so
// RESTFUL_AUTH_TOKEN_DURATION sets auth.token_duration; any other variable
// maps every underscore to a dot.
func applyEnv(v *viper.Viper, env map[string]string) {
	known := make(map[string]string)
	for _, key := range v.AllKeys() {
		known[EnvPrefix+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}
	for _, key := range requiredKeys {
		known[EnvPrefix+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key, ok := known[name]
		if !ok {
			key = strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, EnvPrefix), "_", "."))
		}
		value := env[name]
		if key == "cors.allowed_origins" {
			v.Set(key, strings.Split(value, ","))
			continue
		}
		v.Set(key, value)
	}
}
