// Package config holds the settings shared by the narration pipeline.
// A Config is loaded explicitly and handed to constructors; there is
// no hidden global that springs to life on first access.
//
// Precedence, highest first: programmatic overrides, NARRATION_*
// environment variables (sections nested with "__", e.g.
// NARRATION_CACHE__DIR), a narration.toml or narration.yaml in the
// working directory then the home directory, built-in defaults.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/scenekit/narration/internal/cache"
)

// ConfigFileName is the base name of the optional settings file,
// looked up with .toml and .yaml extensions.
const ConfigFileName = "narration"

// EnvPrefix prefixes every recognized environment variable.
const EnvPrefix = "NARRATION_"

// CacheConfig is the cache section.
type CacheConfig struct {
	// Dir may contain placeholders resolved against the table given
	// to Load, e.g. "{media_dir}/narrations".
	Dir               string `mapstructure:"dir" env:"DIR"`
	AudioFileBaseName string `mapstructure:"audio_file_base_name" env:"AUDIO_FILE_BASE_NAME"`
	HashAlgo          string `mapstructure:"hash_algo" env:"HASH_ALGO"`
	HashLen           int    `mapstructure:"hash_len" env:"HASH_LEN"`
	Compression       bool   `mapstructure:"compression" env:"COMPRESSION"`
}

// TagsConfig is the tags section, mapping tag roles to tag names.
type TagsConfig struct {
	Bookmark string `mapstructure:"bookmark" env:"BOOKMARK"`
}

// Config is the root section.
type Config struct {
	Cache     CacheConfig `mapstructure:"cache" envPrefix:"CACHE__"`
	Tags      TagsConfig  `mapstructure:"tags" envPrefix:"TAGS__"`
	FrameRate float64     `mapstructure:"frame_rate" env:"FRAME_RATE"`
	Verbosity string      `mapstructure:"verbosity" env:"VERBOSITY"`
}

// Option mutates the Config after all other sources are applied.
type Option func(*Config)

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.dir", "{media_dir}/narrations")
	v.SetDefault("cache.audio_file_base_name", "speech")
	v.SetDefault("cache.hash_algo", "sha256")
	v.SetDefault("cache.hash_len", 0)
	v.SetDefault("cache.compression", false)
	v.SetDefault("tags.bookmark", "bookmark")
	v.SetDefault("frame_rate", 60.0)
	v.SetDefault("verbosity", "info")
}

// Load assembles a Config. placeholders resolves `{name}` tokens in
// string settings (a nil table is valid as long as nothing references
// a placeholder); opts apply programmatic overrides last. The global
// log level follows the resulting Verbosity.
func Load(placeholders map[string]any, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName(ConfigFileName)
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s file: %w", ConfigFileName, err)
		}
	}

	settings, err := Interpolate(v.AllSettings(), placeholders)
	if err != nil {
		return nil, err
	}

	resolved := viper.New()
	setDefaults(resolved)
	if err := resolved.MergeConfigMap(settings.(map[string]any)); err != nil {
		return nil, fmt.Errorf("config: merging settings: %w", err)
	}

	var cfg Config
	if err := resolved.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding settings: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	// Environment values and overrides may reintroduce placeholders,
	// in any string field.
	for _, field := range []*string{
		&cfg.Cache.Dir,
		&cfg.Cache.AudioFileBaseName,
		&cfg.Cache.HashAlgo,
		&cfg.Tags.Bookmark,
		&cfg.Verbosity,
	} {
		*field, err = InterpolateString(*field, placeholders)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Verbosity != "" {
		lvl, err := log.ParseLevel(cfg.Verbosity)
		if err != nil {
			return nil, fmt.Errorf("config: verbosity %q: %w", cfg.Verbosity, err)
		}
		log.SetLevel(lvl)
	}

	log.Debug("configuration loaded",
		"cache_dir", cfg.Cache.Dir,
		"hash_algo", cfg.Cache.HashAlgo,
		"bookmark_tag", cfg.Tags.Bookmark,
		"frame_rate", cfg.FrameRate)
	return &cfg, nil
}

// ArtifactCache builds the content-addressed cache described by the
// cache section.
func (c *Config) ArtifactCache() *cache.Cache {
	return &cache.Cache{
		Dir:      c.Cache.Dir,
		Algo:     c.Cache.HashAlgo,
		KeyLen:   c.Cache.HashLen,
		Compress: c.Cache.Compression,
	}
}
