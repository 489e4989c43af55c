package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v9"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const DefaultUserAgent = "capcache/1.0"

var appIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

type Config struct {
	CacheDir    string   `env:"CAPCACHE_CACHE_DIR"`
	AppID       string   `env:"CAPCACHE_APP_ID"`
	Verbose     bool     `env:"CAPCACHE_VERBOSE"`
	UserAgent   string   `env:"CAPCACHE_USER_AGENT" envDefault:"capcache/1.0"`
	SharePaths  []string `env:"CAPCACHE_SHARE_PATHS" envSeparator:"," envDefault:"downloads=downloads"`
	Interactive bool
}

// ShareMapping is one name=path entry of SharePaths with Path made absolute.
type ShareMapping struct {
	Name string
	Path string
}

// Load reads the given dotenv files (".env" when none are given) and then the
// environment. Missing dotenv files are skipped; malformed ones are an error.
// Dotenv values never override variables that are already set.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("parse dotenv %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// BindFlags registers the persistent flags. Current values act as defaults, so
// flags override whatever Load found.
func BindFlags(flags *pflag.FlagSet, cfg *Config) {
	flags.StringVarP(&cfg.CacheDir, "cache-dir", "c", cfg.CacheDir, "Process cache root (default <user cache dir>/<app-id>)")
	flags.StringVarP(&cfg.AppID, "app-id", "a", cfg.AppID, "Application identity that owns shared references")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")
	flags.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent sent to http(s) sources")
	flags.StringSliceVar(&cfg.SharePaths, "share-path", cfg.SharePaths, "Shared path mapping name=path, relative to the cache dir")
}

// Finalize fills derived defaults and validates the result.
func (c *Config) Finalize() error {
	c.AppID = strings.TrimSpace(c.AppID)
	c.CacheDir = strings.TrimSpace(c.CacheDir)
	if c.CacheDir == "" && c.AppID != "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("resolve user cache dir: %w", err)
		}
		c.CacheDir = filepath.Join(base, c.AppID)
	}
	return c.Validate()
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AppID,
			validation.Required,
			validation.Match(appIDPattern).Error("must look like a package name, e.g. com.example.app"),
		),
		validation.Field(&c.CacheDir, validation.Required),
		validation.Field(&c.SharePaths, validation.Required, validation.Each(validation.By(checkSharePath))),
	)
}

func (c Config) ShareMappings() ([]ShareMapping, error) {
	mappings := make([]ShareMapping, 0, len(c.SharePaths))
	for _, entry := range c.SharePaths {
		name, path, err := splitSharePath(entry)
		if err != nil {
			return nil, err
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.CacheDir, path)
		}
		mappings = append(mappings, ShareMapping{Name: name, Path: filepath.Clean(path)})
	}
	return mappings, nil
}

func checkSharePath(value interface{}) error {
	entry, _ := value.(string)
	_, _, err := splitSharePath(entry)
	return err
}

func splitSharePath(entry string) (string, string, error) {
	name, path, ok := strings.Cut(strings.TrimSpace(entry), "=")
	name = strings.TrimSpace(name)
	path = strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return "", "", fmt.Errorf("share path %q must be name=path", entry)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", "", errors.New("share path name must be a single segment")
	}
	return name, path, nil
}
