package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	DefaultStockfishPath = "stockfish"
	defaultSquareSize    = 72
	minSquareSize        = 32
	maxSquareSize        = 160
)

type AppConfig struct {
	StockfishPath string `yaml:"stockfish_path"`

	EngineThinkMs       int `yaml:"engine_think_ms"`
	EngineMinThinkMs    int `yaml:"engine_min_think_ms"`
	EngineMaxThinkMs    int `yaml:"engine_max_think_ms"`
	EngineSearchGraceMs int `yaml:"engine_search_grace_ms"`
	EngineThreads       int `yaml:"engine_threads"`
	EngineHashMB        int `yaml:"engine_hash_mb"`
	EngineMultiPV       int `yaml:"engine_multipv"`
	EngineMaxDepth      int `yaml:"engine_max_depth"`

	RedisURL            string `yaml:"redis_url"`
	AnalysisCacheTTLSec int    `yaml:"analysis_cache_ttl_sec"`
	AnalysisCacheSize   int    `yaml:"analysis_cache_size"`

	BoardFEN     string `yaml:"board_fen"`
	UISquareSize int    `yaml:"ui_square_size"`
	MessagesDir  string `yaml:"messages_dir"`
}

func defaults() *AppConfig {
	return &AppConfig{
		StockfishPath:       DefaultStockfishPath,
		EngineThinkMs:       250,
		EngineMinThinkMs:    50,
		EngineMaxThinkMs:    10000,
		EngineSearchGraceMs: 2000,
		EngineThreads:       1,
		EngineHashMB:        64,
		EngineMultiPV:       1,
		AnalysisCacheTTLSec: 3600,
		AnalysisCacheSize:   512,
		UISquareSize:        defaultSquareSize,
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// (or $CHEESE_CONFIG when path is empty) and environment overrides, in that order.
func Load(path string) (*AppConfig, error) {
	cfg := defaults()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("CHEESE_CONFIG"))
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("STOCKFISH_PATH")); v != "" {
		c.StockfishPath = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		c.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("BOARD_FEN")); v != "" {
		c.BoardFEN = v
	}
	if v := strings.TrimSpace(os.Getenv("MESSAGES_DIR")); v != "" {
		c.MessagesDir = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"ENGINE_THINK_MS", &c.EngineThinkMs},
		{"ENGINE_MIN_THINK_MS", &c.EngineMinThinkMs},
		{"ENGINE_MAX_THINK_MS", &c.EngineMaxThinkMs},
		{"ENGINE_SEARCH_GRACE_MS", &c.EngineSearchGraceMs},
		{"ENGINE_THREADS", &c.EngineThreads},
		{"ENGINE_HASH_MB", &c.EngineHashMB},
		{"ENGINE_MULTIPV", &c.EngineMultiPV},
		{"ENGINE_MAX_DEPTH", &c.EngineMaxDepth},
		{"ANALYSIS_CACHE_TTL_SEC", &c.AnalysisCacheTTLSec},
		{"ANALYSIS_CACHE_SIZE", &c.AnalysisCacheSize},
		{"UI_SQUARE_SIZE", &c.UISquareSize},
	}
	for _, it := range ints {
		v := strings.TrimSpace(os.Getenv(it.env))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", it.env, err)
		}
		*it.dst = n
	}
	return nil
}

func (c *AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.StockfishPath) == "" {
		errs = append(errs, errors.New("stockfish path is required"))
	}
	if c.EngineMinThinkMs <= 0 {
		errs = append(errs, fmt.Errorf("engine_min_think_ms must be > 0: %d", c.EngineMinThinkMs))
	}
	if c.EngineMaxThinkMs < c.EngineMinThinkMs {
		errs = append(errs, fmt.Errorf("engine_max_think_ms %d below minimum %d", c.EngineMaxThinkMs, c.EngineMinThinkMs))
	}
	if c.EngineThinkMs < c.EngineMinThinkMs || c.EngineThinkMs > c.EngineMaxThinkMs {
		errs = append(errs, fmt.Errorf("engine_think_ms %d outside [%d, %d]", c.EngineThinkMs, c.EngineMinThinkMs, c.EngineMaxThinkMs))
	}
	if c.EngineSearchGraceMs < 0 {
		errs = append(errs, fmt.Errorf("engine_search_grace_ms must be >= 0: %d", c.EngineSearchGraceMs))
	}
	if c.EngineThreads < 0 || c.EngineHashMB < 0 {
		errs = append(errs, errors.New("engine threads and hash must be >= 0"))
	}
	if c.EngineMultiPV < 1 || c.EngineMultiPV > 5 {
		errs = append(errs, fmt.Errorf("engine_multipv %d outside [1, 5]", c.EngineMultiPV))
	}
	if c.EngineMaxDepth < 0 {
		errs = append(errs, fmt.Errorf("engine_max_depth must be >= 0: %d", c.EngineMaxDepth))
	}
	if c.AnalysisCacheTTLSec < 0 || c.AnalysisCacheSize < 0 {
		errs = append(errs, errors.New("analysis cache ttl and size must be >= 0"))
	}
	if c.UISquareSize < minSquareSize || c.UISquareSize > maxSquareSize {
		errs = append(errs, fmt.Errorf("ui_square_size %d outside [%d, %d]", c.UISquareSize, minSquareSize, maxSquareSize))
	}
	if v := strings.TrimSpace(c.RedisURL); v != "" && !strings.HasPrefix(v, "redis://") && !strings.HasPrefix(v, "rediss://") {
		errs = append(errs, fmt.Errorf("redis url must use redis:// or rediss://"))
	}
	return errors.Join(errs...)
}

func (c *AppConfig) ThinkTime() time.Duration {
	return time.Duration(c.EngineThinkMs) * time.Millisecond
}

func (c *AppConfig) MinThink() time.Duration {
	return time.Duration(c.EngineMinThinkMs) * time.Millisecond
}

func (c *AppConfig) MaxThink() time.Duration {
	return time.Duration(c.EngineMaxThinkMs) * time.Millisecond
}

func (c *AppConfig) SearchGrace() time.Duration {
	return time.Duration(c.EngineSearchGraceMs) * time.Millisecond
}

func (c *AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.AnalysisCacheTTLSec) * time.Second
}
