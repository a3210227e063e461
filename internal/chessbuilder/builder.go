// Package chessbuilder turns an AppConfig into the editor's wired components.
package chessbuilder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/cache"
	"github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/gui"
	"github.com/park285/cheese-board/internal/msgcat"
	"github.com/park285/cheese-board/internal/panel"
	"github.com/park285/cheese-board/internal/render"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

type Deps struct {
	Config   *config.AppConfig
	Catalog  *msgcat.Catalog
	Cache    cache.Store
	Analyzer *engine.Analyzer
	Board    *board.Board
	Panel    *panel.Panel
	Renderer *render.Renderer
	Shell    *gui.Shell

	logger *zap.Logger
	stderr *zapio.Writer
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	store := newStore(ctx, cfg, logger)
	// engine stderr lines end up in the log at debug level
	stderr := &zapio.Writer{Log: logger.Named("stockfish"), Level: zap.DebugLevel}

	analyzer := engine.New(engine.Config{
		BinaryPath:   cfg.StockfishPath,
		Threads:      cfg.EngineThreads,
		HashMB:       cfg.EngineHashMB,
		MultiPV:      cfg.EngineMultiPV,
		MaxDepth:     cfg.EngineMaxDepth,
		MinThink:     cfg.MinThink(),
		MaxThink:     cfg.MaxThink(),
		DefaultThink: cfg.ThinkTime(),
		SearchGrace:  cfg.SearchGrace(),
		CacheTTL:     cfg.CacheTTL(),
		Stderr:       stderr,
	}, store, logger.Named("engine"))

	b := board.New()
	p := panel.New(b, analyzer, cat, logger.Named("panel"))
	if fen := strings.TrimSpace(cfg.BoardFEN); fen != "" {
		// a bad initial FEN leaves the start position and shows the parse error
		if err := p.LoadFEN(fen); err != nil {
			logger.Warn("initial fen rejected", zap.String("fen", fen), zap.Error(err))
		}
	}

	layout := render.NewLayout(cfg.UISquareSize, analyzer.Config().MinThink, analyzer.Config().MaxThink)
	renderer, err := render.New(layout)
	if err != nil {
		_ = p.Shutdown()
		_ = store.Close()
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	return &Deps{
		Config:   cfg,
		Catalog:  cat,
		Cache:    store,
		Analyzer: analyzer,
		Board:    b,
		Panel:    p,
		Renderer: renderer,
		Shell:    gui.New(p, layout),
		logger:   logger,
		stderr:   stderr,
	}, nil
}

// newStore prefers Redis when configured and falls back to an in-process cache.
func newStore(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) cache.Store {
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err == nil {
			logger.Info("analysis cache: redis")
			return rs
		}
		logger.Warn("redis unavailable; using memory cache", zap.Error(err))
	}
	return cache.NewMemoryStore(cfg.AnalysisCacheSize)
}

func (d *Deps) Title() string {
	return d.Catalog.Text("app.title", nil)
}

// Snapshot starts the engine, waits up to wait for a best move on the
// current position and writes the resulting frame as PNG. Engine failures
// end up in the picture rather than in the returned error.
func (d *Deps) Snapshot(w io.Writer, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	settle := func(busy func() bool) {
		for busy() && time.Now().Before(deadline) {
			d.Panel.Poll()
			time.Sleep(10 * time.Millisecond)
		}
		d.Panel.Poll()
	}

	d.Panel.StartEngine()
	settle(d.Panel.Restarting)
	if _, err := d.Panel.RequestBestMove(); err != nil {
		d.logger.Info("snapshot without best move", zap.Error(err))
	} else {
		settle(d.Panel.Busy)
	}
	return d.Renderer.RenderPNG(w, d.Shell.Frame())
}

// Close stops the engine and releases the cache.
func (d *Deps) Close() error {
	return errors.Join(d.Panel.Shutdown(), d.Cache.Close(), d.stderr.Close())
}
