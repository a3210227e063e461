// Package engine supervises the Stockfish session: it starts and restarts the
// process, bounds think time, caches results and classifies failures.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/park285/cheese-board/internal/cache"
	"github.com/park285/cheese-board/internal/uci"
	"go.uber.org/zap"
)

const (
	defaultThink    = 250 * time.Millisecond
	defaultMinThink = 50 * time.Millisecond
	defaultMaxThink = 10 * time.Second
	defaultCacheTTL = time.Hour
	resyncTimeout   = time.Second
)

// Config bounds the engine. MaxDepth caps every search in plies; zero leaves
// only the think time.
type Config struct {
	BinaryPath   string
	Threads      int
	HashMB       int
	MultiPV      int
	MaxDepth     int
	MinThink     time.Duration
	MaxThink     time.Duration
	DefaultThink time.Duration
	SearchGrace  time.Duration
	ReadyTimeout time.Duration
	CacheTTL     time.Duration
	Stderr       io.Writer
}

func (c Config) withDefaults() Config {
	if c.MinThink <= 0 {
		c.MinThink = defaultMinThink
	}
	if c.MaxThink <= 0 {
		c.MaxThink = defaultMaxThink
	}
	if c.MaxThink < c.MinThink {
		c.MaxThink = c.MinThink
	}
	if c.DefaultThink <= 0 {
		c.DefaultThink = defaultThink
	}
	c.DefaultThink = min(max(c.DefaultThink, c.MinThink), c.MaxThink)
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	return c
}

// Analyzer owns at most one engine session.
type Analyzer struct {
	cfg    Config
	store  cache.Store
	logger *zap.Logger

	mu       sync.Mutex
	session  *uci.Session
	disabled bool
	cause    error
}

// New builds an analyzer. store may be nil to disable caching.
func New(cfg Config, store cache.Store, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{cfg: cfg.withDefaults(), store: store, logger: logger}
}

func (a *Analyzer) Config() Config { return a.cfg }

// ClampThink bounds a requested think time; zero or negative picks the default.
func (a *Analyzer) ClampThink(d time.Duration) time.Duration {
	if d <= 0 {
		return a.cfg.DefaultThink
	}
	return min(max(d, a.cfg.MinThink), a.cfg.MaxThink)
}

// Start launches the engine if it is not already running. A failure is
// returned as *uci.LaunchError and disables the analyzer until the next
// successful Start or Restart.
func (a *Analyzer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked(ctx)
}

func (a *Analyzer) startLocked(ctx context.Context) error {
	if a.session != nil {
		return nil
	}
	s, err := uci.Start(ctx, a.cfg.BinaryPath, uci.Options{
		Threads:      a.cfg.Threads,
		HashMB:       a.cfg.HashMB,
		MultiPV:      a.cfg.MultiPV,
		ReadyTimeout: a.cfg.ReadyTimeout,
		SearchGrace:  a.cfg.SearchGrace,
		Stderr:       a.cfg.Stderr,
		Logger:       a.logger.Named("uci"),
	})
	if err != nil {
		a.disabled, a.cause = true, err
		a.logger.Warn("engine launch failed", zap.String("path", a.cfg.BinaryPath), zap.Error(err))
		return err
	}
	if err := s.NewGame(ctx); err != nil {
		_ = s.Close()
		lerr := &uci.LaunchError{Path: a.cfg.BinaryPath, Err: err}
		a.disabled, a.cause = true, lerr
		return lerr
	}
	a.session = s
	a.disabled, a.cause = false, nil
	return nil
}

// Restart replaces the session. A failed restart disables the analyzer until
// the next successful Start or Restart.
func (a *Analyzer) Restart(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	if err := a.startLocked(ctx); err != nil {
		a.logger.Error("engine restart failed; engine disabled", zap.Error(err))
		return err
	}
	a.logger.Info("engine restarted")
	return nil
}

func (a *Analyzer) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked()
}

func (a *Analyzer) stopLocked() error {
	if a.session == nil {
		return nil
	}
	err := a.session.Close()
	a.session = nil
	return err
}

func (a *Analyzer) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil
}

func (a *Analyzer) Disabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disabled
}

// DisabledReason is nil while the analyzer is usable. Otherwise it wraps
// ErrDisabled and the failure that disabled it.
func (a *Analyzer) DisabledReason() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disabledErrLocked()
}

func (a *Analyzer) disabledErrLocked() error {
	switch {
	case !a.disabled:
		return nil
	case a.cause == nil:
		return ErrDisabled
	default:
		return fmt.Errorf("%w: %w", ErrDisabled, a.cause)
	}
}

// Disable stops the session and keeps the analyzer off until the next
// successful Start or Restart.
func (a *Analyzer) Disable(cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.stopLocked()
	a.disabled, a.cause = true, cause
	a.logger.Error("engine disabled", zap.Error(cause))
}

func (a *Analyzer) current() (*uci.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return a.session, nil
	}
	if a.disabled {
		return nil, a.disabledErrLocked()
	}
	return nil, ErrNotRunning
}

// discard drops s if it is still the current session.
func (a *Analyzer) discard(s *uci.Session) {
	a.mu.Lock()
	if a.session == s {
		a.session = nil
	}
	a.mu.Unlock()
	_ = s.Close()
}

// Evaluate searches q.FEN for q.ThinkTime (clamped). Results are served from
// the cache when the same position and think time were analysed before. The
// returned move is whatever the engine said; it is not re-validated.
func (a *Analyzer) Evaluate(ctx context.Context, q Query) (Result, error) {
	start := time.Now()
	think := a.ClampThink(q.ThinkTime)
	key := cacheKey(q.FEN, think, a.cfg.MaxDepth)
	log := a.logger.With(zap.String("query_id", q.ID.String()), zap.Duration("think", think))

	if res, ok := a.lookup(ctx, key); ok {
		res.QueryID = q.ID
		res.Cached = true
		res.Elapsed = time.Since(start)
		log.Info("engine result from cache", zap.String("best_move", res.BestMove), zap.Stringer("score", res.Score))
		return res, nil
	}

	s, err := a.current()
	if err != nil {
		return Result{}, err
	}

	resp, err := s.Search(ctx, uci.SearchRequest{FEN: q.FEN, MoveTime: think, Depth: a.cfg.MaxDepth})
	if err != nil {
		err = a.classify(ctx, s, err)
		log.Warn("engine query failed", zap.String("fen", q.FEN), zap.Error(err))
		return Result{}, err
	}

	res := Result{
		QueryID:  q.ID,
		FEN:      q.FEN,
		BestMove: resp.BestMove,
		Ponder:   resp.Ponder,
		Depth:    resp.Depth,
		Think:    think,
	}
	if c, ok := pickCandidate(resp); ok {
		res.Score = scoreFrom(c.Score)
		res.HasScore = true
		res.PV = c.Principal
		if c.Depth > 0 {
			res.Depth = c.Depth
		}
	}
	res.Elapsed = time.Since(start)
	log.Info("engine result",
		zap.String("best_move", res.BestMove),
		zap.Stringer("score", res.Score),
		zap.Int("depth", res.Depth),
		zap.Duration("elapsed", res.Elapsed),
	)
	a.remember(ctx, key, res)
	return res, nil
}

// pickCandidate prefers the line whose first move is the reported best move.
func pickCandidate(resp uci.SearchResponse) (uci.Candidate, bool) {
	for _, c := range resp.Candidates {
		if c.Move == resp.BestMove {
			return c, true
		}
	}
	if len(resp.Candidates) > 0 {
		return resp.Candidates[0], true
	}
	return uci.Candidate{}, false
}

func (a *Analyzer) classify(ctx context.Context, s *uci.Session, err error) error {
	if errors.Is(err, uci.ErrUnsynced) {
		a.discard(s)
	}
	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	case errors.Is(err, uci.ErrUnsynced):
		return fmt.Errorf("%w: %w", ErrEngineCrashed, err)
	case errors.Is(err, uci.ErrNoBestMove):
		return ErrNoMove
	case errors.Is(err, uci.ErrMalformed):
		return fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	case errors.Is(err, uci.ErrSearchTimeout):
		rctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
		defer cancel()
		if rerr := s.EnsureReady(rctx); rerr != nil {
			a.discard(s)
			return fmt.Errorf("%w: unresponsive after timeout: %w", ErrEngineCrashed, err)
		}
		return fmt.Errorf("%w: %w", ErrEngineTimeout, err)
	default:
		a.discard(s)
		return fmt.Errorf("%w: %w", ErrEngineCrashed, err)
	}
}

func cacheKey(fen string, think time.Duration, depth int) string {
	sum := sha256.Sum256([]byte(fen + "|" + strconv.FormatInt(think.Milliseconds(), 10) + "|" + strconv.Itoa(depth)))
	return "analysis:" + hex.EncodeToString(sum[:])
}

func (a *Analyzer) lookup(ctx context.Context, key string) (Result, bool) {
	if a.store == nil {
		return Result{}, false
	}
	var res Result
	ok, err := a.store.Get(ctx, key, &res)
	if err != nil {
		a.logger.Warn("analysis cache read failed", zap.Error(err))
		return Result{}, false
	}
	return res, ok
}

func (a *Analyzer) remember(ctx context.Context, key string, res Result) {
	if a.store == nil {
		return
	}
	if err := a.store.Set(ctx, key, res, a.cfg.CacheTTL); err != nil {
		a.logger.Warn("analysis cache write failed", zap.Error(err))
	}
}
