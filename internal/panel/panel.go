// Package panel holds the editor's control state: board actions, think time
// and the background engine query. All methods except the worker goroutines
// run on the GUI loop; results come back through Poll.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/interaction"
	"github.com/park285/cheese-board/internal/msgcat"
	"go.uber.org/zap"
)

const (
	flashFor       = 3 * time.Second
	restartTimeout = 10 * time.Second
	deliveryBuffer = 8
)

// Analyzer is what the panel needs from the engine supervisor.
type Analyzer interface {
	Evaluate(ctx context.Context, q engine.Query) (engine.Result, error)
	Start(ctx context.Context) error
	Restart(ctx context.Context) error
	Stop() error
	ClampThink(d time.Duration) time.Duration
	// DisabledReason is nil while the engine may be queried.
	DisabledReason() error
	Disable(cause error)
}

var (
	ErrNoBestMove = errors.New("no best move to apply")
	ErrRestarting = errors.New("engine restart in progress")
)

type deliveryKind int

const (
	searchDone deliveryKind = iota
	startDone
)

type delivery struct {
	kind      deliveryKind
	query     engine.Query
	version   uint64
	result    engine.Result
	err       error
	restarted bool
	explicit  bool
}

type flash struct {
	text  string
	bad   bool
	until time.Time
}

type Panel struct {
	board    *board.Board
	ctrl     *interaction.Controller
	analyzer Analyzer
	cat      *msgcat.Catalog
	logger   *zap.Logger
	now      func() time.Time

	think time.Duration

	base    context.Context
	stopAll context.CancelFunc
	wg      sync.WaitGroup
	results chan delivery

	// in-flight query slot, owned by the GUI loop
	cancel         context.CancelFunc
	pending        uuid.UUID
	pendingVersion uint64
	restarting     bool

	result        *engine.Result
	resultVersion uint64
	lastMove      *board.Move
	lastVersion   uint64

	status string
	flash  flash

	shutdownOnce sync.Once
	shutdownErr  error
}

// New wires a panel around b. A nil catalog uses the embedded messages.
func New(b *board.Board, a Analyzer, cat *msgcat.Catalog, logger *zap.Logger) *Panel {
	if cat == nil {
		cat = msgcat.MustDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, stop := context.WithCancel(context.Background())
	p := &Panel{
		board:    b,
		ctrl:     interaction.New(b),
		analyzer: a,
		cat:      cat,
		logger:   logger,
		now:      time.Now,
		think:    a.ClampThink(0),
		base:     base,
		stopAll:  stop,
		results:  make(chan delivery, deliveryBuffer),
	}
	p.status = p.text("status.ready", nil)
	return p
}

func (p *Panel) Board() *board.Board { return p.board }

func (p *Panel) Controller() *interaction.Controller { return p.ctrl }

func (p *Panel) Think() time.Duration { return p.think }

// Busy reports whether a query is in flight.
func (p *Panel) Busy() bool { return p.pending != uuid.Nil }

// Restarting reports whether an engine start is in flight.
func (p *Panel) Restarting() bool { return p.restarting }

// Pending is the id of the query whose result will be accepted, if any.
func (p *Panel) Pending() (uuid.UUID, bool) { return p.pending, p.pending != uuid.Nil }

// Result returns the displayed evaluation if it still matches the board.
func (p *Panel) Result() (engine.Result, bool) {
	if p.result == nil || p.resultVersion != p.board.Version() {
		return engine.Result{}, false
	}
	return *p.result, true
}

func (p *Panel) Status() string { return p.status }

// Flash returns the transient message, if it has not expired.
func (p *Panel) Flash() (string, bool, bool) {
	if p.flash.text == "" || !p.now().Before(p.flash.until) {
		return "", false, false
	}
	return p.flash.text, p.flash.bad, true
}

func (p *Panel) text(key string, data map[string]any) string {
	return p.cat.Text(key, data)
}

func (p *Panel) setStatus(key string, data map[string]any) {
	p.status = p.text(key, data)
}

func (p *Panel) flashOK(msg string) {
	p.flash = flash{text: msg, until: p.now().Add(flashFor)}
}

func (p *Panel) flashErr(msg string) {
	p.flash = flash{text: msg, bad: true, until: p.now().Add(flashFor)}
}

// invalidate drops the in-flight query and the displayed result after the
// position changed.
func (p *Panel) invalidate() {
	p.cancelPending()
	p.result = nil
}

func (p *Panel) cancelPending() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.pending = uuid.Nil
}

func sideName(c *msgcat.Catalog, clr nchess.Color) string {
	if clr == nchess.Black {
		return c.Text("label.black", nil)
	}
	return c.Text("label.white", nil)
}

// LeftClick forwards to the interaction controller and reports the outcome.
func (p *Panel) LeftClick(sq nchess.Square) interaction.Outcome {
	out := p.ctrl.LeftClick(sq)
	switch out.Kind {
	case interaction.Selected:
		p.setStatus("status.selected", map[string]any{"Square": sq.String()})
	case interaction.Moved:
		p.afterMove(out.Move, "status.moved")
	case interaction.Illegal:
		p.flashErr(p.describe(out.Err))
		p.setStatus("status.ready", nil)
	}
	return out
}

func (p *Panel) RightClick(sq nchess.Square) interaction.Outcome {
	return p.ctrl.RightClick(sq)
}

func (p *Panel) ClosePalette() { p.ctrl.ClosePalette() }

// ChoosePalette applies an edit-palette entry to the open palette square.
func (p *Panel) ChoosePalette(e interaction.PaletteEntry) interaction.Outcome {
	out := p.ctrl.Choose(e)
	switch {
	case out.Err != nil:
		p.flashErr(p.describe(out.Err))
	case out.Kind == interaction.Edited:
		p.invalidate()
		p.lastMove = nil
		p.setStatus("status.edited", map[string]any{"Square": out.Square.String()})
	}
	return out
}

func (p *Panel) afterMove(mv board.Move, key string) {
	p.invalidate()
	p.lastMove = &mv
	p.lastVersion = p.board.Version()
	label := mv.SAN
	if label == "" {
		label = mv.UCI
	}
	p.setStatus(key, map[string]any{"Move": label})
	switch p.board.Status() {
	case nchess.Checkmate:
		p.flashOK(p.text("status.checkmate", nil))
	case nchess.Stalemate:
		p.flashOK(p.text("status.stalemate", nil))
	}
}

func (p *Panel) afterReplace(key string, data map[string]any) {
	p.invalidate()
	p.ctrl.Reset()
	p.lastMove = nil
	p.setStatus(key, data)
}

func (p *Panel) Reset() {
	p.board.Reset()
	p.afterReplace("status.reset", nil)
}

func (p *Panel) Clear() {
	p.board.Clear()
	p.afterReplace("status.cleared", nil)
}

func (p *Panel) FlipSide() {
	p.board.FlipSide()
	p.afterReplace("status.flipped", map[string]any{"Side": sideName(p.cat, p.board.Turn())})
}

// LoadFEN replaces the position. A bad FEN leaves everything as it was.
func (p *Panel) LoadFEN(text string) error {
	if err := p.board.LoadFEN(text); err != nil {
		p.flashErr(p.describe(err))
		p.logger.Info("fen rejected", zap.String("input", text), zap.Error(err))
		return err
	}
	p.afterReplace("status.fen_loaded", nil)
	return nil
}

// SetThink clamps d to the engine's bounds.
func (p *Panel) SetThink(d time.Duration) time.Duration {
	p.think = p.analyzer.ClampThink(d)
	return p.think
}

func (p *Panel) AdjustThink(delta time.Duration) time.Duration {
	d := p.SetThink(p.think + delta)
	p.flashOK(p.text("status.think_set", map[string]any{"Ms": d.Milliseconds()}))
	return d
}

// RequestBestMove starts a query for the current position and returns at
// once. A query already in flight is cancelled and its result ignored.
func (p *Panel) RequestBestMove() (uuid.UUID, error) {
	if p.restarting {
		p.flashErr(p.text("error.engine_busy", nil))
		return uuid.Nil, ErrRestarting
	}
	if err := p.analyzer.DisabledReason(); err != nil {
		p.flashErr(p.describe(err))
		return uuid.Nil, err
	}
	if err := p.board.Playable(); err != nil {
		p.flashErr(p.describe(err))
		return uuid.Nil, err
	}
	switch p.board.Status() {
	case nchess.Checkmate, nchess.Stalemate:
		p.flashErr(p.describe(engine.ErrNoMove))
		return uuid.Nil, engine.ErrNoMove
	}

	p.cancelPending()
	q := engine.NewQuery(p.board.FEN(), p.think)
	ctx, cancel := context.WithCancel(p.base)
	p.cancel = cancel
	p.pending = q.ID
	p.pendingVersion = p.board.Version()
	p.setStatus("status.thinking", map[string]any{"Ms": p.think.Milliseconds()})

	p.wg.Add(1)
	go p.search(ctx, q, p.pendingVersion)
	return q.ID, nil
}

// search runs in its own goroutine and never touches panel state directly.
// It owns the engine lifecycle for the duration of the query: the one
// automatic restart and the disable after a second failure happen here.
func (p *Panel) search(ctx context.Context, q engine.Query, version uint64) {
	defer p.wg.Done()
	log := p.logger.With(zap.String("query_id", q.ID.String()))

	res, err := p.analyzer.Evaluate(ctx, q)
	restarted := false
	if needsRestart(err) && ctx.Err() == nil {
		log.Warn("engine lost; restarting once", zap.Error(err))
		rctx, cancel := context.WithTimeout(p.base, restartTimeout)
		rerr := p.analyzer.Restart(rctx)
		cancel()
		if rerr != nil {
			err = rerr
		} else {
			restarted = true
			res, err = p.analyzer.Evaluate(ctx, q)
			if needsRestart(err) && ctx.Err() == nil {
				log.Error("engine failed again after restart", zap.Error(err))
				p.analyzer.Disable(err)
				err = fmt.Errorf("%w: %w", engine.ErrDisabled, err)
			}
		}
	}
	p.deliver(delivery{kind: searchDone, query: q, version: version, result: res, err: err, restarted: restarted})
}

func needsRestart(err error) bool {
	return errors.Is(err, engine.ErrEngineCrashed) || errors.Is(err, engine.ErrNotRunning)
}

func (p *Panel) deliver(d delivery) {
	select {
	case p.results <- d:
	case <-p.base.Done():
	}
}

// StartEngine launches the engine in the background.
func (p *Panel) StartEngine() {
	p.startEngine(false)
}

// RestartEngine replaces the engine process in the background. It is the
// only way out of the disabled state.
func (p *Panel) RestartEngine() {
	p.startEngine(true)
}

func (p *Panel) startEngine(restart bool) {
	if p.restarting {
		return
	}
	p.cancelPending()
	p.restarting = true
	if restart {
		p.setStatus("status.engine_restarting", nil)
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.base, restartTimeout)
		defer cancel()
		var err error
		if restart {
			err = p.analyzer.Restart(ctx)
		} else {
			err = p.analyzer.Start(ctx)
		}
		p.deliver(delivery{kind: startDone, err: err, explicit: restart})
	}()
}

// Poll applies finished background work. It never blocks and reports
// whether anything visible changed.
func (p *Panel) Poll() bool {
	changed := false
	for {
		select {
		case d := <-p.results:
			if p.accept(d) {
				changed = true
			}
		default:
			return changed
		}
	}
}

func (p *Panel) accept(d delivery) bool {
	if d.kind == startDone {
		p.restarting = false
		if d.err != nil {
			msg := p.describe(d.err)
			p.status = msg
			p.flashErr(msg)
			return true
		}
		if d.explicit {
			p.setStatus("status.engine_restarted", nil)
		} else {
			p.setStatus("status.engine_ready", nil)
		}
		return true
	}

	log := p.logger.With(zap.String("query_id", d.query.ID.String()))
	if d.query.ID != p.pending {
		log.Debug("stale engine result dropped")
		return false
	}
	p.pending = uuid.Nil
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if d.version != p.board.Version() {
		log.Debug("engine result for an old position dropped")
		return true
	}
	if d.err != nil {
		if errors.Is(d.err, context.Canceled) {
			return true
		}
		msg := p.describe(d.err)
		p.flashErr(msg)
		p.setStatus("status.ready", nil)
		return true
	}

	res := d.result
	p.result = &res
	p.resultVersion = d.version
	if d.restarted {
		p.setStatus("status.engine_restarted", nil)
	} else {
		p.setStatus("status.ready", nil)
	}
	return true
}

// ApplyBestMove plays the displayed best move.
func (p *Panel) ApplyBestMove() error {
	res, ok := p.Result()
	if !ok || res.BestMove == "" {
		p.flashErr(p.text("error.no_best_move", nil))
		return ErrNoBestMove
	}
	mv, err := p.board.ApplyMoveUCI(res.BestMove)
	if err != nil {
		p.flashErr(p.text("error.apply_failed", map[string]any{"Move": res.BestMove}))
		return err
	}
	p.ctrl.Reset()
	p.afterMove(mv, "status.applied")
	return nil
}

// Shutdown cancels background work, waits for it and stops the engine.
func (p *Panel) Shutdown() error {
	p.shutdownOnce.Do(func() {
		p.cancelPending()
		p.stopAll()
		p.wg.Wait()
		p.shutdownErr = p.analyzer.Stop()
	})
	return p.shutdownErr
}
