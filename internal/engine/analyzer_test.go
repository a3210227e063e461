package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/cache"
	"github.com/park285/cheese-board/internal/uci"
	"github.com/park285/cheese-board/internal/uci/ucitest"
)

const blackToMove = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

func TestMain(m *testing.M) {
	ucitest.RunIfRequested()
	os.Exit(m.Run())
}

func newAnalyzer(t *testing.T, mode string, store cache.Store) (*Analyzer, string) {
	t.Helper()
	return newAnalyzerWith(t, mode, store, Config{})
}

func newAnalyzerWith(t *testing.T, mode string, store cache.Store, cfg Config) (*Analyzer, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "commands.log")
	t.Setenv(ucitest.EnvMode, mode)
	t.Setenv(ucitest.EnvLog, logPath)
	t.Setenv(ucitest.EnvState, dir)
	cfg.BinaryPath = os.Args[0]
	cfg.SearchGrace = 100 * time.Millisecond
	cfg.ReadyTimeout = 500 * time.Millisecond
	cfg.MinThink = 10 * time.Millisecond
	a := New(cfg, store, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = a.Stop() })
	return a, logPath
}

func countGo(t *testing.T, logPath string) int {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "go ") {
			n++
		}
	}
	return n
}

func TestEvaluateBestMove(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeNormal, nil)
	q := NewQuery(board.StartFEN, 100*time.Millisecond)
	res, err := a.Evaluate(context.Background(), q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.QueryID != q.ID || res.BestMove != "e2e4" || res.Ponder != "e7e5" {
		t.Fatalf("result = %+v", res)
	}
	if !res.HasScore || res.Score != (Score{CP: 35}) || res.Depth != 2 {
		t.Fatalf("score/depth = %+v/%d", res.Score, res.Depth)
	}
	if got := res.WhiteScore().String(); got != "+0.35" {
		t.Fatalf("white score = %q", got)
	}
	if res.Cached {
		t.Fatalf("first result marked cached")
	}
}

func TestEvaluateScoreFromBlack(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeNormal, nil)
	res, err := a.Evaluate(context.Background(), NewQuery(blackToMove, 100*time.Millisecond))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Turn() != nchess.Black {
		t.Fatalf("turn = %v", res.Turn())
	}
	if got := res.WhiteScore().String(); got != "-0.35" {
		t.Fatalf("white score = %q", got)
	}
}

func TestEvaluateMate(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeMate, nil)
	res, err := a.Evaluate(context.Background(), NewQuery(board.StartFEN, 50*time.Millisecond))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.Score.IsMate() || res.Score.String() != "M3" || res.Depth != 5 {
		t.Fatalf("score = %+v depth %d", res.Score, res.Depth)
	}
	if len(res.PV) != 3 || res.PV[0] != "h5f7" {
		t.Fatalf("pv = %v", res.PV)
	}
}

func TestEvaluateUsesCache(t *testing.T) {
	store := cache.NewMemoryStore(8)
	a, logPath := newAnalyzer(t, ucitest.ModeNormal, store)
	ctx := context.Background()

	first, err := a.Evaluate(ctx, NewQuery(board.StartFEN, 100*time.Millisecond))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	q := NewQuery(board.StartFEN, 100*time.Millisecond)
	second, err := a.Evaluate(ctx, q)
	if err != nil {
		t.Fatalf("Evaluate cached: %v", err)
	}
	if !second.Cached || second.QueryID != q.ID {
		t.Fatalf("second result = %+v", second)
	}
	if second.BestMove != first.BestMove || second.Score != first.Score {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}
	if n := countGo(t, logPath); n != 1 {
		t.Fatalf("engine searched %d times", n)
	}

	if _, err := a.Evaluate(ctx, NewQuery(board.StartFEN, 200*time.Millisecond)); err != nil {
		t.Fatalf("Evaluate other think time: %v", err)
	}
	if n := countGo(t, logPath); n != 2 {
		t.Fatalf("different think time should miss the cache, searched %d", n)
	}
}

func TestEvaluateRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	store, err := cache.NewRedisStore(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer store.Close()

	a, _ := newAnalyzer(t, ucitest.ModeNormal, store)
	ctx := context.Background()
	if _, err := a.Evaluate(ctx, NewQuery(blackToMove, 100*time.Millisecond)); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("redis keys = %v", mr.Keys())
	}
	res, err := a.Evaluate(ctx, NewQuery(blackToMove, 100*time.Millisecond))
	if err != nil || !res.Cached {
		t.Fatalf("cached Evaluate: %+v %v", res, err)
	}
	if res.FEN != blackToMove || res.WhiteScore().String() != "-0.35" {
		t.Fatalf("decoded result = %+v", res)
	}
}

func TestClampThink(t *testing.T) {
	a := New(Config{MinThink: 50 * time.Millisecond, MaxThink: time.Second, DefaultThink: 250 * time.Millisecond}, nil, nil)
	cases := map[time.Duration]time.Duration{
		0:                      250 * time.Millisecond,
		-time.Second:           250 * time.Millisecond,
		time.Millisecond:       50 * time.Millisecond,
		400 * time.Millisecond: 400 * time.Millisecond,
		time.Minute:            time.Second,
	}
	for in, want := range cases {
		if got := a.ClampThink(in); got != want {
			t.Fatalf("ClampThink(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestEvaluateNoMove(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeNoBest, nil)
	_, err := a.Evaluate(context.Background(), NewQuery(board.StartFEN, 50*time.Millisecond))
	if !errors.Is(err, ErrNoMove) {
		t.Fatalf("expected ErrNoMove, got %v", err)
	}
	if !a.Available() {
		t.Fatalf("session dropped after no-move answer")
	}
}

func TestEvaluateMalformed(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeGarbage, nil)
	_, err := a.Evaluate(context.Background(), NewQuery(board.StartFEN, 50*time.Millisecond))
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
	if !a.Available() {
		t.Fatalf("session dropped after malformed output")
	}
}

func TestEvaluateTimeoutKeepsSession(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeSlow, nil)
	_, err := a.Evaluate(context.Background(), NewQuery(board.StartFEN, 20*time.Millisecond))
	if !errors.Is(err, ErrEngineTimeout) {
		t.Fatalf("expected ErrEngineTimeout, got %v", err)
	}
	if !a.Available() {
		t.Fatalf("session dropped after recoverable timeout")
	}
}

func TestEvaluateUnresponsiveIsCrash(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeSilent, nil)
	_, err := a.Evaluate(context.Background(), NewQuery(board.StartFEN, 20*time.Millisecond))
	if !errors.Is(err, ErrEngineCrashed) {
		t.Fatalf("expected ErrEngineCrashed, got %v", err)
	}
	if a.Available() {
		t.Fatalf("unsynced session kept")
	}
	if _, err := a.Evaluate(context.Background(), NewQuery(board.StartFEN, 20*time.Millisecond)); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestEvaluateCancelled(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeSlow, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := a.Evaluate(ctx, NewQuery(board.StartFEN, 5*time.Second))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !a.Available() {
		t.Fatalf("session dropped after cancel")
	}
}

func TestCrashAndRestart(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeCrashOnce, nil)
	ctx := context.Background()
	_, err := a.Evaluate(ctx, NewQuery(board.StartFEN, 50*time.Millisecond))
	if !errors.Is(err, ErrEngineCrashed) {
		t.Fatalf("expected ErrEngineCrashed, got %v", err)
	}
	if a.Available() {
		t.Fatalf("crashed session still available")
	}
	if err := a.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	res, err := a.Evaluate(ctx, NewQuery(board.StartFEN, 50*time.Millisecond))
	if err != nil || res.BestMove != "e2e4" {
		t.Fatalf("after restart: %+v %v", res, err)
	}
}

func TestLaunchFailureDisables(t *testing.T) {
	a := New(Config{BinaryPath: filepath.Join(t.TempDir(), "missing-stockfish")}, nil, nil)
	err := a.Start(context.Background())
	var lerr *uci.LaunchError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
	if !a.Disabled() || a.Available() {
		t.Fatalf("disabled=%v available=%v", a.Disabled(), a.Available())
	}
	if _, err := a.Evaluate(context.Background(), NewQuery(board.StartFEN, 0)); !errors.Is(err, ErrDisabled) || !errors.As(err, &lerr) {
		t.Fatalf("expected ErrDisabled wrapping the launch error, got %v", err)
	}
	if reason := a.DisabledReason(); !errors.As(reason, &lerr) {
		t.Fatalf("disabled reason = %v", reason)
	}
	if err := a.Restart(context.Background()); err == nil || !a.Disabled() {
		t.Fatalf("restart of missing binary: err=%v disabled=%v", err, a.Disabled())
	}
}

func TestStopIdempotent(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeNormal, nil)
	if err := a.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if _, err := a.Evaluate(context.Background(), NewQuery(board.StartFEN, 0)); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestResultMoveText(t *testing.T) {
	b := board.New()
	if got := (Result{BestMove: "g1f3"}).MoveText(b); got != "Nf3 (g1f3)" {
		t.Fatalf("MoveText = %q", got)
	}
	if got := (Result{BestMove: "a1a8"}).MoveText(b); got != "a1a8" {
		t.Fatalf("MoveText for illegal move = %q", got)
	}
	if got := (Result{}).MoveText(b); got != "" {
		t.Fatalf("MoveText empty = %q", got)
	}
}

func TestEngineOptionsForwarded(t *testing.T) {
	a, logPath := newAnalyzerWith(t, ucitest.ModeNormal, nil, Config{MultiPV: 2, MaxDepth: 12})
	if _, err := a.Evaluate(context.Background(), NewQuery(board.StartFEN, 100*time.Millisecond)); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{"setoption name MultiPV value 2", "go depth 12 movetime 100"} {
		if !strings.Contains(string(data), want+"\n") {
			t.Fatalf("command log lacks %q:\n%s", want, data)
		}
	}
}

func TestDisableUntilRestart(t *testing.T) {
	a, _ := newAnalyzer(t, ucitest.ModeNormal, nil)
	a.Disable(ErrEngineCrashed)
	if !a.Disabled() || a.Available() {
		t.Fatalf("disabled=%v available=%v", a.Disabled(), a.Available())
	}
	_, err := a.Evaluate(context.Background(), NewQuery(board.StartFEN, 50*time.Millisecond))
	if !errors.Is(err, ErrDisabled) || !errors.Is(err, ErrEngineCrashed) {
		t.Fatalf("Evaluate on disabled analyzer: %v", err)
	}
	if err := a.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if a.Disabled() || a.DisabledReason() != nil {
		t.Fatalf("restart did not clear the disabled state: %v", a.DisabledReason())
	}
}
