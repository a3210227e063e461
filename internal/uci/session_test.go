package uci

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-board/internal/uci/ucitest"
)

func TestMain(m *testing.M) {
	ucitest.RunIfRequested()
	os.Exit(m.Run())
}

func startFake(t *testing.T, mode string, opt Options) (*Session, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "commands.log")
	t.Setenv(ucitest.EnvMode, mode)
	t.Setenv(ucitest.EnvLog, logPath)
	if opt.ReadyTimeout == 0 {
		opt.ReadyTimeout = 2 * time.Second
	}
	s, err := Start(context.Background(), os.Args[0], opt)
	if err != nil {
		t.Fatalf("Start(%s): %v", mode, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, logPath
}

func readCommands(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read command log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start(context.Background(), filepath.Join(t.TempDir(), "no-such-engine"), Options{})
	var lerr *LaunchError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
}

func TestStartNotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.txt")
	if err := os.WriteFile(path, []byte("not a program"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Start(context.Background(), path, Options{})
	var lerr *LaunchError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
}

func TestStartHandshakeTimeout(t *testing.T) {
	t.Setenv(ucitest.EnvMode, ucitest.ModeMute)
	start := time.Now()
	_, err := Start(context.Background(), os.Args[0], Options{ReadyTimeout: 200 * time.Millisecond})
	var lerr *LaunchError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("handshake timeout took %v", time.Since(start))
	}
}

func TestStartAppliesOptions(t *testing.T) {
	s, logPath := startFake(t, ucitest.ModeNormal, Options{Threads: 2, HashMB: 64, MultiPV: 3})
	if err := s.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	got := strings.Join(readCommands(t, logPath), "|")
	for _, want := range []string{
		"uci",
		"setoption name Threads value 2",
		"setoption name Hash value 64",
		"setoption name MultiPV value 3",
		"isready",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("command log %q missing %q", got, want)
		}
	}
}

func TestSearchBestMoveAndScore(t *testing.T) {
	s, logPath := startFake(t, ucitest.ModeNormal, Options{})
	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	resp, err := s.Search(context.Background(), SearchRequest{FEN: fen, MoveTime: 250 * time.Millisecond})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.BestMove != "e2e4" || resp.Ponder != "e7e5" {
		t.Fatalf("best/ponder = %q/%q", resp.BestMove, resp.Ponder)
	}
	if resp.Depth != 2 {
		t.Fatalf("depth = %d", resp.Depth)
	}
	if len(resp.Candidates) != 1 {
		t.Fatalf("candidates = %+v", resp.Candidates)
	}
	c := resp.Candidates[0]
	if c.Score != (Score{CP: 35}) || c.Move != "e2e4" || len(c.Principal) != 2 {
		t.Fatalf("candidate = %+v", c)
	}

	cmds := readCommands(t, logPath)
	var sawPosition, sawGo bool
	for _, cmd := range cmds {
		if cmd == "position fen "+fen {
			sawPosition = true
		}
		if cmd == "go movetime 250" {
			sawGo = true
		}
	}
	if !sawPosition || !sawGo {
		t.Fatalf("commands = %v", cmds)
	}
}

func TestSearchMateScores(t *testing.T) {
	s, _ := startFake(t, ucitest.ModeMate, Options{})
	resp, err := s.Search(context.Background(), SearchRequest{FEN: "startpos", MoveTime: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := resp.Candidates[0].Score; !got.IsMate() || got.Mate != 3 {
		t.Fatalf("score = %+v", got)
	}

	s2, _ := startFake(t, ucitest.ModeMated, Options{})
	resp, err = s2.Search(context.Background(), SearchRequest{FEN: "startpos", MoveTime: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := resp.Candidates[0].Score; got.Mate != -2 {
		t.Fatalf("score = %+v", got)
	}
}

func TestSearchNoBestMove(t *testing.T) {
	s, _ := startFake(t, ucitest.ModeNoBest, Options{})
	_, err := s.Search(context.Background(), SearchRequest{FEN: "startpos", MoveTime: 50 * time.Millisecond})
	if !errors.Is(err, ErrNoBestMove) {
		t.Fatalf("expected ErrNoBestMove, got %v", err)
	}
}

func TestSearchMalformedOutput(t *testing.T) {
	s, _ := startFake(t, ucitest.ModeGarbage, Options{})
	_, err := s.Search(context.Background(), SearchRequest{FEN: "startpos", MoveTime: 50 * time.Millisecond})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	// the session stays usable after a bad answer
	if err := s.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady after garbage: %v", err)
	}
}

func TestSearchCancelSendsStopAndResyncs(t *testing.T) {
	s, logPath := startFake(t, ucitest.ModeSlow, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := s.Search(ctx, SearchRequest{FEN: "startpos", MoveTime: 5 * time.Second})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
	if err := s.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady after cancel: %v", err)
	}
	var sawStop bool
	for _, cmd := range readCommands(t, logPath) {
		if cmd == "stop" {
			sawStop = true
		}
	}
	if !sawStop {
		t.Fatalf("stop was not sent")
	}
}

func TestSearchTimeout(t *testing.T) {
	s, _ := startFake(t, ucitest.ModeSilent, Options{SearchGrace: 50 * time.Millisecond, ReadyTimeout: 200 * time.Millisecond})
	start := time.Now()
	_, err := s.Search(context.Background(), SearchRequest{FEN: "startpos", MoveTime: 20 * time.Millisecond})
	if !errors.Is(err, ErrSearchTimeout) {
		t.Fatalf("expected ErrSearchTimeout, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout took %v", time.Since(start))
	}
}

func TestSearchEngineCrash(t *testing.T) {
	s, _ := startFake(t, ucitest.ModeCrash, Options{})
	_, err := s.Search(context.Background(), SearchRequest{FEN: "startpos", MoveTime: 50 * time.Millisecond})
	if !errors.Is(err, ErrEngineExited) {
		t.Fatalf("expected ErrEngineExited, got %v", err)
	}
	select {
	case <-s.Exited():
	case <-time.After(2 * time.Second):
		t.Fatalf("Exited not signalled after crash")
	}
	if _, err := s.Search(context.Background(), SearchRequest{FEN: "startpos", MoveTime: 50 * time.Millisecond}); err == nil {
		t.Fatalf("search on dead engine succeeded")
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, logPath := startFake(t, ucitest.ModeNormal, Options{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.Search(context.Background(), SearchRequest{FEN: "startpos", MoveTime: time.Millisecond}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	cmds := readCommands(t, logPath)
	if cmds[len(cmds)-1] != "quit" {
		t.Fatalf("last command = %q", cmds[len(cmds)-1])
	}
}

func TestParseInfo(t *testing.T) {
	cases := []struct {
		line  string
		ok    bool
		score Score
		depth int
		pv    bool
	}{
		{"info depth 12 seldepth 18 multipv 1 score cp -41 nodes 1 pv e7e5 g1f3", true, Score{CP: -41}, 12, true},
		{"info depth 20 score cp 17 lowerbound nodes 5 pv d2d4", true, Score{CP: 17}, 20, true},
		{"info depth 7 score mate -4 pv a1a2", true, Score{Mate: -4}, 7, true},
		{"info currmove e2e4 currmovenumber 1", false, Score{}, 0, false},
		{"info string NNUE evaluation enabled", false, Score{}, 0, false},
		{"info depth 3", true, Score{}, 3, false},
	}
	for _, tc := range cases {
		info, ok := parseInfo(tc.line)
		if ok != tc.ok {
			t.Fatalf("%q: ok = %v", tc.line, ok)
		}
		if !ok {
			continue
		}
		if info.depth != tc.depth || info.hasPV != tc.pv {
			t.Fatalf("%q: %+v", tc.line, info)
		}
		if tc.pv && info.candidate.Score != tc.score {
			t.Fatalf("%q: score %+v", tc.line, info.candidate.Score)
		}
	}
}

func TestBuildCommands(t *testing.T) {
	if got := buildPositionCommand(""); got != "position startpos\n" {
		t.Fatalf("startpos = %q", got)
	}
	if got := buildPositionCommand("8/8/8/8/8/8/8/K1k5 w - - 0 1"); got != "position fen 8/8/8/8/8/8/8/K1k5 w - - 0 1\n" {
		t.Fatalf("fen = %q", got)
	}
	if _, err := buildGoCommand(SearchRequest{}); err == nil {
		t.Fatalf("expected error without limits")
	}
	if got, _ := buildGoCommand(SearchRequest{MoveTime: 1500 * time.Millisecond}); got != "go movetime 1500\n" {
		t.Fatalf("go = %q", got)
	}
}
