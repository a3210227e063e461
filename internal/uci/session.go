// Package uci speaks the Universal Chess Interface to a single engine process.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadyTimeout  = 4 * time.Second
	defaultSearchGrace   = 2 * time.Second
	defaultQuitWait      = 500 * time.Millisecond
	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond
	lineBuffer           = 256
)

var (
	ErrSearchTimeout = errors.New("engine search timed out")
	ErrNoBestMove    = errors.New("engine returned no best move")
	ErrMalformed     = errors.New("malformed engine output")
	ErrEngineExited  = errors.New("engine process exited")
	ErrClosed        = errors.New("engine session closed")
	// ErrUnsynced means stop was not acknowledged; the session must be discarded.
	ErrUnsynced = errors.New("engine did not acknowledge stop")
)

// LaunchError reports an engine binary that could not be started or did not
// complete the UCI handshake.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch engine %q: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

type Options struct {
	Threads int
	HashMB  int
	MultiPV int
	// ReadyTimeout bounds uciok/readyok waits. Zero uses the default.
	ReadyTimeout time.Duration
	// SearchGrace is added to movetime before a search is abandoned.
	SearchGrace time.Duration
	Stderr      io.Writer
	Logger      *zap.Logger
}

type SearchRequest struct {
	FEN      string
	MoveTime time.Duration
	// Depth caps the search in plies on top of MoveTime. Zero means no cap.
	Depth int
}

// Score is the engine evaluation from the side to move. Exactly one of CP or
// Mate is meaningful; Mate is nonzero for forced mates.
type Score struct {
	CP   int
	Mate int
}

func (s Score) IsMate() bool { return s.Mate != 0 }

type Candidate struct {
	Move      string
	Score     Score
	Depth     int
	Principal []string
}

type SearchResponse struct {
	BestMove   string
	Ponder     string
	Candidates []Candidate
	Depth      int
	Stopped    bool
}

type readResult struct {
	line string
	err  error
}

type Session struct {
	path   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan readResult
	opt    Options
	logger *zap.Logger

	mu     sync.Mutex
	search sync.Mutex

	closeOnce sync.Once
	closeErr  error
	closing   chan struct{}
	waitDone  chan struct{}
	waitErr   error
}

// Start launches the engine and completes the uci/isready handshake.
func Start(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	if strings.TrimSpace(binaryPath) == "" {
		return nil, &LaunchError{Path: binaryPath, Err: errors.New("binary path required")}
	}
	resolved, err := exec.LookPath(binaryPath)
	if err != nil {
		return nil, &LaunchError{Path: binaryPath, Err: err}
	}
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	if opt.ReadyTimeout <= 0 {
		opt.ReadyTimeout = defaultReadyTimeout
	}
	if opt.SearchGrace <= 0 {
		opt.SearchGrace = defaultSearchGrace
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// The process outlives ctx; Close owns its lifetime.
	cmd := exec.Command(resolved)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Path: binaryPath, Err: fmt.Errorf("create stdin pipe: %w", err)}
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, &LaunchError{Path: binaryPath, Err: fmt.Errorf("create stdout pipe: %w", err)}
	}
	if opt.Stderr != nil {
		cmd.Stderr = opt.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, &LaunchError{Path: binaryPath, Err: fmt.Errorf("start engine: %w", err)}
	}

	s := &Session{
		path:     binaryPath,
		cmd:      cmd,
		stdin:    stdin,
		lines:    make(chan readResult, lineBuffer),
		opt:      opt,
		logger:   logger,
		closing:  make(chan struct{}),
		waitDone: make(chan struct{}),
	}
	go s.pump(stdoutPipe)

	if err := s.initialize(ctx); err != nil {
		_ = s.Close()
		return nil, &LaunchError{Path: binaryPath, Err: err}
	}
	logger.Info("engine started", zap.String("path", resolved), zap.Int("pid", cmd.Process.Pid))
	return s, nil
}

// pump is the only reader of stdout. Once output ends it reaps the process,
// so Exited fires only after every line has been delivered.
func (s *Session) pump(r io.Reader) {
	defer func() {
		s.waitErr = s.cmd.Wait()
		close(s.waitDone)
	}()
	defer close(s.lines)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			select {
			case s.lines <- readResult{line: line}:
			case <-s.closing:
				return
			}
		}
		if err != nil {
			select {
			case s.lines <- readResult{err: err}:
			case <-s.closing:
			}
			return
		}
	}
}

// Search runs one bounded search. Cancelling ctx stops the engine and drains
// its output up to bestmove so the session can serve the next request.
func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if s.isClosed() {
		return SearchResponse{}, ErrClosed
	}

	goCmd, err := buildGoCommand(req)
	if err != nil {
		return SearchResponse{}, err
	}
	if err := s.send(buildPositionCommand(req.FEN)); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}
	if err := s.send(goCmd); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	deadline := time.NewTimer(s.searchTimeout(req))
	defer deadline.Stop()

	acc := newAccumulator()
	for {
		select {
		case <-ctx.Done():
			return s.abort(acc, ctx.Err())
		case <-deadline.C:
			s.logger.Warn("engine search deadline reached", zap.String("fen", req.FEN), zap.Duration("movetime", req.MoveTime))
			return s.abort(acc, ErrSearchTimeout)
		case res, ok := <-s.lines:
			if !ok || res.err != nil {
				return SearchResponse{}, s.exitError(res.err)
			}
			if done, resp, err := acc.feed(res.line); done {
				return resp, err
			}
		}
	}
}

// abort sends stop and waits, bounded by the ready timeout, for bestmove.
func (s *Session) abort(acc *accumulator, cause error) (SearchResponse, error) {
	if err := s.send("stop\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("%w: send stop: %w", cause, err)
	}
	drain := time.NewTimer(s.opt.ReadyTimeout)
	defer drain.Stop()
	for {
		select {
		case <-drain.C:
			return SearchResponse{}, fmt.Errorf("%w: %w", cause, ErrUnsynced)
		case res, ok := <-s.lines:
			if !ok || res.err != nil {
				return SearchResponse{}, s.exitError(res.err)
			}
			if done, _, _ := acc.feed(res.line); done {
				return SearchResponse{}, cause
			}
		}
	}
}

func (s *Session) exitError(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return ErrEngineExited
	}
	return fmt.Errorf("%w: %w", ErrEngineExited, err)
}

func (s *Session) searchTimeout(req SearchRequest) time.Duration {
	if req.MoveTime > 0 {
		return req.MoveTime + s.opt.SearchGrace
	}
	if req.Depth > 0 {
		base := time.Duration(req.Depth) * 300 * time.Millisecond
		return min(max(base, 6*time.Second), 20*time.Second)
	}
	return 6 * time.Second
}

type accumulator struct {
	candidates map[int]Candidate
	depth      int
}

func newAccumulator() *accumulator {
	return &accumulator{candidates: make(map[int]Candidate)}
}

// feed consumes one output line and reports whether the search finished.
func (a *accumulator) feed(line string) (bool, SearchResponse, error) {
	switch {
	case strings.HasPrefix(line, "info "):
		info, ok := parseInfo(line)
		if !ok {
			return false, SearchResponse{}, nil
		}
		if info.depth > a.depth {
			a.depth = info.depth
		}
		if info.hasPV {
			a.candidates[info.multipv] = info.candidate
		}
		return false, SearchResponse{}, nil
	case line == "bestmove" || strings.HasPrefix(line, "bestmove "):
		parts := strings.Fields(line)
		resp := SearchResponse{Candidates: collapseCandidates(a.candidates), Depth: a.depth}
		if len(parts) < 2 {
			return true, resp, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		if parts[1] == "(none)" || parts[1] == "0000" {
			return true, resp, ErrNoBestMove
		}
		if !looksLikeMove(parts[1]) {
			return true, resp, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		resp.BestMove = parts[1]
		if len(parts) >= 4 && parts[2] == "ponder" {
			resp.Ponder = parts[3]
		}
		return true, resp, nil
	}
	return false, SearchResponse{}, nil
}

// looksLikeMove checks the shape of a long-algebraic move such as e7e8q.
func looksLikeMove(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	for i := 0; i < 4; i += 2 {
		if s[i] < 'a' || s[i] > 'h' || s[i+1] < '1' || s[i+1] > '8' {
			return false
		}
	}
	return len(s) == 4 || strings.ContainsRune("qrbn", rune(s[4]))
}

type infoLine struct {
	multipv   int
	depth     int
	hasPV     bool
	candidate Candidate
}

func parseInfo(line string) (infoLine, bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[0] != "info" {
		return infoLine{}, false
	}
	info := infoLine{multipv: 1}
	var scoreSet bool
	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "string":
			// free text up to end of line
			return info, info.depth > 0 || scoreSet
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil && v > 0 {
					info.multipv = v
				}
				i++
			}
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil && v >= 0 {
					info.depth = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				v, err := strconv.Atoi(parts[i+2])
				if err == nil {
					switch parts[i+1] {
					case "cp":
						info.candidate.Score = Score{CP: v}
						scoreSet = true
					case "mate":
						info.candidate.Score = Score{Mate: v}
						if v == 0 {
							// mated on the board: report as losing mate
							info.candidate.Score = Score{Mate: -1}
						}
						scoreSet = true
					}
				}
				i += 2
				// optional lowerbound / upperbound markers
				for i+1 < len(parts) && (parts[i+1] == "lowerbound" || parts[i+1] == "upperbound") {
					i++
				}
			}
		case "pv":
			if i+1 < len(parts) {
				pv := append([]string(nil), parts[i+1:]...)
				info.candidate.Move = pv[0]
				info.candidate.Principal = pv
				info.hasPV = scoreSet
			}
			i = len(parts)
		}
	}
	info.candidate.Depth = info.depth
	return info, info.depth > 0 || scoreSet
}

func collapseCandidates(m map[int]Candidate) []Candidate {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	result := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		result = append(result, m[k])
	}
	return result
}

func buildPositionCommand(fen string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(strings.TrimSpace(fen))
	}
	sb.WriteString("\n")
	return sb.String()
}

func buildGoCommand(req SearchRequest) (string, error) {
	args := []string{"go"}
	if req.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(req.Depth))
	}
	if req.MoveTime > 0 {
		ms := req.MoveTime.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		args = append(args, "movetime", strconv.FormatInt(ms, 10))
	}
	if len(args) == 1 {
		return "", fmt.Errorf("no search limits specified")
	}
	return strings.Join(args, " ") + "\n", nil
}

func validateOptions(opt Options) error {
	if opt.Threads < 0 {
		return fmt.Errorf("threads must be >= 0: %d", opt.Threads)
	}
	if opt.HashMB < 0 {
		return fmt.Errorf("hash size must be >= 0: %d", opt.HashMB)
	}
	if opt.MultiPV < 0 {
		return fmt.Errorf("multipv must be >= 0: %d", opt.MultiPV)
	}
	return nil
}

func (s *Session) EnsureReady(ctx context.Context) error {
	s.search.Lock()
	defer s.search.Unlock()
	return s.ensureReady(ctx)
}

func (s *Session) ensureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, s.opt.ReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	s.search.Lock()
	defer s.search.Unlock()

	if err := s.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	for attempt := 1; attempt <= newGameRetryAttempts; attempt++ {
		err := s.ensureReady(ctx)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryAttempts || errors.Is(err, ErrEngineExited) {
			return err
		}
		s.logger.Warn("ensure ready retry after ucinewgame", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

// Exited is closed once the engine process has terminated.
func (s *Session) Exited() <-chan struct{} { return s.waitDone }

// Close asks the engine to quit, kills it if it lingers and reaps it. It is
// safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.send("quit\n")
		s.mu.Lock()
		_ = s.stdin.Close()
		s.mu.Unlock()
		close(s.closing)

		select {
		case <-s.waitDone:
		case <-time.After(defaultQuitWait):
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Kill()
			}
			<-s.waitDone
		}

		var exitErr *exec.ExitError
		if s.waitErr != nil && !errors.As(s.waitErr, &exitErr) {
			s.closeErr = s.waitErr
		}
		s.logger.Info("engine stopped", zap.String("path", s.path))
	})
	return s.closeErr
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

func (s *Session) initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, s.opt.ReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	if err := s.applyOptions(); err != nil {
		return err
	}
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) applyOptions() error {
	var cmds []string
	if s.opt.Threads > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Threads value %d\n", s.opt.Threads))
	}
	if s.opt.HashMB > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Hash value %d\n", s.opt.HashMB))
	}
	if s.opt.MultiPV > 1 {
		cmds = append(cmds, fmt.Sprintf("setoption name MultiPV value %d\n", s.opt.MultiPV))
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-s.lines:
			if !ok || res.err != nil {
				return s.exitError(res.err)
			}
			if res.line == token || strings.HasPrefix(res.line, token+" ") {
				return nil
			}
		}
	}
}
