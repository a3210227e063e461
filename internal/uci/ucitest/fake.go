// Package ucitest provides a scripted UCI engine for tests. A test binary
// re-executes itself as the engine: call RunIfRequested from TestMain and
// point the engine path at os.Args[0] with Env set.
package ucitest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// EnvMode selects the scripted behaviour; empty means "not a fake engine".
	EnvMode = "CHEESE_FAKE_UCI"
	// EnvLog names a file that receives every command the engine reads.
	EnvLog = "CHEESE_FAKE_UCI_LOG"
	// EnvState names a directory used by stateful modes such as ModeCrashOnce.
	EnvState = "CHEESE_FAKE_UCI_STATE"
)

const (
	ModeNormal    = "normal"    // info lines with cp scores, then bestmove e2e4 ponder e7e5
	ModeMate      = "mate"      // score mate 3
	ModeMated     = "mated"     // score mate -2 for the side to move
	ModeSlow      = "slow"      // withholds bestmove until stop
	ModeSilent    = "silent"    // never answers go, not even after stop
	ModeNoBest    = "nobest"    // bestmove (none)
	ModeGarbage   = "garbage"   // unparseable noise, then a bare "bestmove"
	ModeCrash     = "crash"     // exits while searching
	ModeCrashOnce = "crashonce" // crashes on the first search of the first process only
	ModeMute      = "mute"      // never completes the handshake
)

// RunIfRequested runs the fake engine and exits when EnvMode is set.
func RunIfRequested() {
	mode := os.Getenv(EnvMode)
	if mode == "" {
		return
	}
	os.Exit(run(mode))
}

func run(mode string) int {
	var logFile *os.File
	if p := os.Getenv(EnvLog); p != "" {
		f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			logFile = f
			defer f.Close()
		}
	}
	out := bufio.NewWriter(os.Stdout)
	say := func(format string, args ...any) {
		fmt.Fprintf(out, format+"\n", args...)
		out.Flush()
	}

	if mode == ModeCrashOnce {
		mode = ModeNormal
		if dir := os.Getenv(EnvState); dir != "" {
			marker := filepath.Join(dir, "crashed")
			if _, err := os.Stat(marker); os.IsNotExist(err) {
				_ = os.WriteFile(marker, []byte("1"), 0o644)
				mode = ModeCrash
			}
		}
	}

	searching := false
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if logFile != nil {
			fmt.Fprintln(logFile, line)
		}
		cmd := strings.Fields(line)
		if len(cmd) == 0 {
			continue
		}
		switch cmd[0] {
		case "uci":
			if mode == ModeMute {
				continue
			}
			say("id name Fake Engine")
			say("id author cheese-board")
			say("option name Hash type spin default 16 min 1 max 1024")
			say("uciok")
		case "isready":
			if mode == ModeMute {
				continue
			}
			say("readyok")
		case "go":
			searching = true
			switch mode {
			case ModeNormal:
				say("info string fake search")
				say("info depth 1 seldepth 1 score cp 20 nodes 20 pv d2d4")
				say("info depth 2 seldepth 3 multipv 1 score cp 35 nodes 400 nps 1000 time 1 pv e2e4 e7e5")
				say("bestmove e2e4 ponder e7e5")
				searching = false
			case ModeMate:
				say("info depth 5 score mate 3 pv h5f7 e8e7 f7e6")
				say("bestmove h5f7")
				searching = false
			case ModeMated:
				say("info depth 4 score mate -2 pv e8d8 d1d7")
				say("bestmove e8d8")
				searching = false
			case ModeNoBest:
				say("info depth 0 score mate 0")
				say("bestmove (none)")
				searching = false
			case ModeGarbage:
				say("this is not uci")
				say("info depth banana score cp")
				say("bestmove")
				searching = false
			case ModeCrash:
				say("info depth 1 score cp 10 pv e2e4")
				return 3
			case ModeSlow:
				say("info depth 1 score cp 5 pv g1f3")
			case ModeSilent:
			}
		case "stop":
			if searching && mode == ModeSlow {
				say("bestmove g1f3")
				searching = false
			}
		case "quit":
			return 0
		}
	}
	// stdin closed
	time.Sleep(10 * time.Millisecond)
	return 0
}
