package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/cheese-board/internal/chessbuilder"
	appcfg "github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/gui/window"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $CHEESE_CONFIG)")
	fen := flag.String("fen", "", "initial position (overrides board_fen)")
	enginePath := flag.String("engine", "", "Stockfish binary (overrides stockfish_path)")
	snapshot := flag.String("snapshot", "", "render one frame to this PNG file and exit")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Printf("logger init error: %v (continuing without logs)", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if v := strings.TrimSpace(*fen); v != "" {
		cfg.BoardFEN = v
	}
	if v := strings.TrimSpace(*enginePath); v != "" {
		cfg.StockfishPath = v
	}

	deps, err := chessbuilder.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if *snapshot != "" {
		if err := writeSnapshot(deps, *snapshot); err != nil {
			logger.Error("snapshot failed", zap.String("path", *snapshot), zap.Error(err))
			_ = deps.Close()
			obslog.Sync()
			os.Exit(1)
		}
		return
	}

	deps.Panel.StartEngine()
	logger.Info("window open", zap.String("engine", cfg.StockfishPath), zap.String("fen", deps.Board.FEN()))
	game := window.New(deps.Shell, deps.Renderer, logger.Named("window"))
	if err := window.Run(game, deps.Title()); err != nil {
		logger.Error("window", zap.Error(err))
	}
}

func writeSnapshot(deps *chessbuilder.Deps, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	// engine start plus one full search, with room for the stop grace
	wait := 10*time.Second + deps.Config.MaxThink() + deps.Config.SearchGrace()
	if err := deps.Snapshot(f, wait); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
