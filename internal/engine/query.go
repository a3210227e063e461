package engine

import (
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"github.com/park285/cheese-board/internal/board"
)

type Query struct {
	ID        uuid.UUID
	FEN       string
	ThinkTime time.Duration
}

func NewQuery(fen string, think time.Duration) Query {
	return Query{ID: uuid.New(), FEN: fen, ThinkTime: think}
}

type Result struct {
	QueryID  uuid.UUID     `json:"-"`
	FEN      string        `json:"fen"`
	BestMove string        `json:"best_move"`
	Ponder   string        `json:"ponder,omitempty"`
	Score    Score         `json:"score"`
	HasScore bool          `json:"has_score"`
	Depth    int           `json:"depth"`
	PV       []string      `json:"pv,omitempty"`
	Think    time.Duration `json:"think"`
	Elapsed  time.Duration `json:"elapsed"`
	Cached   bool          `json:"-"`
}

// Turn is the side to move in the analysed position.
func (r Result) Turn() nchess.Color {
	return turnOf(r.FEN)
}

// WhiteScore is the evaluation from White's point of view.
func (r Result) WhiteScore() Score {
	return r.Score.White(r.Turn())
}

// MoveText renders the best move as "SAN (uci)" when b accepts it as legal,
// otherwise as the bare UCI string.
func (r Result) MoveText(b *board.Board) string {
	if r.BestMove == "" {
		return ""
	}
	if b != nil {
		if san := b.SAN(r.BestMove); san != "" {
			return san + " (" + r.BestMove + ")"
		}
	}
	return r.BestMove
}

func turnOf(fen string) nchess.Color {
	fields := strings.Fields(fen)
	if len(fields) >= 2 && fields[1] == "b" {
		return nchess.Black
	}
	return nchess.White
}
