package engine

import (
	"fmt"
	"strconv"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/uci"
)

// Score is an evaluation in centipawns or a mate distance. Mate is nonzero
// for forced mates; a positive Mate means the side the score belongs to mates.
type Score struct {
	CP   int `json:"cp"`
	Mate int `json:"mate,omitempty"`
}

func scoreFrom(s uci.Score) Score { return Score{CP: s.CP, Mate: s.Mate} }

func (s Score) IsMate() bool { return s.Mate != 0 }

func (s Score) Negate() Score { return Score{CP: -s.CP, Mate: -s.Mate} }

// White converts a side-to-move score into White's point of view.
func (s Score) White(turn nchess.Color) Score {
	if turn == nchess.Black {
		return s.Negate()
	}
	return s
}

// String formats pawns with two decimals (+0.35, -1.20) or mates as M3 / -M2.
func (s Score) String() string {
	if s.IsMate() {
		if s.Mate < 0 {
			return "-M" + strconv.Itoa(-s.Mate)
		}
		return "M" + strconv.Itoa(s.Mate)
	}
	if s.CP == 0 {
		return "0.00"
	}
	sign := "+"
	cp := s.CP
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	return fmt.Sprintf("%s%d.%02d", sign, cp/100, cp%100)
}
