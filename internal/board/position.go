package board

import (
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is a permissive grid plus FEN metadata. It never enforces chess
// legality; manual edits may leave it in a state no game could reach.
type Position struct {
	squares   [64]nchess.Piece
	turn      nchess.Color
	castling  string
	enPassant nchess.Square
	halfMove  int
	fullMove  int
}

func emptyPosition(turn nchess.Color) Position {
	if turn != nchess.Black {
		turn = nchess.White
	}
	return Position{
		turn:      turn,
		castling:  "-",
		enPassant: nchess.NoSquare,
		halfMove:  0,
		fullMove:  1,
	}
}

func (p Position) Piece(sq nchess.Square) nchess.Piece {
	if !validSquare(sq) {
		return nchess.NoPiece
	}
	return p.squares[sq]
}

func (p Position) Turn() nchess.Color { return p.turn }

// SquareMap returns the occupied squares in the shape the chess library expects.
func (p Position) SquareMap() map[nchess.Square]nchess.Piece {
	m := make(map[nchess.Square]nchess.Piece, 32)
	for i, pc := range p.squares {
		if pc != nchess.NoPiece {
			m[nchess.Square(i)] = pc
		}
	}
	return m
}

// FEN serialises the position. Castling rights without a king and rook on
// their home squares and en-passant targets no pawn could use are dropped, so
// the output is always something an engine accepts syntactically.
func (p Position) FEN() string {
	var sb strings.Builder
	sb.WriteString(nchess.NewBoard(p.SquareMap()).String())
	sb.WriteByte(' ')
	if p.turn == nchess.Black {
		sb.WriteByte('b')
	} else {
		sb.WriteByte('w')
	}
	sb.WriteByte(' ')
	sb.WriteString(p.cleanCastling())
	sb.WriteByte(' ')
	if ep := p.cleanEnPassant(); ep != nchess.NoSquare {
		sb.WriteString(ep.String())
	} else {
		sb.WriteByte('-')
	}
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.halfMove))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.fullMove))
	return sb.String()
}

func (p Position) String() string { return p.FEN() }

var castlingHomes = []struct {
	flag byte
	king nchess.Square
	rook nchess.Square
	clr  nchess.Color
}{
	{'K', nchess.E1, nchess.H1, nchess.White},
	{'Q', nchess.E1, nchess.A1, nchess.White},
	{'k', nchess.E8, nchess.H8, nchess.Black},
	{'q', nchess.E8, nchess.A8, nchess.Black},
}

func (p Position) cleanCastling() string {
	var sb strings.Builder
	for _, h := range castlingHomes {
		if !strings.ContainsRune(p.castling, rune(h.flag)) {
			continue
		}
		if p.squares[h.king] != nchess.NewPiece(nchess.King, h.clr) {
			continue
		}
		if p.squares[h.rook] != nchess.NewPiece(nchess.Rook, h.clr) {
			continue
		}
		sb.WriteByte(h.flag)
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}

func (p Position) cleanEnPassant() nchess.Square {
	ep := p.enPassant
	if !validSquare(ep) || p.squares[ep] != nchess.NoPiece {
		return nchess.NoSquare
	}
	var pawnRank nchess.Rank
	var pawn nchess.Piece
	switch {
	case p.turn == nchess.White && ep.Rank() == nchess.Rank6:
		pawnRank, pawn = nchess.Rank5, nchess.NewPiece(nchess.Pawn, nchess.Black)
	case p.turn == nchess.Black && ep.Rank() == nchess.Rank3:
		pawnRank, pawn = nchess.Rank4, nchess.NewPiece(nchess.Pawn, nchess.White)
	default:
		return nchess.NoSquare
	}
	if p.squares[nchess.NewSquare(ep.File(), pawnRank)] != pawn {
		return nchess.NoSquare
	}
	return ep
}

// parsePosition converts a FEN the chess library already accepted into a
// Position. The library decoder is the validator; this only copies fields.
func parsePosition(fen string) (Position, error) {
	fields := strings.Fields(fen)
	if len(fields) != 6 {
		return Position{}, fmt.Errorf("expected 6 fields, got %d", len(fields))
	}
	pos := emptyPosition(nchess.White)

	rank, file := 7, 0
	for _, r := range fields[0] {
		switch {
		case r == '/':
			rank--
			file = 0
		case r >= '1' && r <= '8':
			file += int(r - '0')
		default:
			pc, ok := pieceFromFEN[r]
			if !ok || rank < 0 || file > 7 {
				return Position{}, fmt.Errorf("bad placement %q", fields[0])
			}
			pos.squares[nchess.NewSquare(nchess.File(file), nchess.Rank(rank))] = pc
			file++
		}
	}

	switch fields[1] {
	case "w":
		pos.turn = nchess.White
	case "b":
		pos.turn = nchess.Black
	default:
		return Position{}, fmt.Errorf("bad side to move %q", fields[1])
	}

	pos.castling = fields[2]
	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return Position{}, err
		}
		pos.enPassant = sq
	}

	half, err := strconv.Atoi(fields[4])
	if err != nil || half < 0 {
		return Position{}, fmt.Errorf("bad half-move clock %q", fields[4])
	}
	full, err := strconv.Atoi(fields[5])
	if err != nil || full < 1 {
		return Position{}, fmt.Errorf("bad full-move number %q", fields[5])
	}
	pos.halfMove = half
	pos.fullMove = full

	pos.normalize()
	return pos, nil
}

// normalize drops rights the piece placement no longer supports.
func (p *Position) normalize() {
	p.castling = p.cleanCastling()
	p.enPassant = p.cleanEnPassant()
}

var pieceFromFEN = map[rune]nchess.Piece{
	'K': nchess.WhiteKing, 'Q': nchess.WhiteQueen, 'R': nchess.WhiteRook,
	'B': nchess.WhiteBishop, 'N': nchess.WhiteKnight, 'P': nchess.WhitePawn,
	'k': nchess.BlackKing, 'q': nchess.BlackQueen, 'r': nchess.BlackRook,
	'b': nchess.BlackBishop, 'n': nchess.BlackKnight, 'p': nchess.BlackPawn,
}

// ParseSquare parses algebraic square names such as "e4".
func ParseSquare(s string) (nchess.Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, fmt.Errorf("invalid square %q", s)
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), nil
}

func validSquare(sq nchess.Square) bool {
	return sq >= nchess.A1 && sq <= nchess.H8
}
