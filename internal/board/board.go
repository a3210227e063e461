// Package board owns the logical chess position shown by the editor. Rules
// and FEN decoding are delegated to corentings/chess; the adapter itself only
// stores a permissive grid so manual edits can build any arrangement.
package board

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Move describes a move the adapter applied.
type Move struct {
	From  nchess.Square
	To    nchess.Square
	Promo nchess.PieceType
	UCI   string
	SAN   string
}

type Board struct {
	pos     Position
	version uint64
}

func New() *Board {
	b := &Board{}
	b.pos = startPosition()
	return b
}

func startPosition() Position {
	pos, err := parsePosition(StartFEN)
	if err != nil {
		panic(fmt.Sprintf("start position: %v", err))
	}
	return pos
}

// Version increases on every mutation.
func (b *Board) Version() uint64 { return b.version }

// Position returns a copy of the current position.
func (b *Board) Position() Position { return b.pos }

func (b *Board) Turn() nchess.Color { return b.pos.turn }

func (b *Board) Piece(sq nchess.Square) nchess.Piece { return b.pos.Piece(sq) }

func (b *Board) FEN() string { return b.pos.FEN() }

func (b *Board) touch() { b.version++ }

func (b *Board) Reset() {
	b.pos = startPosition()
	b.touch()
}

// Clear removes every piece. Side to move is kept; rights and counters are reset.
func (b *Board) Clear() {
	b.pos = emptyPosition(b.pos.turn)
	b.touch()
}

// FlipSide toggles the side to move without touching the pieces.
func (b *Board) FlipSide() {
	b.pos.turn = b.pos.turn.Other()
	b.pos.enPassant = nchess.NoSquare
	b.touch()
}

// LoadFEN replaces the position. On error the current position is kept.
func (b *Board) LoadFEN(text string) error {
	fen := strings.Join(strings.Fields(text), " ")
	if fen == "" {
		return &ParseError{Input: text, Err: fmt.Errorf("empty input")}
	}
	if n := len(strings.Fields(fen)); n != 6 {
		return &ParseError{Input: text, Err: fmt.Errorf("expected 6 fields, got %d", n)}
	}
	if _, err := nchess.FEN(fen); err != nil {
		return &ParseError{Input: text, Err: err}
	}
	pos, err := parsePosition(fen)
	if err != nil {
		return &ParseError{Input: text, Err: err}
	}
	b.pos = pos
	b.touch()
	return nil
}

// PlacePiece puts a piece on a square with no legality checks.
func (b *Board) PlacePiece(sq nchess.Square, pt nchess.PieceType, clr nchess.Color) error {
	if !validSquare(sq) {
		return fmt.Errorf("place piece: invalid square %d", sq)
	}
	if pt == nchess.NoPieceType || (clr != nchess.White && clr != nchess.Black) {
		return fmt.Errorf("place piece: invalid piece %v/%v", pt, clr)
	}
	b.pos.squares[sq] = nchess.NewPiece(pt, clr)
	b.pos.normalize()
	b.touch()
	return nil
}

// RemovePiece empties a square. Removing from an empty square is a no-op.
func (b *Board) RemovePiece(sq nchess.Square) error {
	if !validSquare(sq) {
		return fmt.Errorf("remove piece: invalid square %d", sq)
	}
	if b.pos.squares[sq] == nchess.NoPiece {
		return nil
	}
	b.pos.squares[sq] = nchess.NoPiece
	b.pos.normalize()
	b.touch()
	return nil
}

// ApplyMove plays from→to if it is legal. A pawn reaching the last rank
// promotes to a queen. Illegal input leaves the position unchanged.
func (b *Board) ApplyMove(from, to nchess.Square) (Move, error) {
	if !validSquare(from) || !validSquare(to) || from == to {
		return Move{}, fmt.Errorf("%w: %d-%d", ErrIllegalMove, from, to)
	}
	return b.ApplyMoveUCI(from.String() + to.String())
}

// ApplyMoveUCI plays a move given in UCI notation (e2e4, e7e8n).
func (b *Board) ApplyMoveUCI(text string) (Move, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if len(text) < 4 || len(text) > 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrIllegalMove, text)
	}
	game, err := b.libraryGame()
	if err != nil {
		return Move{}, fmt.Errorf("%w: %s: %w", ErrIllegalMove, text, err)
	}

	candidates := []string{text}
	if len(text) == 4 {
		candidates = append(candidates, text+"q")
	}

	before := game.Position()
	for _, c := range candidates {
		mv, err := decodeUCI(before, c)
		if err != nil {
			continue
		}
		if err := game.Move(mv, nil); err != nil {
			continue
		}
		next, err := parsePosition(game.Position().String())
		if err != nil {
			return Move{}, fmt.Errorf("%w: %s: %w", ErrInconsistent, c, err)
		}
		applied := Move{
			From:  mv.S1(),
			To:    mv.S2(),
			Promo: mv.Promo(),
			UCI:   c,
			SAN:   encodeSAN(before, mv),
		}
		b.pos = next
		b.touch()
		return applied, nil
	}
	return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, text)
}

// LegalTargets lists the destinations a piece on from may legally reach.
func (b *Board) LegalTargets(from nchess.Square) map[nchess.Square]bool {
	targets := make(map[nchess.Square]bool)
	game, err := b.libraryGame()
	if err != nil {
		return targets
	}
	_ = safely(func() error {
		for _, mv := range game.Position().ValidMoves() {
			if mv.S1() == from {
				targets[mv.S2()] = true
			}
		}
		return nil
	})
	return targets
}

// Status reports checkmate or stalemate for playable positions.
func (b *Board) Status() nchess.Method {
	game, err := b.libraryGame()
	if err != nil {
		return nchess.NoMethod
	}
	method := nchess.NoMethod
	_ = safely(func() error {
		method = game.Position().Status()
		return nil
	})
	return method
}

// SAN renders a UCI move in algebraic notation, or "" if it is not legal here.
func (b *Board) SAN(uciMove string) string {
	game, err := b.libraryGame()
	if err != nil {
		return ""
	}
	pos := game.Position()
	mv, err := decodeUCI(pos, strings.ToLower(strings.TrimSpace(uciMove)))
	if err != nil {
		return ""
	}
	if err := game.Move(mv, nil); err != nil {
		return ""
	}
	return encodeSAN(pos, mv)
}

// Playable reports whether the position has exactly one king per side, the
// minimum both the rules library and UCI engines need to work with it.
func (b *Board) Playable() error {
	return b.pos.playable()
}

func (p Position) playable() error {
	var white, black int
	for _, pc := range p.squares {
		switch pc {
		case nchess.WhiteKing:
			white++
		case nchess.BlackKing:
			black++
		}
	}
	if white != 1 || black != 1 {
		return fmt.Errorf("%w: need one king per side (white %d, black %d)", ErrInconsistent, white, black)
	}
	return nil
}

func (b *Board) libraryGame() (*nchess.Game, error) {
	if err := b.pos.playable(); err != nil {
		return nil, err
	}
	var game *nchess.Game
	err := safely(func() error {
		opt, err := nchess.FEN(b.pos.FEN())
		if err != nil {
			return err
		}
		game = nchess.NewGame(opt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

func decodeUCI(pos *nchess.Position, text string) (*nchess.Move, error) {
	var mv *nchess.Move
	err := safely(func() error {
		var err error
		mv, err = nchess.UCINotation{}.Decode(pos, text)
		return err
	})
	return mv, err
}

func encodeSAN(pos *nchess.Position, mv *nchess.Move) string {
	var san string
	_ = safely(func() error {
		san = nchess.AlgebraicNotation{}.Encode(pos, mv)
		return nil
	})
	return san
}

// safely turns a panic inside the chess library into ErrInconsistent. Edited
// positions can reach states the library was never written for.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInconsistent, r)
		}
	}()
	return fn()
}
