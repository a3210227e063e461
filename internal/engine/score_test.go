package engine

import (
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestScoreString(t *testing.T) {
	cases := []struct {
		in   Score
		want string
	}{
		{Score{CP: 35}, "+0.35"},
		{Score{CP: -120}, "-1.20"},
		{Score{CP: 0}, "0.00"},
		{Score{CP: 1005}, "+10.05"},
		{Score{CP: -7}, "-0.07"},
		{Score{Mate: 3}, "M3"},
		{Score{Mate: -2}, "-M2"},
	}
	for _, tc := range cases {
		if got := tc.in.String(); got != tc.want {
			t.Fatalf("%+v.String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestScoreWhite(t *testing.T) {
	s := Score{CP: 50}
	if s.White(nchess.White) != s {
		t.Fatalf("white to move should be unchanged")
	}
	if got := s.White(nchess.Black); got != (Score{CP: -50}) {
		t.Fatalf("black to move = %+v", got)
	}
	if got := (Score{Mate: 2}).White(nchess.Black); got.String() != "-M2" {
		t.Fatalf("mate for black = %q", got.String())
	}
}
