// Package engine holds the tic-tac-toe rules: the outcome evaluator and the
// heuristic move selector. Everything here works on board snapshots and never
// mutates them.
package engine

import "fmt"

// Mark is the content of a board cell.
type Mark uint8

const (
	Empty Mark = iota
	X
	O
)

// String returns the mark as it is shown to players.
func (m Mark) String() string {
	switch m {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Opponent returns the other player's mark.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

func (m Mark) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mark) UnmarshalText(text []byte) error {
	switch string(text) {
	case "X":
		*m = X
	case "O":
		*m = O
	case "":
		*m = Empty
	default:
		return fmt.Errorf("unknown mark %q", text)
	}

	return nil
}

// Board is a 3x3 board stored row-major.
type Board [9]Mark

// IsFull reports whether every cell is occupied.
func (b Board) IsFull() bool {
	for _, cell := range b {
		if cell == Empty {
			return false
		}
	}

	return true
}

// Line is a triple of board indices that wins when held by one mark.
type Line [3]int

// Lines lists the win conditions in evaluation order: rows, columns, diagonals.
var Lines = [8]Line{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

const center = 4

var (
	corners = [4]int{0, 2, 6, 8}
	sides   = [4]int{1, 3, 5, 7}
)
