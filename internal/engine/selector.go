package engine

import (
	"math/rand"
	"time"
)

// Rand is the source of the selector's tie-breaking between corners and
// between sides. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Selector picks the computer's next move with a greedy one-ply heuristic:
// win, block, center, corner, side. It does not look ahead and can be beaten
// by a fork.
type Selector struct {
	rnd Rand
}

// NewSelector returns a selector drawing from rnd. A nil rnd falls back to a
// time seeded source.
func NewSelector(rnd Rand) *Selector {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint: gosec // it's ok
	}

	return &Selector{rnd: rnd}
}

// NewSeededSelector returns a selector with a deterministic source. A zero seed
// means time based.
func NewSeededSelector(seed int64) *Selector {
	if seed == 0 {
		return NewSelector(nil)
	}

	return NewSelector(rand.New(rand.NewSource(seed))) //nolint: gosec // it's ok
}

// SelectMove returns the cell the ai mark should play next. ok is false only
// when the board is full.
func (that *Selector) SelectMove(board Board, ai, opponent Mark) (int, bool) {
	if cell, ok := FindCompletion(board, ai); ok {
		return cell, true
	}

	if cell, ok := FindCompletion(board, opponent); ok {
		return cell, true
	}

	if board[center] == Empty {
		return center, true
	}

	if cell, ok := that.pickEmpty(board, corners); ok {
		return cell, true
	}

	return that.pickEmpty(board, sides)
}

// FindCompletion returns the empty cell of the first line where mark holds the
// two other cells.
func FindCompletion(board Board, mark Mark) (int, bool) {
	if mark == Empty {
		return 0, false
	}

	for _, line := range Lines {
		owned, free := 0, -1
		for _, idx := range line {
			switch board[idx] {
			case mark:
				owned++
			case Empty:
				free = idx
			}
		}

		if owned == 2 && free >= 0 {
			return free, true
		}
	}

	return 0, false
}

func (that *Selector) pickEmpty(board Board, candidates [4]int) (int, bool) {
	free := make([]int, 0, len(candidates))
	for _, idx := range candidates {
		if board[idx] == Empty {
			free = append(free, idx)
		}
	}

	if len(free) == 0 {
		return 0, false
	}

	return free[that.rnd.Intn(len(free))], true
}
