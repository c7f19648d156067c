package engine

// Status is the state of play derived from a board.
type Status uint8

const (
	InProgress Status = iota
	Win
	Draw
)

func (s Status) String() string {
	switch s {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

// Outcome is the result of evaluating a board. Winner and Line are only set
// when Status is Win.
type Outcome struct {
	Status Status
	Winner Mark
	Line   Line
}

// IsOver reports whether no more moves can be played.
func (o Outcome) IsOver() bool {
	return o.Status != InProgress
}

// Evaluate determines whether a mark has completed a line, the board is drawn,
// or play continues. Lines are checked in the order of Lines and the first
// completed one wins, so even boards that cannot occur in play get a stable
// answer.
func Evaluate(board Board) Outcome {
	for _, line := range Lines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != Empty && a == b && b == c {
			return Outcome{Status: Win, Winner: a, Line: line}
		}
	}

	// the game will continue until all the squares are full
	if !board.IsFull() {
		return Outcome{Status: InProgress}
	}

	return Outcome{Status: Draw}
}
