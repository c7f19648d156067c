package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-solo/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-solo/internal/engine"
)

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"

	ResultTie = "-"
)

const (
	// Human always moves first.
	Human    = engine.X
	Computer = engine.O
)

// Match is one browser session: the current board plus the running score.
// Version changes on every mutation, so a computer turn scheduled against an
// older version can be recognised and dropped.
type Match struct {
	ID          string       `json:"id"`
	Board       engine.Board `json:"board"`
	Turn        engine.Mark  `json:"turn"`
	Status      string       `json:"status"`
	Winner      string       `json:"winner"`
	WinningLine *engine.Line `json:"winning_line,omitempty"`
	AIEnabled   bool         `json:"ai_enabled"`
	Scores      Scores       `json:"scores"`
	Version     uint64       `json:"version"`
}

func NewMatch(id string) *Match {
	return &Match{
		ID:        id,
		Turn:      Human,
		Status:    StatusOngoing,
		AIEnabled: true,
	}
}

// MakeTurn places mark on cell and re-evaluates the board.
func (that *Match) MakeTurn(mark engine.Mark, cell int) error {
	if that.IsFinished() {
		return apperror.ErrGameFinished
	}

	if cell < 0 || cell >= len(that.Board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if that.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if that.Board[cell] != engine.Empty {
		return apperror.ErrCellOccupied
	}

	that.Board[cell] = mark
	that.Turn = mark.Opponent()
	that.Version++

	that.UpdateGameState()

	return nil
}

// UpdateGameState applies the board's outcome and, when the game has just
// ended, records it in the score.
func (that *Match) UpdateGameState() {
	outcome := engine.Evaluate(that.Board)

	switch outcome.Status {
	case engine.Win:
		line := outcome.Line
		that.Winner = outcome.Winner.String()
		that.WinningLine = &line
	case engine.Draw:
		that.Winner = ResultTie
	default:
		that.Status = StatusOngoing
		return
	}

	if !that.IsFinished() {
		that.Scores.Record(outcome)
	}

	that.Status = StatusFinished
	that.Turn = engine.Empty
}

// HumanMark is the mark a player request plays. With the computer off the
// human plays both sides.
func (that *Match) HumanMark() engine.Mark {
	if that.AIEnabled {
		return Human
	}

	return that.Turn
}

func (that *Match) IsComputerTurn() bool {
	return that.AIEnabled && that.IsOngoing() && that.Turn == Computer
}

func (that *Match) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Match) IsOngoing() bool {
	return that.Status == StatusOngoing
}

// Reset clears the board for another game and keeps the score.
func (that *Match) Reset() {
	that.Board = engine.Board{}
	that.Turn = Human
	that.Status = StatusOngoing
	that.Winner = ""
	that.WinningLine = nil
	that.Version++
}

// Restart starts a new match: a fresh board and a zeroed score.
func (that *Match) Restart() {
	that.Reset()
	that.Scores = Scores{}
}

func (that *Match) SetAI(enabled bool) {
	that.AIEnabled = enabled
	that.Version++
}

// Message is the status line shown above the board.
func (that *Match) Message() string {
	switch {
	case that.Winner == ResultTie:
		return "It's a draw!"
	case that.Winner != "":
		return that.Winner + " wins!"
	case that.Turn == Human:
		return "Your move"
	case that.AIEnabled:
		return "Computer thinking…"
	default:
		return "O to move"
	}
}
