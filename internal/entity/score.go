package entity

import "github.com/rocketscienceinc/tictactoe-solo/internal/engine"

// Scores counts finished games within a match.
type Scores struct {
	X     int `json:"x"`
	O     int `json:"o"`
	Draws int `json:"draws"`
}

func (that *Scores) Record(outcome engine.Outcome) {
	switch {
	case outcome.Status == engine.Draw:
		that.Draws++
	case outcome.Status == engine.Win && outcome.Winner == engine.X:
		that.X++
	case outcome.Status == engine.Win && outcome.Winner == engine.O:
		that.O++
	}
}
