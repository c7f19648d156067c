package repository

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rocketscienceinc/tictactoe-solo/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-solo/internal/entity"
)

type memoryMatch struct {
	matches *xsync.MapOf[string, entity.Match]
}

// NewMemoryMatchRepository - keeps matches in process memory. Values are
// copied in and out, so callers never share a *entity.Match.
func NewMemoryMatchRepository() MatchRepository {
	return &memoryMatch{
		matches: xsync.NewMapOf[string, entity.Match](),
	}
}

func (that *memoryMatch) CreateOrUpdate(_ context.Context, match *entity.Match) error {
	that.matches.Store(match.ID, cloneMatch(match))

	return nil
}

func (that *memoryMatch) GetByID(_ context.Context, id string) (*entity.Match, error) {
	match, ok := that.matches.Load(id)
	if !ok {
		return nil, apperror.ErrMatchNotFound
	}

	clone := cloneMatch(&match)
	return &clone, nil
}

func (that *memoryMatch) DeleteByID(_ context.Context, id string) error {
	if _, ok := that.matches.LoadAndDelete(id); !ok {
		return apperror.ErrMatchNotFound
	}

	return nil
}

func cloneMatch(match *entity.Match) entity.Match {
	clone := *match
	if match.WinningLine != nil {
		line := *match.WinningLine
		clone.WinningLine = &line
	}

	return clone
}
