package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rocketscienceinc/tictactoe-solo/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-solo/internal/engine"
	"github.com/rocketscienceinc/tictactoe-solo/internal/entity"
)

type matchRepo interface {
	CreateOrUpdate(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	DeleteByID(ctx context.Context, id string) error
}

type moveSelector interface {
	SelectMove(board engine.Board, ai, opponent engine.Mark) (int, bool)
}

const (
	computerTurnRetries       = 3
	defaultComputerRetryDelay = 100 * time.Millisecond
)

// matchLock serialises work on one match. refs counts the holders and waiters
// so the entry can leave the map once nobody needs it.
type matchLock struct {
	mu   sync.Mutex
	refs int
}

// pendingTurn is a computer move waiting out its thinking delay.
type pendingTurn struct {
	version uint64
	cancel  context.CancelFunc
}

// MatchManager owns the lifecycle of matches: it applies player actions,
// keeps the score, and plays the computer's turns after a short delay.
type MatchManager struct {
	logger     *slog.Logger
	matchRepo  matchRepo
	selector   moveSelector
	thinkDelay time.Duration
	retryDelay time.Duration

	locks   *xsync.MapOf[string, *matchLock]
	pending *xsync.MapOf[string, *pendingTurn]

	ctx    context.Context
	cancel context.CancelFunc

	closeMu sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

func NewMatchManager(logger *slog.Logger, matchRepo matchRepo, selector moveSelector, thinkDelay time.Duration) *MatchManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &MatchManager{
		logger:     logger.With("component", "match-manager"),
		matchRepo:  matchRepo,
		selector:   selector,
		thinkDelay: thinkDelay,
		retryDelay: defaultComputerRetryDelay,

		locks:   xsync.NewMapOf[string, *matchLock](),
		pending: xsync.NewMapOf[string, *pendingTurn](),

		ctx:    ctx,
		cancel: cancel,
	}
}

// CreateMatch - starts a session with an empty board and a zero score.
func (that *MatchManager) CreateMatch(ctx context.Context) (*entity.Match, error) {
	match := entity.NewMatch(uuid.NewString())

	if err := that.matchRepo.CreateOrUpdate(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	that.logger.Info("match created", "match_id", match.ID)

	return match, nil
}

// GetMatch - returns the stored match. A computer turn that is due but no
// longer scheduled, because its goroutine gave up, is scheduled again.
func (that *MatchManager) GetMatch(ctx context.Context, id string) (*entity.Match, error) {
	match, err := that.matchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	if match.IsComputerTurn() && !that.isPending(id) {
		that.rearm(ctx, id)
	}

	return match, nil
}

// MakeTurn - plays cell for the human and, if the computer is next, schedules
// its reply.
func (that *MatchManager) MakeTurn(ctx context.Context, id string, cell int) (*entity.Match, error) {
	match, err := that.mutate(ctx, id, func(match *entity.Match) error {
		return match.MakeTurn(match.HumanMark(), cell)
	})
	if err != nil {
		return nil, fmt.Errorf("failed make turn: %w", err)
	}

	return match, nil
}

// ResetGame - clears the board and keeps the score.
func (that *MatchManager) ResetGame(ctx context.Context, id string) (*entity.Match, error) {
	match, err := that.mutate(ctx, id, func(match *entity.Match) error {
		match.Reset()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed reset game: %w", err)
	}

	return match, nil
}

// NewMatch - clears the board and the score.
func (that *MatchManager) NewMatch(ctx context.Context, id string) (*entity.Match, error) {
	match, err := that.mutate(ctx, id, func(match *entity.Match) error {
		match.Restart()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed start new match: %w", err)
	}

	return match, nil
}

// SetAI - switches the computer opponent on or off. Switching it on while O
// is to move schedules the computer's turn.
func (that *MatchManager) SetAI(ctx context.Context, id string, enabled bool) (*entity.Match, error) {
	match, err := that.mutate(ctx, id, func(match *entity.Match) error {
		match.SetAI(enabled)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed set ai: %w", err)
	}

	return match, nil
}

// DeleteMatch - ends the session.
func (that *MatchManager) DeleteMatch(ctx context.Context, id string) error {
	unlock := that.lock(id)
	defer unlock()

	that.cancelPending(id)

	if err := that.matchRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}

	that.logger.Info("match deleted", "match_id", id)

	return nil
}

// Close - cancels every pending computer turn and waits for them to return.
func (that *MatchManager) Close() {
	that.closeMu.Lock()
	that.closed = true
	that.cancel()
	that.closeMu.Unlock()

	that.wg.Wait()
}

// mutate - applies fn to the stored match under the match lock, saves the
// result and re-arms the computer turn for the new version.
func (that *MatchManager) mutate(ctx context.Context, id string, fn func(match *entity.Match) error) (*entity.Match, error) {
	unlock := that.lock(id)
	defer unlock()

	match, err := that.matchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	if err = fn(match); err != nil {
		return nil, err
	}

	if err = that.matchRepo.CreateOrUpdate(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	that.schedule(match)

	return match, nil
}

// rearm - schedules the computer turn again if the match, re-read under its
// lock, still waits for one and nothing is pending.
func (that *MatchManager) rearm(ctx context.Context, id string) {
	unlock := that.lock(id)
	defer unlock()

	match, err := that.matchRepo.GetByID(ctx, id)
	if err != nil {
		that.logger.Error("failed to re-arm computer turn", "match_id", id, "error", err)
		return
	}

	if !match.IsComputerTurn() || that.isPending(id) {
		return
	}

	that.logger.Warn("re-arming lost computer turn", "match_id", id, "version", match.Version)
	that.schedule(match)
}

// schedule - replaces any pending computer turn for the match with one bound
// to its current version. Nothing is scheduled once the manager is closed.
func (that *MatchManager) schedule(match *entity.Match) {
	that.cancelPending(match.ID)

	if !match.IsComputerTurn() {
		return
	}

	that.closeMu.Lock()
	defer that.closeMu.Unlock()

	if that.closed {
		return
	}

	ctx, cancel := context.WithCancel(that.ctx)
	turn := &pendingTurn{version: match.Version, cancel: cancel}
	that.pending.Store(match.ID, turn)

	that.wg.Add(1)
	go func(id string, delay time.Duration) {
		defer that.wg.Done()
		defer that.forget(id, turn)

		that.runComputerTurn(ctx, id, turn.version, delay)
	}(match.ID, that.thinkDelay)
}

func (that *MatchManager) runComputerTurn(ctx context.Context, id string, version uint64, delay time.Duration) {
	log := that.logger.With("method", "runComputerTurn", "match_id", id)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		log.Debug("computer turn cancelled")
		return
	case <-timer.C:
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = that.retryDelay

	err := backoff.RetryNotify(func() error {
		err := that.computerTurn(ctx, id, version)
		if errors.Is(err, apperror.ErrMatchNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, computerTurnRetries), ctx),
		func(err error, wait time.Duration) {
			log.Warn("computer turn failed, retrying", "error", err, "wait", wait)
		})
	if err != nil && ctx.Err() == nil {
		log.Error("computer turn failed", "error", err)
	}
}

// computerTurn - plays the selector's move on the match, provided the match is
// still at version. Anything else means the board moved on while the computer
// was thinking and the move is dropped.
func (that *MatchManager) computerTurn(ctx context.Context, id string, version uint64) error {
	log := that.logger.With("method", "computerTurn", "match_id", id)

	unlock := that.lock(id)
	defer unlock()

	if ctx.Err() != nil {
		log.Debug("computer turn cancelled")
		return nil
	}

	match, err := that.matchRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get match: %w", err)
	}

	if match.Version != version || !match.IsComputerTurn() {
		log.Debug("dropping stale computer turn", "scheduled_version", version, "version", match.Version)
		return nil
	}

	cell, ok := that.selector.SelectMove(match.Board, entity.Computer, entity.Human)
	if !ok {
		log.Debug("no move available")
		return nil
	}

	if err = match.MakeTurn(entity.Computer, cell); err != nil {
		return fmt.Errorf("failed make turn: %w", err)
	}

	if err = that.matchRepo.CreateOrUpdate(ctx, match); err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}

	log.Debug("computer played", "cell", cell, "status", match.Status)

	return nil
}

func (that *MatchManager) isPending(id string) bool {
	_, ok := that.pending.Load(id)
	return ok
}

func (that *MatchManager) cancelPending(id string) {
	if turn, ok := that.pending.LoadAndDelete(id); ok {
		turn.cancel()
	}
}

// forget - removes turn from the pending set unless it was already replaced.
func (that *MatchManager) forget(id string, turn *pendingTurn) {
	that.pending.Compute(id, func(current *pendingTurn, loaded bool) (*pendingTurn, bool) {
		return current, !loaded || current == turn
	})
	turn.cancel()
}

// lock - takes the per-match lock. The entry is dropped by the last holder,
// so ids that were only looked up do not stay in the map.
func (that *MatchManager) lock(id string) func() {
	entry, _ := that.locks.Compute(id, func(current *matchLock, loaded bool) (*matchLock, bool) {
		if !loaded {
			current = &matchLock{}
		}
		current.refs++
		return current, false
	})

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		that.locks.Compute(id, func(current *matchLock, loaded bool) (*matchLock, bool) {
			if !loaded {
				return current, true
			}
			current.refs--
			return current, current.refs == 0
		})
	}
}
