package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rocketscienceinc/tictactoe-solo/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-solo/internal/entity"
)

type matchUseCase interface {
	CreateMatch(ctx context.Context) (*entity.Match, error)
	GetMatch(ctx context.Context, id string) (*entity.Match, error)
	DeleteMatch(ctx context.Context, id string) error

	MakeTurn(ctx context.Context, id string, cell int) (*entity.Match, error)
	ResetGame(ctx context.Context, id string) (*entity.Match, error)
	NewMatch(ctx context.Context, id string) (*entity.Match, error)
	SetAI(ctx context.Context, id string, enabled bool) (*entity.Match, error)
}

// MatchResponse is the match as the board page renders it.
type MatchResponse struct {
	*entity.Match
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type TurnRequest struct {
	Cell *int `json:"cell"`
}

type AIRequest struct {
	Enabled *bool `json:"enabled"`
}

type handlers struct {
	logger  *slog.Logger
	matches matchUseCase
}

func newHandlers(logger *slog.Logger, matches matchUseCase) *handlers {
	return &handlers{
		logger:  logger.With("component", "rest"),
		matches: matches,
	}
}

func (that *handlers) createMatch(w http.ResponseWriter, r *http.Request) {
	match, err := that.matches.CreateMatch(r.Context())
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeMatch(w, http.StatusCreated, match)
}

func (that *handlers) getMatch(w http.ResponseWriter, r *http.Request) {
	match, err := that.matches.GetMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeMatch(w, http.StatusOK, match)
}

func (that *handlers) deleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := that.matches.DeleteMatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		that.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (that *handlers) makeTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Cell == nil {
		that.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "cell is required"})
		return
	}

	match, err := that.matches.MakeTurn(r.Context(), chi.URLParam(r, "id"), *req.Cell)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeMatch(w, http.StatusOK, match)
}

func (that *handlers) resetGame(w http.ResponseWriter, r *http.Request) {
	match, err := that.matches.ResetGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeMatch(w, http.StatusOK, match)
}

func (that *handlers) newMatch(w http.ResponseWriter, r *http.Request) {
	match, err := that.matches.NewMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeMatch(w, http.StatusOK, match)
}

func (that *handlers) setAI(w http.ResponseWriter, r *http.Request) {
	var req AIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		that.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "enabled is required"})
		return
	}

	match, err := that.matches.SetAI(r.Context(), chi.URLParam(r, "id"), *req.Enabled)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeMatch(w, http.StatusOK, match)
}

func (that *handlers) writeMatch(w http.ResponseWriter, status int, match *entity.Match) {
	that.writeJSON(w, status, MatchResponse{Match: match, Message: match.Message()})
}

// writeError - maps domain errors to status codes. Unexpected errors are
// logged and hidden from the client.
func (that *handlers) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		that.logger.Error("request failed", "error", err)
		that.writeJSON(w, status, ErrorResponse{Error: http.StatusText(status)})
		return
	}

	that.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrInvalidCell):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrCellOccupied),
		errors.Is(err, apperror.ErrNotYourTurn),
		errors.Is(err, apperror.ErrGameFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
