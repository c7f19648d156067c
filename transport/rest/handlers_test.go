package rest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-solo/internal/engine"
	"github.com/rocketscienceinc/tictactoe-solo/internal/entity"
	"github.com/rocketscienceinc/tictactoe-solo/internal/repository"
	"github.com/rocketscienceinc/tictactoe-solo/internal/usecase"
)

// matchBody mirrors MatchResponse for decoding.
type matchBody struct {
	entity.Match
	Message string `json:"message"`
}

func newTestServer(t *testing.T, thinkDelay time.Duration) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	manager := usecase.NewMatchManager(logger, repository.NewMemoryMatchRepository(), engine.NewSeededSelector(1), thinkDelay)
	srv := httptest.NewServer(NewRouter(logger, manager))

	t.Cleanup(func() {
		srv.Close()
		manager.Close()
	})

	return srv
}

func do(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func decodeMatch(t *testing.T, data []byte) matchBody {
	t.Helper()

	var body matchBody
	require.NoError(t, json.Unmarshal(data, &body))

	return body
}

func createMatch(t *testing.T, srv *httptest.Server) matchBody {
	t.Helper()

	status, data := do(t, http.MethodPost, srv.URL+"/matches", "")
	require.Equal(t, http.StatusCreated, status)

	return decodeMatch(t, data)
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, 0)

	status, data := do(t, http.MethodGet, srv.URL+"/ping", "")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", string(data))
}

func TestHandlers_Match(t *testing.T) {
	t.Run("Create returns a fresh match", func(t *testing.T) {
		srv := newTestServer(t, 0)

		// When: a match is created
		match := createMatch(t, srv)

		// Then: the board is empty and it is the human's move
		assert.NotEmpty(t, match.ID)
		assert.Equal(t, engine.Board{}, match.Board)
		assert.Equal(t, engine.X, match.Turn)
		assert.True(t, match.AIEnabled)
		assert.Equal(t, "Your move", match.Message)
	})

	t.Run("Board is encoded as marks", func(t *testing.T) {
		srv := newTestServer(t, time.Hour)
		match := createMatch(t, srv)

		// When: X plays the center
		status, data := do(t, http.MethodPost, srv.URL+"/matches/"+match.ID+"/turn", `{"cell":4}`)
		require.Equal(t, http.StatusOK, status)

		// Then: the raw JSON carries string marks
		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, []any{"", "", "", "", "X", "", "", "", ""}, raw["board"])
		assert.Equal(t, "O", raw["turn"])
		assert.Equal(t, "Computer thinking…", raw["message"])
	})

	t.Run("Computer move shows up on the next read", func(t *testing.T) {
		srv := newTestServer(t, 0)
		match := createMatch(t, srv)

		status, _ := do(t, http.MethodPost, srv.URL+"/matches/"+match.ID+"/turn", `{"cell":0}`)
		require.Equal(t, http.StatusOK, status)

		// Then: the computer eventually takes the center
		require.Eventually(t, func() bool {
			status, data := do(t, http.MethodGet, srv.URL+"/matches/"+match.ID, "")
			if status != http.StatusOK {
				return false
			}
			var current matchBody
			if err := json.Unmarshal(data, &current); err != nil {
				return false
			}
			return current.Board[4] == engine.O && current.Turn == engine.X
		}, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("Reset, new match and AI toggle", func(t *testing.T) {
		srv := newTestServer(t, time.Hour)
		match := createMatch(t, srv)
		base := srv.URL + "/matches/" + match.ID

		status, _ := do(t, http.MethodPost, base+"/turn", `{"cell":0}`)
		require.Equal(t, http.StatusOK, status)

		// When: the board is reset
		status, data := do(t, http.MethodPost, base+"/reset", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, engine.Board{}, decodeMatch(t, data).Board)

		// When: a new match starts
		status, data = do(t, http.MethodPost, base+"/new", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, entity.Scores{}, decodeMatch(t, data).Scores)

		// When: the AI is switched off
		status, data = do(t, http.MethodPut, base+"/ai", `{"enabled":false}`)
		require.Equal(t, http.StatusOK, status)
		assert.False(t, decodeMatch(t, data).AIEnabled)
	})

	t.Run("Delete ends the session", func(t *testing.T) {
		srv := newTestServer(t, 0)
		match := createMatch(t, srv)

		status, _ := do(t, http.MethodDelete, srv.URL+"/matches/"+match.ID, "")
		require.Equal(t, http.StatusNoContent, status)

		status, _ = do(t, http.MethodGet, srv.URL+"/matches/"+match.ID, "")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestHandlers_Errors(t *testing.T) {
	srv := newTestServer(t, time.Hour)
	match := createMatch(t, srv)
	base := srv.URL + "/matches/" + match.ID

	tests := []struct {
		name   string
		method string
		url    string
		body   string
		status int
		error  string
	}{
		{"unknown match", http.MethodGet, srv.URL + "/matches/missing", "", http.StatusNotFound, "match not found"},
		{"missing cell", http.MethodPost, base + "/turn", `{}`, http.StatusBadRequest, "cell is required"},
		{"malformed body", http.MethodPost, base + "/turn", `{"cell":`, http.StatusBadRequest, "cell is required"},
		{"invalid cell", http.MethodPost, base + "/turn", `{"cell":12}`, http.StatusBadRequest, "invalid cell index"},
		{"missing enabled", http.MethodPut, base + "/ai", `{}`, http.StatusBadRequest, "enabled is required"},
		{"first move", http.MethodPost, base + "/turn", `{"cell":4}`, http.StatusOK, ""},
		{"computer is thinking", http.MethodPost, base + "/turn", `{"cell":0}`, http.StatusConflict, "it's not your turn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := do(t, tt.method, tt.url, tt.body)

			require.Equal(t, tt.status, status)
			if tt.error == "" {
				return
			}

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(data, &body))
			assert.Contains(t, body.Error, tt.error)
		})
	}
}
