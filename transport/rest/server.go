package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"libdb.so/hserve"
)

const requestTimeout = 10 * time.Second

// NewRouter - routes the match API.
func NewRouter(logger *slog.Logger, matches matchUseCase) http.Handler {
	h := newHandlers(logger, matches)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(requestLogger(h.logger))

	r.Get("/ping", pingHandler)

	r.Post("/matches", h.createMatch)
	r.Route("/matches/{id}", func(r chi.Router) {
		r.Get("/", h.getMatch)
		r.Delete("/", h.deleteMatch)
		r.Post("/turn", h.makeTurn)
		r.Post("/reset", h.resetGame)
		r.Post("/new", h.newMatch)
		r.Put("/ai", h.setAI)
	})

	return r
}

// Start - serves handler on port until ctx is done.
func Start(ctx context.Context, port string, handler http.Handler) error {
	if err := hserve.ListenAndServe(ctx, ":"+port, handler); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
