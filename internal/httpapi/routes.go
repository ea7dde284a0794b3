package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/infra/storage"
	"github.com/phantom-night/server/internal/network"
	"github.com/phantom-night/server/internal/platform/logger"
	"github.com/phantom-night/server/internal/platform/metrics"
)

// Server holds the HTTP surface's collaborators.
type Server struct {
	eng        *engine.Engine
	hub        *network.Hub
	timeline   *network.TimelineHandler
	recap      *storage.Reconstructor
	logger     *logger.Logger
	sendBuffer int
}

// NewServer creates the API server.
func NewServer(eng *engine.Engine, hub *network.Hub, timeline *network.TimelineHandler, recap *storage.Reconstructor, log *logger.Logger, sendBuffer int) *Server {
	return &Server{
		eng:        eng,
		hub:        hub,
		timeline:   timeline,
		recap:      recap,
		logger:     log,
		sendBuffer: sendBuffer,
	}
}

// Routes builds the router. Identity travels in headers: X-Resident-ID
// (required), X-Resident-Name, X-Scope.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireIdentity)

		r.Get("/ws", s.handleWS)

		r.Route("/api", func(r chi.Router) {
			r.Post("/games", s.handleCreateGame)
			r.Get("/lobbies", s.handleListLobbies)
			r.Get("/games/current", s.handleCurrentGame)

			r.Route("/games/{gameID}", func(r chi.Router) {
				r.Post("/join", s.handleJoin)
				r.Post("/leave", s.handleLeave)
				r.Post("/start", s.handleStart)
				r.Delete("/", s.handleCancel)

				r.Get("/players", s.handlePlayers)
				r.Get("/players/{playerID}/fate", s.handleFate)
				r.Get("/events", s.handleEvents)
				r.Get("/timeline", s.handleTimeline)
				r.Get("/recap", s.handleRecap)
				r.Get("/role", s.handleMyRole)
				r.Get("/votes", s.handleVoteTally)

				r.Post("/night/{action}", s.handleNightAction)
				r.Post("/vote", s.handleDayVote)

				r.Get("/chat", s.handleGetChat)
				r.Post("/chat", s.handleSendChat)
			})
		})
	})

	return r
}
