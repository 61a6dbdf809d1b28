package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/CharlieAKAN/Coop-Keeper/handlers"
	"github.com/CharlieAKAN/Coop-Keeper/middleware"
	"github.com/CharlieAKAN/Coop-Keeper/services"
)

func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	playerHandler *handlers.PlayerHandler,
	deckHandler *handlers.DeckHandler,
	roundHandler *handlers.RoundHandler,
	standingsHandler *handlers.StandingsHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/login", authHandler.Login)

	router.Route("/tournaments", func(r chi.Router) {
		// Public views.
		r.Get("/{tid}", tournamentHandler.Get)
		r.Get("/{tid}/standings", standingsHandler.Get)
		r.Get("/{tid}/rounds/{round}", roundHandler.Get)

		// Player actions.
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/{tid}/players", playerHandler.Register)
			r.Post("/{tid}/paid", playerHandler.MarkPaid)
			r.Post("/{tid}/drop", playerHandler.Drop)
			r.Post("/{tid}/no-show", playerHandler.ReportNoShow)
			r.Post("/{tid}/deck", deckHandler.Submit)
			r.Post("/{tid}/report", roundHandler.Report)
		})

		// Organizer actions.
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(auth.Authorize(services.RoleAdmin))

			r.Get("/", tournamentHandler.List)
			r.Post("/", tournamentHandler.Create)
			r.Patch("/{tid}", tournamentHandler.UpdateMeta)
			r.Delete("/{tid}", tournamentHandler.Delete)
			r.Put("/{tid}/payment", tournamentHandler.SetPayment)

			r.Put("/{tid}/players/{userID}/payment", playerHandler.SetPaymentStatus)
			r.Post("/{tid}/players/{userID}/drop", playerHandler.DropPlayer)
			r.Post("/{tid}/players/{userID}/no-show", playerHandler.MarkNoShow)

			r.Get("/{tid}/players/{userID}/deck", deckHandler.Pull)
			r.Post("/{tid}/players/{userID}/deck/approve", deckHandler.Approve)
			r.Post("/{tid}/players/{userID}/deck/reject", deckHandler.Reject)

			r.Post("/{tid}/rounds/start", roundHandler.Start)
			r.Post("/{tid}/rounds/next", roundHandler.Next)
			r.Post("/{tid}/override", roundHandler.Override)

			r.Post("/{tid}/standings/post", standingsHandler.Post)
			r.Post("/{tid}/standings/export", standingsHandler.Export)
			r.Get("/{tid}/audit", standingsHandler.Audit)
			r.Post("/{tid}/audit/export", standingsHandler.ExportAudit)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(auth.Authorize(services.RoleAdmin))
		r.Post("/auth/player-token", authHandler.IssuePlayerToken)
	})

	router.Get("/ws/channels/{channelID}", webSocketHandler.ServeChannel)
	router.Get("/ws/tournaments/{tid}/threads/{userID}", webSocketHandler.ServeThread)
}
