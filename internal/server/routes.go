package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// NewRouter builds the HTTP routes of the dictionary API.
func NewRouter(h *Handler, allowedOrigins []string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recovery(logger))
	r.Use(Logger(logger))
	r.Use(CORS(allowedOrigins))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/entries/{term}", h.GetEntry)
		r.Get("/suggestions", h.GetSuggestions)
		r.Get("/recent", h.GetRecent)
		r.Get("/word-of-the-day", h.GetWordOfTheDay)

		r.Route("/favourites", func(r chi.Router) {
			r.Get("/", h.ListFavourites)
			r.Route("/{term}", func(r chi.Router) {
				r.Get("/", h.GetFavourite)
				r.Put("/", h.PutFavourite)
				r.Delete("/", h.DeleteFavourite)
			})
		})
	})

	return r
}
