package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
)

// NewServer builds the fiber app with all routes registered.
func NewServer(handlers *Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "scholarship-finder",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())

	app.Get("/health", handlers.Health)

	v1 := app.Group("/api/v1")
	v1.Get("/stats", handlers.Stats)
	v1.Get("/scholarships/recent", handlers.RecentScholarships)

	return app
}

// Serve runs the status API on addr, blocking until the listener stops.
func Serve(app *fiber.App, addr string) error {
	log.Info().Str("addr", addr).Msg("Status API listening")
	return app.Listen(addr)
}
