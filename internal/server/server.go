// Package server exposes the ledger core over HTTP. Routing and encoding
// only; every rule lives in the transfer coordinator.
package server

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/mohitc/banking-ledger/internal/transfer"
)

type Server struct {
	app         *fiber.App
	coordinator *transfer.Coordinator
	log         *slog.Logger
}

func New(coordinator *transfer.Coordinator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		coordinator: coordinator,
		log:         logger,
	}

	s.app.Use(cors.New())
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api", RequireCaller())
	api.Post("/transfers", s.createTransfer)
	api.Post("/transfers/:id/reverse", s.reverseTransfer)
	api.Get("/accounts/:id/balance", s.getBalance)
	api.Get("/transactions", s.getHistory)
	api.Get("/ledger/:accountId", s.getLedgerEntries)

	return s
}

func (s *Server) Listen(addr string) error {
	s.log.Info("server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber application for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
