package api

import (
	"errors"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/pkg/briefing"
)

// Server is the API server for the apm dashboard.
type Server struct {
	config  Config
	service *briefing.Service
	logger  *zap.Logger
	app     *fiber.App
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a new API server.
// The service is injected to allow sharing with other components
// (e.g., the CLI seeding the same store).
func NewServer(config Config, service *briefing.Service, logger *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("briefing service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = DefaultCORSOrigins
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(config.CORSOrigins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	s := &Server{
		config:  config,
		service: service,
		logger:  logger,
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/health", s.handleHealth)

	v := app.Group("/api")
	v.Get("/users", s.handleListUsers)
	v.Get("/stats", s.handleStats)
	v.Get("/metrics", s.handleStats)
	v.Post("/mock-crm", s.handleMockCRM)
	v.Post("/connect/:source", s.handleConnect)

	v.Post("/generate-brief", s.handleGenerateBrief)
	v.Post("/generate-brief-stream", s.handleGenerateBriefStream)
	v.Post("/feedback", s.handleFeedback)
	v.Get("/brief", s.handleLatestBrief)
	v.Get("/briefs", s.handleListBriefs)
	v.Get("/briefs/:id", s.handleGetBrief)
	v.Get("/briefs/:id/lineage", s.handleLineage)

	return s, nil
}

// App returns the underlying fiber app, for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		zap.String("listen", listener.Addr().String()),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
