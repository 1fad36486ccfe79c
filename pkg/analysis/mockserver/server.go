// Package mockserver is a stand-in for the multi-agent analysis service. It
// speaks the same HTTP protocol and replays a deterministic four-phase agent
// pipeline derived from the submitted users.
package mockserver

import (
	"io"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/pkg/analysis"
	"github.com/papercomputeco/apm/pkg/progress"
	"github.com/papercomputeco/apm/pkg/sse"
)

// DefaultStepDelay is the pause between streamed events.
const DefaultStepDelay = 400 * time.Millisecond

// Config is the mock server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":5001")
	ListenAddr string

	// StepDelay is the pause before each streamed event. Zero streams the
	// whole pipeline at once.
	StepDelay time.Duration
}

// Server serves the analysis protocol.
type Server struct {
	config Config
	logger *zap.Logger
	server *fiber.App
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// New creates a new Server.
func New(config Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(analysis.ErrorResponse{Error: err.Error()})
		},
	})
	app.Use(recover.New())

	s := &Server{
		config: config,
		logger: logger,
		server: app,
	}

	app.Get(analysis.HealthPath, s.handleHealth)
	app.Post(analysis.AnalyzePath, s.handleAnalyze)
	app.Post(analysis.StreamPath, s.handleStream)

	return s
}

// App returns the underlying fiber app, for in-process testing.
func (s *Server) App() *fiber.App {
	return s.server
}

// Run starts the server on the configured listen address.
func (s *Server) Run() error {
	s.logger.Info("starting mock analysis service", zap.String("listen", s.config.ListenAddr))
	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting mock analysis service", zap.String("listen", listener.Addr().String()))
	return s.server.Listener(listener)
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	return s.server.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "ok", Service: "ai-agents"})
}

// decode reads the request body, returning a client error message when it
// cannot be analyzed.
func decode(c *fiber.Ctx) (analysis.Request, string) {
	var req analysis.Request
	if err := c.BodyParser(&req); err != nil {
		return req, "invalid request body"
	}
	if len(req.Users) == 0 {
		return req, "users array is required"
	}
	return req, ""
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(analysis.ErrorResponse{Error: msg})
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	req, msg := decode(c)
	if msg != "" {
		return badRequest(c, msg)
	}

	s.logger.Debug("analyzing", zap.Int("users", len(req.Users)), zap.Bool("refinement", req.Feedback != ""))
	return c.JSON(Run(req).Result)
}

func (s *Server) handleStream(c *fiber.Ctx) error {
	req, msg := decode(c)
	if msg != "" {
		return badRequest(c, msg)
	}

	frames := make([]sse.Frame, 0, 16)
	for _, ev := range Run(req).Events {
		f, err := progress.EncodeFrame(ev)
		if err != nil {
			return err
		}
		frames = append(frames, f)
	}

	s.logger.Debug("streaming analysis",
		zap.Int("users", len(req.Users)),
		zap.Int("events", len(frames)),
	)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// pw.Write blocks until fasthttp has flushed the previous chunk.
	pr, pw := io.Pipe()
	go s.writeFrames(pw, frames)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (s *Server) writeFrames(pw *io.PipeWriter, frames []sse.Frame) {
	defer pw.Close()

	for _, f := range frames {
		if s.config.StepDelay > 0 {
			time.Sleep(s.config.StepDelay)
		}
		if err := sse.Write(pw, f); err != nil {
			s.logger.Debug("client went away", zap.Error(err))
			return
		}
	}
}
