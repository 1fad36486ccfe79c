package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/pkg/analysis"
	"github.com/papercomputeco/apm/pkg/briefing"
	"github.com/papercomputeco/apm/pkg/storage"
)

// fail answers with the status matching err's class.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status, msg := classify(err)

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("request rejected",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

// classify maps an error to a status code and client message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, briefing.ErrInvalidFeedback), errors.Is(err, briefing.ErrNoUsers):
		return fiber.StatusBadRequest, err.Error()
	case storage.IsNotFound(err):
		return fiber.StatusNotFound, err.Error()
	case analysis.IsTransportError(err):
		return fiber.StatusBadGateway, err.Error()
	default:
		return fiber.StatusInternalServerError, "internal error"
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}
