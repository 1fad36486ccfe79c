package api

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/briefing"
)

// FeedbackRequest is the body of POST /api/feedback.
type FeedbackRequest struct {
	BriefID  string `json:"brief_id"`
	Feedback string `json:"feedback"`
}

// BriefsResponse is the body of GET /api/briefs.
type BriefsResponse struct {
	Briefs []*brief.Brief `json:"briefs"`
	Count  int            `json:"count"`
}

// LineageResponse is the body of GET /api/briefs/:id/lineage. Briefs run
// from the requested brief to its root.
type LineageResponse struct {
	Briefs []*brief.Brief `json:"briefs"`
	Depth  int            `json:"depth"`
}

func (s *Server) handleGenerateBrief(c *fiber.Ctx) error {
	b, err := s.service.Generate(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(b)
}

// handleGenerateBriefStream relays agent progress as SSE and ends with the
// persisted brief in the complete event. The body is optional; when it
// carries brief_id and feedback the stream refines that brief.
func (s *Server) handleGenerateBriefStream(c *fiber.Ctx) error {
	var req briefing.StreamRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	// Use context.Background() instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, but the relay runs
	// in a separate goroutine and needs the upstream stream to stay open.
	relay, err := s.service.OpenStream(context.Background(), req)
	if err != nil {
		return s.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// io.Pipe gives per-frame flushing: pw.Write blocks until fasthttp's
	// chunked writer has consumed the previous frame.
	pr, pw := io.Pipe()
	go s.relay(relay, pw)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func (s *Server) relay(relay *briefing.Relay, pw *io.PipeWriter) {
	defer pw.Close()
	defer relay.Close()

	if err := relay.Run(pw); err != nil {
		s.logger.Warn("brief stream ended with error", zap.Error(err))
		return
	}

	if b := relay.Brief(); b != nil {
		s.logger.Debug("brief stream complete", zap.String("brief_id", b.ID))
	}
}

func (s *Server) handleFeedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	b, err := s.service.Regenerate(c.Context(), req.BriefID, req.Feedback)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(b)
}

func (s *Server) handleLatestBrief(c *fiber.Ctx) error {
	b, err := s.service.Latest(c.Context())
	if err != nil {
		status, _ := classify(err)
		if status == fiber.StatusNotFound {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "No brief generated yet"})
		}
		return s.fail(c, err)
	}
	return c.JSON(b)
}

func (s *Server) handleListBriefs(c *fiber.Ctx) error {
	briefs, err := s.service.List(c.Context(), c.QueryInt("limit", 0))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(BriefsResponse{Briefs: briefs, Count: len(briefs)})
}

func (s *Server) handleGetBrief(c *fiber.Ctx) error {
	b, err := s.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(b)
}

func (s *Server) handleLineage(c *fiber.Ctx) error {
	chain, err := s.service.Lineage(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(LineageResponse{Briefs: chain, Depth: len(chain)})
}
