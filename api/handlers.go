package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/apm/pkg/crm"
)

// UsersResponse is the body of GET /api/users.
type UsersResponse struct {
	Users []crm.User `json:"users"`
	Count int        `json:"count"`
}

// SeedResponse is the body of POST /api/mock-crm.
type SeedResponse struct {
	Message  string     `json:"message"`
	Inserted int        `json:"inserted"`
	Total    int        `json:"total"`
	Stats    *crm.Stats `json:"stats"`
}

// ConnectResponse is the body of POST /api/connect/:source.
type ConnectResponse struct {
	Message  string     `json:"message"`
	Source   string     `json:"source"`
	Inserted int        `json:"inserted"`
	Stats    *crm.Stats `json:"stats"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleListUsers returns stored users newest first. Query parameters:
// status (signed_up|not_engaged), limit (default 300, max 500), offset.
func (s *Server) handleListUsers(c *fiber.Ctx) error {
	opts := crm.ListOptions{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}

	if status := c.Query("status"); status != "" {
		if !crm.ValidStatus(status) {
			return badRequest(c, fmt.Sprintf("invalid status %q", status))
		}
		opts.Status = crm.Status(status)
	}

	users, err := s.service.Users(c.Context(), opts)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(UsersResponse{Users: users, Count: len(users)})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.service.Stats(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(stats)
}

// handleMockCRM seeds the mock CRM users.
func (s *Server) handleMockCRM(c *fiber.Ctx) error {
	res, err := s.service.Seed(c.Context())
	if err != nil {
		return s.fail(c, err)
	}

	stats, err := s.service.Stats(c.Context())
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(SeedResponse{
		Message:  "CRM connected (mock)",
		Inserted: res.Inserted,
		Total:    res.Total,
		Stats:    stats,
	})
}

// handleConnect simulates connecting a named CRM. The data is the same mock
// import whichever CRM is picked.
func (s *Server) handleConnect(c *fiber.Ctx) error {
	source := c.Params("source")
	if !crm.ValidSource(source) {
		return badRequest(c, "Invalid source. Use salesforce or hubspot")
	}

	res, err := s.service.Seed(c.Context())
	if err != nil {
		return s.fail(c, err)
	}

	stats, err := s.service.Stats(c.Context())
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(ConnectResponse{
		Message:  fmt.Sprintf("Connected to %s (mock)", source),
		Source:   source,
		Inserted: res.Inserted,
		Stats:    stats,
	})
}
