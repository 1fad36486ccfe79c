package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/apm/pkg/analysis"
	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/briefing"
	"github.com/papercomputeco/apm/pkg/crm"
	"github.com/papercomputeco/apm/pkg/logger"
	"github.com/papercomputeco/apm/pkg/progress"
	"github.com/papercomputeco/apm/pkg/storage/inmemory"
)

var _ = Describe("Server", func() {
	var (
		server *Server
		store  *inmemory.Driver
	)

	newServer := func(a briefing.Analyzer) *Server {
		svc, err := briefing.New(briefing.Config{Store: store, Analyzer: a, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		s, err := NewServer(Config{ListenAddr: ":0"}, svc, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	do := func(method, path, body string) *http.Response {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, r)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, into any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(into)).To(Succeed())
	}

	errorOf := func(resp *http.Response) string {
		var e ErrorResponse
		decode(resp, &e)
		return e.Error
	}

	seed := func() {
		resp := do(http.MethodPost, "/api/mock-crm", "")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		resp.Body.Close()
	}

	generate := func() *brief.Brief {
		resp := do(http.MethodPost, "/api/generate-brief", "")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		var b brief.Brief
		decode(resp, &b)
		return &b
	}

	BeforeEach(func() {
		store = inmemory.NewDriver()
		server = newServer(startAnalysis())
	})

	It("requires a service", func() {
		_, err := NewServer(Config{}, nil, nil)
		Expect(err).To(HaveOccurred())
	})

	Describe("health", func() {
		It("answers ping", func() {
			resp := do(http.MethodGet, "/ping", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var body string
			decode(resp, &body)
			Expect(body).To(Equal("pong"))
		})

		It("reports ok", func() {
			resp := do(http.MethodGet, "/health", "")
			var body map[string]string
			decode(resp, &body)
			Expect(body).To(HaveKeyWithValue("status", "ok"))
		})

		It("allows the dashboard origin", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", DefaultCORSOrigins[0])
			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal(DefaultCORSOrigins[0]))
		})
	})

	Describe("users", func() {
		It("is empty before seeding", func() {
			var body UsersResponse
			decode(do(http.MethodGet, "/api/users", ""), &body)
			Expect(body.Count).To(Equal(0))
			Expect(body.Users).To(BeEmpty())
		})

		It("seeds the mock CRM once", func() {
			var first SeedResponse
			decode(do(http.MethodPost, "/api/mock-crm", ""), &first)
			Expect(first.Inserted).To(Equal(crm.MockTotal))
			Expect(first.Total).To(Equal(crm.MockTotal))
			Expect(first.Stats.Total).To(Equal(crm.MockTotal))

			var second SeedResponse
			decode(do(http.MethodPost, "/api/mock-crm", ""), &second)
			Expect(second.Inserted).To(Equal(0))
			Expect(second.Total).To(Equal(crm.MockTotal))
		})

		It("filters and pages", func() {
			seed()

			var signed UsersResponse
			decode(do(http.MethodGet, "/api/users?status=signed_up&limit=500", ""), &signed)
			Expect(signed.Count).To(Equal(crm.MockSignedUp))
			for _, u := range signed.Users {
				Expect(u.Status).To(Equal(crm.StatusSignedUp))
			}

			var page UsersResponse
			decode(do(http.MethodGet, "/api/users?limit=5&offset=2", ""), &page)
			Expect(page.Count).To(Equal(5))
		})

		It("rejects an unknown status", func() {
			resp := do(http.MethodGet, "/api/users?status=churned", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(errorOf(resp)).To(ContainSubstring("churned"))
		})

		It("aggregates stats", func() {
			seed()
			var stats crm.Stats
			decode(do(http.MethodGet, "/api/stats", ""), &stats)
			Expect(stats.Total).To(Equal(crm.MockTotal))
			Expect(stats.SignedUp).To(Equal(crm.MockSignedUp))
			Expect(stats.NotEngaged).To(Equal(crm.MockNotEngaged))
		})
	})

	Describe("connect", func() {
		It("connects a known CRM", func() {
			resp := do(http.MethodPost, "/api/connect/hubspot", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var body ConnectResponse
			decode(resp, &body)
			Expect(body.Message).To(Equal("Connected to hubspot (mock)"))
			Expect(body.Stats.Total).To(Equal(crm.MockTotal))
		})

		It("rejects an unknown CRM", func() {
			resp := do(http.MethodPost, "/api/connect/pipedrive", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(errorOf(resp)).To(Equal("Invalid source. Use salesforce or hubspot"))
		})
	})

	Describe("briefs", func() {
		It("needs users to generate", func() {
			resp := do(http.MethodPost, "/api/generate-brief", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(errorOf(resp)).To(Equal(briefing.ErrNoUsers.Error()))
		})

		It("reports no brief before the first generation", func() {
			resp := do(http.MethodGet, "/api/brief", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			Expect(errorOf(resp)).To(Equal("No brief generated yet"))
		})

		It("generates and returns the latest brief", func() {
			seed()
			b := generate()
			Expect(b.ID).NotTo(BeEmpty())
			Expect(b.ParentBriefID).To(BeEmpty())

			var latest brief.Brief
			decode(do(http.MethodGet, "/api/brief", ""), &latest)
			Expect(latest.ID).To(Equal(b.ID))

			var got brief.Brief
			decode(do(http.MethodGet, "/api/briefs/"+b.ID, ""), &got)
			Expect(got.Content).To(MatchJSON(b.Content))

			var list BriefsResponse
			decode(do(http.MethodGet, "/api/briefs", ""), &list)
			Expect(list.Count).To(Equal(1))
		})

		It("returns 404 for an unknown brief", func() {
			resp := do(http.MethodGet, "/api/briefs/missing", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			resp.Body.Close()

			resp = do(http.MethodGet, "/api/briefs/missing/lineage", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			resp.Body.Close()
		})

		It("refines a brief from feedback and walks the lineage", func() {
			seed()
			root := generate()

			resp := do(http.MethodPost, "/api/feedback", `{"brief_id":"`+root.ID+`","feedback":"focus on fintech"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var child brief.Brief
			decode(resp, &child)
			Expect(child.ParentBriefID).To(Equal(root.ID))
			Expect(child.Feedback).To(Equal("focus on fintech"))

			var lineage LineageResponse
			decode(do(http.MethodGet, "/api/briefs/"+child.ID+"/lineage", ""), &lineage)
			Expect(lineage.Depth).To(Equal(2))
			Expect(lineage.Briefs[0].ID).To(Equal(child.ID))
			Expect(lineage.Briefs[1].ID).To(Equal(root.ID))
		})

		It("validates feedback", func() {
			seed()

			resp := do(http.MethodPost, "/api/feedback", `{"brief_id":"abc"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(errorOf(resp)).To(Equal(briefing.ErrInvalidFeedback.Error()))

			resp = do(http.MethodPost, "/api/feedback", `{"brief_id":`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			resp.Body.Close()

			resp = do(http.MethodPost, "/api/feedback", `{"brief_id":"ghost","feedback":"more"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("streaming", func() {
		readEvents := func(resp *http.Response) []progress.Event {
			defer resp.Body.Close()
			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			s := progress.NewStream(logger.Nop())
			return append(s.Feed(raw), s.Finish()...)
		}

		It("streams progress and ends with the stored brief", func() {
			seed()

			resp := do(http.MethodPost, "/api/generate-brief-stream", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			events := readEvents(resp)
			Expect(events).NotTo(BeEmpty())
			Expect(events[0].Kind()).To(Equal(progress.KindPhaseStart))

			complete, ok := events[len(events)-1].(progress.Complete)
			Expect(ok).To(BeTrue())
			Expect(complete.BriefID).NotTo(BeEmpty())

			stored, err := store.LatestBrief(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).To(Equal(complete.BriefID))
		})

		It("streams a refinement", func() {
			seed()
			root := generate()

			resp := do(http.MethodPost, "/api/generate-brief-stream", `{"brief_id":"`+root.ID+`","feedback":"shorter"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			events := readEvents(resp)
			complete := events[len(events)-1].(progress.Complete)

			stored, err := store.GetBrief(context.Background(), complete.BriefID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ParentBriefID).To(Equal(root.ID))
		})

		It("answers with a status code before streaming when the request is invalid", func() {
			resp := do(http.MethodPost, "/api/generate-brief-stream", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			resp.Body.Close()

			seed()
			resp = do(http.MethodPost, "/api/generate-brief-stream", `{"feedback":"orphan"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Context("when the analysis service is unavailable", func() {
		BeforeEach(func() {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			DeferCleanup(upstream.Close)

			client, err := analysis.NewClient(analysis.Config{Target: upstream.URL, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			server = newServer(client)
			seed()
		})

		It("returns 502 for generation", func() {
			resp := do(http.MethodPost, "/api/generate-brief", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
			Expect(errorOf(resp)).To(ContainSubstring("503"))
		})

		It("returns 502 for streaming", func() {
			resp := do(http.MethodPost, "/api/generate-brief-stream", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
			resp.Body.Close()
		})
	})
})
