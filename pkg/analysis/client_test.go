package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/apm/pkg/analysis"
	"github.com/papercomputeco/apm/pkg/analysis/mockserver"
	"github.com/papercomputeco/apm/pkg/crm"
	"github.com/papercomputeco/apm/pkg/logger"
	"github.com/papercomputeco/apm/pkg/progress"
	"github.com/papercomputeco/apm/pkg/sse"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newClient(target string) *analysis.Client {
	c, err := analysis.NewClient(analysis.Config{Target: target, Logger: logger.Nop()})
	Expect(err).NotTo(HaveOccurred())
	return c
}

// drain reads every frame of s until it ends or fails.
func drain(s *analysis.EventStream) ([]sse.Frame, error) {
	var frames []sse.Frame
	for {
		f, err := s.Next()
		if err != nil {
			return frames, err
		}
		if f == nil {
			return frames, nil
		}
		frames = append(frames, *f)
	}
}

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		upstream *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	Describe("NewClient", func() {
		It("requires a target", func() {
			_, err := analysis.NewClient(analysis.Config{})
			Expect(err).To(MatchError(ContainSubstring("required")))
		})

		It("requires an http(s) target", func() {
			_, err := analysis.NewClient(analysis.Config{Target: "localhost:5001"})
			Expect(err).To(MatchError(ContainSubstring("http(s)")))
		})

		It("trims a trailing slash", func() {
			Expect(newClient("http://localhost:5001/").Target()).To(Equal("http://localhost:5001"))
		})
	})

	Describe("Analyze", func() {
		It("posts the request and decodes the result", func() {
			var got analysis.Request
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal(analysis.AnalyzePath))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())

				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"brief":{"executive_summary":"hi"},"confidence_score":0.8,"agent_outputs":{"critic_agent":{}},"timing":{"total":3.5}}`)
			}))

			users := crm.MockUsers(epoch)[:3]
			result, err := newClient(upstream.URL).Analyze(ctx, analysis.Request{
				Users:    users,
				Feedback: "shorter",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Brief).To(MatchJSON(`{"executive_summary":"hi"}`))
			Expect(result.ConfidenceScore).To(Equal(0.8))
			Expect(result.AgentOutputs).To(HaveKey("critic_agent"))
			Expect(result.Timing).To(HaveKeyWithValue("total", 3.5))

			Expect(got.Users).To(HaveLen(3))
			Expect(got.Users[0].Email).To(Equal(users[0].Email))
			Expect(got.Feedback).To(Equal("shorter"))
		})

		It("reports the service error message on non-2xx", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"users array is required"}`)
			}))

			_, err := newClient(upstream.URL).Analyze(ctx, analysis.Request{})
			Expect(analysis.IsTransportError(err)).To(BeTrue())

			var te *analysis.TransportError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Op).To(Equal("analyze"))
			Expect(te.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(te.Body).To(Equal("users array is required"))
			Expect(err.Error()).To(ContainSubstring("400"))
		})

		It("keeps a plain text error body", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			}))

			_, err := newClient(upstream.URL).Analyze(ctx, analysis.Request{})
			Expect(err).To(MatchError(ContainSubstring("503: overloaded")))
		})

		It("reports an unreadable response as a transport error", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"brief":`)
			}))

			_, err := newClient(upstream.URL).Analyze(ctx, analysis.Request{})
			Expect(analysis.IsTransportError(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("decoding response")))
		})

		It("reports an unreachable service as a transport error", func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			addr := ln.Addr().String()
			Expect(ln.Close()).To(Succeed())

			_, err = newClient("http://"+addr).Analyze(ctx, analysis.Request{})
			Expect(analysis.IsTransportError(err)).To(BeTrue())
			Expect(err.(*analysis.TransportError).StatusCode).To(Equal(0))
			Expect(err.(*analysis.TransportError).Unwrap()).NotTo(BeNil())
		})
	})

	Describe("Open", func() {
		It("yields frames as the service streams them", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal(analysis.StreamPath))
				Expect(r.Header.Get("Accept")).To(Equal("text/event-stream"))

				w.Header().Set("Content-Type", "text/event-stream")
				flusher := w.(http.Flusher)
				// A frame split across flushes.
				for _, chunk := range []string{
					"event: phase_start\ndata: {\"event\":\"pha",
					"se_start\",\"phase\":1}\n\n",
					"data: {\"event\":\"complete\",\"confidence_score\":0.9}\n\n",
				} {
					fmt.Fprint(w, chunk)
					flusher.Flush()
				}
			}))

			stream, err := newClient(upstream.URL).Open(ctx, analysis.Request{})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			frames, err := drain(stream)
			Expect(err).NotTo(HaveOccurred())
			Expect(frames).To(HaveLen(2))
			Expect(frames[0].Type).To(Equal("phase_start"))
			Expect(frames[0].Data).To(MatchJSON(`{"event":"phase_start","phase":1}`))
			Expect(frames[1].Data).To(ContainSubstring("complete"))
		})

		It("fails before streaming on non-2xx", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, `{"error":"agents unavailable"}`)
			}))

			_, err := newClient(upstream.URL).Open(ctx, analysis.Request{})
			Expect(analysis.IsTransportError(err)).To(BeTrue())
			Expect(err.(*analysis.TransportError).Op).To(Equal("stream"))
			Expect(err.(*analysis.TransportError).Body).To(Equal("agents unavailable"))
		})

		It("delivers completed frames before a broken connection", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, buf, err := w.(http.Hijacker).Hijack()
				if err != nil {
					return
				}
				defer conn.Close()

				data := "data: {\"event\":\"phase_start\",\"phase\":1}\n\ndata: {\"event\":\"agent_st"
				fmt.Fprint(buf, "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nTransfer-Encoding: chunked\r\n\r\n")
				fmt.Fprintf(buf, "%x\r\n%s\r\n", len(data), data)
				buf.Flush()
			}))

			stream, err := newClient(upstream.URL).Open(ctx, analysis.Request{})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			frames, err := drain(stream)
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Data).To(ContainSubstring("phase_start"))
			Expect(analysis.IsTransportError(err)).To(BeTrue())
			Expect(err).To(MatchError(io.ErrUnexpectedEOF))
		})

		It("stops when the context is cancelled", func() {
			release := make(chan struct{})
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: {\"event\":\"phase_start\",\"phase\":1}\n\n")
				w.(http.Flusher).Flush()
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer close(release)

			cctx, cancel := context.WithCancel(ctx)
			stream, err := newClient(upstream.URL).Open(cctx, analysis.Request{})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			f, err := stream.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Data).To(ContainSubstring("phase_start"))

			cancel()
			_, err = stream.Next()
			Expect(analysis.IsTransportError(err)).To(BeTrue())
		})
	})

	Describe("Health", func() {
		It("succeeds on 200", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"status":"ok"}`)
			}))
			Expect(newClient(upstream.URL).Health(ctx)).To(Succeed())
		})

		It("fails on 503", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			err := newClient(upstream.URL).Health(ctx)
			Expect(analysis.IsTransportError(err)).To(BeTrue())
			Expect(err.Error()).To(Equal("analysis health: upstream returned 503"))
		})
	})

	Describe("against the mock service", func() {
		var (
			server *mockserver.Server
			client *analysis.Client
		)

		BeforeEach(func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())

			server = mockserver.New(mockserver.Config{}, logger.Nop())
			go func() {
				_ = server.RunWithListener(ln)
			}()
			client = newClient("http://" + ln.Addr().String())

			Eventually(func() error { return client.Health(ctx) }).Should(Succeed())
		})

		AfterEach(func() {
			Expect(server.Close()).To(Succeed())
		})

		It("streams the four phases and ends with complete", func() {
			stream, err := client.Open(ctx, analysis.Request{Users: crm.MockUsers(epoch)})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			frames, err := drain(stream)
			Expect(err).NotTo(HaveOccurred())

			s := progress.NewStream(logger.Nop())
			events := s.Frames(frames...)
			Expect(s.Dropped()).To(Equal(0))

			final := progress.Recompute(events)
			Expect(final.Phase).To(Equal(4))
			Expect(final.ComposeDone).To(BeTrue())
			Expect(final.RunComplete).To(BeTrue())
			for _, id := range progress.KnownAgents {
				Expect(final.Agent(id).Status).To(Equal(progress.StatusDone))
			}
		})

		It("returns the same result without streaming", func() {
			req := analysis.Request{Users: crm.MockUsers(epoch)}
			result, err := client.Analyze(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Brief).To(MatchJSON(mockserver.Run(req).Result.Brief))
		})

		It("rejects an empty user list", func() {
			_, err := client.Analyze(ctx, analysis.Request{})
			Expect(err).To(MatchError(ContainSubstring("users array is required")))
		})
	})
})
