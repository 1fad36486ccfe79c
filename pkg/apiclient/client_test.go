package apiclient_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/apm/pkg/apiclient"
	"github.com/papercomputeco/apm/pkg/briefing"
	"github.com/papercomputeco/apm/pkg/crm"
	"github.com/papercomputeco/apm/pkg/progress"
)

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		client *apiclient.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		client, err = apiclient.NewClient(apiclient.Config{Target: startStack()})
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() error {
			_, err := client.Stats(ctx)
			return err
		}).Should(Succeed())
	})

	It("validates the target", func() {
		_, err := apiclient.NewClient(apiclient.Config{Target: "localhost:8000"})
		Expect(err).To(HaveOccurred())
	})

	It("seeds and reads stats", func() {
		seeded, err := client.Seed(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(seeded.Inserted).To(Equal(crm.MockTotal))

		stats, err := client.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Total).To(Equal(crm.MockTotal))
	})

	It("connects a CRM and rejects an unknown one", func() {
		res, err := client.Connect(ctx, "salesforce")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Source).To(Equal("salesforce"))

		_, err = client.Connect(ctx, "pipedrive")
		var ae *apiclient.APIError
		Expect(errors.As(err, &ae)).To(BeTrue())
		Expect(ae.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("generates, refines and walks briefs", func() {
		_, err := client.Seed(ctx)
		Expect(err).NotTo(HaveOccurred())

		root, err := client.Generate(ctx)
		Expect(err).NotTo(HaveOccurred())

		child, err := client.Feedback(ctx, root.ID, "shorter")
		Expect(err).NotTo(HaveOccurred())
		Expect(child.ParentBriefID).To(Equal(root.ID))

		latest, err := client.Latest(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(latest.ID).To(Equal(child.ID))

		got, err := client.Get(ctx, root.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Content).To(MatchJSON(root.Content))

		chain, err := client.Lineage(ctx, child.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(chain).To(HaveLen(2))

		list, err := client.List(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(1))
	})

	It("reports a missing brief as not found", func() {
		_, err := client.Latest(ctx)
		Expect(apiclient.IsNotFound(err)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("No brief generated yet")))
	})

	Describe("OpenStream", func() {
		It("delivers every event ending in complete", func() {
			_, err := client.Seed(ctx)
			Expect(err).NotTo(HaveOccurred())

			stream, err := client.OpenStream(ctx, briefing.StreamRequest{})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			var events []progress.Event
			Expect(stream.Each(func(ev progress.Event) { events = append(events, ev) })).To(Succeed())
			Expect(stream.Dropped()).To(Equal(0))

			final := progress.Recompute(events)
			Expect(final.RunComplete).To(BeTrue())
			Expect(final.Result.BriefID).NotTo(BeEmpty())

			b, err := client.Get(ctx, final.Result.BriefID)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.ID).To(Equal(final.Result.BriefID))
		})

		It("fails to open without users", func() {
			_, err := client.OpenStream(ctx, briefing.StreamRequest{})
			Expect(err).To(MatchError(ContainSubstring(briefing.ErrNoUsers.Error())))
		})
	})
})

var _ = Describe("EventStream", func() {
	open := func(body string) *apiclient.EventStream {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, body)
		}))
		DeferCleanup(upstream.Close)

		client, err := apiclient.NewClient(apiclient.Config{Target: upstream.URL})
		Expect(err).NotTo(HaveOccurred())
		stream, err := client.OpenStream(context.Background(), briefing.StreamRequest{})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(stream.Close)
		return stream
	}

	It("returns the relayed error message", func() {
		stream := open("data: {\"event\":\"phase_start\",\"phase\":1}\n\nevent: error\ndata: {\"event\":\"error\",\"message\":\"upstream died\"}\n\n")

		var kinds []progress.Kind
		err := stream.Each(func(ev progress.Event) { kinds = append(kinds, ev.Kind()) })
		Expect(errors.Is(err, apiclient.ErrStreamFailed)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("upstream died")))
		Expect(kinds).To(Equal([]progress.Kind{progress.KindPhaseStart, progress.KindFailure}))
	})

	It("reports a stream that ends without complete", func() {
		stream := open("data: {\"event\":\"phase_start\",\"phase\":1}\n\n")
		Expect(stream.Each(func(progress.Event) {})).To(MatchError(io.ErrUnexpectedEOF))
	})

	It("salvages an unterminated final complete frame", func() {
		stream := open("data: {\"event\":\"complete\",\"brief_id\":\"b-1\",\"confidence_score\":0.7}")

		var last progress.Event
		Expect(stream.Each(func(ev progress.Event) { last = ev })).To(Succeed())
		Expect(last.(progress.Complete).BriefID).To(Equal("b-1"))
	})
})
