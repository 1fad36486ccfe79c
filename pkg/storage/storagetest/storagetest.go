// Package storagetest holds the behaviour every storage.Driver must share,
// written as ginkgo specs that backend test suites register.
package storagetest

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/crm"
	"github.com/papercomputeco/apm/pkg/storage"
)

// Epoch is the fixed clock used by the shared specs.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewBrief returns a brief created offset after Epoch.
func NewBrief(id, parent string, offset time.Duration) *brief.Brief {
	return &brief.Brief{
		ID:              id,
		Content:         json.RawMessage(`{"executive_summary":"summary of ` + id + `"}`),
		Summary:         "summary of " + id,
		ConfidenceScore: 0.75,
		AgentOutputs:    map[string]json.RawMessage{"critic_agent": json.RawMessage(`{"confidence_score":0.75}`)},
		ParentBriefID:   parent,
		CreatedAt:       Epoch.Add(offset),
	}
}

// DriverSpecs registers the shared storage.Driver specs. newDriver is called
// before each test and the returned driver is closed after it.
func DriverSpecs(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
			driver = nil
		}
	})

	Describe("PutUsers", func() {
		It("inserts users and reports the count", func() {
			n, err := driver.PutUsers(ctx, crm.MockUsers(Epoch))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(crm.MockTotal))

			count, err := driver.CountUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(crm.MockTotal))
		})

		It("is idempotent by email", func() {
			users := crm.MockUsers(Epoch)
			_, err := driver.PutUsers(ctx, users)
			Expect(err).NotTo(HaveOccurred())

			n, err := driver.PutUsers(ctx, crm.MockUsers(Epoch.Add(time.Hour)))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))

			count, err := driver.CountUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(crm.MockTotal))
		})

		It("rejects users without email", func() {
			_, err := driver.PutUsers(ctx, []crm.User{{Name: "anon"}})
			Expect(err).To(HaveOccurred())
		})

		It("accepts an empty batch", func() {
			n, err := driver.PutUsers(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))
		})
	})

	Describe("ListUsers", func() {
		BeforeEach(func() {
			_, err := driver.PutUsers(ctx, crm.MockUsers(Epoch))
			Expect(err).NotTo(HaveOccurred())
		})

		It("defaults to 300 users newest first", func() {
			users, err := driver.ListUsers(ctx, crm.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(crm.DefaultListLimit))
			for i := 1; i < len(users); i++ {
				Expect(users[i].CreatedAt).To(BeTemporally("<=", users[i-1].CreatedAt))
			}
			Expect(users[0].Email).To(Equal("lead200@acme.com"))
		})

		It("filters by status", func() {
			users, err := driver.ListUsers(ctx, crm.ListOptions{Status: crm.StatusSignedUp})
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(crm.MockSignedUp))
			for _, u := range users {
				Expect(u.Status).To(Equal(crm.StatusSignedUp))
				Expect(u.SignedUpAt).NotTo(BeNil())
			}
		})

		It("pages with limit and offset", func() {
			first, err := driver.ListUsers(ctx, crm.ListOptions{Limit: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(HaveLen(10))

			second, err := driver.ListUsers(ctx, crm.ListOptions{Limit: 10, Offset: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(HaveLen(10))
			Expect(second[0].Email).NotTo(Equal(first[0].Email))
			Expect(second[0].CreatedAt).To(BeTemporally("<=", first[9].CreatedAt))
		})

		It("returns nothing past the end", func() {
			users, err := driver.ListUsers(ctx, crm.ListOptions{Offset: 1000})
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(BeEmpty())
		})

		It("round trips every field", func() {
			users, err := driver.ListUsers(ctx, crm.ListOptions{Status: crm.StatusSignedUp, Limit: 500})
			Expect(err).NotTo(HaveOccurred())

			want := map[string]crm.User{}
			for _, u := range crm.MockUsers(Epoch) {
				want[u.Email] = u
			}
			for _, got := range users {
				w := want[got.Email]
				Expect(got.ID).To(Equal(w.ID))
				Expect(got.Name).To(Equal(w.Name))
				Expect(got.Company).To(Equal(w.Company))
				Expect(got.CompanySize).To(Equal(w.CompanySize))
				Expect(got.Role).To(Equal(w.Role))
				Expect(got.Industry).To(Equal(w.Industry))
				Expect(got.Source).To(Equal(w.Source))
				Expect(*got.SignedUpAt).To(BeTemporally("~", *w.SignedUpAt, time.Millisecond))
				Expect(*got.LastActive).To(BeTemporally("~", *w.LastActive, time.Millisecond))
				Expect(got.CreatedAt).To(BeTemporally("~", w.CreatedAt, time.Millisecond))
			}
		})
	})

	Describe("Stats", func() {
		It("matches the in-process aggregate", func() {
			users := crm.MockUsers(Epoch)
			_, err := driver.PutUsers(ctx, users)
			Expect(err).NotTo(HaveOccurred())

			stats, err := driver.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(crm.ComputeStats(users)))
		})

		It("is empty with no users", func() {
			stats, err := driver.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Total).To(Equal(0))
			Expect(stats.BySource).To(BeEmpty())
		})
	})

	Describe("briefs", func() {
		It("stores and retrieves a brief", func() {
			b := NewBrief("b1", "", 0)
			Expect(driver.PutBrief(ctx, b)).To(Succeed())

			got, err := driver.GetBrief(ctx, "b1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("b1"))
			Expect(got.Content).To(MatchJSON(b.Content))
			Expect(got.Summary).To(Equal(b.Summary))
			Expect(got.ConfidenceScore).To(Equal(0.75))
			Expect(got.AgentOutputs).To(HaveKey("critic_agent"))
			Expect(got.ParentBriefID).To(BeEmpty())
			Expect(got.CreatedAt).To(BeTemporally("~", b.CreatedAt, time.Millisecond))
		})

		It("returns NotFoundError for missing briefs", func() {
			_, err := driver.GetBrief(ctx, "nope")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("nope"))

			_, err = driver.LatestBrief(ctx)
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("rejects duplicate ids", func() {
			Expect(driver.PutBrief(ctx, NewBrief("b1", "", 0))).To(Succeed())
			err := driver.PutBrief(ctx, NewBrief("b1", "", time.Second))
			Expect(err).To(MatchError(storage.ErrDuplicate))
		})

		It("requires an existing parent", func() {
			err := driver.PutBrief(ctx, NewBrief("child", "ghost", 0))
			Expect(storage.IsNotFound(err)).To(BeTrue())

			Expect(driver.PutBrief(ctx, NewBrief("root", "", 0))).To(Succeed())
			Expect(driver.PutBrief(ctx, NewBrief("child", "root", time.Second))).To(Succeed())

			got, err := driver.GetBrief(ctx, "child")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ParentBriefID).To(Equal("root"))
			Expect(got.IsRefinement()).To(BeTrue())
		})

		It("keeps nil agent outputs nil", func() {
			b := NewBrief("bare", "", 0)
			b.AgentOutputs = nil
			Expect(driver.PutBrief(ctx, b)).To(Succeed())

			got, err := driver.GetBrief(ctx, "bare")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.AgentOutputs).To(BeNil())
		})

		It("lists newest first and reports the latest", func() {
			Expect(driver.PutBrief(ctx, NewBrief("old", "", 0))).To(Succeed())
			Expect(driver.PutBrief(ctx, NewBrief("new", "old", 2*time.Minute))).To(Succeed())
			Expect(driver.PutBrief(ctx, NewBrief("mid", "", time.Minute))).To(Succeed())

			briefs, err := driver.ListBriefs(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			ids := []string{}
			for _, b := range briefs {
				ids = append(ids, b.ID)
			}
			Expect(ids).To(Equal([]string{"new", "mid", "old"}))

			limited, err := driver.ListBriefs(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(limited).To(HaveLen(2))

			latest, err := driver.LatestBrief(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.ID).To(Equal("new"))
		})
	})
}
