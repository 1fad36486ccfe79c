package crm

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MockUsers", func() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	It("builds 100 signed-up users and 200 leads", func() {
		users := MockUsers(now)
		Expect(users).To(HaveLen(MockTotal))

		stats := ComputeStats(users)
		Expect(stats.SignedUp).To(Equal(MockSignedUp))
		Expect(stats.NotEngaged).To(Equal(MockNotEngaged))
	})

	It("is deterministic", func() {
		Expect(MockUsers(now)).To(Equal(MockUsers(now)))
	})

	It("uses unique emails and ids", func() {
		emails := map[string]bool{}
		ids := map[string]bool{}
		for _, u := range MockUsers(now) {
			emails[u.Email] = true
			ids[u.ID] = true
		}
		Expect(emails).To(HaveLen(MockTotal))
		Expect(ids).To(HaveLen(MockTotal))
	})

	It("timestamps only signed-up users", func() {
		for _, u := range MockUsers(now) {
			switch u.Status {
			case StatusSignedUp:
				Expect(u.SignedUpAt).NotTo(BeNil())
				Expect(*u.SignedUpAt).To(BeTemporally("<=", now))
				Expect(*u.SignedUpAt).To(BeTemporally(">", now.Add(-91*24*time.Hour)))
				Expect(u.LastActive).NotTo(BeNil())
				Expect(*u.LastActive).To(BeTemporally(">", now.Add(-8*24*time.Hour)))
			default:
				Expect(u.SignedUpAt).To(BeNil())
				Expect(u.LastActive).To(BeNil())
			}
		}
	})

	It("matches the first record of the seed", func() {
		u := MockUsers(now)[0]
		Expect(u.Email).To(Equal("user1@globex.io"))
		Expect(u.Company).To(Equal("Globex Inc"))
		Expect(u.Industry).To(Equal("FinTech"))
		Expect(u.CompanySize).To(Equal("11-50"))
		Expect(u.Role).To(Equal("PM"))
		Expect(u.Source).To(Equal(SourceHubSpot))
	})

	It("gives later records later creation times", func() {
		users := MockUsers(now)
		for i := 1; i < len(users); i++ {
			Expect(users[i].CreatedAt).To(BeTemporally(">", users[i-1].CreatedAt))
		}
	})
})

var _ = Describe("ComputeStats", func() {
	It("counts every dimension", func() {
		stats := ComputeStats([]User{
			{Status: StatusSignedUp, Source: SourceHubSpot, CompanySize: "1-10", Role: "PM", Industry: "SaaS"},
			{Status: StatusNotEngaged, Source: SourceHubSpot, CompanySize: "1-10", Role: "CS", Industry: "SaaS"},
			{Status: StatusNotEngaged, Source: SourceSalesforce, CompanySize: "500+", Role: "PM", Industry: "AI/ML"},
		})

		Expect(stats.Total).To(Equal(3))
		Expect(stats.SignedUp).To(Equal(1))
		Expect(stats.NotEngaged).To(Equal(2))
		Expect(stats.BySource).To(Equal(map[string]int{"hubspot": 2, "salesforce": 1}))
		Expect(stats.ByCompanySize).To(Equal(map[string]int{"1-10": 2, "500+": 1}))
		Expect(stats.ByRole).To(Equal(map[string]int{"PM": 2, "CS": 1}))
		Expect(stats.ByIndustry).To(Equal(map[string]int{"SaaS": 2, "AI/ML": 1}))
		Expect(stats.ConversionRate()).To(BeNumerically("~", 1.0/3, 1e-9))
	})

	It("returns empty maps for no users", func() {
		stats := ComputeStats(nil)
		Expect(stats.Total).To(Equal(0))
		Expect(stats.BySource).NotTo(BeNil())
		Expect(stats.ConversionRate()).To(Equal(0.0))
	})
})

var _ = Describe("ListOptions", func() {
	DescribeTable("Normalize",
		func(in, want ListOptions) {
			Expect(in.Normalize()).To(Equal(want))
		},
		Entry("defaults the limit", ListOptions{}, ListOptions{Limit: DefaultListLimit}),
		Entry("caps the limit", ListOptions{Limit: 9000}, ListOptions{Limit: MaxListLimit}),
		Entry("keeps a valid limit", ListOptions{Limit: 50, Offset: 10}, ListOptions{Limit: 50, Offset: 10}),
		Entry("clamps a negative offset", ListOptions{Limit: 5, Offset: -3}, ListOptions{Limit: 5}),
		Entry("keeps the status", ListOptions{Status: StatusSignedUp}, ListOptions{Limit: DefaultListLimit, Status: StatusSignedUp}),
	)

	It("validates statuses and sources", func() {
		Expect(ValidStatus("signed_up")).To(BeTrue())
		Expect(ValidStatus("not_engaged")).To(BeTrue())
		Expect(ValidStatus("churned")).To(BeFalse())
		Expect(ValidSource("salesforce")).To(BeTrue())
		Expect(ValidSource("hubspot")).To(BeTrue())
		Expect(ValidSource("pipedrive")).To(BeFalse())
	})
})
