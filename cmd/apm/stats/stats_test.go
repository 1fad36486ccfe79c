package statscmder

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/apm/pkg/crm"
)

var _ = Describe("renderStats", func() {
	It("points at seeding when there are no users", func() {
		Expect(renderStats(crm.NewStats())).To(ContainSubstring("apm seed"))
	})

	It("orders breakdowns by count then name", func() {
		s := crm.NewStats()
		s.Total = 6
		s.SignedUp = 3
		s.NotEngaged = 3
		s.BySource = map[string]int{"hubspot": 2, "salesforce": 4}
		s.ByRole = map[string]int{"cto": 1, "ceo": 1, "vp": 4}

		out := renderStats(s)
		Expect(out).To(ContainSubstring("50.0%"))
		Expect(strings.Index(out, "salesforce")).To(BeNumerically("<", strings.Index(out, "hubspot")))
		Expect(strings.Index(out, "vp")).To(BeNumerically("<", strings.Index(out, "ceo")))
		Expect(strings.Index(out, "ceo")).To(BeNumerically("<", strings.Index(out, "cto")))
	})
})
