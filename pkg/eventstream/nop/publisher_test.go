package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/apm/pkg/eventstream"
	"github.com/papercomputeco/apm/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("satisfies eventstream.Publisher", func() {
		var p eventstream.Publisher = nop.NewPublisher()
		Expect(p).NotTo(BeNil())
	})

	It("returns ErrNilBriefEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishBrief(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilBriefEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishBrief(context.Background(), &eventstream.BriefGeneratedEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		p := nop.NewPublisher()
		Expect(p.Close()).To(Succeed())
	})
})
