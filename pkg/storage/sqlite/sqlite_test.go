package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/apm/pkg/crm"
	"github.com/papercomputeco/apm/pkg/storage"
	"github.com/papercomputeco/apm/pkg/storage/sqlite"
	"github.com/papercomputeco/apm/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverSpecs(func() storage.Driver {
		d, err := sqlite.NewDriver(context.Background(), ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "test.db")

			s, err := sqlite.NewDriver(context.Background(), dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			// Verify file was created
			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("persists data across reopen", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "apm.db")

			s, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.PutUsers(ctx, crm.MockUsers(storagetest.Epoch))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.PutBrief(ctx, storagetest.NewBrief("b1", "", 0))).To(Succeed())
			Expect(s.Close()).To(Succeed())

			s, err = sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			n, err := s.CountUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(crm.MockTotal))

			latest, err := s.LatestBrief(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.ID).To(Equal("b1"))
		})

		It("fails for an unwritable path", func() {
			_, err := sqlite.NewDriver(context.Background(), filepath.Join(GinkgoT().TempDir(), "missing", "dir", "apm.db"))
			Expect(err).To(HaveOccurred())
		})
	})
})
