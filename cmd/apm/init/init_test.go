package initcmder_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/apm/cmd/apm/init"
	"github.com/papercomputeco/apm/pkg/config"
)

var _ = Describe("apm init", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("creates the .apm directory", func() {
		Expect(execute()).To(Succeed())
		Expect(filepath.Join(tmpDir, ".apm")).To(BeADirectory())
	})

	It("is idempotent", func() {
		Expect(execute()).To(Succeed())
		Expect(execute()).To(Succeed())
	})

	It("writes a preset config", func() {
		Expect(execute("--preset", "production")).To(Succeed())

		cfger, err := config.NewConfiger(filepath.Join(tmpDir, ".apm"))
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal(config.StoragePostgres))
		Expect(cfg.EventStream.Provider).To(Equal(config.EventStreamKafka))
	})

	It("refuses to overwrite a config without --force", func() {
		Expect(execute("--preset", "demo")).To(Succeed())
		Expect(execute("--preset", "local")).To(MatchError(ContainSubstring("--force")))
		Expect(execute("--preset", "local", "--force")).To(Succeed())
	})

	It("rejects an unknown preset before creating anything", func() {
		Expect(execute("--preset", "staging")).To(MatchError(ContainSubstring("unknown preset")))
		Expect(filepath.Join(tmpDir, ".apm")).NotTo(BeADirectory())
	})
})
