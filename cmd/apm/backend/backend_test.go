package backend_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/cmd/apm/backend"
	"github.com/papercomputeco/apm/pkg/config"
	"github.com/papercomputeco/apm/pkg/eventstream/kafka"
	"github.com/papercomputeco/apm/pkg/eventstream/nop"
	"github.com/papercomputeco/apm/pkg/logger"
	"github.com/papercomputeco/apm/pkg/storage/inmemory"
	"github.com/papercomputeco/apm/pkg/storage/sqlite"
)

var _ = Describe("LoadOptions", func() {
	It("reads defaults and bound flags", func() {
		dir := GinkgoT().TempDir()
		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		backend.AddServiceFlags(cmd)
		Expect(cmd.Flags().Parse([]string{"--storage", "memory", "--kafka-brokers", "a:9092,b:9092", "--user-limit", "50"})).To(Succeed())
		config.BindRegisteredFlags(v, cmd, backend.Flags, backend.ServiceFlags)

		opts, err := backend.LoadOptions(v, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(opts.StorageDriver).To(Equal(config.StorageMemory))
		Expect(opts.KafkaBrokers).To(Equal([]string{"a:9092", "b:9092"}))
		Expect(opts.UserLimit).To(Equal(50))
		Expect(opts.AnalysisTarget).To(Equal("http://localhost:5001"))
		Expect(opts.AnalysisTimeout).To(Equal(120 * time.Second))
		Expect(opts.ConfigDir).To(Equal(dir))
	})

	It("rejects an invalid timeout", func() {
		v, err := config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		v.Set("analysis.timeout", "soon")

		_, err = backend.LoadOptions(v, "")
		Expect(err).To(MatchError(ContainSubstring("analysis.timeout")))
	})
})

var _ = Describe("NewStore", func() {
	ctx := context.Background()

	It("opens an in-memory store", func() {
		store, err := backend.NewStore(ctx, backend.Options{StorageDriver: config.StorageMemory}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(store).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("opens SQLite inside the config directory by default", func() {
		dir := GinkgoT().TempDir()
		store, err := backend.NewStore(ctx, backend.Options{StorageDriver: config.StorageSQLite, ConfigDir: dir}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(store.Close)
		Expect(store).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(filepath.Join(dir, "apm.sqlite")).To(BeAnExistingFile())
	})

	It("requires a postgres DSN", func() {
		_, err := backend.NewStore(ctx, backend.Options{StorageDriver: config.StoragePostgres}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("postgres")))
	})

	It("rejects an unknown driver", func() {
		_, err := backend.NewStore(ctx, backend.Options{StorageDriver: "mongo"}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported storage driver")))
	})
})

var _ = Describe("NewPublisher", func() {
	It("defaults to the nop publisher", func() {
		pub, err := backend.NewPublisher(backend.Options{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(pub).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a kafka publisher", func() {
		pub, err := backend.NewPublisher(backend.Options{
			EventStream:  config.EventStreamKafka,
			KafkaBrokers: []string{"localhost:9092"},
			KafkaTopic:   "briefs",
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(pub).To(BeAssignableToTypeOf(&kafka.Publisher{}))
		Expect(pub.Close()).To(Succeed())
	})

	It("requires kafka brokers", func() {
		_, err := backend.NewPublisher(backend.Options{EventStream: config.EventStreamKafka}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unknown provider", func() {
		_, err := backend.NewPublisher(backend.Options{EventStream: "nats"}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Build", func() {
	It("assembles a service over the configured store", func() {
		stack, err := backend.Build(context.Background(), backend.Options{
			StorageDriver:  config.StorageMemory,
			AnalysisTarget: "http://127.0.0.1:5001",
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(stack.Service).NotTo(BeNil())

		res, err := stack.Service.Seed(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Inserted).To(BeNumerically(">", 0))
		Expect(stack.Close()).To(Succeed())
	})

	It("rejects a bad analysis target", func() {
		_, err := backend.Build(context.Background(), backend.Options{
			StorageDriver:  config.StorageMemory,
			AnalysisTarget: "localhost:5001",
		}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})
