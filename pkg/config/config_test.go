package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/apm/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
	}

	load := func() (*config.Config, error) {
		c, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		return c.LoadConfig()
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			cfg, err := load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(`version = 0

[storage]
driver = "postgres"
sqlite_path = "/tmp/apm.sqlite"
postgres_dsn = "postgres://localhost/apm"

[api]
listen = ":9000"
cors_origins = ["https://dash.example.com"]

[analysis]
target = "http://agents:5001"
timeout = "30s"
user_limit = 120
listen = ":6001"

[client]
api_target = "http://remote:9000"
thinking_interval = "2s"

[eventstream]
provider = "kafka"
brokers = ["k1:9092", "k2:9092"]
topic = "briefs"
`)

			cfg, err := load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Driver).To(Equal(config.StoragePostgres))
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/apm.sqlite"))
			Expect(cfg.Storage.PostgresDSN).To(Equal("postgres://localhost/apm"))
			Expect(cfg.API.Listen).To(Equal(":9000"))
			Expect(cfg.API.CORSOrigins).To(Equal([]string{"https://dash.example.com"}))
			Expect(cfg.Analysis.Target).To(Equal("http://agents:5001"))
			Expect(cfg.Analysis.Timeout).To(Equal("30s"))
			Expect(cfg.Analysis.UserLimit).To(Equal(120))
			Expect(cfg.Analysis.Listen).To(Equal(":6001"))
			Expect(cfg.Client.APITarget).To(Equal("http://remote:9000"))
			Expect(cfg.Client.ThinkingInterval).To(Equal("2s"))
			Expect(cfg.EventStream.Provider).To(Equal(config.EventStreamKafka))
			Expect(cfg.EventStream.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
			Expect(cfg.EventStream.Topic).To(Equal("briefs"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(`[analysis]
target = "http://agents:5001"
`)

			cfg, err := load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Analysis.Target).To(Equal("http://agents:5001"))

			defaults := config.NewDefaultConfig()
			Expect(cfg.Storage.Driver).To(Equal(defaults.Storage.Driver))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.API.CORSOrigins).To(Equal(defaults.API.CORSOrigins))
			Expect(cfg.Analysis.Timeout).To(Equal(defaults.Analysis.Timeout))
			Expect(cfg.Analysis.UserLimit).To(Equal(defaults.Analysis.UserLimit))
			Expect(cfg.Client.ThinkingInterval).To(Equal(defaults.Client.ThinkingInterval))
			Expect(cfg.EventStream.Topic).To(Equal(defaults.EventStream.Topic))
		})

		It("returns error for malformed TOML", func() {
			writeConfig("not valid toml [[[")
			_, err := load()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})

		It("returns error for unsupported config version", func() {
			writeConfig("version = 99\n")
			_, err := load()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 99")))
		})

		It("returns error for an unknown storage driver", func() {
			writeConfig("[storage]\ndriver = \"mongo\"\n")
			_, err := load()
			Expect(err).To(MatchError(ContainSubstring("unsupported storage driver")))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Analysis.Target = "http://agents:5001"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`target = "http://agents:5001"`))
			Expect(string(data)).To(ContainSubstring("[eventstream]"))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})

		It("round trips every field", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := config.PresetConfig("production")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("analysis.target", "http://agents:5001")).To(Succeed())
			value, err := c.GetConfigValue("analysis.target")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("http://agents:5001"))
		})

		It("sets an int config key", func() {
			Expect(c.SetConfigValue("analysis.user_limit", "250")).To(Succeed())
			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Analysis.UserLimit).To(Equal(250))
		})

		It("sets a list config key from comma separated values", func() {
			Expect(c.SetConfigValue("eventstream.brokers", "k1:9092, k2:9092,")).To(Succeed())
			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.EventStream.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))

			value, err := c.GetConfigValue("eventstream.brokers")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("k1:9092,k2:9092"))
		})

		It("returns error for unknown key", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))
		})

		DescribeTable("rejects invalid values",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(MatchError(ContainSubstring("invalid value for " + key)))
			},
			Entry("non numeric user limit", "analysis.user_limit", "many"),
			Entry("zero user limit", "analysis.user_limit", "0"),
			Entry("bad timeout", "analysis.timeout", "soon"),
			Entry("bad thinking interval", "client.thinking_interval", "fast"),
			Entry("unknown storage driver", "storage.driver", "mongo"),
			Entry("unknown event stream provider", "eventstream.provider", "nats"),
		)

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("analysis.target", "http://agents:5001")).To(Succeed())
			Expect(c.SetConfigValue("api.listen", ":9000")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Analysis.Target).To(Equal("http://agents:5001"))
			Expect(cfg.API.Listen).To(Equal(":9000"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default values when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			value, err := c.GetConfigValue("client.thinking_interval")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("1500ms"))

			value, err = c.GetConfigValue("storage.postgres_dsn")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.GetConfigValue("embedding.model")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("lists every key in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys).To(HaveLen(14))
		Expect(keys[0]).To(Equal("storage.driver"))
		Expect(keys[len(keys)-1]).To(Equal("eventstream.topic"))
		for _, k := range keys {
			Expect(config.IsValidConfigKey(k)).To(BeTrue())
		}
	})

	It("is stable", func() {
		Expect(config.ValidConfigKeys()).To(Equal(config.ValidConfigKeys()))
	})

	It("does not accept flat key names", func() {
		Expect(config.IsValidConfigKey("listen")).To(BeFalse())
		Expect(config.IsValidConfigKey("sqlite_path")).To(BeFalse())
	})
})

var _ = Describe("PresetConfig", func() {
	It("keeps the demo preset in memory", func() {
		cfg, err := config.PresetConfig("demo")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal(config.StorageMemory))
		Expect(cfg.EventStream.Provider).To(Equal(config.EventStreamNop))
	})

	It("publishes to kafka in production", func() {
		cfg, err := config.PresetConfig("Production")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal(config.StoragePostgres))
		Expect(cfg.Storage.PostgresDSN).NotTo(BeEmpty())
		Expect(cfg.EventStream.Provider).To(Equal(config.EventStreamKafka))
		Expect(cfg.EventStream.Brokers).NotTo(BeEmpty())
	})

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("cloud")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})

	It("names every preset", func() {
		for _, name := range config.ValidPresetNames() {
			_, err := config.PresetConfig(name)
			Expect(err).NotTo(HaveOccurred())
		}
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(BeEmpty())
	})
})
