// Package backend assembles the apm service stack shared by the serving and
// seeding commands: the flag registry, storage, event publishing and the
// briefing service.
package backend

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/apm/pkg/config"
)

// Flags is the registry every apm command draws its service flags from.
var Flags = config.FlagSet{
	config.FlagAPIListen: {
		Name:        "api-listen",
		Shorthand:   "a",
		ViperKey:    "api.listen",
		Description: "Address for API server to listen on",
	},
	config.FlagAPIListenStandalone: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for API server to listen on",
	},
	config.FlagMockListen: {
		Name:        "mock-listen",
		Shorthand:   "m",
		ViperKey:    "analysis.listen",
		Description: "Address for the mock analysis service to listen on",
	},
	config.FlagMockListenStandalone: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "analysis.listen",
		Description: "Address for the mock analysis service to listen on",
	},
	config.FlagCORSOrigins: {
		Name:        "cors-origins",
		ViperKey:    "api.cors_origins",
		Description: "Origins allowed to call the API",
	},
	config.FlagAnalysisTarget: {
		Name:        "analysis-target",
		Shorthand:   "t",
		ViperKey:    "analysis.target",
		Description: "Analysis service URL",
	},
	config.FlagAnalysisTimeout: {
		Name:        "analysis-timeout",
		ViperKey:    "analysis.timeout",
		Description: "Timeout for a non-streaming analysis call",
	},
	config.FlagUserLimit: {
		Name:        "user-limit",
		ViperKey:    "analysis.user_limit",
		Description: "Maximum users sent to the analysis service",
	},
	config.FlagStorageDriver: {
		Name:        "storage",
		ViperKey:    "storage.driver",
		Description: "Storage driver (sqlite, postgres, memory)",
	},
	config.FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to SQLite database (default: .apm/apm.sqlite)",
	},
	config.FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string",
	},
	config.FlagEventStream: {
		Name:        "eventstream",
		ViperKey:    "eventstream.provider",
		Description: "Brief event publisher (nop, kafka)",
	},
	config.FlagKafkaBrokers: {
		Name:        "kafka-brokers",
		ViperKey:    "eventstream.brokers",
		Description: "Kafka broker addresses",
	},
	config.FlagKafkaTopic: {
		Name:        "kafka-topic",
		ViperKey:    "eventstream.topic",
		Description: "Kafka topic for brief events",
	},
	config.FlagAPITarget: {
		Name:        "api-target",
		ViperKey:    "client.api_target",
		Description: "apm API URL",
	},
	config.FlagThinkingInterval: {
		Name:        "thinking-interval",
		ViperKey:    "client.thinking_interval",
		Description: "How long each agent thought stays on screen",
	},
}

// ServiceFlags are the registry keys AddServiceFlags registers.
var ServiceFlags = []string{
	config.FlagAnalysisTarget,
	config.FlagAnalysisTimeout,
	config.FlagUserLimit,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

// serviceFlags holds flag targets. Values are read back through viper so
// the targets themselves are never consulted.
type serviceFlags struct {
	analysisTarget  string
	analysisTimeout string
	userLimit       int
	storageDriver   string
	sqlitePath      string
	postgresDSN     string
	eventStream     string
	kafkaBrokers    []string
	kafkaTopic      string
}

// AddServiceFlags registers the storage, analysis and event stream flags.
func AddServiceFlags(cmd *cobra.Command) {
	f := &serviceFlags{}
	config.AddStringFlag(cmd, Flags, config.FlagAnalysisTarget, &f.analysisTarget)
	config.AddStringFlag(cmd, Flags, config.FlagAnalysisTimeout, &f.analysisTimeout)
	config.AddIntFlag(cmd, Flags, config.FlagUserLimit, &f.userLimit)
	config.AddStringFlag(cmd, Flags, config.FlagStorageDriver, &f.storageDriver)
	config.AddStringFlag(cmd, Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, Flags, config.FlagPostgres, &f.postgresDSN)
	config.AddStringFlag(cmd, Flags, config.FlagEventStream, &f.eventStream)
	config.AddStringSliceFlag(cmd, Flags, config.FlagKafkaBrokers, &f.kafkaBrokers)
	config.AddStringFlag(cmd, Flags, config.FlagKafkaTopic, &f.kafkaTopic)
}

// Viper loads configuration for cmd and binds the given registry keys so
// flags take precedence over env, file and defaults. It also returns the
// --config-dir value.
func Viper(cmd *cobra.Command, keys ...string) (*viper.Viper, string, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, "", err
	}
	config.BindRegisteredFlags(v, cmd, Flags, keys)
	return v, configDir, nil
}
