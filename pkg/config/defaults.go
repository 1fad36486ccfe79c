package config

const (
	// Storage drivers.
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	// Event stream providers.
	EventStreamNop   = "nop"
	EventStreamKafka = "kafka"
)

// StorageDrivers lists the recognised storage.driver values.
var StorageDrivers = []string{StorageSQLite, StoragePostgres, StorageMemory}

const (
	defaultStorageDriver = StorageSQLite

	defaultAPIListen       = ":8000"
	defaultAnalysisTarget  = "http://localhost:5001"
	defaultAnalysisListen  = ":5001"
	defaultAnalysisTimeout = "120s"
	defaultUserLimit       = 500

	defaultClientAPITarget  = "http://localhost:8000"
	defaultThinkingInterval = "1500ms"

	defaultEventStreamProvider = EventStreamNop
	defaultEventStreamTopic    = "apm.briefs"
)

var defaultCORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen:      defaultAPIListen,
			CORSOrigins: append([]string(nil), defaultCORSOrigins...),
		},
		Analysis: AnalysisConfig{
			Target:    defaultAnalysisTarget,
			Timeout:   defaultAnalysisTimeout,
			UserLimit: defaultUserLimit,
			Listen:    defaultAnalysisListen,
		},
		Client: ClientConfig{
			APITarget:        defaultClientAPITarget,
			ThinkingInterval: defaultThinkingInterval,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
