package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/cmd/apm/sqlitepath"
	"github.com/papercomputeco/apm/pkg/analysis"
	"github.com/papercomputeco/apm/pkg/briefing"
	"github.com/papercomputeco/apm/pkg/config"
	"github.com/papercomputeco/apm/pkg/eventstream"
	"github.com/papercomputeco/apm/pkg/eventstream/kafka"
	"github.com/papercomputeco/apm/pkg/eventstream/nop"
	"github.com/papercomputeco/apm/pkg/storage"
	"github.com/papercomputeco/apm/pkg/storage/inmemory"
	"github.com/papercomputeco/apm/pkg/storage/postgres"
	"github.com/papercomputeco/apm/pkg/storage/sqlite"
	"github.com/papercomputeco/apm/pkg/worker"
)

// Options are the resolved settings for building a Stack.
type Options struct {
	// ConfigDir overrides the .apm directory used for the default SQLite path.
	ConfigDir string

	StorageDriver string
	SQLitePath    string
	PostgresDSN   string

	AnalysisTarget  string
	AnalysisTimeout time.Duration
	UserLimit       int

	EventStream  string
	KafkaBrokers []string
	KafkaTopic   string
}

// LoadOptions reads Options from v.
func LoadOptions(v *viper.Viper, configDir string) (Options, error) {
	timeout, err := time.ParseDuration(v.GetString("analysis.timeout"))
	if err != nil {
		return Options{}, fmt.Errorf("invalid analysis.timeout: %w", err)
	}

	return Options{
		ConfigDir:       configDir,
		StorageDriver:   v.GetString("storage.driver"),
		SQLitePath:      v.GetString("storage.sqlite_path"),
		PostgresDSN:     v.GetString("storage.postgres_dsn"),
		AnalysisTarget:  v.GetString("analysis.target"),
		AnalysisTimeout: timeout,
		UserLimit:       v.GetInt("analysis.user_limit"),
		EventStream:     v.GetString("eventstream.provider"),
		KafkaBrokers:    config.StringSlice(v, "eventstream.brokers"),
		KafkaTopic:      v.GetString("eventstream.topic"),
	}, nil
}

// NewStore opens the storage driver named by opts.StorageDriver.
func NewStore(ctx context.Context, opts Options, logger *zap.Logger) (storage.Driver, error) {
	switch opts.StorageDriver {
	case config.StorageMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case config.StorageSQLite, "":
		path, err := sqlitepath.ResolveSQLitePath(opts.SQLitePath, opts.ConfigDir)
		if err != nil {
			return nil, err
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		logger.Info("using SQLite storage", zap.String("path", path))
		return driver, nil

	case config.StoragePostgres:
		if opts.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires --postgres or storage.postgres_dsn")
		}
		driver, err := postgres.NewDriver(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", opts.StorageDriver)
	}
}

// NewPublisher creates the brief event publisher named by opts.EventStream.
func NewPublisher(opts Options, logger *zap.Logger) (eventstream.Publisher, error) {
	switch opts.EventStream {
	case config.EventStreamNop, "":
		return nop.NewPublisher(), nil

	case config.EventStreamKafka:
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: opts.KafkaBrokers,
			Topic:   opts.KafkaTopic,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		logger.Info("publishing brief events to kafka",
			zap.Strings("brokers", opts.KafkaBrokers),
			zap.String("topic", opts.KafkaTopic),
		)
		return pub, nil

	default:
		return nil, fmt.Errorf("unsupported event stream provider %q", opts.EventStream)
	}
}

// Stack is a running briefing service with everything it depends on.
type Stack struct {
	Store     storage.Driver
	Publisher eventstream.Publisher
	Pool      *worker.Pool
	Analyzer  *analysis.Client
	Service   *briefing.Service
}

// Build assembles a Stack from opts. The caller must Close it.
func Build(ctx context.Context, opts Options, logger *zap.Logger) (*Stack, error) {
	analyzer, err := analysis.NewClient(analysis.Config{
		Target:  opts.AnalysisTarget,
		Timeout: opts.AnalysisTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := NewStore(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	pub, err := NewPublisher(opts, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	pool, err := worker.NewPool(&worker.Config{Publisher: pub, Logger: logger})
	if err != nil {
		pub.Close()
		store.Close()
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	svc, err := briefing.New(briefing.Config{
		Store:     store,
		Analyzer:  analyzer,
		Pool:      pool,
		UserLimit: opts.UserLimit,
		Logger:    logger,
	})
	if err != nil {
		pool.Close()
		pub.Close()
		store.Close()
		return nil, err
	}

	return &Stack{
		Store:     store,
		Publisher: pub,
		Pool:      pool,
		Analyzer:  analyzer,
		Service:   svc,
	}, nil
}

// Close drains pending publishes and releases the publisher and store.
func (s *Stack) Close() error {
	s.Pool.Close()
	return errors.Join(s.Publisher.Close(), s.Store.Close())
}
