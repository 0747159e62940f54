// Package app wires the service together. Every component is built on first
// access and shared afterwards.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/tenantkeys/internal/config"
	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	cryptoService "github.com/allisson/tenantkeys/internal/crypto/service"
	cryptoUseCase "github.com/allisson/tenantkeys/internal/crypto/usecase"
	"github.com/allisson/tenantkeys/internal/database"
	"github.com/allisson/tenantkeys/internal/http"
	keysHTTP "github.com/allisson/tenantkeys/internal/keys/http"
	keysService "github.com/allisson/tenantkeys/internal/keys/service"
	keysUseCase "github.com/allisson/tenantkeys/internal/keys/usecase"
	"github.com/allisson/tenantkeys/internal/metrics"
)

// Container holds the application components.
type Container struct {
	config *config.Config

	// ctx scopes background goroutines owned by container components.
	ctx    context.Context
	cancel context.CancelFunc

	logger          lazy[*slog.Logger]
	db              lazy[*sql.DB]
	redisClient     lazy[*redis.Client]
	txManager       lazy[database.TxManager]
	metricsProvider lazy[*metrics.Provider]
	businessMetrics lazy[metrics.BusinessMetrics]

	masterKeyChain lazy[*cryptoDomain.MasterKeyChain]
	aeadManager    lazy[cryptoService.AEADManager]
	keyManager     lazy[cryptoService.KeyManager]
	kmsService     lazy[cryptoService.KMSService]
	kekRepository  lazy[cryptoUseCase.KekRepository]
	kekUseCase     lazy[cryptoUseCase.KekUseCase]
	kekChain       lazy[*cryptoDomain.KekChain]

	keyRepository     lazy[keysUseCase.KeyRepository]
	auditRepository   lazy[keysUseCase.AuditRepository]
	lineageLocker     lazy[keysService.LineageLocker]
	backupStore       lazy[*keysService.BlobBackupStore]
	auditSigner       lazy[keysService.AuditSigner]
	lifecycleUseCase  lazy[keysUseCase.LifecycleUseCase]
	insightsUseCase   lazy[keysUseCase.InsightsUseCase]
	rotationScheduler lazy[*keysUseCase.RotationScheduler]
	encryptionHandler lazy[*keysHTTP.EncryptionHandler]
	keyHandler        lazy[*keysHTTP.KeyHandler]
	insightsHandler   lazy[*keysHTTP.InsightsHandler]

	httpServer    lazy[*http.Server]
	metricsServer lazy[*http.MetricsServer]

	shutdownMu sync.Mutex
}

func NewContainer(cfg *config.Config) *Container {
	ctx, cancel := context.WithCancel(context.Background())
	return &Container{config: cfg, ctx: ctx, cancel: cancel}
}

func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the JSON logger on stdout at LOG_LEVEL (info when unset or unknown).
func (c *Container) Logger() *slog.Logger {
	return c.logger.must(func() *slog.Logger {
		level := slog.LevelInfo
		switch c.config.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	})
}

func (c *Container) DB() (*sql.DB, error) {
	return c.db.get(func() (*sql.DB, error) {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return db, nil
	})
}

// RedisClient returns the client behind the distributed lineage lock.
func (c *Container) RedisClient() (*redis.Client, error) {
	return c.redisClient.get(func() (*redis.Client, error) {
		return database.ConnectRedis(c.ctx, c.config.RedisURL)
	})
}

func (c *Container) TxManager() (database.TxManager, error) {
	return c.txManager.get(func() (database.TxManager, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
		}
		return database.NewTxManager(db), nil
	})
}

// MetricsProvider returns nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return c.metricsProvider.get(func() (*metrics.Provider, error) {
		if !c.config.MetricsEnabled {
			return nil, nil
		}
		return metrics.NewProvider(c.config.MetricsNamespace)
	})
}

// BusinessMetrics is a no-op recorder when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return c.businessMetrics.get(func() (metrics.BusinessMetrics, error) {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider: %w", err)
		}
		if provider == nil {
			return metrics.NewNoOpBusinessMetrics(), nil
		}
		return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	})
}

// HTTPServer returns the tenant API server. Building it loads the KEK chain.
func (c *Container) HTTPServer() (*http.Server, error) {
	return c.httpServer.get(c.initHTTPServer)
}

// MetricsServer returns nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return c.metricsServer.get(func() (*http.MetricsServer, error) {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
		}
		if provider == nil {
			return nil, nil
		}
		return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
	})
}

// Shutdown stops servers, flushes metrics and releases connections, then wipes
// the key chains.
func (c *Container) Shutdown(ctx context.Context) error {
	c.shutdownMu.Lock()
	defer c.shutdownMu.Unlock()

	c.cancel()

	var errs []error
	step := func(name string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if s := c.httpServer.peek(); s != nil {
		step("http server shutdown", s.Shutdown(ctx))
	}
	if s := c.metricsServer.peek(); s != nil {
		step("metrics server shutdown", s.Shutdown(ctx))
	}
	if p := c.metricsProvider.peek(); p != nil {
		step("metrics provider shutdown", p.Shutdown(ctx))
	}
	if b := c.backupStore.peek(); b != nil {
		step("backup store close", b.Close())
	}
	if r := c.redisClient.peek(); r != nil {
		step("redis close", r.Close())
	}
	if db := c.db.peek(); db != nil {
		step("database close", db.Close())
	}

	// Key material goes last so requests drained above can still use it.
	if chain := c.kekChain.peek(); chain != nil {
		chain.Close()
	}
	if chain := c.masterKeyChain.peek(); chain != nil {
		chain.Close()
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}
	encryptionHandler, err := c.EncryptionHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption handler for http server: %w", err)
	}
	keyHandler, err := c.KeyHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get key handler for http server: %w", err)
	}
	insightsHandler, err := c.InsightsHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get insights handler for http server: %w", err)
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	if provider != nil {
		server.SetupRouter(c.ctx, c.config, encryptionHandler, keyHandler, insightsHandler, provider.MeterProvider())
	} else {
		server.SetupRouter(c.ctx, c.config, encryptionHandler, keyHandler, insightsHandler, nil)
	}
	return server, nil
}
