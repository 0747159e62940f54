package app

import (
	"fmt"
	"time"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	keysHTTP "github.com/allisson/tenantkeys/internal/keys/http"
	keysRepository "github.com/allisson/tenantkeys/internal/keys/repository"
	keysService "github.com/allisson/tenantkeys/internal/keys/service"
	keysUseCase "github.com/allisson/tenantkeys/internal/keys/usecase"
	"github.com/allisson/tenantkeys/internal/metrics"
)

// KeyRepository picks the tenant key store for DB_DRIVER.
func (c *Container) KeyRepository() (keysUseCase.KeyRepository, error) {
	return c.keyRepository.get(func() (keysUseCase.KeyRepository, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for key repository: %w", err)
		}
		switch c.config.DBDriver {
		case "postgres":
			return keysRepository.NewPostgreSQLKeyRepository(db), nil
		case "mysql":
			return keysRepository.NewMySQLKeyRepository(db), nil
		}
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	})
}

// AuditRepository picks the audit trail store for DB_DRIVER.
func (c *Container) AuditRepository() (keysUseCase.AuditRepository, error) {
	return c.auditRepository.get(func() (keysUseCase.AuditRepository, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for audit repository: %w", err)
		}
		switch c.config.DBDriver {
		case "postgres":
			return keysRepository.NewPostgreSQLAuditRepository(db), nil
		case "mysql":
			return keysRepository.NewMySQLAuditRepository(db), nil
		}
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	})
}

// LineageLocker returns the in-process or Redis lineage lock, per LOCK_BACKEND.
func (c *Container) LineageLocker() (keysService.LineageLocker, error) {
	return c.lineageLocker.get(func() (keysService.LineageLocker, error) {
		switch c.config.LockBackend {
		case "local", "":
			return keysService.NewLocalLineageLocker(), nil
		case "redis":
			client, err := c.RedisClient()
			if err != nil {
				return nil, fmt.Errorf("failed to get redis client for lineage locker: %w", err)
			}
			return keysService.NewRedisLineageLocker(client, c.config.LockTTL), nil
		}
		return nil, fmt.Errorf("unsupported lock backend: %s", c.config.LockBackend)
	})
}

// BackupStore returns the bucket receiving snapshots of rotated keys.
func (c *Container) BackupStore() (*keysService.BlobBackupStore, error) {
	return c.backupStore.get(func() (*keysService.BlobBackupStore, error) {
		return keysService.OpenBlobBackupStore(c.ctx, c.config.KeyBackupBucketURL)
	})
}

func (c *Container) AuditSigner() keysService.AuditSigner {
	return c.auditSigner.must(keysService.NewAuditSigner)
}

func (c *Container) LifecycleUseCase() (keysUseCase.LifecycleUseCase, error) {
	return c.lifecycleUseCase.get(c.initLifecycleUseCase)
}

func (c *Container) InsightsUseCase() (keysUseCase.InsightsUseCase, error) {
	return c.insightsUseCase.get(c.initInsightsUseCase)
}

// RotationScheduler returns the background automatic rotation loop.
func (c *Container) RotationScheduler() (*keysUseCase.RotationScheduler, error) {
	return c.rotationScheduler.get(func() (*keysUseCase.RotationScheduler, error) {
		lifecycle, err := c.LifecycleUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get lifecycle use case for rotation scheduler: %w", err)
		}
		return keysUseCase.NewRotationScheduler(
			keysUseCase.SchedulerConfig{Interval: c.config.RotationSchedulerInterval},
			lifecycle,
			c.Logger(),
		), nil
	})
}

func (c *Container) EncryptionHandler() (*keysHTTP.EncryptionHandler, error) {
	return c.encryptionHandler.get(func() (*keysHTTP.EncryptionHandler, error) {
		lifecycle, err := c.LifecycleUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get lifecycle use case for encryption handler: %w", err)
		}
		return keysHTTP.NewEncryptionHandler(lifecycle, c.Logger()), nil
	})
}

func (c *Container) KeyHandler() (*keysHTTP.KeyHandler, error) {
	return c.keyHandler.get(func() (*keysHTTP.KeyHandler, error) {
		lifecycle, err := c.LifecycleUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get lifecycle use case for key handler: %w", err)
		}
		return keysHTTP.NewKeyHandler(lifecycle, c.Logger()), nil
	})
}

func (c *Container) InsightsHandler() (*keysHTTP.InsightsHandler, error) {
	return c.insightsHandler.get(func() (*keysHTTP.InsightsHandler, error) {
		insights, err := c.InsightsUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get insights use case for insights handler: %w", err)
		}
		return keysHTTP.NewInsightsHandler(insights, c.Logger()), nil
	})
}

// RotationPolicies maps each purpose to its configured maximum key age.
func (c *Container) RotationPolicies() map[keysDomain.Purpose]time.Duration {
	return map[keysDomain.Purpose]time.Duration{
		keysDomain.PurposeUserData:     c.config.RotationPolicyUserData,
		keysDomain.PurposeSystemConfig: c.config.RotationPolicySystemConfig,
		keysDomain.PurposePaymentInfo:  c.config.RotationPolicyPaymentInfo,
		keysDomain.PurposePersonalInfo: c.config.RotationPolicyPersonalInfo,
		keysDomain.PurposeFileStorage:  c.config.RotationPolicyFileStorage,
	}
}

// operationMetrics returns nil when metrics are disabled, so use cases stay undecorated.
func (c *Container) operationMetrics() (metrics.BusinessMetrics, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	bm, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics: %w", err)
	}
	return bm, nil
}

func (c *Container) initLifecycleUseCase() (keysUseCase.LifecycleUseCase, error) {
	algorithm, err := cryptoDomain.ParseAlgorithm(c.config.DefaultAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_ALGORITHM: %w", err)
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for lifecycle use case: %w", err)
	}
	keyRepository, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for lifecycle use case: %w", err)
	}
	auditRepository, err := c.AuditRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit repository for lifecycle use case: %w", err)
	}
	kekChain, err := c.KekChain()
	if err != nil {
		return nil, fmt.Errorf("failed to load kek chain for lifecycle use case: %w", err)
	}
	locker, err := c.LineageLocker()
	if err != nil {
		return nil, fmt.Errorf("failed to get lineage locker for lifecycle use case: %w", err)
	}
	backupStore, err := c.BackupStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get backup store for lifecycle use case: %w", err)
	}
	bm, err := c.operationMetrics()
	if err != nil {
		return nil, err
	}

	useCase := keysUseCase.NewLifecycleUseCase(
		keysUseCase.LifecycleConfig{
			Algorithm:            algorithm,
			RotationPolicies:     c.RotationPolicies(),
			RotationConcurrency:  c.config.RotationConcurrency,
			BackupOnAutoRotation: c.config.AutoRotationBackupOldKey,
			DestroyGracePeriod:   c.config.KeyDestroyGracePeriod,
		},
		txManager,
		keyRepository,
		auditRepository,
		keysService.NewMaterialProvider(c.KeyManager(), kekChain),
		keysService.NewCipherEngine(c.AEADManager()),
		locker,
		backupStore,
		c.AuditSigner(),
		kekChain,
		c.Logger(),
	)
	if bm == nil {
		return useCase, nil
	}
	return keysUseCase.NewLifecycleUseCaseWithMetrics(useCase, bm), nil
}

func (c *Container) initInsightsUseCase() (keysUseCase.InsightsUseCase, error) {
	keyRepository, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for insights use case: %w", err)
	}
	auditRepository, err := c.AuditRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit repository for insights use case: %w", err)
	}
	kekChain, err := c.KekChain()
	if err != nil {
		return nil, fmt.Errorf("failed to load kek chain for insights use case: %w", err)
	}
	bm, err := c.operationMetrics()
	if err != nil {
		return nil, err
	}

	useCase := keysUseCase.NewInsightsUseCase(keyRepository, auditRepository, c.AuditSigner(), kekChain, c.Logger())
	if bm == nil {
		return useCase, nil
	}
	return keysUseCase.NewInsightsUseCaseWithMetrics(useCase, bm), nil
}
