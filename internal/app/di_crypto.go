package app

import (
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	cryptoRepository "github.com/allisson/tenantkeys/internal/crypto/repository"
	cryptoService "github.com/allisson/tenantkeys/internal/crypto/service"
	cryptoUseCase "github.com/allisson/tenantkeys/internal/crypto/usecase"
)

// MasterKeyChain returns MASTER_KEYS decoded, and unsealed through the KMS
// keeper when KMS_PROVIDER is set.
func (c *Container) MasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	return c.masterKeyChain.get(c.initMasterKeyChain)
}

func (c *Container) AEADManager() cryptoService.AEADManager {
	return c.aeadManager.must(func() cryptoService.AEADManager {
		return cryptoService.NewAEADManager()
	})
}

func (c *Container) KeyManager() cryptoService.KeyManager {
	return c.keyManager.must(func() cryptoService.KeyManager {
		return cryptoService.NewKeyManager(c.AEADManager())
	})
}

func (c *Container) KMSService() cryptoService.KMSService {
	return c.kmsService.must(cryptoService.NewKMSService)
}

func (c *Container) KekRepository() (cryptoUseCase.KekRepository, error) {
	return c.kekRepository.get(func() (cryptoUseCase.KekRepository, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for kek repository: %w", err)
		}
		switch c.config.DBDriver {
		case "postgres":
			return cryptoRepository.NewPostgreSQLKekRepository(db), nil
		case "mysql":
			return cryptoRepository.NewMySQLKekRepository(db), nil
		}
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	})
}

func (c *Container) KekUseCase() (cryptoUseCase.KekUseCase, error) {
	return c.kekUseCase.get(func() (cryptoUseCase.KekUseCase, error) {
		txManager, err := c.TxManager()
		if err != nil {
			return nil, fmt.Errorf("failed to get tx manager for kek use case: %w", err)
		}
		kekRepository, err := c.KekRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get kek repository for kek use case: %w", err)
		}
		return cryptoUseCase.NewKekUseCase(txManager, kekRepository, c.KeyManager()), nil
	})
}

// KekChain returns every KEK decrypted with the master key chain. The chain is
// loaded once per process, so KEK rotations take effect on restart.
func (c *Container) KekChain() (*cryptoDomain.KekChain, error) {
	return c.kekChain.get(c.initKekChain)
}

func (c *Container) initMasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	logger := c.Logger()

	var keeper cryptoDomain.KMSKeeper
	if provider := c.config.KMSProvider; provider != "" {
		if c.config.KMSKeyURI == "" {
			return nil, fmt.Errorf("KMS_KEY_URI is required when KMS_PROVIDER is set")
		}
		if err := cryptoService.CheckKMSKeyURI(provider, c.config.KMSKeyURI); err != nil {
			return nil, err
		}

		var err error
		if keeper, err = c.KMSService().OpenKeeper(c.ctx, c.config.KMSKeyURI); err != nil {
			return nil, err
		}
		defer func() {
			if err := keeper.Close(); err != nil {
				logger.Warn("failed to close kms keeper", slog.Any("error", err))
			}
		}()
	}

	chain, err := cryptoDomain.LoadMasterKeyChain(c.ctx, c.config.MasterKeys, c.config.ActiveMasterKeyID, keeper)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key chain: %w", err)
	}

	logger.Info("master key chain loaded",
		slog.String("active_master_key_id", chain.ActiveMasterKeyID()),
		slog.Bool("kms", keeper != nil),
	)
	return chain, nil
}

func (c *Container) initKekChain() (*cryptoDomain.KekChain, error) {
	kekUseCase, err := c.KekUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get kek use case: %w", err)
	}
	masterKeyChain, err := c.MasterKeyChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key chain: %w", err)
	}

	chain, err := kekUseCase.Unwrap(c.ctx, masterKeyChain)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap keks: %w", err)
	}
	if _, err := chain.Active(); err != nil {
		chain.Close()
		return nil, fmt.Errorf("no kek found, run create-kek first: %w", err)
	}
	return chain, nil
}
