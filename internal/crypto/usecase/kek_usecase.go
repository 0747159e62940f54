package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	cryptoService "github.com/allisson/tenantkeys/internal/crypto/service"
	"github.com/allisson/tenantkeys/internal/database"
)

type kekUseCase struct {
	txManager  database.TxManager
	kekRepo    KekRepository
	keyManager cryptoService.KeyManager
}

func NewKekUseCase(
	txManager database.TxManager,
	kekRepo KekRepository,
	keyManager cryptoService.KeyManager,
) KekUseCase {
	return &kekUseCase{txManager: txManager, kekRepo: kekRepo, keyManager: keyManager}
}

func masterKeyFor(chain *cryptoDomain.MasterKeyChain, id string) (*cryptoDomain.MasterKey, error) {
	masterKey, ok := chain.Get(id)
	if !ok {
		return nil, cryptoDomain.ErrMasterKeyNotFound
	}
	return masterKey, nil
}

// issue seals a new KEK under the active master key at the next version. With
// first set, an existing KEK is a conflict.
func (k *kekUseCase) issue(
	ctx context.Context,
	chain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
	first bool,
) error {
	masterKey, err := masterKeyFor(chain, chain.ActiveMasterKeyID())
	if err != nil {
		return err
	}

	return k.txManager.WithTx(ctx, func(ctx context.Context) error {
		keks, err := k.kekRepo.List(ctx)
		if err != nil {
			return err
		}
		if first && len(keks) > 0 {
			return cryptoDomain.ErrKekAlreadyExists
		}

		kek, err := k.keyManager.CreateKek(masterKey, alg)
		if err != nil {
			return err
		}
		defer cryptoDomain.Zero(kek.Key)

		if len(keks) > 0 {
			kek.Version = keks[0].Version + 1
		}
		return k.kekRepo.Create(ctx, &kek)
	})
}

func (k *kekUseCase) Create(ctx context.Context, chain *cryptoDomain.MasterKeyChain, alg cryptoDomain.Algorithm) error {
	return k.issue(ctx, chain, alg, true)
}

func (k *kekUseCase) Rotate(ctx context.Context, chain *cryptoDomain.MasterKeyChain, alg cryptoDomain.Algorithm) error {
	return k.issue(ctx, chain, alg, false)
}

// RewrapWithActiveMasterKey re-seals KEKs still bound to an older master key.
// KEK ids and plaintext keys do not change, so tenant keys need no rewrap.
func (k *kekUseCase) RewrapWithActiveMasterKey(ctx context.Context, chain *cryptoDomain.MasterKeyChain) (int, error) {
	activeID := chain.ActiveMasterKeyID()
	active, err := masterKeyFor(chain, activeID)
	if err != nil {
		return 0, err
	}

	rewrapped := 0
	err = k.txManager.WithTx(ctx, func(ctx context.Context) error {
		keks, err := k.kekRepo.List(ctx)
		if err != nil {
			return err
		}

		for _, kek := range keks {
			if kek.MasterKeyID == activeID {
				continue
			}
			if err := k.reseal(kek, chain, active); err != nil {
				return err
			}
			if err := k.kekRepo.Update(ctx, kek); err != nil {
				return err
			}
			rewrapped++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rewrapped, nil
}

// reseal moves kek from its current master key to active. The plaintext is
// wiped before returning.
func (k *kekUseCase) reseal(kek *cryptoDomain.Kek, chain *cryptoDomain.MasterKeyChain, active *cryptoDomain.MasterKey) error {
	current, err := masterKeyFor(chain, kek.MasterKeyID)
	if err != nil {
		return err
	}
	key, err := k.keyManager.DecryptKek(kek, current)
	if err != nil {
		return err
	}
	defer func() {
		cryptoDomain.Zero(key)
		kek.Key = nil
	}()

	kek.Key = key
	return k.keyManager.SealKek(kek, active)
}

// Unwrap decrypts every stored KEK into a chain whose active entry is the
// highest version. On failure no plaintext KEK survives.
func (k *kekUseCase) Unwrap(ctx context.Context, chain *cryptoDomain.MasterKeyChain) (*cryptoDomain.KekChain, error) {
	keks, err := k.kekRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	for i, kek := range keks {
		key, err := k.decrypt(kek, chain)
		if err != nil {
			for _, done := range keks[:i] {
				cryptoDomain.Zero(done.Key)
			}
			return nil, err
		}
		kek.Key = key
	}
	return cryptoDomain.NewKekChain(keks), nil
}

func (k *kekUseCase) decrypt(kek *cryptoDomain.Kek, chain *cryptoDomain.MasterKeyChain) ([]byte, error) {
	masterKey, err := masterKeyFor(chain, kek.MasterKeyID)
	if err != nil {
		return nil, err
	}
	return k.keyManager.DecryptKek(kek, masterKey)
}
