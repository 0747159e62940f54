package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	"github.com/allisson/tenantkeys/internal/database"
	apperrors "github.com/allisson/tenantkeys/internal/errors"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	keysService "github.com/allisson/tenantkeys/internal/keys/service"
)

const defaultRewrapBatchSize = 100

// LifecycleConfig holds the key lifecycle policy.
type LifecycleConfig struct {
	// Algorithm is used for every new key.
	Algorithm cryptoDomain.Algorithm
	// RotationPolicies is the maximum key age per purpose. Zero disables automatic rotation.
	RotationPolicies map[keysDomain.Purpose]time.Duration
	// RotationConcurrency bounds how many lineages an automatic run rotates in parallel.
	RotationConcurrency int
	// BackupOnAutoRotation snapshots retired keys during automatic rotations.
	BackupOnAutoRotation bool
	// DestroyGracePeriod is the minimum time between retirement and destruction.
	DestroyGracePeriod time.Duration
}

type lifecycleUseCase struct {
	config    LifecycleConfig
	txManager database.TxManager
	keyRepo   KeyRepository
	audit     *auditTrail
	materials *keysService.MaterialProvider
	cipher    *keysService.CipherEngine
	locker    keysService.LineageLocker
	backup    keysService.BackupStore
	logger    *slog.Logger
	now       func() time.Time
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// newKey generates, wraps and returns an unsaved ACTIVE key.
func (l *lifecycleUseCase) newKey(
	siteID string,
	purpose keysDomain.Purpose,
	version uint,
	now time.Time,
) (*keysDomain.EncryptionKey, error) {
	raw, err := l.materials.GenerateKey(l.config.Algorithm)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(raw)

	wrapped, err := l.materials.Wrap(raw, uuid.Nil)
	if err != nil {
		return nil, err
	}

	return &keysDomain.EncryptionKey{
		ID:              uuid.Must(uuid.NewV7()),
		SiteID:          siteID,
		Purpose:         purpose,
		Algorithm:       l.config.Algorithm,
		KekID:           wrapped.KekID,
		WrappedMaterial: wrapped.Material,
		Nonce:           wrapped.Nonce,
		Status:          keysDomain.StatusActive,
		Version:         version,
		RotationPolicy:  l.config.RotationPolicies[purpose],
		CreatedAt:       now,
	}, nil
}

// scoped loads key id and rejects keys of another site.
func (l *lifecycleUseCase) scoped(
	ctx context.Context,
	siteID, principalID string,
	keyID uuid.UUID,
) (*keysDomain.EncryptionKey, error) {
	if siteID == "" {
		return nil, keysDomain.ErrSiteIDRequired
	}

	key, err := l.keyRepo.Get(ctx, keyID)
	if err != nil {
		return nil, err
	}

	if key.SiteID != siteID {
		l.logger.Warn("cross-site key access denied",
			slog.String("site_id", siteID),
			slog.String("principal_id", principalID),
			slog.String("key_id", keyID.String()),
		)
		return nil, keysDomain.ErrKeyAccessDenied
	}
	return key, nil
}

func (l *lifecycleUseCase) resolve(
	ctx context.Context,
	siteID string,
	purpose keysDomain.Purpose,
	principalID string,
) (*keysDomain.EncryptionKey, error) {
	if siteID == "" {
		return nil, keysDomain.ErrSiteIDRequired
	}
	if _, err := keysDomain.ParsePurpose(string(purpose)); err != nil {
		return nil, err
	}

	key, err := l.keyRepo.GetActive(ctx, siteID, purpose)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, keysDomain.ErrKeyNotFound) {
		return nil, err
	}

	unlock, err := l.locker.Lock(ctx, keysDomain.Lineage{SiteID: siteID, Purpose: purpose})
	if err != nil {
		return nil, err
	}
	defer unlock()

	created := false
	err = l.txManager.WithTx(ctx, func(ctx context.Context) error {
		// Another caller may have created the key while we waited for the lock.
		existing, err := l.keyRepo.GetActive(ctx, siteID, purpose)
		if err == nil {
			key = existing
			return nil
		}
		if !errors.Is(err, keysDomain.ErrKeyNotFound) {
			return err
		}

		version, err := l.keyRepo.MaxVersion(ctx, siteID, purpose)
		if err != nil {
			return err
		}

		now := l.now()
		key, err = l.newKey(siteID, purpose, version+1, now)
		if err != nil {
			return err
		}
		if err := l.keyRepo.Create(ctx, key); err != nil {
			return err
		}

		created = true
		metadata := map[string]string{"version": strconv.FormatUint(uint64(key.Version), 10)}
		return l.audit.append(ctx, key, principalID, keysDomain.ActionCreate, metadata, now)
	})

	if errors.Is(err, keysDomain.ErrKeyAlreadyExists) {
		// Lost the race against a process the lineage lock does not cover.
		return l.keyRepo.GetActive(ctx, siteID, purpose)
	}
	if err != nil {
		return nil, err
	}

	if created {
		l.logger.Info("encryption key created",
			slog.String("site_id", siteID),
			slog.String("purpose", purpose.String()),
			slog.String("key_id", key.ID.String()),
			slog.Uint64("version", uint64(key.Version)),
		)
	}
	return key, nil
}

func (l *lifecycleUseCase) ResolveActiveKey(
	ctx context.Context,
	siteID string,
	purpose keysDomain.Purpose,
) (*keysDomain.EncryptionKey, error) {
	return l.resolve(ctx, siteID, purpose, SystemPrincipal)
}

// maxSealAttempts bounds how often Encrypt seals again after a rotation
// retired the key it resolved.
const maxSealAttempts = 3

func (l *lifecycleUseCase) Encrypt(ctx context.Context, input EncryptInput) (*EncryptOutput, error) {
	for attempt := 1; ; attempt++ {
		key, err := l.resolve(ctx, input.SiteID, input.Purpose, input.PrincipalID)
		if err != nil {
			return nil, err
		}

		blob, err := l.seal(key, input.Plaintext, input.Metadata)
		if err != nil {
			return nil, err
		}

		// The lookup above takes no lineage lock, so a rotation may have
		// retired the key meanwhile. Seal again under its successor.
		current, err := l.keyRepo.Get(ctx, key.ID)
		if err != nil {
			return nil, err
		}
		if current.Status != keysDomain.StatusActive && attempt < maxSealAttempts {
			l.logger.Debug("key rotated during encrypt, sealing again",
				slog.String("site_id", key.SiteID),
				slog.String("key_id", key.ID.String()),
			)
			continue
		}

		metadata := withAuditFields(input.Metadata, "key_version", strconv.FormatUint(uint64(key.Version), 10))
		if err := l.audit.append(ctx, key, input.PrincipalID, keysDomain.ActionEncrypt, metadata, l.now()); err != nil {
			return nil, err
		}

		return &EncryptOutput{
			EncryptedData: blob.String(),
			KeyID:         key.ID,
			Algorithm:     key.Algorithm,
			Purpose:       key.Purpose,
			Metadata:      input.Metadata,
		}, nil
	}
}

func (l *lifecycleUseCase) seal(
	key *keysDomain.EncryptionKey,
	plaintext []byte,
	metadata map[string]string,
) (*keysDomain.EncryptedBlob, error) {
	raw, err := l.materials.Unwrap(key)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(raw)

	aad := keysDomain.AssociatedData(key.SiteID, key.Purpose, key.ID, metadata)
	nonce, ciphertext, err := l.cipher.Encrypt(raw, key.Algorithm, plaintext, aad)
	if err != nil {
		return nil, err
	}

	return &keysDomain.EncryptedBlob{
		KeyID:      key.ID,
		Algorithm:  key.Algorithm,
		Purpose:    key.Purpose,
		Nonce:      nonce,
		Ciphertext: ciphertext,
		Metadata:   metadata,
	}, nil
}

func (l *lifecycleUseCase) Decrypt(ctx context.Context, input DecryptInput) (*DecryptOutput, error) {
	if input.SiteID == "" {
		return nil, keysDomain.ErrSiteIDRequired
	}

	blob, err := keysDomain.ParseEncryptedBlob(input.EncryptedData)
	if err != nil {
		return nil, err
	}
	if input.KeyID != uuid.Nil && input.KeyID != blob.KeyID {
		return nil, keysDomain.ErrKeyMismatch
	}

	key, err := l.scoped(ctx, input.SiteID, input.PrincipalID, blob.KeyID)
	if err != nil {
		return nil, err
	}
	if key.Purpose != blob.Purpose || key.Algorithm != blob.Algorithm {
		return nil, keysDomain.ErrKeyMismatch
	}
	if !key.Status.Decryptable() {
		return nil, keysDomain.ErrKeyDestroyed
	}

	raw, err := l.materials.Unwrap(key)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(raw)

	aad := keysDomain.AssociatedData(key.SiteID, key.Purpose, key.ID, blob.Metadata)
	plaintext, err := l.cipher.Decrypt(raw, key.Algorithm, blob.Nonce, blob.Ciphertext, aad)
	if err != nil {
		if errors.Is(err, keysDomain.ErrAuthenticationFailed) {
			l.logger.Warn("ciphertext authentication failed",
				slog.String("site_id", input.SiteID),
				slog.String("principal_id", input.PrincipalID),
				slog.String("key_id", key.ID.String()),
			)
		}
		return nil, err
	}

	metadata := withAuditFields(blob.Metadata, "key_version", strconv.FormatUint(uint64(key.Version), 10))
	if err := l.audit.append(ctx, key, input.PrincipalID, keysDomain.ActionDecrypt, metadata, l.now()); err != nil {
		cryptoDomain.Zero(plaintext)
		return nil, err
	}

	return &DecryptOutput{
		Plaintext: plaintext,
		KeyID:     key.ID,
		Purpose:   key.Purpose,
		Metadata:  blob.Metadata,
	}, nil
}

func (l *lifecycleUseCase) Rotate(ctx context.Context, input RotateInput) (*RotateOutput, error) {
	key, err := l.scoped(ctx, input.SiteID, input.PrincipalID, input.KeyID)
	if err != nil {
		return nil, err
	}
	return l.rotate(ctx, key, input.PrincipalID, input.Force, input.BackupOldKey)
}

// rotate swaps the lineage to a new ACTIVE key in one transaction:
// old ACTIVE->ROTATING, insert new ACTIVE, old ROTATING->RETIRED, audit.
// The old key leaves ACTIVE first because the store allows a single ACTIVE
// row per lineage; the transaction hides the intermediate states.
func (l *lifecycleUseCase) rotate(
	ctx context.Context,
	key *keysDomain.EncryptionKey,
	principalID string,
	force, backupOldKey bool,
) (*RotateOutput, error) {
	unlock, err := l.locker.Lock(ctx, key.Lineage())
	if err != nil {
		return nil, err
	}
	defer unlock()

	output := &RotateOutput{OldKeyID: key.ID, NewKeyID: key.ID}
	err = l.txManager.WithTx(ctx, func(ctx context.Context) error {
		current, err := l.keyRepo.GetForUpdate(ctx, key.ID)
		if err != nil {
			return err
		}
		if current.Status != keysDomain.StatusActive {
			return keysDomain.ErrKeyNotActive
		}

		now := l.now()
		if !force && !current.IsRotationDue(now) {
			return nil
		}

		next, err := l.newKey(current.SiteID, current.Purpose, current.Version+1, now)
		if err != nil {
			return err
		}

		if err := current.Apply(keysDomain.EventBeginRotation, now); err != nil {
			return err
		}
		if err := l.keyRepo.Update(ctx, current); err != nil {
			return err
		}
		if err := l.keyRepo.Create(ctx, next); err != nil {
			return err
		}
		if err := current.Apply(keysDomain.EventCompleteRotation, now); err != nil {
			return err
		}
		if err := l.keyRepo.Update(ctx, current); err != nil {
			return err
		}

		if backupOldKey {
			path, err := l.backup.Backup(ctx, current)
			if err != nil {
				return apperrors.Wrap(err, "failed to back up retired key")
			}
			output.BackupPath = path
		}

		metadata := map[string]string{
			"new_key_id":  next.ID.String(),
			"new_version": strconv.FormatUint(uint64(next.Version), 10),
			"forced":      strconv.FormatBool(force),
		}
		if output.BackupPath != "" {
			metadata["backup_path"] = output.BackupPath
		}
		if err := l.audit.append(ctx, current, principalID, keysDomain.ActionRotate, metadata, now); err != nil {
			return err
		}

		output.NewKeyID = next.ID
		output.Rotated = true
		return nil
	})
	if err != nil {
		if output.BackupPath != "" {
			l.discardBackup(ctx, key, output.BackupPath)
		}
		return nil, err
	}

	if output.Rotated {
		l.logger.Info("encryption key rotated",
			slog.String("site_id", key.SiteID),
			slog.String("purpose", key.Purpose.String()),
			slog.String("old_key_id", output.OldKeyID.String()),
			slog.String("new_key_id", output.NewKeyID.String()),
		)
	}
	return output, nil
}

// discardBackup removes the snapshot of a rotation that rolled back, so the
// bucket never holds a RETIRED copy of a key that is still ACTIVE.
func (l *lifecycleUseCase) discardBackup(ctx context.Context, key *keysDomain.EncryptionKey, path string) {
	if err := l.backup.Delete(context.WithoutCancel(ctx), path); err != nil {
		l.logger.Error("failed to remove backup of rolled back rotation",
			slog.String("site_id", key.SiteID),
			slog.String("key_id", key.ID.String()),
			slog.String("backup_path", path),
			slog.Any("error", err),
		)
	}
}

func (l *lifecycleUseCase) ProcessAutomaticRotations(
	ctx context.Context,
	siteID string,
) (*keysDomain.RotationReport, error) {
	keys, err := l.keyRepo.ListActive(ctx, siteID)
	if err != nil {
		return nil, err
	}

	report := &keysDomain.RotationReport{
		RotatedKeys: make([]uuid.UUID, 0),
		Errors:      make([]keysDomain.RotationError, 0),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(max(1, l.config.RotationConcurrency))

	now := l.now()
	for _, key := range keys {
		if !key.IsRotationDue(now) {
			continue
		}

		g.Go(func() error {
			output, err := l.rotate(ctx, key, SystemPrincipal, false, l.config.BackupOnAutoRotation)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				l.logger.Error("automatic rotation failed",
					slog.String("site_id", key.SiteID),
					slog.String("key_id", key.ID.String()),
					slog.Any("error", err),
				)
				report.Errors = append(report.Errors, keysDomain.RotationError{KeyID: key.ID, Reason: err.Error()})
				return nil
			}
			if output.Rotated {
				report.RotatedKeys = append(report.RotatedKeys, key.ID)
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(report.RotatedKeys, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	slices.SortFunc(report.Errors, func(a, b keysDomain.RotationError) int {
		return bytes.Compare(a.KeyID[:], b.KeyID[:])
	})
	return report, nil
}

func (l *lifecycleUseCase) Destroy(ctx context.Context, input DestroyInput) (*keysDomain.EncryptionKey, error) {
	key, err := l.scoped(ctx, input.SiteID, input.PrincipalID, input.KeyID)
	if err != nil {
		return nil, err
	}

	unlock, err := l.locker.Lock(ctx, key.Lineage())
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = l.txManager.WithTx(ctx, func(ctx context.Context) error {
		current, err := l.keyRepo.GetForUpdate(ctx, input.KeyID)
		if err != nil {
			return err
		}
		if current.Status == keysDomain.StatusDestroyed {
			return keysDomain.ErrKeyDestroyed
		}
		if _, err := keysDomain.Transition(current.Status, keysDomain.EventDestroy); err != nil {
			return err
		}

		now := l.now()
		if current.RetiredAt != nil && now.Before(current.RetiredAt.Add(l.config.DestroyGracePeriod)) {
			return keysDomain.ErrGracePeriodNotElapsed
		}

		if err := current.Apply(keysDomain.EventDestroy, now); err != nil {
			return err
		}
		if err := l.keyRepo.Update(ctx, current); err != nil {
			return err
		}
		metadata := map[string]string{"version": strconv.FormatUint(uint64(current.Version), 10)}
		if err := l.audit.append(ctx, current, input.PrincipalID, keysDomain.ActionDestroy, metadata, now); err != nil {
			return err
		}

		key = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("encryption key destroyed",
		slog.String("site_id", key.SiteID),
		slog.String("key_id", key.ID.String()),
		slog.String("principal_id", input.PrincipalID),
	)
	return key, nil
}

// ListKeys returns key metadata only; wrapped material is stripped.
func (l *lifecycleUseCase) ListKeys(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error) {
	if siteID == "" {
		return nil, keysDomain.ErrSiteIDRequired
	}

	keys, err := l.keyRepo.ListBySite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		key.WrappedMaterial = nil
		key.Nonce = nil
	}
	return keys, nil
}

func (l *lifecycleUseCase) RewrapKeys(ctx context.Context, batchSize int) (int, error) {
	activeKekID := l.materials.ActiveKekID()
	if activeKekID == uuid.Nil {
		return 0, cryptoDomain.ErrNoActiveKek
	}
	if batchSize <= 0 {
		batchSize = defaultRewrapBatchSize
	}

	total := 0
	for {
		listed, rewrapped := 0, 0
		err := l.txManager.WithTx(ctx, func(ctx context.Context) error {
			keys, err := l.keyRepo.ListForRewrap(ctx, activeKekID, batchSize)
			if err != nil {
				return err
			}
			listed = len(keys)

			for _, candidate := range keys {
				// Re-read under a row lock so a concurrent rotation is never overwritten.
				key, err := l.keyRepo.GetForUpdate(ctx, candidate.ID)
				if err != nil {
					return err
				}
				if key.Status == keysDomain.StatusDestroyed || key.KekID == activeKekID {
					continue
				}

				if err := l.rewrap(key, activeKekID); err != nil {
					return err
				}
				if err := l.keyRepo.Update(ctx, key); err != nil {
					return err
				}
				metadata := map[string]string{"kek_id": activeKekID.String()}
				if err := l.audit.append(ctx, key, SystemPrincipal, keysDomain.ActionRewrap, metadata, l.now()); err != nil {
					return err
				}
				rewrapped++
			}
			return nil
		})
		if err != nil {
			return total, err
		}

		total += rewrapped
		if listed < batchSize {
			return total, nil
		}
	}
}

func (l *lifecycleUseCase) rewrap(key *keysDomain.EncryptionKey, kekID uuid.UUID) error {
	raw, err := l.materials.Unwrap(key)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(raw)

	wrapped, err := l.materials.Wrap(raw, kekID)
	if err != nil {
		return err
	}

	key.KekID = wrapped.KekID
	key.WrappedMaterial = wrapped.Material
	key.Nonce = wrapped.Nonce
	return nil
}

// NewLifecycleUseCase creates a LifecycleUseCase.
func NewLifecycleUseCase(
	config LifecycleConfig,
	txManager database.TxManager,
	keyRepo KeyRepository,
	auditRepo AuditRepository,
	materials *keysService.MaterialProvider,
	cipher *keysService.CipherEngine,
	locker keysService.LineageLocker,
	backup keysService.BackupStore,
	signer keysService.AuditSigner,
	kekChain *cryptoDomain.KekChain,
	logger *slog.Logger,
) LifecycleUseCase {
	return &lifecycleUseCase{
		config:    config,
		txManager: txManager,
		keyRepo:   keyRepo,
		audit:     &auditTrail{repo: auditRepo, signer: signer, kekChain: kekChain},
		materials: materials,
		cipher:    cipher,
		locker:    locker,
		backup:    backup,
		logger:    logger,
		now:       utcNow,
	}
}
