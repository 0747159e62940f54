package usecase

import (
	"bytes"
	"cmp"
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	cryptoService "github.com/allisson/tenantkeys/internal/crypto/service"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	keysService "github.com/allisson/tenantkeys/internal/keys/service"
)

// memKeyRepo enforces the same uniqueness rules as the SQL schema.
type memKeyRepo struct {
	mu         sync.Mutex
	keys       map[uuid.UUID]*keysDomain.EncryptionKey
	failUpdate map[uuid.UUID]error
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{
		keys:       make(map[uuid.UUID]*keysDomain.EncryptionKey),
		failUpdate: make(map[uuid.UUID]error),
	}
}

func cloneKey(k *keysDomain.EncryptionKey) *keysDomain.EncryptionKey {
	c := *k
	c.WrappedMaterial = bytes.Clone(k.WrappedMaterial)
	c.Nonce = bytes.Clone(k.Nonce)
	return &c
}

// rows returns the working copy of the transaction in ctx, or the committed rows.
func (r *memKeyRepo) rows(ctx context.Context) map[uuid.UUID]*keysDomain.EncryptionKey {
	if tx := memTxFrom(ctx); tx != nil {
		return tx.keys
	}
	return r.keys
}

func (r *memKeyRepo) snapshot() map[uuid.UUID]*keysDomain.EncryptionKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.keys)
}

func (r *memKeyRepo) commit(rows map[uuid.UUID]*keysDomain.EncryptionKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = rows
}

func conflicts(rows map[uuid.UUID]*keysDomain.EncryptionKey, key *keysDomain.EncryptionKey) bool {
	for _, other := range rows {
		if other.ID == key.ID || other.SiteID != key.SiteID || other.Purpose != key.Purpose {
			continue
		}
		if other.Version == key.Version {
			return true
		}
		if other.Status == keysDomain.StatusActive && key.Status == keysDomain.StatusActive {
			return true
		}
	}
	return false
}

func (r *memKeyRepo) Create(ctx context.Context, key *keysDomain.EncryptionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.rows(ctx)
	if _, ok := rows[key.ID]; ok || conflicts(rows, key) {
		return keysDomain.ErrKeyAlreadyExists
	}
	rows[key.ID] = cloneKey(key)
	return nil
}

func (r *memKeyRepo) Update(ctx context.Context, key *keysDomain.EncryptionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.failUpdate[key.ID]; err != nil {
		return err
	}
	rows := r.rows(ctx)
	if _, ok := rows[key.ID]; !ok {
		return keysDomain.ErrKeyNotFound
	}
	if conflicts(rows, key) {
		return keysDomain.ErrKeyAlreadyExists
	}
	rows[key.ID] = cloneKey(key)
	return nil
}

func (r *memKeyRepo) Get(ctx context.Context, id uuid.UUID) (*keysDomain.EncryptionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.rows(ctx)[id]
	if !ok {
		return nil, keysDomain.ErrKeyNotFound
	}
	return cloneKey(key), nil
}

func (r *memKeyRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*keysDomain.EncryptionKey, error) {
	return r.Get(ctx, id)
}

func (r *memKeyRepo) GetActive(
	ctx context.Context,
	siteID string,
	purpose keysDomain.Purpose,
) (*keysDomain.EncryptionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *keysDomain.EncryptionKey
	for _, key := range r.rows(ctx) {
		if key.SiteID == siteID && key.Purpose == purpose && key.Status == keysDomain.StatusActive {
			if found == nil || key.Version > found.Version {
				found = key
			}
		}
	}
	if found == nil {
		return nil, keysDomain.ErrKeyNotFound
	}
	return cloneKey(found), nil
}

func (r *memKeyRepo) MaxVersion(ctx context.Context, siteID string, purpose keysDomain.Purpose) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var version uint
	for _, key := range r.rows(ctx) {
		if key.SiteID == siteID && key.Purpose == purpose {
			version = max(version, key.Version)
		}
	}
	return version, nil
}

func (r *memKeyRepo) filter(
	ctx context.Context,
	match func(*keysDomain.EncryptionKey) bool,
) []*keysDomain.EncryptionKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]*keysDomain.EncryptionKey, 0)
	for _, key := range r.rows(ctx) {
		if match(key) {
			keys = append(keys, cloneKey(key))
		}
	}
	slices.SortFunc(keys, func(a, b *keysDomain.EncryptionKey) int {
		return cmp.Or(
			cmp.Compare(a.SiteID, b.SiteID),
			cmp.Compare(a.Purpose, b.Purpose),
			cmp.Compare(b.Version, a.Version),
		)
	})
	return keys
}

func (r *memKeyRepo) ListBySite(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error) {
	return r.filter(ctx, func(k *keysDomain.EncryptionKey) bool { return k.SiteID == siteID }), nil
}

func (r *memKeyRepo) ListActive(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error) {
	return r.filter(ctx, func(k *keysDomain.EncryptionKey) bool {
		return k.Status == keysDomain.StatusActive && (siteID == "" || k.SiteID == siteID)
	}), nil
}

func (r *memKeyRepo) ListForRewrap(ctx context.Context, kekID uuid.UUID, limit int) ([]*keysDomain.EncryptionKey, error) {
	keys := r.filter(ctx, func(k *keysDomain.EncryptionKey) bool {
		return k.KekID != kekID && k.Status != keysDomain.StatusDestroyed
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func (r *memKeyRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// activeCount counts committed ACTIVE keys of a lineage.
func (r *memKeyRepo) activeCount(lineage keysDomain.Lineage) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, key := range r.keys {
		if key.Lineage() == lineage && key.Status == keysDomain.StatusActive {
			n++
		}
	}
	return n
}

type memAuditRepo struct {
	mu      sync.Mutex
	records []*keysDomain.AuditRecord
	// beforeCreate, when set, runs first and its error fails the write.
	beforeCreate func(record *keysDomain.AuditRecord) error
}

func (r *memAuditRepo) Create(ctx context.Context, record *keysDomain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.beforeCreate != nil {
		if err := r.beforeCreate(record); err != nil {
			return err
		}
	}

	c := *record
	if tx := memTxFrom(ctx); tx != nil {
		tx.records = append(tx.records, &c)
		return nil
	}
	r.records = append(r.records, &c)
	return nil
}

func (r *memAuditRepo) commit(records []*keysDomain.AuditRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
}

func (r *memAuditRepo) List(_ context.Context, filter keysDomain.AuditFilter) ([]*keysDomain.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*keysDomain.AuditRecord, 0)
	for _, record := range r.records {
		if filter.SiteID != "" && record.SiteID != filter.SiteID {
			continue
		}
		if filter.From != nil && record.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && record.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, record)
	}
	slices.Reverse(matched)

	if filter.Offset >= len(matched) {
		return []*keysDomain.AuditRecord{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *memAuditRepo) CountBySiteSince(
	_ context.Context,
	siteID string,
	since time.Time,
) ([]keysDomain.OperationCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type group struct {
		purpose keysDomain.Purpose
		action  keysDomain.Action
	}
	counts := make(map[group]int64)
	for _, record := range r.records {
		if record.SiteID == siteID && !record.CreatedAt.Before(since) {
			counts[group{record.Purpose, record.Action}]++
		}
	}

	result := make([]keysDomain.OperationCount, 0, len(counts))
	for g, n := range counts {
		result = append(result, keysDomain.OperationCount{Purpose: g.purpose, Action: g.action, Count: n})
	}
	slices.SortFunc(result, func(a, b keysDomain.OperationCount) int {
		return cmp.Or(cmp.Compare(a.Purpose, b.Purpose), cmp.Compare(a.Action, b.Action))
	})
	return result, nil
}

func (r *memAuditRepo) DeleteOlderThan(_ context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]*keysDomain.AuditRecord, 0, len(r.records))
	var deleted int64
	for _, record := range r.records {
		if record.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	if !dryRun {
		r.records = kept
	}
	return deleted, nil
}

func (r *memAuditRepo) actions(keyID uuid.UUID) []keysDomain.Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions := make([]keysDomain.Action, 0)
	for _, record := range r.records {
		if record.KeyID == keyID {
			actions = append(actions, record.Action)
		}
	}
	return actions
}

type memTxKey struct{}

// memTx is the private state of one transaction: a copy of the key rows and
// the audit records appended so far.
type memTx struct {
	keys    map[uuid.UUID]*keysDomain.EncryptionKey
	records []*keysDomain.AuditRecord
}

func memTxFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

// memTxManager runs transactions one at a time over the in-memory
// repositories. Writes become visible only on commit; an error or a context
// cancelled before commit discards them.
type memTxManager struct {
	mu     sync.Mutex
	keys   *memKeyRepo
	audits *memAuditRepo
}

func (m *memTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if memTxFrom(ctx) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{keys: m.keys.snapshot()}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.keys.commit(tx.keys)
	m.audits.commit(tx.records)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	lifecycle *lifecycleUseCase
	insights  *insightsUseCase
	keys      *memKeyRepo
	audits    *memAuditRepo
	backup    *keysService.BlobBackupStore
	kekChain  *cryptoDomain.KekChain
	clock     *fakeClock
}

func newTestKek(t *testing.T, version uint) *cryptoDomain.Kek {
	t.Helper()

	key := make([]byte, cryptoDomain.KeySize)
	_, err := io.ReadFull(rand.Reader, key)
	require.NoError(t, err)

	return &cryptoDomain.Kek{
		ID:        uuid.Must(uuid.NewV7()),
		Algorithm: cryptoDomain.AESGCM,
		Key:       key,
		Version:   version,
		CreatedAt: time.Now().UTC(),
	}
}

func testLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		Algorithm: cryptoDomain.AESGCM,
		RotationPolicies: map[keysDomain.Purpose]time.Duration{
			keysDomain.PurposeUserData:     90 * 24 * time.Hour,
			keysDomain.PurposeSystemConfig: 180 * 24 * time.Hour,
			keysDomain.PurposePaymentInfo:  30 * 24 * time.Hour,
			keysDomain.PurposePersonalInfo: 90 * 24 * time.Hour,
			keysDomain.PurposeFileStorage:  365 * 24 * time.Hour,
		},
		RotationConcurrency: 4,
		DestroyGracePeriod:  30 * 24 * time.Hour,
	}
}

func newTestEnvWith(t *testing.T, keys *memKeyRepo, audits *memAuditRepo, kekChain *cryptoDomain.KekChain) *testEnv {
	t.Helper()

	backup, err := keysService.OpenBlobBackupStore(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backup.Close() })

	aeadManager := cryptoService.NewAEADManager()
	materials := keysService.NewMaterialProvider(cryptoService.NewKeyManager(aeadManager), kekChain)
	signer := keysService.NewAuditSigner()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	lifecycle := NewLifecycleUseCase(
		testLifecycleConfig(),
		&memTxManager{keys: keys, audits: audits},
		keys,
		audits,
		materials,
		keysService.NewCipherEngine(aeadManager),
		keysService.NewLocalLineageLocker(),
		backup,
		signer,
		kekChain,
		logger,
	).(*lifecycleUseCase)
	lifecycle.now = clock.Now

	insights := NewInsightsUseCase(keys, audits, signer, kekChain, logger).(*insightsUseCase)
	insights.now = clock.Now

	return &testEnv{
		lifecycle: lifecycle,
		insights:  insights,
		keys:      keys,
		audits:    audits,
		backup:    backup,
		kekChain:  kekChain,
		clock:     clock,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	chain := cryptoDomain.NewKekChain([]*cryptoDomain.Kek{newTestKek(t, 1)})
	return newTestEnvWith(t, newMemKeyRepo(), &memAuditRepo{}, chain)
}
