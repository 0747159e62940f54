package service

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	cryptoService "github.com/allisson/tenantkeys/internal/crypto/service"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// newTestKekChain returns a chain whose first KEK is active.
func newTestKekChain(t *testing.T, count int) *cryptoDomain.KekChain {
	t.Helper()

	keks := make([]*cryptoDomain.Kek, 0, count)
	for i := count; i > 0; i-- {
		keks = append(keks, &cryptoDomain.Kek{
			ID:        uuid.Must(uuid.NewV7()),
			Algorithm: cryptoDomain.AESGCM,
			Key:       randomBytes(t, cryptoDomain.KeySize),
			Version:   uint(i),
			CreatedAt: time.Now().UTC(),
		})
	}
	return cryptoDomain.NewKekChain(keks)
}

func newTestMaterialProvider(t *testing.T, chain *cryptoDomain.KekChain) *MaterialProvider {
	t.Helper()
	return NewMaterialProvider(cryptoService.NewKeyManager(cryptoService.NewAEADManager()), chain)
}
