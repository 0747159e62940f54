package domain

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// xorKeeper is a reversible KMSKeeper for tests.
type xorKeeper struct {
	decryptErr error
}

func (x *xorKeeper) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[i] = b ^ 0x5a
	}
	return out, nil
}

func (x *xorKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if x.decryptErr != nil {
		return nil, x.decryptErr
	}
	return x.Encrypt(ctx, ciphertext)
}

func (x *xorKeeper) Close() error { return nil }

func TestMasterKeyChain(t *testing.T) {
	t.Run("Success_GetAndActive", func(t *testing.T) {
		mk := &MasterKey{ID: "key1", Key: bytes.Repeat([]byte{1}, KeySize)}
		mkc := NewMasterKeyChain("key1", mk)

		assert.Equal(t, "key1", mkc.ActiveMasterKeyID())
		got, ok := mkc.Get("key1")
		assert.True(t, ok)
		assert.Equal(t, mk, got)

		got, ok = mkc.Get("missing")
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("Success_CloseZeroesKeys", func(t *testing.T) {
		mk := &MasterKey{ID: "key1", Key: bytes.Repeat([]byte{7}, KeySize)}
		mkc := NewMasterKeyChain("key1", mk)

		mkc.Close()

		assert.Empty(t, mkc.ActiveMasterKeyID())
		_, ok := mkc.Get("key1")
		assert.False(t, ok)
		assert.Equal(t, make([]byte, KeySize), mk.Key)
	})
}

func TestLoadMasterKeyChain(t *testing.T) {
	ctx := context.Background()
	key1 := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, KeySize))
	key2 := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{2}, KeySize))

	tests := []struct {
		name     string
		raw      string
		active   string
		wantErr  error
		validate func(t *testing.T, mkc *MasterKeyChain)
	}{
		{
			name:   "valid single key",
			raw:    "key1:" + key1,
			active: "key1",
			validate: func(t *testing.T, mkc *MasterKeyChain) {
				mk, ok := mkc.Get("key1")
				require.True(t, ok)
				assert.Equal(t, bytes.Repeat([]byte{1}, KeySize), mk.Key)
			},
		},
		{
			name:   "valid multiple keys with whitespace",
			raw:    " key1:" + key1 + " , key2:" + key2 + " ",
			active: "key2",
			validate: func(t *testing.T, mkc *MasterKeyChain) {
				assert.Equal(t, "key2", mkc.ActiveMasterKeyID())
				_, ok1 := mkc.Get("key1")
				_, ok2 := mkc.Get("key2")
				assert.True(t, ok1)
				assert.True(t, ok2)
			},
		},
		{name: "empty keys", raw: "", active: "key1", wantErr: ErrMasterKeysNotSet},
		{name: "empty active id", raw: "key1:" + key1, active: "", wantErr: ErrActiveMasterKeyIDNotSet},
		{name: "missing colon", raw: "key1" + key1, active: "key1", wantErr: ErrInvalidMasterKeysFormat},
		{name: "empty key id", raw: ":" + key1, active: "key1", wantErr: ErrInvalidMasterKeysFormat},
		{name: "invalid base64", raw: "key1:not-base64!!!", active: "key1", wantErr: ErrInvalidMasterKeyBase64},
		{
			name:    "key too short",
			raw:     "key1:" + base64.StdEncoding.EncodeToString(make([]byte, 16)),
			active:  "key1",
			wantErr: ErrInvalidKeySize,
		},
		{name: "active key not loaded", raw: "key1:" + key1, active: "key2", wantErr: ErrActiveMasterKeyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mkc, err := LoadMasterKeyChain(ctx, tt.raw, tt.active, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, mkc)
				return
			}
			require.NoError(t, err)
			tt.validate(t, mkc)
			mkc.Close()
		})
	}
}

func TestLoadMasterKeyChain_WithKMS(t *testing.T) {
	ctx := context.Background()
	keeper := &xorKeeper{}
	plain := bytes.Repeat([]byte{9}, KeySize)

	sealed, err := keeper.Encrypt(ctx, plain)
	require.NoError(t, err)
	raw := "kms1:" + base64.StdEncoding.EncodeToString(sealed)

	t.Run("Success_DecryptsWithKeeper", func(t *testing.T) {
		mkc, err := LoadMasterKeyChain(ctx, raw, "kms1", keeper)
		require.NoError(t, err)
		defer mkc.Close()

		mk, ok := mkc.Get("kms1")
		require.True(t, ok)
		assert.Equal(t, plain, mk.Key)
	})

	t.Run("Error_KeeperFails", func(t *testing.T) {
		mkc, err := LoadMasterKeyChain(ctx, raw, "kms1", &xorKeeper{decryptErr: assert.AnError})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Nil(t, mkc)
	})
}
