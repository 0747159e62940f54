package commands

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("2026-03-01 10:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), got)

	_, err = parseDate("03/01/2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected YYYY-MM-DD")
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := parseAlgorithm("chacha20-poly1305")
	require.NoError(t, err)
	assert.Equal(t, cryptoDomain.ChaCha20, alg)

	_, err = parseAlgorithm("rot13")
	assert.EqualError(t, err, `invalid algorithm "rot13" (valid options: aes-gcm, chacha20-poly1305)`)
}

func TestWriteJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeJSON(&out, map[string]int{"count": 2}))
	assert.Equal(t, "{\n  \"count\": 2\n}\n", out.String())
}
