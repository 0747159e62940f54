package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input   string
		want    Algorithm
		wantErr error
	}{
		{input: "aes-gcm", want: AESGCM},
		{input: "chacha20-poly1305", want: ChaCha20},
		{input: "AES-GCM", wantErr: ErrUnsupportedAlgorithm},
		{input: "", wantErr: ErrUnsupportedAlgorithm},
		{input: "des", wantErr: ErrUnsupportedAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			alg, err := ParseAlgorithm(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, alg)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, alg)
			assert.Equal(t, tt.input, alg.String())
		})
	}
}
