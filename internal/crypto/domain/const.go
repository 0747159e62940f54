package domain

// Algorithm represents the AEAD used to seal key material and tenant data.
//
// Both algorithms use 256-bit keys, 96-bit nonces and 128-bit authentication tags:
//   - AESGCM is preferred on CPUs with AES-NI
//   - ChaCha20 is preferred on hardware without AES acceleration
type Algorithm string

const (
	// AESGCM represents AES-256-GCM.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents ChaCha20-Poly1305.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// KeySize is the size in bytes of every key handled by this package.
const KeySize = 32

// ParseAlgorithm validates the textual algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AESGCM, ChaCha20:
		return Algorithm(s), nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	return string(a)
}
