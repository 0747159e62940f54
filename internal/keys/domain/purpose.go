package domain

import "fmt"

// Purpose identifies what a key protects. Each (site, purpose) pair owns its own lineage.
type Purpose string

const (
	PurposeUserData     Purpose = "USER_DATA"
	PurposeSystemConfig Purpose = "SYSTEM_CONFIG"
	PurposePaymentInfo  Purpose = "PAYMENT_INFO"
	PurposePersonalInfo Purpose = "PERSONAL_INFO"
	PurposeFileStorage  Purpose = "FILE_STORAGE"
)

// Purposes returns every purpose in declaration order.
func Purposes() []Purpose {
	return []Purpose{
		PurposeUserData,
		PurposeSystemConfig,
		PurposePaymentInfo,
		PurposePersonalInfo,
		PurposeFileStorage,
	}
}

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeUserData, PurposeSystemConfig, PurposePaymentInfo, PurposePersonalInfo, PurposeFileStorage:
		return true
	default:
		return false
	}
}

func (p Purpose) String() string {
	return string(p)
}

// ParsePurpose converts s into a Purpose. Matching is exact.
func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, s)
	}
	return p, nil
}

// Lineage is the unit of contention: all keys ever issued for one site and purpose.
type Lineage struct {
	SiteID  string
	Purpose Purpose
}

func (l Lineage) String() string {
	return l.SiteID + "/" + string(l.Purpose)
}
