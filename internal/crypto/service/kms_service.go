package service

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"

	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// kmsSchemes maps KMS_PROVIDER values to the gocloud URL scheme they accept.
// Short cloud names are accepted as aliases.
var kmsSchemes = map[string]string{
	"gcpkms":        "gcpkms",
	"google":        "gcpkms",
	"awskms":        "awskms",
	"aws":           "awskms",
	"azurekeyvault": "azurekeyvault",
	"azure":         "azurekeyvault",
	"hashivault":    "hashivault",
	"vault":         "hashivault",
	"localsecrets":  "base64key",
}

// CheckKMSKeyURI rejects a KMS_KEY_URI whose scheme does not belong to provider,
// so a master key is never sealed with a keeper the server will not open.
func CheckKMSKeyURI(provider, keyURI string) error {
	scheme, ok := kmsSchemes[provider]
	if !ok {
		return fmt.Errorf("unsupported KMS provider %q", provider)
	}
	if got, _, found := strings.Cut(keyURI, "://"); !found || got != scheme {
		return fmt.Errorf("KMS key URI for provider %q must start with %s://", provider, scheme)
	}
	return nil
}

type kmsService struct{}

// NewKMSService returns a KMSService backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}
