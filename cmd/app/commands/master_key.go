package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	cryptoService "github.com/allisson/tenantkeys/internal/crypto/service"
)

var errKMSParamsRequired = errors.New(
	"--kms-provider and --kms-key-uri are required\n\n" +
		"Local development:\n" +
		"  --kms-provider=localsecrets --kms-key-uri=\"base64key://<32-byte-base64-key>\"\n\n" +
		"Production:\n" +
		"  --kms-provider=gcpkms --kms-key-uri=\"gcpkms://projects/.../cryptoKeys/...\"\n" +
		"  --kms-provider=awskms --kms-key-uri=\"awskms:///alias/...\"\n" +
		"  --kms-provider=azurekeyvault --kms-key-uri=\"azurekeyvault://...\"\n" +
		"  --kms-provider=hashivault --kms-key-uri=\"hashivault://...\"",
)

// masterKeyEnv is the configuration printed for the operator to install.
type masterKeyEnv struct {
	kmsProvider string
	kmsKeyURI   string
	masterKeys  string
	activeID    string
}

func (e masterKeyEnv) write(writer io.Writer, title string) {
	_, _ = fmt.Fprintf(writer, "# %s\n", title)
	_, _ = fmt.Fprintln(writer, "# Store these in your secrets manager; the key below is KMS ciphertext")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "KMS_PROVIDER=%q\n", e.kmsProvider)
	_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=%q\n", e.kmsKeyURI)
	_, _ = fmt.Fprintf(writer, "MASTER_KEYS=%q\n", e.masterKeys)
	_, _ = fmt.Fprintf(writer, "ACTIVE_MASTER_KEY_ID=%q\n", e.activeID)
}

func defaultMasterKeyID(keyID string) string {
	if keyID != "" {
		return keyID
	}
	return fmt.Sprintf("master-key-%s", time.Now().Format("2006-01-02"))
}

func checkKMSParams(kmsProvider, kmsKeyURI string) error {
	if kmsProvider == "" || kmsKeyURI == "" {
		return errKMSParamsRequired
	}
	return cryptoService.CheckKMSKeyURI(kmsProvider, kmsKeyURI)
}

// sealNewMasterKey generates a master key and returns it encrypted by the KMS
// keeper, base64 encoded. The plaintext is wiped before returning.
func sealNewMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	writer io.Writer,
	kmsKeyURI string,
) (string, error) {
	masterKey := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(masterKey); err != nil {
		return "", fmt.Errorf("failed to generate master key: %w", err)
	}
	defer cryptoDomain.Zero(masterKey)

	keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return "", fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(writer, "Warning: failed to close KMS keeper: %v\n", closeErr)
		}
	}()

	ciphertext, err := keeper.Encrypt(ctx, masterKey)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt master key with KMS: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// RunCreateMasterKey generates the root key that seals every KEK and prints the
// environment for a fresh deployment. Never use localsecrets in production.
func RunCreateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID, kmsProvider, kmsKeyURI string,
) error {
	if err := checkKMSParams(kmsProvider, kmsKeyURI); err != nil {
		return err
	}
	keyID = defaultMasterKeyID(keyID)

	encodedKey, err := sealNewMasterKey(ctx, kmsService, writer, kmsKeyURI)
	if err != nil {
		return err
	}

	masterKeyEnv{
		kmsProvider: kmsProvider,
		kmsKeyURI:   kmsKeyURI,
		masterKeys:  keyID + ":" + encodedKey,
		activeID:    keyID,
	}.write(writer, "Master key created")

	logger.Info("master key created", slog.String("master_key_id", keyID))
	return nil
}

// masterKeyIDs returns the ids listed in a MASTER_KEYS value.
func masterKeyIDs(masterKeys string) []string {
	var ids []string
	for entry := range strings.SplitSeq(masterKeys, ",") {
		if id, _, ok := strings.Cut(strings.TrimSpace(entry), ":"); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// RunRotateMasterKey appends a new master key to MASTER_KEYS and makes it
// active. Existing KEKs stay readable through the old entries until
// rewrap-keks re-seals them.
func RunRotateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID, kmsProvider, kmsKeyURI, existingMasterKeys, existingActiveKeyID string,
) error {
	if err := checkKMSParams(kmsProvider, kmsKeyURI); err != nil {
		return err
	}
	if existingMasterKeys == "" {
		return errors.New("MASTER_KEYS is not set, nothing to rotate")
	}
	if existingActiveKeyID == "" {
		return errors.New("ACTIVE_MASTER_KEY_ID is not set")
	}

	keyID = defaultMasterKeyID(keyID)
	for _, id := range masterKeyIDs(existingMasterKeys) {
		if id == keyID {
			return fmt.Errorf("master key id %q already exists in MASTER_KEYS", keyID)
		}
	}

	encodedKey, err := sealNewMasterKey(ctx, kmsService, writer, kmsKeyURI)
	if err != nil {
		return err
	}

	masterKeyEnv{
		kmsProvider: kmsProvider,
		kmsKeyURI:   kmsKeyURI,
		masterKeys:  fmt.Sprintf("%s,%s:%s", existingMasterKeys, keyID, encodedKey),
		activeID:    keyID,
	}.write(writer, "Master key rotated")

	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, "# Next steps:")
	_, _ = fmt.Fprintln(writer, "#   1. install the variables above and restart")
	_, _ = fmt.Fprintln(writer, "#   2. app rewrap-keks")
	_, _ = fmt.Fprintf(writer, "#   3. drop %q from MASTER_KEYS and restart again\n", existingActiveKeyID)

	logger.Info("master key rotated",
		slog.String("previous_master_key_id", existingActiveKeyID),
		slog.String("master_key_id", keyID),
	)
	return nil
}
