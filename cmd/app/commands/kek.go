package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/tenantkeys/internal/crypto/usecase"
)

type kekChange func(context.Context, *cryptoDomain.MasterKeyChain, cryptoDomain.Algorithm) error

// runKekChange parses the algorithm, applies change and reports the master key
// that sealed the new KEK.
func runKekChange(
	ctx context.Context,
	change kekChange,
	action string,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	logger *slog.Logger,
	writer io.Writer,
	algorithmStr string,
) error {
	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}

	if err := change(ctx, masterKeyChain, algorithm); err != nil {
		return fmt.Errorf("failed to %s KEK: %w", action, err)
	}

	masterKeyID := masterKeyChain.ActiveMasterKeyID()
	_, _ = fmt.Fprintf(writer, "KEK %sd (%s), sealed by master key %s\n", action, algorithm, masterKeyID)
	logger.Info("kek "+action+"d",
		slog.String("algorithm", string(algorithm)),
		slog.String("master_key_id", masterKeyID),
	)
	return nil
}

// RunCreateKek creates the first KEK. Tenant keys cannot be issued before it
// exists. Needs a migrated database plus MASTER_KEYS and ACTIVE_MASTER_KEY_ID.
func RunCreateKek(
	ctx context.Context,
	kekUseCase cryptoUseCase.KekUseCase,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	logger *slog.Logger,
	writer io.Writer,
	algorithmStr string,
) error {
	return runKekChange(ctx, kekUseCase.Create, "create", masterKeyChain, logger, writer, algorithmStr)
}

// RunRotateKek adds a KEK version. Tenant keys wrapped by older KEKs stay
// readable until rewrap-keys moves them; running servers pick the new KEK up
// on restart.
func RunRotateKek(
	ctx context.Context,
	kekUseCase cryptoUseCase.KekUseCase,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	logger *slog.Logger,
	writer io.Writer,
	algorithmStr string,
) error {
	return runKekChange(ctx, kekUseCase.Rotate, "rotate", masterKeyChain, logger, writer, algorithmStr)
}

// RunRewrapKeks re-seals every KEK with the active master key so retired master
// keys can be dropped from MASTER_KEYS.
func RunRewrapKeks(
	ctx context.Context,
	kekUseCase cryptoUseCase.KekUseCase,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	logger *slog.Logger,
	writer io.Writer,
) error {
	count, err := kekUseCase.RewrapWithActiveMasterKey(ctx, masterKeyChain)
	if err != nil {
		return fmt.Errorf("failed to rewrap KEKs: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Rewrapped %d KEK(s) with master key %s\n", count, masterKeyChain.ActiveMasterKeyID())
	logger.Info("keks rewrapped",
		slog.Int("count", count),
		slog.String("master_key_id", masterKeyChain.ActiveMasterKeyID()),
	)
	return nil
}
