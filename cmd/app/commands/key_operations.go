package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	keysUseCase "github.com/allisson/tenantkeys/internal/keys/usecase"
)

// RunRewrapKeys moves tenant key material still wrapped by an older KEK onto
// the active KEK, batchSize keys per transaction. Key versions, statuses and
// ciphertexts are untouched.
func RunRewrapKeys(
	ctx context.Context,
	lifecycleUseCase keysUseCase.LifecycleUseCase,
	logger *slog.Logger,
	writer io.Writer,
	batchSize int,
) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	logger.Info("starting key rewrap", slog.Int("batch_size", batchSize))

	count, err := lifecycleUseCase.RewrapKeys(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to rewrap keys: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Rewrapped %d key(s) with the active KEK\n", count)
	logger.Info("key rewrap completed", slog.Int("total_rewrapped", count))
	return nil
}

// RunProcessRotations rotates every due ACTIVE key of siteID, or of every site
// when siteID is empty. Per-key failures are printed and make the command fail
// after the whole batch has been attempted.
func RunProcessRotations(
	ctx context.Context,
	lifecycleUseCase keysUseCase.LifecycleUseCase,
	logger *slog.Logger,
	writer io.Writer,
	siteID string,
	format string,
) error {
	logger.Info("processing automatic rotations", slog.String("site_id", siteID))

	report, err := lifecycleUseCase.ProcessAutomaticRotations(ctx, siteID)
	if err != nil {
		return fmt.Errorf("failed to process automatic rotations: %w", err)
	}

	if format == "json" {
		errs := make([]map[string]string, 0, len(report.Errors))
		for _, e := range report.Errors {
			errs = append(errs, map[string]string{"key_id": e.KeyID.String(), "reason": e.Reason})
		}
		rotated := report.RotatedKeys
		if rotated == nil {
			rotated = []uuid.UUID{}
		}
		if err := writeJSON(writer, map[string]any{
			"rotated_keys": rotated,
			"errors":       errs,
		}); err != nil {
			return err
		}
	} else {
		outputRotationText(writer, report)
	}

	logger.Info("automatic rotations processed",
		slog.Int("rotated", len(report.RotatedKeys)),
		slog.Int("failed", len(report.Errors)),
	)

	if len(report.Errors) > 0 {
		return fmt.Errorf("%d key(s) failed to rotate", len(report.Errors))
	}
	return nil
}

func outputRotationText(writer io.Writer, report *keysDomain.RotationReport) {
	_, _ = fmt.Fprintf(writer, "Rotated: %d\n", len(report.RotatedKeys))
	for _, id := range report.RotatedKeys {
		_, _ = fmt.Fprintf(writer, "  - %s\n", id)
	}
	_, _ = fmt.Fprintf(writer, "Failed:  %d\n", len(report.Errors))
	for _, e := range report.Errors {
		_, _ = fmt.Fprintf(writer, "  - %s: %s\n", e.KeyID, e.Reason)
	}
}

// RunDestroyKey erases the material of a RETIRED key whose grace period has
// elapsed. Ciphertexts produced with the key become permanently unreadable.
func RunDestroyKey(
	ctx context.Context,
	lifecycleUseCase keysUseCase.LifecycleUseCase,
	logger *slog.Logger,
	writer io.Writer,
	siteID, keyIDStr, principalID string,
) error {
	keyID, err := uuid.Parse(keyIDStr)
	if err != nil {
		return fmt.Errorf("invalid key-id: %w", err)
	}
	if siteID == "" {
		return fmt.Errorf("site is required")
	}

	key, err := lifecycleUseCase.Destroy(ctx, keysUseCase.DestroyInput{
		SiteID:      siteID,
		PrincipalID: principalID,
		KeyID:       keyID,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy key: %w", err)
	}

	destroyedAt := ""
	if key.DestroyedAt != nil {
		destroyedAt = key.DestroyedAt.Format(time.RFC3339)
	}
	_, _ = fmt.Fprintf(writer, "Destroyed key %s (%s v%d) at %s\n", key.ID, key.Purpose, key.Version, destroyedAt)

	logger.Warn("key destroyed",
		slog.String("site_id", siteID),
		slog.String("key_id", key.ID.String()),
		slog.String("principal_id", principalID),
	)
	return nil
}
