package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	apperrors "github.com/allisson/tenantkeys/internal/errors"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	keysService "github.com/allisson/tenantkeys/internal/keys/service"
)

const (
	maxMetricsDays       = 365
	defaultAuditPageSize = 50
	verifyPageSize       = 1000
)

type insightsUseCase struct {
	keyRepo   KeyRepository
	auditRepo AuditRepository
	signer    keysService.AuditSigner
	kekChain  *cryptoDomain.KekChain
	logger    *slog.Logger
	now       func() time.Time
}

// GetEncryptionMetrics aggregates the trailing window of days. It never writes.
func (i *insightsUseCase) GetEncryptionMetrics(
	ctx context.Context,
	siteID string,
	days int,
) (*keysDomain.EncryptionMetrics, error) {
	if siteID == "" {
		return nil, keysDomain.ErrSiteIDRequired
	}
	if days < 1 || days > maxMetricsDays {
		return nil, keysDomain.ErrInvalidWindow
	}

	now := i.now()
	since := now.Add(-time.Duration(days) * 24 * time.Hour)

	counts, err := i.auditRepo.CountBySiteSince(ctx, siteID, since)
	if err != nil {
		return nil, err
	}

	active, err := i.keyRepo.ListActive(ctx, siteID)
	if err != nil {
		return nil, err
	}

	schedule := make([]keysDomain.RotationScheduleEntry, 0, len(active))
	needing := make([]keysDomain.RotationScheduleEntry, 0)
	for _, key := range active {
		if key.RotationPolicy <= 0 {
			continue
		}
		entry := keysDomain.RotationScheduleEntry{
			KeyID:          key.ID,
			Purpose:        key.Purpose,
			Version:        key.Version,
			CreatedAt:      key.CreatedAt,
			NextRotationAt: key.RotationDueAt(),
			Overdue:        key.IsRotationDue(now),
		}
		schedule = append(schedule, entry)
		if entry.Overdue {
			needing = append(needing, entry)
		}
	}

	byDue := func(a, b keysDomain.RotationScheduleEntry) int {
		return a.NextRotationAt.Compare(b.NextRotationAt)
	}
	slices.SortFunc(schedule, byDue)
	slices.SortFunc(needing, byDue)

	return &keysDomain.EncryptionMetrics{
		SiteID:              siteID,
		Days:                days,
		Since:               since,
		OperationCounts:     counts,
		RotationSchedule:    schedule,
		KeysNeedingRotation: needing,
	}, nil
}

func (i *insightsUseCase) ListAuditRecords(
	ctx context.Context,
	filter keysDomain.AuditFilter,
) ([]*keysDomain.AuditRecord, error) {
	if filter.SiteID == "" {
		return nil, keysDomain.ErrSiteIDRequired
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditPageSize
	}
	return i.auditRepo.List(ctx, filter)
}

// VerifyAuditRecords checks the signature of every record in [from, to] across all sites.
func (i *insightsUseCase) VerifyAuditRecords(
	ctx context.Context,
	from, to *time.Time,
) (*AuditVerification, error) {
	result := &AuditVerification{}
	filter := keysDomain.AuditFilter{From: from, To: to, Limit: verifyPageSize}

	for {
		records, err := i.auditRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}

		for _, record := range records {
			result.Total++
			if !record.IsSigned() {
				result.Unsigned++
				continue
			}

			kek, ok := i.kekChain.Get(*record.KekID)
			if !ok {
				result.Invalid++
				result.InvalidIDs = append(result.InvalidIDs, record.ID)
				continue
			}

			if err := i.signer.Verify(kek.Key, record); err != nil {
				if !errors.Is(err, keysService.ErrSignatureInvalid) {
					return nil, err
				}
				i.logger.Warn("audit record signature mismatch",
					slog.String("audit_id", record.ID.String()),
					slog.String("site_id", record.SiteID),
				)
				result.Invalid++
				result.InvalidIDs = append(result.InvalidIDs, record.ID)
				continue
			}
			result.Valid++
		}

		if len(records) < filter.Limit {
			return result, nil
		}
		filter.Offset += len(records)
	}
}

// CleanAuditRecords deletes records older than days. With dryRun it only counts them.
func (i *insightsUseCase) CleanAuditRecords(ctx context.Context, days int, dryRun bool) (int64, error) {
	if days < 1 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "retention days must be positive")
	}

	cutoff := i.now().Add(-time.Duration(days) * 24 * time.Hour)
	count, err := i.auditRepo.DeleteOlderThan(ctx, cutoff, dryRun)
	if err != nil {
		return 0, err
	}

	i.logger.Info("audit records cleaned",
		slog.Int64("count", count),
		slog.Time("cutoff", cutoff),
		slog.Bool("dry_run", dryRun),
	)
	return count, nil
}

// NewInsightsUseCase creates an InsightsUseCase.
func NewInsightsUseCase(
	keyRepo KeyRepository,
	auditRepo AuditRepository,
	signer keysService.AuditSigner,
	kekChain *cryptoDomain.KekChain,
	logger *slog.Logger,
) InsightsUseCase {
	return &insightsUseCase{
		keyRepo:   keyRepo,
		auditRepo: auditRepo,
		signer:    signer,
		kekChain:  kekChain,
		logger:    logger,
		now:       utcNow,
	}
}
