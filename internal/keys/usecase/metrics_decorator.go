package usecase

import (
	"context"
	"time"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	"github.com/allisson/tenantkeys/internal/metrics"
)

const metricsDomain = "keys"

func observe(ctx context.Context, m metrics.BusinessMetrics, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.RecordOperation(ctx, metricsDomain, operation, status)
	m.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// lifecycleUseCaseWithMetrics decorates LifecycleUseCase with metrics instrumentation.
type lifecycleUseCaseWithMetrics struct {
	next    LifecycleUseCase
	metrics metrics.BusinessMetrics
}

// NewLifecycleUseCaseWithMetrics wraps a LifecycleUseCase with metrics recording.
func NewLifecycleUseCaseWithMetrics(useCase LifecycleUseCase, m metrics.BusinessMetrics) LifecycleUseCase {
	return &lifecycleUseCaseWithMetrics{next: useCase, metrics: m}
}

func (l *lifecycleUseCaseWithMetrics) ResolveActiveKey(
	ctx context.Context,
	siteID string,
	purpose keysDomain.Purpose,
) (*keysDomain.EncryptionKey, error) {
	start := time.Now()
	key, err := l.next.ResolveActiveKey(ctx, siteID, purpose)
	observe(ctx, l.metrics, "key_resolve", start, err)
	return key, err
}

func (l *lifecycleUseCaseWithMetrics) Encrypt(ctx context.Context, input EncryptInput) (*EncryptOutput, error) {
	start := time.Now()
	output, err := l.next.Encrypt(ctx, input)
	observe(ctx, l.metrics, "encrypt", start, err)
	return output, err
}

func (l *lifecycleUseCaseWithMetrics) Decrypt(ctx context.Context, input DecryptInput) (*DecryptOutput, error) {
	start := time.Now()
	output, err := l.next.Decrypt(ctx, input)
	observe(ctx, l.metrics, "decrypt", start, err)
	return output, err
}

func (l *lifecycleUseCaseWithMetrics) Rotate(ctx context.Context, input RotateInput) (*RotateOutput, error) {
	start := time.Now()
	output, err := l.next.Rotate(ctx, input)
	observe(ctx, l.metrics, "key_rotate", start, err)
	if err == nil && output.Rotated {
		l.metrics.RecordKeyTransitions(ctx, string(keysDomain.StatusRetired), 1)
	}
	return output, err
}

func (l *lifecycleUseCaseWithMetrics) ProcessAutomaticRotations(
	ctx context.Context,
	siteID string,
) (*keysDomain.RotationReport, error) {
	start := time.Now()
	report, err := l.next.ProcessAutomaticRotations(ctx, siteID)
	observe(ctx, l.metrics, "automatic_rotation", start, err)
	if err == nil {
		l.metrics.RecordKeyTransitions(ctx, string(keysDomain.StatusRetired), len(report.RotatedKeys))
	}
	return report, err
}

func (l *lifecycleUseCaseWithMetrics) Destroy(ctx context.Context, input DestroyInput) (*keysDomain.EncryptionKey, error) {
	start := time.Now()
	key, err := l.next.Destroy(ctx, input)
	observe(ctx, l.metrics, "key_destroy", start, err)
	if err == nil {
		l.metrics.RecordKeyTransitions(ctx, string(keysDomain.StatusDestroyed), 1)
	}
	return key, err
}

func (l *lifecycleUseCaseWithMetrics) ListKeys(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error) {
	start := time.Now()
	keys, err := l.next.ListKeys(ctx, siteID)
	observe(ctx, l.metrics, "key_list", start, err)
	return keys, err
}

func (l *lifecycleUseCaseWithMetrics) RewrapKeys(ctx context.Context, batchSize int) (int, error) {
	start := time.Now()
	count, err := l.next.RewrapKeys(ctx, batchSize)
	observe(ctx, l.metrics, "key_rewrap", start, err)
	return count, err
}

// insightsUseCaseWithMetrics decorates InsightsUseCase with metrics instrumentation.
type insightsUseCaseWithMetrics struct {
	next    InsightsUseCase
	metrics metrics.BusinessMetrics
}

// NewInsightsUseCaseWithMetrics wraps an InsightsUseCase with metrics recording.
func NewInsightsUseCaseWithMetrics(useCase InsightsUseCase, m metrics.BusinessMetrics) InsightsUseCase {
	return &insightsUseCaseWithMetrics{next: useCase, metrics: m}
}

func (i *insightsUseCaseWithMetrics) GetEncryptionMetrics(
	ctx context.Context,
	siteID string,
	days int,
) (*keysDomain.EncryptionMetrics, error) {
	start := time.Now()
	result, err := i.next.GetEncryptionMetrics(ctx, siteID, days)
	observe(ctx, i.metrics, "metrics_get", start, err)
	return result, err
}

func (i *insightsUseCaseWithMetrics) ListAuditRecords(
	ctx context.Context,
	filter keysDomain.AuditFilter,
) ([]*keysDomain.AuditRecord, error) {
	start := time.Now()
	records, err := i.next.ListAuditRecords(ctx, filter)
	observe(ctx, i.metrics, "audit_list", start, err)
	return records, err
}

func (i *insightsUseCaseWithMetrics) VerifyAuditRecords(
	ctx context.Context,
	from, to *time.Time,
) (*AuditVerification, error) {
	start := time.Now()
	result, err := i.next.VerifyAuditRecords(ctx, from, to)
	observe(ctx, i.metrics, "audit_verify", start, err)
	return result, err
}

func (i *insightsUseCaseWithMetrics) CleanAuditRecords(ctx context.Context, days int, dryRun bool) (int64, error) {
	start := time.Now()
	count, err := i.next.CleanAuditRecords(ctx, days, dryRun)
	observe(ctx, i.metrics, "audit_clean", start, err)
	return count, err
}
