package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	keysUseCase "github.com/allisson/tenantkeys/internal/keys/usecase"
)

// auditRange parses the verify-audit-logs window. end must be strictly after start.
func auditRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := parseDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := parseDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}

// RunVerifyAuditLogs checks the signature of every key audit record in
// [startDate, endDate] and fails when any record was tampered with.
func RunVerifyAuditLogs(
	ctx context.Context,
	insightsUseCase keysUseCase.InsightsUseCase,
	logger *slog.Logger,
	writer io.Writer,
	startDate, endDate string,
	format string,
) error {
	start, end, err := auditRange(startDate, endDate)
	if err != nil {
		return err
	}

	logger.Info("verifying audit logs", slog.Time("start_date", start), slog.Time("end_date", end))

	report, err := insightsUseCase.VerifyAuditRecords(ctx, &start, &end)
	if err != nil {
		return fmt.Errorf("failed to verify audit logs: %w", err)
	}

	if format == "json" {
		err = writeJSON(writer, map[string]any{
			"total_checked":  report.Total,
			"valid_count":    report.Valid,
			"unsigned_count": report.Unsigned,
			"invalid_count":  report.Invalid,
			"invalid_logs":   report.InvalidIDs,
			"passed":         report.Invalid == 0,
		})
		if err != nil {
			return err
		}
	} else {
		writeVerification(writer, report, start, end)
	}

	logger.Info("audit verification finished",
		slog.Int("total_checked", report.Total),
		slog.Int("invalid", report.Invalid),
		slog.Int("unsigned", report.Unsigned),
	)

	if report.Invalid > 0 {
		return fmt.Errorf("integrity check failed: %d invalid signature(s)", report.Invalid)
	}
	return nil
}

func writeVerification(w io.Writer, report *keysUseCase.AuditVerification, start, end time.Time) {
	_, _ = fmt.Fprintf(w, "Key audit verification %s .. %s\n",
		start.Format(time.DateTime), end.Format(time.DateTime))
	_, _ = fmt.Fprintf(w, "  checked:  %d\n  valid:    %d\n  unsigned: %d\n  invalid:  %d\n",
		report.Total, report.Valid, report.Unsigned, report.Invalid)

	if report.Total == 0 {
		_, _ = fmt.Fprintln(w, "No audit records in range")
		return
	}
	if report.Invalid == 0 {
		_, _ = fmt.Fprintln(w, "Result: PASSED")
		return
	}
	_, _ = fmt.Fprintln(w, "Tampered records:")
	for _, id := range report.InvalidIDs {
		_, _ = fmt.Fprintf(w, "  - %s\n", id)
	}
	_, _ = fmt.Fprintln(w, "Result: FAILED")
}

// RunCleanAuditLogs removes key audit records older than days. With dryRun the
// matching records are only counted.
func RunCleanAuditLogs(
	ctx context.Context,
	insightsUseCase keysUseCase.InsightsUseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days <= 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}

	count, err := insightsUseCase.CleanAuditRecords(ctx, days, dryRun)
	if err != nil {
		return fmt.Errorf("failed to delete audit logs: %w", err)
	}

	logger.Info("audit cleanup finished",
		slog.Int64("count", count),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{"count": count, "days": days, "dry_run": dryRun})
	}

	verb := "Deleted"
	if dryRun {
		verb = "Would delete"
	}
	_, _ = fmt.Fprintf(writer, "%s %d audit record(s) older than %d day(s)\n", verb, count, days)
	return nil
}
