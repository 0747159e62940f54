// Package commands implements the CLI subcommands. Each Run function takes its
// collaborators and an output writer so it can be tested without a container.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/allisson/tenantkeys/internal/app"
	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
)

// dateLayouts accepted by --start-date and --end-date, most specific first.
var dateLayouts = []string{time.DateTime, time.DateOnly}

func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

func parseAlgorithm(s string) (cryptoDomain.Algorithm, error) {
	algorithm, err := cryptoDomain.ParseAlgorithm(s)
	if err != nil {
		return "", fmt.Errorf("invalid algorithm %q (valid options: %s, %s)", s, cryptoDomain.AESGCM, cryptoDomain.ChaCha20)
	}
	return algorithm, nil
}

// parseDate reads a UTC date or date-time.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)", s)
}

func writeJSON(writer io.Writer, v any) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
