package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/argus-vms/argus-cloud/internal/license"
)

// LicenseSweepCronSpec runs the sweep daily, shortly after midnight
// UTC, matching the billing day boundary.
const LicenseSweepCronSpec = "0 2 * * *"

// NewLicenseSweepHandler builds the handler that expires overdue
// licenses. The sweep is idempotent, so redelivery is harmless.
func NewLicenseSweepHandler(svc *license.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		count, err := svc.SweepExpired(ctx)
		if err != nil {
			if logger != nil {
				logger.Error("license expire sweep failed", slog.Any("error", err))
			}
			return err
		}
		if logger != nil {
			logger.Info("license expire sweep finished", slog.Int("expired", count))
		}
		return nil
	}
}
