package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/argus-vms/argus-cloud/internal/edges"
)

// EdgeOfflineCronSpec runs the scan every five minutes.
const EdgeOfflineCronSpec = "*/5 * * * *"

// EdgeOfflineThreshold is how long an edge may stay silent before it
// is marked offline. Appliances heartbeat every minute.
const EdgeOfflineThreshold = 5 * time.Minute

// NewEdgeOfflineHandler builds the handler that flags edges whose last
// heartbeat is older than the threshold.
func NewEdgeOfflineHandler(svc *edges.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		count, err := svc.MarkStaleOffline(ctx, EdgeOfflineThreshold)
		if err != nil {
			if logger != nil {
				logger.Error("edge offline scan failed", slog.Any("error", err))
			}
			return err
		}
		if count > 0 && logger != nil {
			logger.Info("edge offline scan finished", slog.Int64("marked_offline", count))
		}
		return nil
	}
}
