package sessions

import (
	"context"
	"log/slog"
	"time"

	"reelhouse/services/scheduler"
)

// JanitorTaskID identifies the expired-session sweep in the scheduler.
const JanitorTaskID = "sessions.purge-expired"

// JanitorTask returns a scheduler task that periodically deletes expired
// sessions. Resolve already rejects expired rows, so the sweep only reclaims
// space.
func JanitorTask(svc *Service, interval time.Duration) scheduler.Task {
	return scheduler.Task{
		ID:       JanitorTaskID,
		Name:     "Purge expired sessions",
		Interval: interval,
		Run: func(ctx context.Context) (int64, error) {
			removed, err := svc.PurgeExpired(ctx)
			if err == nil && removed > 0 {
				slog.Info("purged expired sessions", "component", "sessions", "removed", removed)
			}
			return removed, err
		},
	}
}
