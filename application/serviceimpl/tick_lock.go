package serviceimpl

import (
	"context"
	"time"

	"vidstream/domain/ports"
	"vidstream/pkg/logger"
)

// runExclusive runs fn under the named lease. It reports false without
// calling fn when another process holds the lease. A lock backend error is
// logged and fn runs anyway: every scheduled task here is safe to repeat.
func runExclusive(ctx context.Context, locker ports.LockerPort, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	if locker == nil {
		return true, fn(ctx)
	}

	release, acquired, err := locker.TryLock(ctx, name, ttl)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "Tick lock unavailable, running unlocked", "task", name, "error", err)
		return true, fn(ctx)
	case !acquired:
		logger.DebugContext(ctx, "Tick skipped, lease held elsewhere", "task", name)
		return false, nil
	}
	defer release()

	return true, fn(ctx)
}
