package services

import (
	"context"
	"time"

	"funnel-backend/application/ports"
	"funnel-backend/domain/core/aggregates"
	pkgerrors "funnel-backend/pkg/errors"

	"go.uber.org/zap"
)

const todoCountTimeout = 3 * time.Second

// QuotaGuard enforces the free-tier item ceiling before any creation
// mutates the store. The counted total spans every billable item the
// user owns: canvas nodes, canvas memos and todos living in a separate
// product surface, which is why the external count comes through a
// port. The check is synchronous; a rejected add leaves no trace.
type QuotaGuard struct {
	counter ports.TodoCounter
	limit   func() int
	logger  *zap.Logger
}

// NewQuotaGuard creates a guard. The limit is read through a function
// so a config reload takes effect without rebuilding the session.
func NewQuotaGuard(counter ports.TodoCounter, limit func() int, logger *zap.Logger) *QuotaGuard {
	return &QuotaGuard{
		counter: counter,
		limit:   limit,
		logger:  logger,
	}
}

// EnsureCanAdd rejects the creation when the user's combined item
// count plus the items about to be added would exceed the limit. The
// external todo count is fetched live; if the lookup fails the guard
// fails open with the canvas-local count only, since blocking edits on
// a counting outage is worse than briefly overshooting the tier.
func (g *QuotaGuard) EnsureCanAdd(ctx context.Context, canvas *aggregates.Canvas, adding int) error {
	limit := g.limit()
	if limit <= 0 {
		return nil
	}

	external := 0
	countCtx, cancel := context.WithTimeout(ctx, todoCountTimeout)
	defer cancel()
	n, err := g.counter.Count(countCtx, canvas.UserID())
	if err != nil {
		g.logger.Warn("Todo count unavailable, quota check uses canvas items only",
			zap.String("userID", canvas.UserID()),
			zap.Error(err),
		)
	} else {
		external = n
	}

	current := canvas.ItemCount() + external
	if current+adding > limit {
		return pkgerrors.NewQuotaExceededError(current, limit)
	}
	return nil
}
