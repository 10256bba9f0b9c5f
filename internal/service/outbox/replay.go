// Package outbox re-sends confirmations the server never acknowledged.
package outbox

import (
	"context"
	"fmt"

	"github.com/oggyb/jobswipe/internal/app"
	"github.com/oggyb/jobswipe/internal/db"
	"github.com/oggyb/jobswipe/internal/models"
)

// Summary counts the result of one replay pass.
type Summary struct {
	Sent    int
	Failed  int
	Skipped int
}

func (s Summary) String() string {
	return fmt.Sprintf("sent=%d failed=%d skipped=%d", s.Sent, s.Failed, s.Skipped)
}

// Replay sends every pending action of the given kinds (all kinds when
// none are given) once. Sent actions are removed; failed ones stay with
// their attempt count bumped.
func Replay(ctx context.Context, appCtx *app.AppContext, kinds ...string) (Summary, error) {
	var sum Summary
	log := appCtx.Logger.With("subsystem", "outbox")

	pending, err := appCtx.Outbox.All(ctx, kinds...)
	if err != nil {
		return sum, err
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		known, sendErr := send(ctx, appCtx, p)
		switch {
		case !known:
			log.Warn("unknown outbox kind", "kind", p.Kind, "target", p.TargetID)
			sum.Skipped++
		case sendErr != nil:
			log.Warn("replay failed", "kind", p.Kind, "target", p.TargetID, "attempts", p.Attempts+1, "error", sendErr)
			if err := appCtx.Outbox.Record(ctx, p.Kind, p.TargetID, p.Direction, sendErr); err != nil {
				return sum, err
			}
			sum.Failed++
		default:
			if err := appCtx.Outbox.Delete(ctx, p.Kind, p.TargetID); err != nil {
				return sum, err
			}
			sum.Sent++
		}
	}

	if n, err := appCtx.Outbox.Count(ctx); err == nil {
		appCtx.Metrics.SetOutboxPending(n)
	}
	log.Info("outbox replayed", "sent", sum.Sent, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

func send(ctx context.Context, appCtx *app.AppContext, p db.PendingAction) (bool, error) {
	switch p.Kind {
	case db.KindSwipeJob:
		_, err := appCtx.API.SwipeJob(ctx, p.TargetID, models.SwipeDirection(p.Direction))
		return true, err
	case db.KindSwipeApplicant:
		_, err := appCtx.API.SwipeApplicant(ctx, p.TargetID, models.SwipeDirection(p.Direction))
		return true, err
	case db.KindNotificationRead:
		return true, appCtx.API.MarkNotificationRead(ctx, p.TargetID)
	case db.KindNotificationReadAll:
		return true, appCtx.API.MarkAllNotificationsRead(ctx)
	}
	return false, nil
}
