package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/jobswipe/internal/db"
	"github.com/oggyb/jobswipe/internal/utils/pagination"
)

// OutboxRepository stores confirmations that failed and wait for a retry.
type OutboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new repository bound to the given DB connection.
func NewOutboxRepository(database *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: database}
}

// Record inserts or refreshes a pending action.
//
// Behavior:
//   - If (kind, target_id) exists → attempts is incremented, direction and
//     last_error are overwritten.
//   - If it doesn’t exist → a new row is inserted with attempts = 1.
//
// Example:
//
//	repo.Record(ctx, db.KindSwipeJob, 42, "RIGHT", err) // swipe on job 42 not confirmed
func (r *OutboxRepository) Record(
	ctx context.Context,
	kind string,
	targetID int64,
	direction string,
	cause error,
) error {
	lastError := ""
	if cause != nil {
		lastError = truncate(cause.Error(), 512)
	}
	action := db.PendingAction{
		Kind:      kind,
		TargetID:  targetID,
		Direction: direction,
		Attempts:  1,
		LastError: lastError,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "kind"}, {Name: "target_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"attempts":   gorm.Expr("pending_actions.attempts + 1"),
				"direction":  direction,
				"last_error": lastError,
				"updated_at": r.db.NowFunc(),
			}),
		}).
		Create(&action).Error
}

// List returns pending actions of the given kinds (all kinds when empty).
//
// Behavior:
//   - Ordered by updated_at DESC, target_id DESC.
//   - Supports cursor-based pagination via paginationToken.
func (r *OutboxRepository) List(
	ctx context.Context,
	kinds []string,
	paginationToken *string,
	limit int,
) ([]db.PendingAction, *string, error) {
	var actions []db.PendingAction

	// decode cursor if provided
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.PendingAction{}).
		Order("updated_at DESC, kind DESC, target_id DESC").
		Limit(limit + 1)
	if len(kinds) > 0 {
		query = query.Where("kind IN ?", kinds)
	}

	// apply cursor
	if !cursor.IsZero() {
		ts := cursor.UpdatedAt()
		query = query.Where(
			"(updated_at < ? OR (updated_at = ? AND (kind < ? OR (kind = ? AND target_id < ?))))",
			ts, ts, cursor.Kind, cursor.Kind, cursor.TargetID,
		)
	}

	if err := query.Find(&actions).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(actions) > limit {
		last := actions[limit-1]
		token, _ := pagination.Encode(pagination.At(last.Kind, last.TargetID, last.UpdatedAt))
		nextToken = &token
		actions = actions[:limit]
	}

	return actions, nextToken, nil
}

// All walks every page of List.
func (r *OutboxRepository) All(ctx context.Context, kinds ...string) ([]db.PendingAction, error) {
	var (
		out   []db.PendingAction
		token *string
	)
	for {
		page, next, err := r.List(ctx, kinds, token, 100)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if next == nil {
			return out, nil
		}
		token = next
	}
}

// Delete removes a confirmed action. Missing rows are not an error.
func (r *OutboxRepository) Delete(ctx context.Context, kind string, targetID int64) error {
	return r.db.WithContext(ctx).
		Where("kind = ? AND target_id = ?", kind, targetID).
		Delete(&db.PendingAction{}).Error
}

// Count returns how many actions are pending.
func (r *OutboxRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.PendingAction{}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
