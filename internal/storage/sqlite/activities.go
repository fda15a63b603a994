package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
)

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// RecordActivity appends a history entry.
func (s *SQLiteStore) RecordActivity(ctx context.Context, activity *models.Activity) error {
	// Generate ID if not set
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	if activity.CreatedAt == 0 {
		activity.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, group_id, kind, settlement_id, expense_id, detail, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		activity.ID, activity.GroupID, string(activity.Kind), nullable(activity.SettlementID),
		nullable(activity.ExpenseID), activity.Detail, nullable(activity.Actor), activity.CreatedAt,
	)
	if err != nil {
		return dbErr("insert activity", err)
	}

	return nil
}

// ListActivities retrieves a group's history, newest first.
func (s *SQLiteStore) ListActivities(ctx context.Context, groupID string) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, kind, settlement_id, expense_id, detail, actor, created_at
		 FROM activities WHERE group_id = ? ORDER BY created_at DESC, rowid DESC`,
		groupID,
	)
	if err != nil {
		return nil, dbErr("list activities", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		var kind string
		var settlementID, expenseID, actor sql.NullString

		if err := rows.Scan(&a.ID, &a.GroupID, &kind, &settlementID, &expenseID,
			&a.Detail, &actor, &a.CreatedAt); err != nil {
			return nil, dbErr("scan activity", err)
		}

		a.Kind = models.ActivityKind(kind)
		a.SettlementID = settlementID.String
		a.ExpenseID = expenseID.String
		a.Actor = actor.String
		activities = append(activities, a)
	}

	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate activities", err)
	}

	return activities, nil
}
