package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateExpense persists a new expense.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := s.groupExists(ctx, expense.GroupID); err != nil {
		return err
	}
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	row, err := storage.EncodeExpense(expense)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		row.ID, row.GroupID, row.Description, row.PayerID, row.AmountMinor,
		row.Currency, row.SplitKind, string(row.SplitData), row.CreatedAt,
	)
	if err != nil {
		return dbErr("insert expense", err)
	}

	s.Notify(expense.GroupID)
	return nil
}

// ReplaceExpense overwrites an expense in place; group and creation time are kept.
func (s *Store) ReplaceExpense(ctx context.Context, expense *models.Expense) error {
	var groupID string
	var createdAt int64
	err := s.db.QueryRow(ctx,
		"SELECT group_id, created_at FROM expenses WHERE id = $1", expense.ID,
	).Scan(&groupID, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}
	if err != nil {
		return dbErr("get expense", err)
	}
	if expense.GroupID != "" && expense.GroupID != groupID {
		return fmt.Errorf("expense %s in group %s: %w", expense.ID, expense.GroupID, storage.ErrNotFound)
	}
	expense.GroupID = groupID
	expense.CreatedAt = createdAt

	row, err := storage.EncodeExpense(expense)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`UPDATE expenses SET description = $1, payer_id = $2, amount_minor = $3, currency = $4,
		 split_kind = $5, split_data = $6 WHERE id = $7`,
		row.Description, row.PayerID, row.AmountMinor, row.Currency,
		row.SplitKind, string(row.SplitData), row.ID,
	)
	if err != nil {
		return dbErr("update expense", err)
	}

	s.Notify(groupID)
	return nil
}

// DeleteExpense removes an expense by ID.
func (s *Store) DeleteExpense(ctx context.Context, expenseID string) error {
	var groupID string
	err := s.db.QueryRow(ctx,
		"DELETE FROM expenses WHERE id = $1 RETURNING group_id", expenseID,
	).Scan(&groupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return dbErr("delete expense", err)
	}

	s.Notify(groupID)
	return nil
}

func scanExpense(row pgx.Row) (models.Expense, error) {
	var r storage.ExpenseRow
	var split string
	if err := row.Scan(&r.ID, &r.GroupID, &r.Description, &r.PayerID, &r.AmountMinor,
		&r.Currency, &r.SplitKind, &split, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Expense{}, err
		}
		return models.Expense{}, dbErr("scan expense", err)
	}
	r.SplitData = []byte(split)
	return storage.DecodeExpense(r)
}

// GetExpense retrieves one expense by ID.
func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	exp, err := scanExpense(s.db.QueryRow(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = $1", expenseID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// ListExpenses returns a group's expenses in creation order.
func (s *Store) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	return listExpenses(ctx, s.db, groupID)
}

func listExpenses(ctx context.Context, q querier, groupID string) ([]models.Expense, error) {
	rows, err := q.Query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = $1 ORDER BY created_at, seq", groupID,
	)
	if err != nil {
		return nil, dbErr("list expenses", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate expenses", err)
	}
	return expenses, nil
}

// RecordActivity appends a history entry.
func (s *Store) RecordActivity(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	if activity.CreatedAt == 0 {
		activity.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO activities (id, group_id, kind, settlement_id, expense_id, detail, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		activity.ID, activity.GroupID, string(activity.Kind), nullable(activity.SettlementID),
		nullable(activity.ExpenseID), activity.Detail, nullable(activity.Actor), activity.CreatedAt,
	)
	if err != nil {
		return dbErr("insert activity", err)
	}
	return nil
}

// ListActivities returns a group's history, newest first.
func (s *Store) ListActivities(ctx context.Context, groupID string) ([]models.Activity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, group_id, kind, settlement_id, expense_id, detail, actor, created_at
		 FROM activities WHERE group_id = $1 ORDER BY created_at DESC, seq DESC`,
		groupID,
	)
	if err != nil {
		return nil, dbErr("list activities", err)
	}

	activities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Activity, error) {
		var a models.Activity
		var kind string
		var settlementID, expenseID, actor *string
		if err := row.Scan(&a.ID, &a.GroupID, &kind, &settlementID, &expenseID, &a.Detail, &actor, &a.CreatedAt); err != nil {
			return a, err
		}
		a.Kind = models.ActivityKind(kind)
		if settlementID != nil {
			a.SettlementID = *settlementID
		}
		if expenseID != nil {
			a.ExpenseID = *expenseID
		}
		if actor != nil {
			a.Actor = *actor
		}
		return a, nil
	})
	if err != nil {
		return nil, dbErr("scan activities", err)
	}
	return activities, nil
}
