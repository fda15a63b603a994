package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

const expenseColumns = "id, group_id, description, payer_id, amount_minor, currency, split_kind, split_data, created_at"

// CreateExpense persists a new expense.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
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

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
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
func (s *SQLiteStore) ReplaceExpense(ctx context.Context, expense *models.Expense) error {
	var groupID string
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT group_id, created_at FROM expenses WHERE id = ?", expense.ID,
	).Scan(&groupID, &createdAt)
	if err == sql.ErrNoRows {
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

	_, err = s.db.ExecContext(ctx,
		`UPDATE expenses SET description = ?, payer_id = ?, amount_minor = ?, currency = ?,
		 split_kind = ?, split_data = ? WHERE id = ?`,
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
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	var groupID string
	err := s.db.QueryRowContext(ctx, "SELECT group_id FROM expenses WHERE id = ?", expenseID).Scan(&groupID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return dbErr("check expense existence", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID); err != nil {
		return dbErr("delete expense", err)
	}

	s.Notify(groupID)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(sc scanner) (models.Expense, error) {
	var row storage.ExpenseRow
	var split string
	if err := sc.Scan(&row.ID, &row.GroupID, &row.Description, &row.PayerID, &row.AmountMinor,
		&row.Currency, &row.SplitKind, &split, &row.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return models.Expense{}, err
		}
		return models.Expense{}, dbErr("scan expense", err)
	}
	row.SplitData = []byte(split)
	return storage.DecodeExpense(row)
}

// GetExpense retrieves one expense by ID.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	exp, err := scanExpense(s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?", expenseID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// ListExpenses returns a group's expenses in creation order.
func (s *SQLiteStore) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	return listExpenses(ctx, s.db, groupID)
}

func listExpenses(ctx context.Context, q querier, groupID string) ([]models.Expense, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY created_at, rowid",
		groupID,
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
