// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	sqlitedrv "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	storage.Broadcaster
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dbErr marks driver failures as storage.ErrStoreUnavailable so callers can
// tell them apart from data errors. Context errors are passed through and
// constraint violations become storage.ErrConstraint.
func dbErr(action string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	var sqlErr *sqlitedrv.Error
	if errors.As(err, &sqlErr) && sqlErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("failed to %s: %w: %w", action, storage.ErrConstraint, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", action, storage.ErrStoreUnavailable, err)
}

// CreateGroup persists a new group and its members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if err := money.ValidateCurrency(group.Currency); err != nil {
		return err
	}
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, name, currency, created_at) VALUES (?, ?, ?, ?)",
		group.ID, group.Name, group.Currency, group.CreatedAt,
	)
	if err != nil {
		return dbErr("insert group", err)
	}

	if err := insertMembers(ctx, tx, group.ID, group.Members); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit transaction", err)
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, groupID string, members []models.Participant) error {
	for _, m := range members {
		if m.ID == "" {
			return fmt.Errorf("member without id in group %s", groupID)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, member_id, name, email) VALUES (?, ?, ?, ?)
			 ON CONFLICT (group_id, member_id) DO NOTHING`,
			groupID, m.ID, m.Name, m.Email,
		)
		if err != nil {
			return dbErr("insert member", err)
		}
	}
	return nil
}

// GetGroup retrieves a group by ID, including its members.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return getGroup(ctx, s.db, groupID)
}

func getGroup(ctx context.Context, q querier, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := q.QueryRowContext(ctx,
		"SELECT id, name, currency, created_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &group.Currency, &group.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("get group", err)
	}

	group.Members, err = listMembers(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *SQLiteStore) groupExists(ctx context.Context, groupID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return dbErr("check group existence", err)
	}
	return nil
}

// AddMembers adds participants to an existing group.
func (s *SQLiteStore) AddMembers(ctx context.Context, groupID string, members []models.Participant) error {
	if err := s.groupExists(ctx, groupID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin transaction", err)
	}
	defer tx.Rollback()

	if err := insertMembers(ctx, tx, groupID, members); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dbErr("commit transaction", err)
	}

	s.Notify(groupID)
	return nil
}

// RemoveMember removes a participant from a group. Expenses that still
// reference the member will fail balance computation until they are fixed.
func (s *SQLiteStore) RemoveMember(ctx context.Context, groupID, memberID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = ? AND member_id = ?",
		groupID, memberID,
	)
	if err != nil {
		return dbErr("delete member", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("member %s in group %s: %w", memberID, groupID, storage.ErrNotFound)
	}

	s.Notify(groupID)
	return nil
}

// ListMembers returns a group's members ordered by ID.
func (s *SQLiteStore) ListMembers(ctx context.Context, groupID string) ([]models.Participant, error) {
	return listMembers(ctx, s.db, groupID)
}

func listMembers(ctx context.Context, q querier, groupID string) ([]models.Participant, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT member_id, name, email FROM group_members WHERE group_id = ? ORDER BY member_id",
		groupID,
	)
	if err != nil {
		return nil, dbErr("list members", err)
	}
	defer rows.Close()

	var members []models.Participant
	for rows.Next() {
		var m models.Participant
		if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
			return nil, dbErr("scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate members", err)
	}
	return members, nil
}

// Snapshot reads the group, its members and its expenses in one read-only
// transaction.
func (s *SQLiteStore) Snapshot(ctx context.Context, groupID string) (*storage.GroupSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, dbErr("begin snapshot", err)
	}
	defer tx.Rollback()

	group, err := getGroup(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	expenses, err := listExpenses(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, dbErr("end snapshot", err)
	}
	return &storage.GroupSnapshot{Group: *group, Expenses: expenses}, nil
}
