// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface using a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

var _ storage.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    currency CHAR(3) NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    member_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (group_id, member_id)
);

CREATE TABLE IF NOT EXISTS expenses (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    description TEXT NOT NULL DEFAULT '',
    payer_id TEXT NOT NULL,
    amount_minor BIGINT NOT NULL,
    currency CHAR(3) NOT NULL,
    split_kind TEXT NOT NULL,
    split_data TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    settlement_id TEXT,
    expense_id TEXT,
    detail TEXT NOT NULL,
    actor TEXT,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_group_id ON expenses(group_id, created_at, seq);
CREATE INDEX IF NOT EXISTS idx_activities_group_id ON activities(group_id, created_at, seq);
`

const expenseColumns = "id, group_id, description, payer_id, amount_minor, currency, split_kind, split_data, created_at"

// Store implements storage.Store on PostgreSQL.
type Store struct {
	db *pgxpool.Pool
	storage.Broadcaster
}

// New connects to databaseURL and applies the schema.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, dbErr("ping database", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func dbErr(action string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	// Class 23: integrity constraint violation.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("failed to %s: %w: %w", action, storage.ErrConstraint, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", action, storage.ErrStoreUnavailable, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateGroup persists a new group and its members.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if err := money.ValidateCurrency(group.Currency); err != nil {
		return err
	}
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return dbErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO groups (id, name, currency, created_at) VALUES ($1, $2, $3, $4)",
		group.ID, group.Name, group.Currency, group.CreatedAt,
	)
	if err != nil {
		return dbErr("insert group", err)
	}
	if err := insertMembers(ctx, tx, group.ID, group.Members); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return dbErr("commit transaction", err)
	}
	return nil
}

func insertMembers(ctx context.Context, tx pgx.Tx, groupID string, members []models.Participant) error {
	batch := &pgx.Batch{}
	for _, m := range members {
		if m.ID == "" {
			return fmt.Errorf("member without id in group %s", groupID)
		}
		batch.Queue(
			`INSERT INTO group_members (group_id, member_id, name, email) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (group_id, member_id) DO NOTHING`,
			groupID, m.ID, m.Name, m.Email,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return dbErr("insert members", err)
	}
	return nil
}

// GetGroup retrieves a group with its members.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return getGroup(ctx, s.db, groupID)
}

func getGroup(ctx context.Context, q querier, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := q.QueryRow(ctx,
		"SELECT id, name, currency, created_at FROM groups WHERE id = $1", groupID,
	).Scan(&group.ID, &group.Name, &group.Currency, &group.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("get group", err)
	}

	if group.Members, err = listMembers(ctx, q, groupID); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *Store) groupExists(ctx context.Context, groupID string) error {
	var exists int
	err := s.db.QueryRow(ctx, "SELECT 1 FROM groups WHERE id = $1", groupID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return dbErr("check group existence", err)
	}
	return nil
}

// AddMembers adds participants to an existing group.
func (s *Store) AddMembers(ctx context.Context, groupID string, members []models.Participant) error {
	if err := s.groupExists(ctx, groupID); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return dbErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := insertMembers(ctx, tx, groupID, members); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return dbErr("commit transaction", err)
	}

	s.Notify(groupID)
	return nil
}

// RemoveMember removes a participant from a group.
func (s *Store) RemoveMember(ctx context.Context, groupID, memberID string) error {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM group_members WHERE group_id = $1 AND member_id = $2", groupID, memberID,
	)
	if err != nil {
		return dbErr("delete member", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s in group %s: %w", memberID, groupID, storage.ErrNotFound)
	}

	s.Notify(groupID)
	return nil
}

// ListMembers returns a group's members ordered by ID.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]models.Participant, error) {
	return listMembers(ctx, s.db, groupID)
}

func listMembers(ctx context.Context, q querier, groupID string) ([]models.Participant, error) {
	rows, err := q.Query(ctx,
		"SELECT member_id, name, email FROM group_members WHERE group_id = $1 ORDER BY member_id", groupID,
	)
	if err != nil {
		return nil, dbErr("list members", err)
	}

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Participant, error) {
		var m models.Participant
		err := row.Scan(&m.ID, &m.Name, &m.Email)
		return m, err
	})
	if err != nil {
		return nil, dbErr("scan members", err)
	}
	return members, nil
}

// Snapshot reads the group, its members and its expenses in one repeatable
// read, read-only transaction.
func (s *Store) Snapshot(ctx context.Context, groupID string) (*storage.GroupSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, dbErr("begin snapshot", err)
	}
	defer tx.Rollback(ctx)

	group, err := getGroup(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	expenses, err := listExpenses(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, dbErr("end snapshot", err)
	}
	return &storage.GroupSnapshot{Group: *group, Expenses: expenses}, nil
}
