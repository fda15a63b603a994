// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

var (
	// ErrStoreUnavailable wraps every driver-level failure. It is the only
	// storage error worth retrying.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrNotFound = errors.New("not found")

	// ErrMalformedRecord means a stored row did not decode into a valid entity.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrConstraint means a write broke a uniqueness or reference constraint.
	// It is a data error and never retried.
	ErrConstraint = errors.New("constraint violation")
)

// GroupSnapshot is a group with its members and expenses, all read at one
// point in time.
type GroupSnapshot struct {
	// Group.Members is populated.
	Group    models.Group
	Expenses []models.Expense
}

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the ledger or service layers.
type Store interface {
	// CreateGroup persists a new group with its members.
	// group.ID and group.CreatedAt are populated by the store when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its members.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// AddMembers adds participants to a group; existing IDs are left untouched.
	AddMembers(ctx context.Context, groupID string, members []models.Participant) error

	// RemoveMember removes one participant from a group.
	RemoveMember(ctx context.Context, groupID, memberID string) error

	// ListMembers returns a group's participants ordered by ID.
	ListMembers(ctx context.Context, groupID string) ([]models.Participant, error)

	// CreateExpense persists a new expense.
	// expense.ID and expense.CreatedAt are populated by the store when empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// ReplaceExpense overwrites an existing expense, keeping its CreatedAt.
	ReplaceExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense.
	DeleteExpense(ctx context.Context, expenseID string) error

	// GetExpense retrieves one expense.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses returns a group's expenses in creation order.
	ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error)

	// Snapshot reads a group, its members and its expenses in a single
	// read-only transaction, so no concurrent write is half visible.
	Snapshot(ctx context.Context, groupID string) (*GroupSnapshot, error)

	// RecordActivity appends a history entry.
	RecordActivity(ctx context.Context, activity *models.Activity) error

	// ListActivities returns a group's history, newest first.
	ListActivities(ctx context.Context, groupID string) ([]models.Activity, error)

	// Subscribe registers fn to be called after every expense or member
	// mutation of the group. The returned func unsubscribes.
	Subscribe(groupID string, fn func()) (cancel func())

	// Close releases any resources held by the store.
	Close() error
}
