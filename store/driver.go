package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	GetUser(ctx context.Context, find *FindUser) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// UserRecord model related methods.
	CreateUserRecord(ctx context.Context, username string) error
	GetUserRecord(ctx context.Context, find *FindUserRecord) (*UserRecord, error)
	UpsertBlob(ctx context.Context, upsert *UpsertBlob) error

	// Save token lifecycle. Both operations are single conditional
	// statements so the paired invariants (one active token per user,
	// one user per active token, one-shot consumption) hold under
	// concurrent requests without app-level locking.
	ClaimSaveToken(ctx context.Context, claim *ClaimSaveToken) error
	ConsumeSaveToken(ctx context.Context, token string) (string, error)
}
