// Package auth implements password authentication for the credential
// exchange variant. The exchange handler only sees the Authenticator
// interface; how principals are verified stays opaque to it.
package auth

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/hrygo/prefsync/store"
)

// Authenticator verifies a username/password pair and resolves it to the
// stored user. A nil user with a nil error means the credentials are wrong;
// errors are reserved for store failures.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*store.User, error)
}

// StoreAuthenticator authenticates against bcrypt password hashes in the
// user table.
type StoreAuthenticator struct {
	store *store.Store
}

// NewStoreAuthenticator creates an authenticator backed by the given store.
func NewStoreAuthenticator(st *store.Store) *StoreAuthenticator {
	return &StoreAuthenticator{store: st}
}

func (a *StoreAuthenticator) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	username = store.NormalizeUsername(username)
	user, err := a.store.GetUser(ctx, &store.FindUser{Username: &username})
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}
	if user == nil {
		return nil, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}
	return user, nil
}

// HashPassword produces the bcrypt hash stored for a new user.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash password")
	}
	return string(hash), nil
}
