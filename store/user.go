package store

import (
	"context"
	"strings"
)

// Role is the standard role of a user.
type Role string

const (
	// RoleHost is the admin role who bootstrapped the instance.
	RoleHost Role = "HOST"
	// RoleUser is a regular authenticated user.
	RoleUser Role = "USER"
	// RoleGuest is an unauthenticated principal. Guests never have a
	// preference record or a save key.
	RoleGuest Role = "GUEST"
)

// User is the object representing an account that can authenticate against
// the credential protocol variant. Usernames are stored lowercased; they are
// the user identity everywhere in the system.
type User struct {
	Username     string
	Role         Role
	PasswordHash string
	CreatedTs    int64
	UpdatedTs    int64
}

// FindUser is the find condition for user.
type FindUser struct {
	Username *string
	Role     *Role
}

// NormalizeUsername lowercases a username into its canonical identity form.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	create.Username = NormalizeUsername(create.Username)
	if create.Role == "" {
		create.Role = RoleUser
	}
	user, err := s.driver.CreateUser(ctx, create)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(ctx, user.Username, user)
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	if find.Username != nil {
		username := NormalizeUsername(*find.Username)
		find.Username = &username
		if v, ok := s.userCache.Get(ctx, username); ok {
			if user, ok := v.(*User); ok {
				return user, nil
			}
		}
	}
	user, err := s.driver.GetUser(ctx, find)
	if err != nil {
		return nil, err
	}
	if user != nil {
		s.userCache.Set(ctx, user.Username, user)
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	return s.driver.ListUsers(ctx, find)
}
