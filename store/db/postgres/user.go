package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/prefsync/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	now := time.Now().Unix()

	stmt := `INSERT INTO "user" (username, role, password_hash, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		RETURNING username, role, password_hash, created_ts, updated_ts`

	user := &store.User{}
	if err := d.db.QueryRowContext(ctx, stmt, create.Username, create.Role, create.PasswordHash, now, now).Scan(
		&user.Username,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedTs,
		&user.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	return user, nil
}

func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	users, err := d.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.Username; v != nil {
		where, args = append(where, `"user".username = `+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Role; v != nil {
		where, args = append(where, `"user".role = `+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT username, role, password_hash, created_ts, updated_ts
		FROM "user"
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY "user".username ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	list := []*store.User{}
	for rows.Next() {
		user := &store.User{}
		if err := rows.Scan(
			&user.Username,
			&user.Role,
			&user.PasswordHash,
			&user.CreatedTs,
			&user.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan user")
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
