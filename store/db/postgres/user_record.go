package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/prefsync/store"
)

func (d *DB) CreateUserRecord(ctx context.Context, username string) error {
	now := time.Now().Unix()

	// Racing creates for the same user are harmless: the loser's insert is
	// ignored and both see the same empty record.
	stmt := `INSERT INTO user_record (username, created_ts, updated_ts)
		VALUES (` + placeholders(3) + `)
		ON CONFLICT (username) DO NOTHING`
	if _, err := d.db.ExecContext(ctx, stmt, username, now, now); err != nil {
		return errors.Wrap(err, "failed to create user record")
	}
	return nil
}

func (d *DB) GetUserRecord(ctx context.Context, find *store.FindUserRecord) (*store.UserRecord, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.Username; v != nil {
		where, args = append(where, "user_record.username = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.SaveToken; v != nil {
		where, args = append(where, "user_record.save_token = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT username, prefs_blob, save_token, created_ts, updated_ts
		FROM user_record
		WHERE ` + strings.Join(where, " AND ")

	record := &store.UserRecord{}
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&record.Username,
		&record.Blob,
		&record.SaveToken,
		&record.CreatedTs,
		&record.UpdatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get user record")
	}
	return record, nil
}

func (d *DB) UpsertBlob(ctx context.Context, upsert *store.UpsertBlob) error {
	now := time.Now().Unix()

	stmt := `INSERT INTO user_record (username, prefs_blob, created_ts, updated_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (username) DO UPDATE SET
			prefs_blob = EXCLUDED.prefs_blob,
			updated_ts = EXCLUDED.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.Username, upsert.Blob, now, now); err != nil {
		return errors.Wrap(err, "failed to upsert blob")
	}
	return nil
}

func (d *DB) ClaimSaveToken(ctx context.Context, claim *store.ClaimSaveToken) error {
	now := time.Now().Unix()

	// The partial unique index on save_token rejects a candidate already
	// active for another user; the caller regenerates and retries.
	stmt := `INSERT INTO user_record (username, save_token, created_ts, updated_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (username) DO UPDATE SET
			save_token = EXCLUDED.save_token,
			updated_ts = EXCLUDED.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt, claim.Username, claim.Token, now, now); err != nil {
		if isUniqueViolation(err) {
			return store.ErrSaveTokenTaken
		}
		return errors.Wrap(err, "failed to claim save token")
	}
	return nil
}

func (d *DB) ConsumeSaveToken(ctx context.Context, token string) (string, error) {
	now := time.Now().Unix()

	// Clearing and reading the owner in one statement makes consumption
	// one-shot: of any number of concurrent consumers, exactly one sees
	// the row.
	stmt := `UPDATE user_record
		SET save_token = NULL, updated_ts = ` + placeholder(1) + `
		WHERE save_token = ` + placeholder(2) + `
		RETURNING username`

	var username string
	if err := d.db.QueryRowContext(ctx, stmt, now, token).Scan(&username); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", errors.Wrap(err, "failed to consume save token")
	}
	return username, nil
}
