package store

import (
	"context"

	"github.com/pkg/errors"
)

// ErrSaveTokenTaken is returned by ClaimSaveToken when the candidate token is
// already active for some user. Callers draw a new candidate and retry; the
// guarantee comes from the unique index on the token column, so two issuers
// can never both record the same value.
var ErrSaveTokenTaken = errors.New("save token already active")

// UserRecord is the persistent preference record of a user. A record is
// created empty on the user's first contact; Blob is nil until the first
// successful save and SaveToken is nil unless an upload key is outstanding.
type UserRecord struct {
	Username  string
	Blob      *string
	SaveToken *string
	CreatedTs int64
	UpdatedTs int64
}

// FindUserRecord is the find condition for user record.
type FindUserRecord struct {
	Username  *string
	SaveToken *string
}

// UpsertBlob replaces the stored blob of a user, creating the record when it
// does not exist yet. Last write wins; there is no version check because a
// single human owns a preference set.
type UpsertBlob struct {
	Username string
	Blob     string
}

// ClaimSaveToken records Token as the active save token of Username,
// replacing any previously outstanding token for that user.
type ClaimSaveToken struct {
	Username string
	Token    string
}

// GetOrCreateUserRecord returns the record for username, creating an empty
// one on first contact.
func (s *Store) GetOrCreateUserRecord(ctx context.Context, username string) (*UserRecord, error) {
	username = NormalizeUsername(username)
	record, err := s.driver.GetUserRecord(ctx, &FindUserRecord{Username: &username})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user record")
	}
	if record != nil {
		return record, nil
	}
	if err := s.driver.CreateUserRecord(ctx, username); err != nil {
		return nil, errors.Wrap(err, "failed to create user record")
	}
	record, err = s.driver.GetUserRecord(ctx, &FindUserRecord{Username: &username})
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload user record")
	}
	if record == nil {
		return nil, errors.Errorf("user record vanished after create: %s", username)
	}
	return record, nil
}

// LoadBlob returns the stored preference blob of username, or nil when the
// user has never saved preferences. Reads are served from the blob cache;
// token state is never cached because it is single-use.
func (s *Store) LoadBlob(ctx context.Context, username string) (*string, error) {
	username = NormalizeUsername(username)
	if v, ok := s.userRecordCache.Get(ctx, username); ok {
		if blob, ok := v.(*string); ok {
			return blob, nil
		}
	}
	record, err := s.driver.GetUserRecord(ctx, &FindUserRecord{Username: &username})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load blob")
	}
	if record == nil {
		return nil, nil
	}
	s.userRecordCache.Set(ctx, username, record.Blob)
	return record.Blob, nil
}

// SaveBlob stores blob as the preference set of username, creating the
// record when absent.
func (s *Store) SaveBlob(ctx context.Context, username string, blob string) error {
	username = NormalizeUsername(username)
	if err := s.driver.UpsertBlob(ctx, &UpsertBlob{Username: username, Blob: blob}); err != nil {
		return errors.Wrap(err, "failed to save blob")
	}
	s.userRecordCache.Delete(ctx, username)
	return nil
}

// ClaimSaveToken records the candidate token as active for the user.
// Returns ErrSaveTokenTaken when the value is already held by any user.
func (s *Store) ClaimSaveToken(ctx context.Context, claim *ClaimSaveToken) error {
	claim.Username = NormalizeUsername(claim.Username)
	return s.driver.ClaimSaveToken(ctx, claim)
}

// ConsumeSaveToken atomically clears token and returns its owning username.
// Returns an empty string when the token is not active; concurrent calls on
// the same token let exactly one caller observe the owner.
func (s *Store) ConsumeSaveToken(ctx context.Context, token string) (string, error) {
	return s.driver.ConsumeSaveToken(ctx, token)
}
