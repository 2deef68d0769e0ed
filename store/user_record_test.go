package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/prefsync/store"
	"github.com/hrygo/prefsync/store/test"
)

func TestGetOrCreateUserRecord(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	record, err := ts.GetOrCreateUserRecord(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", record.Username, "usernames are lowercased")
	assert.Nil(t, record.Blob)
	assert.Nil(t, record.SaveToken)

	// Second contact returns the same record, not a new one.
	again, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, record.CreatedTs, again.CreatedTs)
}

func TestLoadBlobNewUser(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	blob, err := ts.LoadBlob(ctx, "fresh-user")
	require.NoError(t, err)
	assert.Nil(t, blob, "a user that never saved has no blob, not an error")
}

func TestSaveAndLoadBlob(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	// Save on a fresh user implicitly creates the record.
	require.NoError(t, ts.SaveBlob(ctx, "alice", "General\nname=string;hi\n"))

	blob, err := ts.LoadBlob(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, "General\nname=string;hi\n", *blob)

	// Loading twice without an intervening save is idempotent.
	blob2, err := ts.LoadBlob(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, blob2)
	assert.Equal(t, *blob, *blob2)

	// A save replaces the whole blob and is visible on the next load.
	require.NoError(t, ts.SaveBlob(ctx, "alice", "Console\nfont-size=integer;12"))
	blob3, err := ts.LoadBlob(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, blob3)
	assert.Equal(t, "Console\nfont-size=integer;12", *blob3)
}

func TestClaimSaveTokenUniqueness(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	_, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)
	_, err = ts.GetOrCreateUserRecord(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, ts.ClaimSaveToken(ctx, &store.ClaimSaveToken{Username: "alice", Token: "12345"}))

	// The same value cannot be active for a second user.
	err = ts.ClaimSaveToken(ctx, &store.ClaimSaveToken{Username: "bob", Token: "12345"})
	require.ErrorIs(t, err, store.ErrSaveTokenTaken)

	// Once alice's token is consumed, the value is free again.
	username, err := ts.ConsumeSaveToken(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	require.NoError(t, ts.ClaimSaveToken(ctx, &store.ClaimSaveToken{Username: "bob", Token: "12345"}))
}

func TestClaimSaveTokenReplacesPrior(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	_, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, ts.ClaimSaveToken(ctx, &store.ClaimSaveToken{Username: "alice", Token: "first"}))
	require.NoError(t, ts.ClaimSaveToken(ctx, &store.ClaimSaveToken{Username: "alice", Token: "second"}))

	username, err := ts.ConsumeSaveToken(ctx, "first")
	require.NoError(t, err)
	assert.Empty(t, username, "replaced token is no longer active")

	username, err = ts.ConsumeSaveToken(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestConsumeSaveTokenIsOneShot(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	_, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, ts.ClaimSaveToken(ctx, &store.ClaimSaveToken{Username: "alice", Token: "tok123"}))

	username, err := ts.ConsumeSaveToken(ctx, "tok123")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	username, err = ts.ConsumeSaveToken(ctx, "tok123")
	require.NoError(t, err)
	assert.Empty(t, username)
}

func TestSaveBlobDoesNotTouchToken(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	_, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, ts.ClaimSaveToken(ctx, &store.ClaimSaveToken{Username: "alice", Token: "tok123"}))
	require.NoError(t, ts.SaveBlob(ctx, "alice", "General\nname=string;hi\n"))

	record, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, record.SaveToken)
	assert.Equal(t, "tok123", *record.SaveToken)
}
