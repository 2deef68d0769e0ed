package prefs_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exerrors "github.com/hrygo/prefsync/server/internal/errors"
	"github.com/hrygo/prefsync/server/service/prefs"
	"github.com/hrygo/prefsync/store/test"
)

func TestIssuerSingleUse(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	issuer := prefs.NewIssuer(ts)

	_, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)

	token, err := issuer.Issue(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	username, err := issuer.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	// Replay must fail after first success.
	_, err = issuer.Consume(ctx, token)
	var exchangeErr *exerrors.ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, exerrors.ErrCodeInvalidToken, exchangeErr.Code)
}

func TestIssuerUnknownToken(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	issuer := prefs.NewIssuer(ts)

	_, err := issuer.Consume(ctx, "never-issued")
	var exchangeErr *exerrors.ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, exerrors.ErrCodeInvalidToken, exchangeErr.Code)
}

func TestIssuerReissueInvalidatesPrior(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	issuer := prefs.NewIssuer(ts)

	_, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)

	first, err := issuer.Issue(ctx, "alice")
	require.NoError(t, err)
	second, err := issuer.Issue(ctx, "alice")
	require.NoError(t, err)

	// Only the latest token is redeemable.
	_, err = issuer.Consume(ctx, first)
	require.Error(t, err)
	username, err := issuer.Consume(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestIssuerTokensAreDistinctAcrossUsers(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	issuer := prefs.NewIssuer(ts)

	seen := map[string]string{}
	for _, username := range []string{"alice", "bob", "carol", "dave"} {
		_, err := ts.GetOrCreateUserRecord(ctx, username)
		require.NoError(t, err)
		token, err := issuer.Issue(ctx, username)
		require.NoError(t, err)
		if owner, ok := seen[token]; ok {
			t.Fatalf("token %q issued to both %s and %s", token, owner, username)
		}
		seen[token] = username
	}
}

func TestIssuerConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	issuer := prefs.NewIssuer(ts)

	_, err := ts.GetOrCreateUserRecord(ctx, "alice")
	require.NoError(t, err)
	token, err := issuer.Issue(ctx, "alice")
	require.NoError(t, err)

	const consumers = 8
	var wg sync.WaitGroup
	successes := make(chan string, consumers)
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if username, err := issuer.Consume(ctx, token); err == nil {
				successes <- username
			}
		}()
	}
	wg.Wait()
	close(successes)

	winners := []string{}
	for username := range successes {
		winners = append(winners, username)
	}
	require.Len(t, winners, 1, "exactly one consumer may win")
	assert.Equal(t, "alice", winners[0])
}
