package prefs

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	exerrors "github.com/hrygo/prefsync/server/internal/errors"
	"github.com/hrygo/prefsync/store"
)

// maxIssueAttempts bounds regeneration on token collisions. The value space
// is ~10^16 so more than a couple of retries means something is wrong with
// the store, not with the dice.
const maxIssueAttempts = 10

// Issuer manages the one-time save key lifecycle. A key authorizes exactly
// one preference upload for the user it was issued to.
type Issuer struct {
	store *store.Store
}

// NewIssuer creates an issuer over the given store.
func NewIssuer(st *store.Store) *Issuer {
	return &Issuer{store: st}
}

// Issue generates a fresh save token for username and records it as the
// user's only active token, replacing any outstanding one. Candidates are
// four independent draws in [0,10000] concatenated, the format the legacy
// clients were issued; a candidate already active for any user is rejected
// by the store's unique index and redrawn.
func (i *Issuer) Issue(ctx context.Context, username string) (string, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		candidate := newCandidate()
		err := i.store.ClaimSaveToken(ctx, &store.ClaimSaveToken{Username: username, Token: candidate})
		if err == nil {
			return candidate, nil
		}
		if errors.Is(err, store.ErrSaveTokenTaken) {
			continue
		}
		return "", exerrors.StoreWrite("failed to record save token", err)
	}
	return "", errors.Errorf("could not find a free save token in %d attempts", maxIssueAttempts)
}

// Consume redeems token, clearing it and returning the username it was
// issued to. A token that is unknown or already redeemed yields an
// invalid-token error; exactly one of any number of concurrent redeemers
// of the same token succeeds.
func (i *Issuer) Consume(ctx context.Context, token string) (string, error) {
	username, err := i.store.ConsumeSaveToken(ctx, token)
	if err != nil {
		return "", exerrors.StoreWrite("failed to consume save token", err)
	}
	if username == "" {
		return "", exerrors.InvalidToken(token)
	}
	return username, nil
}

func newCandidate() string {
	return fmt.Sprintf("%d%d%d%d",
		rand.Intn(10001), rand.Intn(10001), rand.Intn(10001), rand.Intn(10001))
}
