package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goOTC/store"
)

// MaxUpsertAttempts bounds retries of an upsert that lost a uniqueness race.
// store.ErrSubjectTaken is permanent and returned on the first attempt.
const MaxUpsertAttempts = 3

func upsertIdentity(ctx context.Context, deps Deps, email string, update store.IdentityUpdate) (store.Identity, error) {
	email = store.NormalizeEmail(email)
	var lastErr error
	for attempt := 0; attempt < MaxUpsertAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return store.Identity{}, err
		}
		update.At = deps.Now()
		identity, err := deps.Identities.Upsert(ctx, email, update)
		if err == nil {
			return identity, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return store.Identity{}, err
		}
		lastErr = err
		deps.MetricInc(deps.Metrics.UpsertRetry)
	}
	return store.Identity{}, lastErr
}
