// Package profile reads user preferences and prior listing interactions.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/homepilot/homepilot/internal/db"
	"github.com/homepilot/homepilot/internal/domain"
)

const keyPrefix = "homepilot:profile:"

// store is the consumer interface for profile reads (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Repo reads profiles stored as JSON blobs, one key per user.
type Repo struct {
	store store
}

// New creates a profile repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Profile returns the stored profile for a user. The bool result is false
// when the user has no profile yet.
func (r *Repo) Profile(ctx context.Context, userID string) (domain.Profile, bool, error) {
	data, err := r.store.Get(ctx, keyPrefix+userID)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, fmt.Errorf("profile GET %s: %w", userID, err)
	}

	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Profile{}, false, fmt.Errorf("profile GET %s decode: %w", userID, err)
	}
	return p, true, nil
}
