// Package convlog appends conversation turns to an external log. The
// pipeline only ever writes here; nothing reads the log back mid-request.
package convlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/homepilot/homepilot/internal/domain"
)

// store is the consumer interface for log appends (ISP).
type store interface {
	RPush(ctx context.Context, key string, values ...string) error
	LLen(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo appends turn records to one list per conversation.
type Repo struct {
	store store
	ttl   time.Duration
}

// New creates a conversation log repository. ttl is the retention window,
// refreshed on every append (recommended: 30 days).
func New(s store, ttl time.Duration) *Repo {
	return &Repo{store: s, ttl: ttl}
}

// entryDTO is the stored wire form of one turn.
type entryDTO struct {
	Turn     int64          `json:"turn"`
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	At       time.Time      `json:"at"`
}

func key(conversationID string) string {
	return "homepilot:conv:" + conversationID + ":log"
}

// Append writes one turn to the conversation's log. Turn numbers are the
// list position at append time; concurrent appends to the same conversation
// are not expected (one turn per request).
func (r *Repo) Append(ctx context.Context, conversationID string, rec domain.TurnRecord) error {
	k := key(conversationID)

	turn, err := r.store.LLen(ctx, k)
	if err != nil {
		return fmt.Errorf("convlog LLEN %s: %w", conversationID, err)
	}

	data, err := json.Marshal(entryDTO{
		Turn:     turn,
		Role:     rec.Role,
		Content:  rec.Content,
		Metadata: rec.Metadata,
		At:       rec.At,
	})
	if err != nil {
		return fmt.Errorf("convlog encode %s: %w", conversationID, err)
	}

	if err := r.store.RPush(ctx, k, string(data)); err != nil {
		return fmt.Errorf("convlog RPUSH %s: %w", conversationID, err)
	}
	if err := r.store.Expire(ctx, k, r.ttl, false); err != nil {
		return fmt.Errorf("convlog EXPIRE %s: %w", conversationID, err)
	}
	return nil
}
