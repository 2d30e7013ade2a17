package convlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/homepilot/homepilot/internal/domain"
)

type mockStore struct {
	length    int64
	llenErr   error
	rpushErr  error
	expireErr error

	pushedKey  string
	pushed     []string
	expiredKey string
	expiredTTL time.Duration
	expiredNX  bool
}

func (m *mockStore) RPush(_ context.Context, key string, values ...string) error {
	if m.rpushErr != nil {
		return m.rpushErr
	}
	m.pushedKey = key
	m.pushed = append(m.pushed, values...)
	return nil
}

func (m *mockStore) LLen(context.Context, string) (int64, error) {
	return m.length, m.llenErr
}

func (m *mockStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	m.expiredKey = key
	m.expiredTTL = ttl
	m.expiredNX = nx
	return m.expireErr
}

func TestAppendWritesNumberedTurn(t *testing.T) {
	ms := &mockStore{length: 4}
	r := New(ms, 30*24*time.Hour)

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	err := r.Append(context.Background(), "c-1", domain.TurnRecord{
		Role:     domain.RoleAssistant,
		Content:  "Đã tìm thấy 5 căn hộ phù hợp.",
		Metadata: map[string]any{"intent": "search"},
		At:       at,
	})
	if err != nil {
		t.Fatal(err)
	}

	if ms.pushedKey != "homepilot:conv:c-1:log" {
		t.Errorf("key = %s", ms.pushedKey)
	}
	if len(ms.pushed) != 1 {
		t.Fatalf("pushed %d entries, want 1", len(ms.pushed))
	}

	var entry entryDTO
	if err := json.Unmarshal([]byte(ms.pushed[0]), &entry); err != nil {
		t.Fatalf("stored entry is not JSON: %v", err)
	}
	if entry.Turn != 4 {
		t.Errorf("turn = %d, want current list length", entry.Turn)
	}
	if entry.Role != domain.RoleAssistant || entry.Metadata["intent"] != "search" {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.At.Equal(at) {
		t.Errorf("at = %v", entry.At)
	}
}

func TestAppendRefreshesRetention(t *testing.T) {
	ms := &mockStore{}
	r := New(ms, 30*24*time.Hour)

	if err := r.Append(context.Background(), "c-1", domain.TurnRecord{Role: domain.RoleUser}); err != nil {
		t.Fatal(err)
	}
	if ms.expiredKey != "homepilot:conv:c-1:log" {
		t.Errorf("expire key = %s", ms.expiredKey)
	}
	if ms.expiredTTL != 30*24*time.Hour {
		t.Errorf("ttl = %v", ms.expiredTTL)
	}
	if ms.expiredNX {
		t.Error("retention must be refreshed on every append, not only on first write")
	}
}

func TestAppendStoreErrors(t *testing.T) {
	wantErr := errors.New("connection refused")

	r := New(&mockStore{llenErr: wantErr}, time.Hour)
	if err := r.Append(context.Background(), "c-1", domain.TurnRecord{}); !errors.Is(err, wantErr) {
		t.Errorf("llen err = %v", err)
	}

	r = New(&mockStore{rpushErr: wantErr}, time.Hour)
	if err := r.Append(context.Background(), "c-1", domain.TurnRecord{}); !errors.Is(err, wantErr) {
		t.Errorf("rpush err = %v", err)
	}

	r = New(&mockStore{expireErr: wantErr}, time.Hour)
	if err := r.Append(context.Background(), "c-1", domain.TurnRecord{}); !errors.Is(err, wantErr) {
		t.Errorf("expire err = %v", err)
	}
}
