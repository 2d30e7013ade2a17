package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/homepilot/homepilot/internal/db"
	"github.com/homepilot/homepilot/internal/domain"
)

type mockStore struct {
	getFn   func(ctx context.Context, key string) ([]byte, error)
	lastKey string
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.lastKey = key
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func TestProfileDecodesStoredJSON(t *testing.T) {
	blob := []byte(`{
		"preferences": {
			"districts": ["Quận 7", "Quận 2"],
			"property_types": ["apartment"],
			"max_price": 3500000000
		},
		"interactions": {"l-1": "favorited", "l-2": "clicked"}
	}`)
	ms := &mockStore{getFn: func(_ context.Context, _ string) ([]byte, error) {
		return blob, nil
	}}
	r := New(ms)

	p, ok, err := r.Profile(context.Background(), "u-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("stored profile must be reported as present")
	}
	if ms.lastKey != "homepilot:profile:u-1" {
		t.Errorf("key = %s", ms.lastKey)
	}
	if len(p.Preferences.Districts) != 2 || p.Preferences.Districts[0] != "Quận 7" {
		t.Errorf("districts = %v", p.Preferences.Districts)
	}
	if p.Preferences.MaxPrice == nil || *p.Preferences.MaxPrice != 3.5e9 {
		t.Errorf("max price = %v", p.Preferences.MaxPrice)
	}
	if p.Interactions["l-1"] != domain.InteractionFavorited {
		t.Errorf("interaction = %s", p.Interactions["l-1"])
	}
}

func TestProfileMissingUser(t *testing.T) {
	r := New(&mockStore{})

	_, ok, err := r.Profile(context.Background(), "u-unknown")
	if err != nil {
		t.Fatalf("a missing profile is not an error: %v", err)
	}
	if ok {
		t.Error("missing profile must report ok=false")
	}
}

func TestProfileStoreError(t *testing.T) {
	wantErr := errors.New("connection refused")
	ms := &mockStore{getFn: func(_ context.Context, _ string) ([]byte, error) {
		return nil, wantErr
	}}
	r := New(ms)

	_, _, err := r.Profile(context.Background(), "u-1")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}

func TestProfileCorruptJSON(t *testing.T) {
	ms := &mockStore{getFn: func(_ context.Context, _ string) ([]byte, error) {
		return []byte("{not json"), nil
	}}
	r := New(ms)

	if _, _, err := r.Profile(context.Background(), "u-1"); err == nil {
		t.Error("corrupt profile must surface a decode error")
	}
}
