package analytics

import (
	"context"
	"errors"
	"testing"
)

type mockStore struct {
	hgetallFn func(ctx context.Context, key string) (map[string]string, error)
	lastKey   string
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.lastKey = key
	if m.hgetallFn != nil {
		return m.hgetallFn(ctx, key)
	}
	return nil, nil
}

func TestStatsParsesSnapshot(t *testing.T) {
	ms := &mockStore{hgetallFn: func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{
			"views_7d":        "42",
			"inquiries_7d":    "3",
			"favorites_7d":    "5",
			"impressions_30d": "1200",
			"clicks_30d":      "96",
		}, nil
	}}
	r := New(ms)

	stats, ok, err := r.Stats(context.Background(), "l-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("snapshot must be reported as present")
	}
	if ms.lastKey != "homepilot:analytics:l-1" {
		t.Errorf("key = %s", ms.lastKey)
	}
	if stats.Views7d != 42 || stats.Inquiries7d != 3 || stats.Favorites7d != 5 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Impressions30d != 1200 || stats.Clicks30d != 96 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStatsMissingSnapshot(t *testing.T) {
	r := New(&mockStore{}) // HGETALL on a missing key yields an empty map

	_, ok, err := r.Stats(context.Background(), "l-new")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("missing snapshot must report ok=false, not an error")
	}
}

func TestStatsMalformedFieldsDegradeToZero(t *testing.T) {
	ms := &mockStore{hgetallFn: func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{"views_7d": "not-a-number", "clicks_30d": "7"}, nil
	}}
	r := New(ms)

	stats, ok, err := r.Stats(context.Background(), "l-1")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if stats.Views7d != 0 {
		t.Errorf("malformed field should parse as 0, got %d", stats.Views7d)
	}
	if stats.Clicks30d != 7 {
		t.Errorf("clicks = %d, want 7", stats.Clicks30d)
	}
}

func TestStatsStoreError(t *testing.T) {
	wantErr := errors.New("connection refused")
	ms := &mockStore{hgetallFn: func(_ context.Context, _ string) (map[string]string, error) {
		return nil, wantErr
	}}
	r := New(ms)

	_, _, err := r.Stats(context.Background(), "l-1")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}
