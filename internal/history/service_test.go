package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memStore emulates the Redis list semantics: append, trim to newest max,
// range over the newest limit.
type memStore struct {
	mu       sync.Mutex
	lists    map[string][][]byte
	pushErr  error
	rangeErr error
	lastMax  int
	lastTTL  time.Duration
}

func newMemStore() *memStore {
	return &memStore{lists: map[string][][]byte{}}
}

func (m *memStore) Push(_ context.Context, key string, raw []byte, max int, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pushErr != nil {
		return m.pushErr
	}
	m.lastMax = max
	m.lastTTL = ttl
	l := append(m.lists[key], raw)
	if max > 0 && len(l) > max {
		l = l[len(l)-max:]
	}
	m.lists[key] = l
	return nil
}

func (m *memStore) Range(_ context.Context, key string, limit int) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rangeErr != nil {
		return nil, m.rangeErr
	}
	l := m.lists[key]
	if limit > 0 && len(l) > limit {
		l = l[len(l)-limit:]
	}
	out := make([][]byte, len(l))
	copy(out, l)
	return out, nil
}

func (m *memStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lists, key)
	return nil
}

func (m *memStore) Count(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}

func TestAppendValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, newMemStore(), 10, time.Hour)
	ctx := context.Background()

	if err := svc.Append(ctx, "", RoleUser, "hi"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty key: %v", err)
	}
	if err := svc.Append(ctx, "s1", "narrator", "hi"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("bad role: %v", err)
	}
	if err := svc.Append(ctx, "s1", RoleUser, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty text: %v", err)
	}
}

func TestRecordKeepsExchangeOrder(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := NewService(nil, store, 10, time.Hour)
	ctx := context.Background()

	if err := svc.Record(ctx, "s1", "oi", "olá!"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	turns, err := svc.Recent(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Text != "oi" {
		t.Fatalf("first turn = %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Text != "olá!" {
		t.Fatalf("second turn = %+v", turns[1])
	}
	if turns[0].ID == "" || turns[0].ID == turns[1].ID {
		t.Fatal("turn ids missing or not unique")
	}
}

func TestTrimKeepsNewestTurns(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := NewService(nil, store, 4, time.Hour)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		if err := svc.Record(ctx, "s1", q, "re: "+q); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	turns, err := svc.Recent(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("retained %d turns, want 4", len(turns))
	}
	// The oldest exchange ("a") must be gone; the newest kept intact.
	if turns[0].Text != "b" || turns[3].Text != "re: c" {
		t.Fatalf("trim kept wrong suffix: %+v", turns)
	}
	if store.lastMax != 4 {
		t.Fatalf("store max = %d, want 4", store.lastMax)
	}
}

func TestRecentLimit(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, newMemStore(), 100, time.Hour)
	ctx := context.Background()
	for _, q := range []string{"one", "two", "three"} {
		if err := svc.Record(ctx, "s1", q, "re: "+q); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	turns, err := svc.Recent(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(turns) != 2 || turns[0].Text != "three" || turns[1].Text != "re: three" {
		t.Fatalf("limited turns = %+v", turns)
	}

	if _, err := svc.Recent(ctx, "s1", -1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("negative limit: %v", err)
	}
}

func TestRecentSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := NewService(nil, store, 10, time.Hour)
	ctx := context.Background()

	if err := svc.Append(ctx, "s1", RoleUser, "fine"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	store.mu.Lock()
	store.lists["s1"] = append(store.lists["s1"], []byte("{broken"))
	store.mu.Unlock()

	turns, err := svc.Recent(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(turns) != 1 || turns[0].Text != "fine" {
		t.Fatalf("turns = %+v", turns)
	}
}

func TestStoreErrorsMapToUnavailable(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.pushErr = errors.New("connection refused")
	svc := NewService(nil, store, 10, time.Hour)
	ctx := context.Background()

	if err := svc.Append(ctx, "s1", RoleUser, "hi"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("push error: %v", err)
	}

	store.pushErr = nil
	store.rangeErr = errors.New("connection refused")
	if _, err := svc.Recent(ctx, "s1", 0); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("range error: %v", err)
	}
}

func TestClearAndCount(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, newMemStore(), 10, time.Hour)
	ctx := context.Background()

	if err := svc.Record(ctx, "s1", "oi", "olá!"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	n, err := svc.Count(ctx, "s1")
	if err != nil || n != 2 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if err := svc.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err = svc.Count(ctx, "s1")
	if err != nil || n != 0 {
		t.Fatalf("Count after clear = %d, %v", n, err)
	}

	if err := svc.Clear(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty key clear: %v", err)
	}
}
