package buffer

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory Store for unit tests, with injectable failures.
type memStore struct {
	mu     sync.Mutex
	lists  map[string][]string
	ttls   map[string]time.Duration
	claims map[string]bool

	appendErr    error
	fragmentsErr error
	ttlErr       error
	clearErr     error
	claimErr     error
	denyClaim    bool

	clearCalls int
}

func newMemStore() *memStore {
	return &memStore{
		lists:  map[string][]string{},
		ttls:   map[string]time.Duration{},
		claims: map[string]bool{},
	}
}

func (m *memStore) Append(_ context.Context, key, fragment string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.lists[key] = append(m.lists[key], fragment)
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Fragments(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fragmentsErr != nil {
		return nil, m.fragmentsErr
	}
	out := make([]string, len(m.lists[key]))
	copy(out, m.lists[key])
	return out, nil
}

func (m *memStore) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ttlErr != nil {
		return 0, m.ttlErr
	}
	return m.ttls[key], nil
}

func (m *memStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	if m.clearErr != nil {
		return m.clearErr
	}
	delete(m.lists, key)
	delete(m.ttls, key)
	return nil
}

func (m *memStore) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return false, m.claimErr
	}
	if m.denyClaim || m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

func (m *memStore) ReleaseClaim(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, key)
	return nil
}

func (m *memStore) fragmentCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lists[key])
}

// fakeGateway records gateway calls with injectable failures.
type fakeGateway struct {
	mu        sync.Mutex
	sent      []string
	typing    []bool
	sendErr   error
	typingErr error
}

func (g *fakeGateway) SendText(_ context.Context, _, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sent = append(g.sent, text)
	return nil
}

func (g *fakeGateway) SetTyping(_ context.Context, _ string, on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.typingErr != nil {
		return g.typingErr
	}
	g.typing = append(g.typing, on)
	return nil
}

func (g *fakeGateway) sentTexts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.sent))
	copy(out, g.sent)
	return out
}

// fakeResponder echoes questions and records them.
type fakeResponder struct {
	mu        sync.Mutex
	questions []string
	histories [][]Turn
	reply     string
	err       error
}

func (r *fakeResponder) Respond(_ context.Context, question string, history []Turn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.questions = append(r.questions, question)
	r.histories = append(r.histories, history)
	if r.reply != "" {
		return r.reply, nil
	}
	return "re: " + question, nil
}

func (r *fakeResponder) asked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.questions))
	copy(out, r.questions)
	return out
}

type fakeHistory struct {
	turns []Turn
	err   error
}

func (h *fakeHistory) Recent(_ context.Context, _ string, _ int) ([]Turn, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.turns, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	records [][2]string
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, _, question, reply string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, [2]string{question, reply})
	return nil
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
