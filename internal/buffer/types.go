// Package buffer implements the debounced message-buffer core: inbound
// fragments are appended to a shared per-conversation buffer and coalesced
// into a single composite message once a quiet period elapses.
package buffer

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidArgument marks validation failures at the coordinator
	// boundary (empty conversation key, fragment, or limit).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreUnavailable marks buffer-store failures. The inbound event is
	// not dropped silently; the caller owns the retry policy.
	ErrStoreUnavailable = errors.New("buffer store unavailable")
	// ErrSettlementFailed wraps downstream responder/gateway failures during
	// settlement. The buffer is still cleared so the next fragment starts a
	// fresh burst.
	ErrSettlementFailed = errors.New("settlement failed")
)

// Turn roles in responder context.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior exchange unit passed to the responder.
type Turn struct {
	Role string
	Text string
}

// Store is the shared, crash-durable fragment buffer, partitioned by
// conversation key. Multiple stateless front ends share one Store; same-key
// mutation ordering is guaranteed by the per-key scheduler, not the store.
type Store interface {
	// Append adds a fragment in arrival order and resets the buffer TTL.
	Append(ctx context.Context, key, fragment string, ttl time.Duration) error
	// Fragments returns all buffered fragments in arrival order.
	Fragments(ctx context.Context, key string) ([]string, error)
	// TTL reports the remaining buffer lifetime, zero if absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Clear removes the buffer entry. Idempotent.
	Clear(ctx context.Context, key string) error
	// Claim atomically takes a short-lived settlement claim for the key.
	// Returns false when another instance already holds it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// ReleaseClaim drops the settlement claim. Idempotent.
	ReleaseClaim(ctx context.Context, key string) error
}

// Gateway delivers outbound text and toggles the typing indicator.
type Gateway interface {
	SendText(ctx context.Context, chatID, text string) error
	SetTyping(ctx context.Context, chatID string, on bool) error
}

// Responder produces a reply for a composite question given prior turns.
type Responder interface {
	Respond(ctx context.Context, question string, history []Turn) (string, error)
}

// HistoryProvider resolves recent conversation turns for responder context.
type HistoryProvider interface {
	Recent(ctx context.Context, key string, limit int) ([]Turn, error)
}

// Recorder persists a settled exchange after the reply is delivered.
type Recorder interface {
	Record(ctx context.Context, key, question, reply string) error
}

// Status is the introspection view of one conversation's buffer state.
type Status struct {
	ConversationKey string   `json:"conversation_key"`
	Fragments       []string `json:"fragments"`
	FragmentCount   int      `json:"fragment_count"`
	TTLRemaining    string   `json:"ttl_remaining"`
	HasLiveTimer    bool     `json:"has_live_timer"`
}
