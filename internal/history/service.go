// Package history keeps the per-conversation exchange log used as
// responder context. The log is append-only with a maximum retained
// length and an expiry horizon; trimming happens store-side after each
// settled exchange, never autonomously.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrStoreUnavailable = errors.New("history store unavailable")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one stored exchange unit.
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the persistence boundary; the Redis implementation lives in
// internal/redisstore.
type Store interface {
	// Push appends one encoded turn, trims the log to the newest max
	// entries, and resets the expiry.
	Push(ctx context.Context, key string, raw []byte, max int, ttl time.Duration) error
	// Range returns the newest limit encoded turns in chronological order;
	// limit <= 0 returns all.
	Range(ctx context.Context, key string, limit int) ([][]byte, error)
	Clear(ctx context.Context, key string) error
	Count(ctx context.Context, key string) (int64, error)
}

type Service struct {
	store  Store
	max    int
	ttl    time.Duration
	logger *slog.Logger
}

func NewService(log *slog.Logger, store Store, maxMessages int, ttl time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		max:    maxMessages,
		ttl:    ttl,
		logger: log.With(slog.String("service", "history")),
	}
}

// Append stores one turn for the session, trimming to the retained maximum.
func (s *Service) Append(ctx context.Context, key, role, text string) error {
	if key == "" {
		return fmt.Errorf("%w: session key is empty", ErrInvalidArgument)
	}
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}
	if text == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidArgument)
	}

	turn := Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	raw, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	if err := s.store.Push(ctx, key, raw, s.max, s.ttl); err != nil {
		return fmt.Errorf("push turn for %s: %w: %w", key, ErrStoreUnavailable, err)
	}
	return nil
}

// Record persists one settled exchange: the composite question followed by
// the delivered reply.
func (s *Service) Record(ctx context.Context, key, question, reply string) error {
	if err := s.Append(ctx, key, RoleUser, question); err != nil {
		return err
	}
	return s.Append(ctx, key, RoleAssistant, reply)
}

// Recent returns the newest limit turns in chronological order.
func (s *Service) Recent(ctx context.Context, key string, limit int) ([]Turn, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: session key is empty", ErrInvalidArgument)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative, got %d", ErrInvalidArgument, limit)
	}

	raws, err := s.store.Range(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("read history for %s: %w: %w", key, ErrStoreUnavailable, err)
	}
	turns := make([]Turn, 0, len(raws))
	for _, raw := range raws {
		var turn Turn
		if err := json.Unmarshal(raw, &turn); err != nil {
			s.logger.Warn("skipping malformed history entry",
				slog.String("session", key), slog.Any("error", err))
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *Service) Clear(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("%w: session key is empty", ErrInvalidArgument)
	}
	if err := s.store.Clear(ctx, key); err != nil {
		return fmt.Errorf("clear history for %s: %w: %w", key, ErrStoreUnavailable, err)
	}
	s.logger.Info("history cleared", slog.String("session", key))
	return nil
}

func (s *Service) Count(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: session key is empty", ErrInvalidArgument)
	}
	n, err := s.store.Count(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("count history for %s: %w: %w", key, ErrStoreUnavailable, err)
	}
	return n, nil
}
