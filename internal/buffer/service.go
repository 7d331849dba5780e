package buffer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service is the coordinator and public entry point of the buffer core:
// it appends fragments to the shared store and (re)arms the per-key
// debounce timer.
type Service struct {
	store     Store
	scheduler *Scheduler
	registry  *Registry
	ttl       time.Duration
	logger    *slog.Logger
}

func NewService(log *slog.Logger, store Store, scheduler *Scheduler, registry *Registry, ttl time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		scheduler: scheduler,
		registry:  registry,
		ttl:       ttl,
		logger:    log.With(slog.String("service", "buffer")),
	}
}

// BufferFragment appends one raw fragment for key and resets the debounce
// window. After it returns, settlement cannot occur before one full quiet
// window, and any previously scheduled settlement for key is superseded.
func (s *Service) BufferFragment(ctx context.Context, key, fragment string) error {
	if key == "" {
		return fmt.Errorf("%w: conversation key is empty", ErrInvalidArgument)
	}
	if fragment == "" {
		return fmt.Errorf("%w: fragment is empty", ErrInvalidArgument)
	}

	if err := s.store.Append(ctx, key, fragment, s.ttl); err != nil {
		return fmt.Errorf("append fragment for %s: %w: %w", key, ErrStoreUnavailable, err)
	}
	s.logger.Debug("fragment buffered", slog.String("chat_id", key), slog.String("fragment", fragment))

	s.scheduler.Arm(key)
	return nil
}

// Status reports the buffer and timer state for one conversation.
// Read-only, no side effects.
func (s *Service) Status(ctx context.Context, key string) (Status, error) {
	if key == "" {
		return Status{}, fmt.Errorf("%w: conversation key is empty", ErrInvalidArgument)
	}

	fragments, err := s.store.Fragments(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("read fragments for %s: %w: %w", key, ErrStoreUnavailable, err)
	}
	ttl, err := s.store.TTL(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("read ttl for %s: %w: %w", key, ErrStoreUnavailable, err)
	}

	return Status{
		ConversationKey: key,
		Fragments:       fragments,
		FragmentCount:   len(fragments),
		TTLRemaining:    ttl.String(),
		HasLiveTimer:    s.scheduler.Live(key),
	}, nil
}

// Timers reports every tracked timer entry, live and completed.
func (s *Service) Timers() []TimerSnapshot {
	return s.registry.Snapshot()
}

// Sweep removes completed timer entries from the session registry.
func (s *Service) Sweep() int {
	removed := s.registry.Sweep()
	if removed > 0 {
		s.logger.Debug("registry swept", slog.Int("removed", removed))
	}
	return removed
}
