package buffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Settler drains a settled buffer into one composite message and drives
// the reply pipeline. Invoked only by a Fired scheduler transition.
type Settler struct {
	store     Store
	gateway   Gateway
	responder Responder
	history   HistoryProvider
	recorder  Recorder

	contextLimit int
	claimTTL     time.Duration
	logger       *slog.Logger
}

func NewSettler(log *slog.Logger, store Store, gateway Gateway, responder Responder, history HistoryProvider, contextLimit int, claimTTL time.Duration) *Settler {
	if log == nil {
		log = slog.Default()
	}
	return &Settler{
		store:        store,
		gateway:      gateway,
		responder:    responder,
		history:      history,
		contextLimit: contextLimit,
		claimTTL:     claimTTL,
		logger:       log.With(slog.String("service", "settlement")),
	}
}

// SetRecorder registers post-reply exchange persistence. Optional: in
// gateway history mode nothing is recorded locally.
func (s *Settler) SetRecorder(r Recorder) {
	s.recorder = r
}

// Settle reads all buffered fragments for key, joins them, and if non-empty
// produces and delivers a reply. The buffer entry is always cleared before
// returning, even when a downstream call fails, so a failed burst never
// leaves the conversation stuck.
func (s *Settler) Settle(ctx context.Context, key string) error {
	claimed, err := s.store.Claim(ctx, key, s.claimTTL)
	if err != nil {
		return fmt.Errorf("claim settlement for %s: %w: %w", key, ErrStoreUnavailable, err)
	}
	if !claimed {
		// Another instance won the fire for this burst; treat as cancelled.
		s.logger.Debug("settlement claimed elsewhere", slog.String("chat_id", key))
		return nil
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.Clear(cleanupCtx, key); err != nil {
			s.logger.Error("buffer cleanup failed", slog.String("chat_id", key), slog.Any("error", err))
		}
		if err := s.store.ReleaseClaim(cleanupCtx, key); err != nil {
			s.logger.Warn("claim release failed", slog.String("chat_id", key), slog.Any("error", err))
		}
	}()

	fragments, err := s.store.Fragments(ctx, key)
	if err != nil {
		return fmt.Errorf("read fragments for %s: %w: %w", key, ErrStoreUnavailable, err)
	}
	composite := strings.TrimSpace(strings.Join(fragments, " "))
	if composite == "" {
		// Already drained by a racing settlement or TTL expiry.
		return nil
	}
	s.logger.Info("settling burst",
		slog.String("chat_id", key),
		slog.Int("fragments", len(fragments)))

	// Best-effort: a missing typing indicator must not kill the reply.
	if err := s.gateway.SetTyping(ctx, key, true); err != nil {
		s.logger.Warn("typing indicator failed", slog.String("chat_id", key), slog.Any("error", err))
	}

	var turns []Turn
	if s.history != nil && s.contextLimit > 0 {
		turns, err = s.history.Recent(ctx, key, s.contextLimit)
		if err != nil {
			s.logger.Warn("history unavailable, replying without context",
				slog.String("chat_id", key), slog.Any("error", err))
			turns = nil
		}
	}

	reply, err := s.responder.Respond(ctx, composite, turns)
	if err != nil {
		if typErr := s.gateway.SetTyping(ctx, key, false); typErr != nil {
			s.logger.Warn("typing indicator failed", slog.String("chat_id", key), slog.Any("error", typErr))
		}
		return fmt.Errorf("respond for %s: %w: %w", key, ErrSettlementFailed, err)
	}

	var g errgroup.Group
	var sendErr, typingErr error
	g.Go(func() error {
		sendErr = s.gateway.SendText(ctx, key, reply)
		return nil
	})
	g.Go(func() error {
		typingErr = s.gateway.SetTyping(ctx, key, false)
		return nil
	})
	_ = g.Wait()
	if err := errors.Join(sendErr, typingErr); err != nil {
		return fmt.Errorf("deliver reply for %s: %w: %w", key, ErrSettlementFailed, err)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, key, composite, reply); err != nil {
			s.logger.Warn("exchange not recorded", slog.String("chat_id", key), slog.Any("error", err))
		}
	}

	s.logger.Info("reply delivered", slog.String("chat_id", key))
	return nil
}
