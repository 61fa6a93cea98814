package service

import (
	"context"
	"log"
	"time"

	"github.com/arcanahq/arcana.space/internal/reading/audit"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
)

// DefaultSweepInterval is how often the expiry sweep runs.
const DefaultSweepInterval = time.Minute

// sweepActor attributes expiry records. Expiry has no human caller.
var sweepActor = Actor{ID: "system"}

// StartSweeper runs the expiry sweep on a background ticker. It returns a
// cancel function and a channel closed when the loop exits.
func (s *Service) StartSweeper(interval time.Duration) (context.CancelFunc, chan struct{}) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.SweepExpired(ctx); err != nil {
					log.Printf("expiry sweep failed: %v", err)
				}
			}
		}
	}()

	return cancel, done
}

// SweepExpired moves preparing and setup sessions past their expiry to the
// expired state. Each session is re-checked under its lock, so an operation
// that lands first wins and the sweep skips it.
func (s *Service) SweepExpired(ctx context.Context) error {
	now := s.now().UTC()
	candidates, err := s.store.ListExpiredSessions(ctx, now)
	if err != nil {
		return err
	}

	for _, candidate := range candidates {
		if err := s.expireSession(ctx, candidate.ID, now); err != nil {
			log.Printf("expire session session_id=%s: %v", candidate.ID, err)
			continue
		}
		log.Printf("session expired session_id=%s", candidate.ID)
	}
	return nil
}

func (s *Service) expireSession(ctx context.Context, sessionID string, now time.Time) error {
	unlock := s.locks.acquire(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	// The session may have advanced since the list query.
	if !session.State.CanTransitionTo(domain.SessionStateExpired) || session.ExpiresAt.After(now) {
		return nil
	}

	updated, err := session.Transition(domain.SessionStateExpired, s.now)
	if err != nil {
		return err
	}
	if err := s.store.PutSession(ctx, updated); err != nil {
		return err
	}
	return s.recordAudit(ctx, sweepActor, sessionID, audit.ActionSessionExpired, session, updated)
}
