package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// FollowUp is a best-effort action to run after the unit of work commits,
// outside the transaction boundary. Failures are reported, never propagated.
type FollowUp struct {
	Name string
	Run  func(ctx context.Context) error
}

// UnitOfWork wraps a single pgx transaction and carries two kinds of
// registered actions: compensations, attempted against the pool if the
// transaction cannot be rolled back cleanly, and follow-ups, executed by the
// caller after a successful commit.
type UnitOfWork struct {
	tx            interface{ Commit(context.Context) error }
	querier       Querier
	rollback      func(context.Context) error
	compensations []FollowUp
	followUps     []FollowUp
	done          bool
}

func Begin(ctx context.Context, pool *pgxpool.Pool) (*UnitOfWork, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &UnitOfWork{
		tx:       tx,
		querier:  tx,
		rollback: tx.Rollback,
	}, nil
}

// Querier returns the transactional handle repository methods should use
// for every write belonging to this unit of work.
func (u *UnitOfWork) Querier() Querier {
	return u.querier
}

// Compensate registers an action undoing an already-applied scarce-resource
// claim. It only runs if the transaction rollback itself fails, leaving the
// claim durable with no owner.
func (u *UnitOfWork) Compensate(name string, fn func(ctx context.Context) error) {
	u.compensations = append(u.compensations, FollowUp{Name: name, Run: fn})
}

// Defer registers a follow-up executed by the caller after commit.
func (u *UnitOfWork) Defer(name string, fn func(ctx context.Context) error) {
	u.followUps = append(u.followUps, FollowUp{Name: name, Run: fn})
}

// FollowUps returns the outbox accumulated during the unit of work.
func (u *UnitOfWork) FollowUps() []FollowUp {
	return u.followUps
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Abort rolls the transaction back. If the rollback fails, registered
// compensations run in reverse order against the pool; a compensation failure
// is logged and left for out-of-band reconciliation.
func (u *UnitOfWork) Abort(ctx context.Context, log zerolog.Logger) {
	if u.done {
		return
	}
	u.done = true

	if err := u.rollback(ctx); err == nil {
		return
	} else {
		log.Warn().Err(err).Msg("transaction rollback failed, running compensations")
	}

	for i := len(u.compensations) - 1; i >= 0; i-- {
		c := u.compensations[i]
		if err := c.Run(ctx); err != nil {
			log.Warn().Err(err).Str("compensation", c.Name).Msg("compensation failed, state needs reconciliation")
		}
	}
}
