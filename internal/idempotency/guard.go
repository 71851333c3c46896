// Package idempotency serializes transfer attempts that share an
// idempotency key. Exactly one caller per key gets to execute; concurrent
// callers block until the holder finishes and then receive the holder's
// outcome without re-executing anything.
//
// The guard tracks in-flight keys only, so its memory stays bounded by the
// number of concurrent attempts. Replay of already-settled keys is the
// store's job: the coordinator double-checks TransactionByKey before
// executing a fresh reservation, which also covers process restarts.
package idempotency

import (
	"context"
	"sync"

	"github.com/mohitc/banking-ledger/internal/models"
)

// Outcome is the terminal result of the attempt that owned a key.
type Outcome struct {
	Tx  *models.Transaction
	Err error
}

type reservation struct {
	done     chan struct{}
	outcome  Outcome
	resolved bool
}

// Guard maps idempotency keys to in-flight transfer attempts.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]*reservation
}

func NewGuard() *Guard {
	return &Guard{
		inFlight: make(map[string]*reservation),
	}
}

// Reserve claims key for the caller. When fresh is true the caller must run
// the transfer and finish with Resolve or Release; otherwise prior holds the
// outcome of the in-flight attempt that owned the key. Reserve blocks while
// another caller holds the key, honoring ctx cancellation. A key whose
// attempt has already settled is fresh again; its durable outcome lives in
// the store.
func (g *Guard) Reserve(ctx context.Context, key string) (fresh bool, prior Outcome, err error) {
	for {
		g.mu.Lock()
		r, ok := g.inFlight[key]
		if !ok {
			g.inFlight[key] = &reservation{done: make(chan struct{})}
			g.mu.Unlock()
			return true, Outcome{}, nil
		}
		g.mu.Unlock()

		select {
		case <-r.done:
			if r.resolved {
				return false, r.outcome, nil
			}
			// Released without an outcome; race for a fresh reservation.
			continue
		case <-ctx.Done():
			return false, Outcome{}, ctx.Err()
		}
	}
}

// Resolve publishes the terminal outcome for key and wakes every waiter.
// The reservation is dropped; later callers reserve fresh and find the
// outcome through the store.
func (g *Guard) Resolve(key string, out Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.inFlight[key]
	if !ok {
		return
	}
	delete(g.inFlight, key)
	r.outcome = out
	r.resolved = true
	close(r.done)
}

// Release drops an unresolved reservation so the key can be retried. Used
// when the attempt had no durable effect: waiters re-enter Reserve and one
// of them becomes the fresh holder.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.inFlight[key]
	if !ok {
		return
	}
	delete(g.inFlight, key)
	close(r.done)
}
