package ledger

import (
	"context"
	"fmt"

	"github.com/hxuan190/amm-engine/internal/domain"
)

type txKey struct{ l *Ledger }

type revision struct {
	id        int
	entries   int
	published int
}

// transaction holds the undo closures and deferred publications of one outermost
// unit of work. All methods expect the ledger mutex to be held.
type transaction struct {
	entries   []func()
	published []func()
	revisions []revision
	nextID    int
}

func (tx *transaction) snapshot() int {
	id := tx.nextID
	tx.nextID++
	tx.revisions = append(tx.revisions, revision{id: id, entries: len(tx.entries), published: len(tx.published)})
	return id
}

func (tx *transaction) find(id int) int {
	for i := len(tx.revisions) - 1; i >= 0; i-- {
		if tx.revisions[i].id == id {
			return i
		}
	}
	panic(fmt.Errorf("revision id %v cannot be reverted", id))
}

func (tx *transaction) revert(id int) {
	idx := tx.find(id)
	rev := tx.revisions[idx]
	for i := len(tx.entries) - 1; i >= rev.entries; i-- {
		tx.entries[i]()
	}
	tx.entries = tx.entries[:rev.entries]
	tx.published = tx.published[:rev.published]
	tx.revisions = tx.revisions[:idx]
}

func (tx *transaction) commit(id int) {
	tx.revisions = tx.revisions[:tx.find(id)]
}

// Snapshot opens a revision on the transaction ctx carries. Without one it waits for
// the slot, starts a new transaction and returns a context carrying it.
func (l *Ledger) Snapshot(ctx context.Context) (context.Context, int, error) {
	l.mu.Lock()
	if tx := l.joinedLocked(ctx); tx != nil {
		id := tx.snapshot()
		l.mu.Unlock()
		return ctx, id, nil
	}
	l.mu.Unlock()

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx, 0, ctx.Err()
	}

	tx := &transaction{}
	l.mu.Lock()
	l.active = tx
	id := tx.snapshot()
	l.mu.Unlock()
	return context.WithValue(ctx, txKey{l}, tx), id, nil
}

func (l *Ledger) RevertToSnapshot(ctx context.Context, id int) {
	l.end(ctx, id, false)
}

func (l *Ledger) Commit(ctx context.Context, id int) {
	l.end(ctx, id, true)
}

// end closes a revision. Closing the outermost one publishes what the transaction
// kept, then frees the slot for the next transaction.
func (l *Ledger) end(ctx context.Context, id int, keep bool) {
	l.mu.Lock()
	tx := l.joinedLocked(ctx)
	if tx == nil {
		l.mu.Unlock()
		panic(fmt.Errorf("revision id %v: context carries no running transaction", id))
	}
	if keep {
		tx.commit(id)
	} else {
		tx.revert(id)
	}
	if len(tx.revisions) > 0 {
		l.mu.Unlock()
		return
	}
	l.active = nil
	published := tx.published
	l.mu.Unlock()

	defer func() { <-l.slot }()
	for _, fn := range published {
		fn()
	}
}

// joinedLocked returns the running transaction if ctx belongs to it.
func (l *Ledger) joinedLocked(ctx context.Context) *transaction {
	tx, _ := ctx.Value(txKey{l}).(*transaction)
	if tx == nil || tx != l.active {
		return nil
	}
	return tx
}

func (l *Ledger) Record(undo func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordLocked(undo)
}

func (l *Ledger) recordLocked(undo func()) {
	if l.active != nil {
		l.active.entries = append(l.active.entries, undo)
	}
}

func (l *Ledger) Publish(fn func()) {
	l.mu.Lock()
	if tx := l.active; tx != nil {
		tx.published = append(tx.published, fn)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	fn()
}

// apply runs fn under the ledger mutex inside a revision of ctx's transaction.
func (l *Ledger) apply(ctx context.Context, fn func() error) error {
	return domain.Atomically(ctx, l, func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		return fn()
	})
}

// Exclusive runs fn as a transaction, so no other transaction runs alongside it.
// Readers use it to copy one consistent cut of every component sharing the ledger.
func (l *Ledger) Exclusive(ctx context.Context, fn func()) error {
	return domain.Atomically(ctx, l, func(context.Context) error {
		fn()
		return nil
	})
}
