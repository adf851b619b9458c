package domain

import "context"

// Journal makes a group of state changes atomic. Changes happen inside a
// transaction carried by a context: the outermost Snapshot starts it, nested
// Snapshots on the returned context open revisions inside it, and only one
// transaction runs at a time. Every mutation records an undo closure;
// RevertToSnapshot replays them newest first.
type Journal interface {
	// Snapshot opens a revision on ctx's transaction, starting a new transaction
	// when ctx carries none. Starting one waits until the running transaction ends.
	Snapshot(ctx context.Context) (context.Context, int, error)
	RevertToSnapshot(ctx context.Context, id int)
	// Commit closes the revision and all newer ones, keeping their changes.
	Commit(ctx context.Context, id int)
	// Record registers an undo closure on the running transaction.
	// Undo closures must not call back into the journal owner.
	Record(undo func())
	// Publish defers fn until the outermost revision commits. Reverting a revision
	// drops everything published inside it.
	Publish(fn func())
}

// Atomically runs fn inside one revision of ctx's transaction. An error or a panic
// from fn reverts the revision.
func Atomically(ctx context.Context, j Journal, fn func(ctx context.Context) error) error {
	ctx, id, err := j.Snapshot(ctx)
	if err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			j.RevertToSnapshot(ctx, id)
		}
	}()

	if err := fn(ctx); err != nil {
		return err
	}
	done = true
	j.Commit(ctx, id)
	return nil
}
