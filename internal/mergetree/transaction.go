package mergetree

// Transaction captures a tentative replacement of parts — a merge's
// inputs-for-output swap, or an insert's new-part addition — and undoes it
// on destruction unless Commit was called (spec §5 "A Transaction object
// captures a tentative replacement of parts and undoes it on destruction
// unless commit was called"). Go has no destructors, so the caller must
// run Transaction through a defer in the same style pebble's own
// versionSet edits are applied under a deferred unlock/unwind.
type Transaction struct {
	table     *Table
	additions []*Part
	removals  []*Part
	committed bool
}

// beginTransaction starts a new Transaction against t. Callers add the
// parts they intend to install and retire, then either Commit (making the
// change permanent) or let the Transaction go out of scope, at which
// point Rollback must be called explicitly — Go offers no destructor to
// do this implicitly, so every caller in this package uses
// `defer txn.RollbackUnlessCommitted()`.
func beginTransaction(t *Table) *Transaction {
	return &Transaction{table: t}
}

// Add stages a new part for installation into the active set on Commit.
func (tx *Transaction) Add(p *Part) { tx.additions = append(tx.additions, p) }

// Remove stages an existing active part for retirement (moved out of the
// active set and kept in the all-parts set) on Commit.
func (tx *Transaction) Remove(p *Part) { tx.removals = append(tx.removals, p) }

// Commit installs every staged addition and retires every staged removal
// atomically under the table's structure lock.
func (tx *Transaction) Commit() error {
	tx.table.mu.Lock()
	defer tx.table.mu.Unlock()

	for _, p := range tx.removals {
		tx.table.retireLocked(p)
		tx.table.logger.Infof("granitetree: retired part %s", p.Name)
	}
	for _, p := range tx.additions {
		if err := tx.table.installLocked(p); err != nil {
			return err
		}
		tx.table.logger.Infof("granitetree: installed part %s (%d rows)", p.Name, p.Rows)
	}
	tx.committed = true
	return nil
}

// RollbackUnlessCommitted discards every staged addition (removing its
// on-disk directory, since it was never made visible) if Commit was never
// called. Safe to call unconditionally via defer.
func (tx *Transaction) RollbackUnlessCommitted() {
	if tx.committed {
		return
	}
	for _, p := range tx.additions {
		removeAll(tx.table.logger, p.Dir)
	}
}
