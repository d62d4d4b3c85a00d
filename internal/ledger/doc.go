// Package ledger persists filter runs in SQLite and exposes helpers for
// driving their lifecycle.
//
// A run is one (source bitstream, filter) pair. The batch processor enqueues
// runs, claims them one at a time, and records the outcome together with the
// derivative's location. Completed runs double as the skip list: a source
// already filtered by a given filter is not re-enqueued unless forced.
//
// The database is transient job state, not an archive. Schema changes add a
// migration file under migrations/.
package ledger
