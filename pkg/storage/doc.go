/*
Package storage persists lookout resources in a BoltDB file.

BoltStore keeps two buckets in <data-dir>/lookout.db:

	sources     id -> JSON types.SourceInstance
	dashboards  id -> JSON types.Dashboard

Create and Update are both upserts. Get returns an error wrapping ErrNotFound
for unknown ids:

	src, err := store.GetSource(id)
	if errors.Is(err, storage.ErrNotFound) {
		...
	}

Events and run statistics are kept in memory only and are not stored here.
*/
package storage
