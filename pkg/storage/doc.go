/*
Package storage persists the state of the lab management endpoint in
BoltDB.

The lab endpoint needs its fleet to survive restarts so that a deployment
can be interrupted and rerun against the same disks. Three buckets hold
JSON-encoded records:

	clusters   ClusterState keyed by cluster name
	hosts      HostState keyed by host ID
	tasks      TaskRecord keyed by task ID

The database file is burrow-lab.db inside the data directory passed to
NewBoltStore. Lookups of missing records return an error wrapping
ErrNotFound:

	host, err := store.GetHost("host-9")
	if errors.Is(err, storage.ErrNotFound) {
		...
	}

Store is an interface so tests and alternative backends can replace the
Bolt implementation. BoltStore serializes writers internally; callers that
need read-modify-write consistency across records hold their own lock.
*/
package storage
