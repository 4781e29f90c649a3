/*
Package globalrefdb guards the refs of a replicated cluster against split brain.

Every node of the cluster keeps a local copy of the refs of each project. The global ref
database records, for each ref, the last value accepted anywhere in the cluster.

Before applying a ref update, a node locks the ref cluster-wide and checks that its local
value is the recorded one. Updates from a node which is out of sync are rejected. Once applied
locally, the new value is recorded with a compare-and-put: a local update which cannot be
recorded is rolled back.

The layout of this repository is:

	pkg/enforcement    policies deciding which projects and refs are checked
	pkg/refdb          the global ref database contract, values and backends (memory, badger)
	pkg/validation     validators of single and batched ref updates
	pkg/config         settings, loaded from yaml and the environment
	pkg/metrics        prometheus collectors
	cmd/refdb          operator CLI
*/
package globalrefdb
