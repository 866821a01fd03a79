// Package persist stores atom values outside the process.
//
// A Store[T] loads and saves one snapshot per Ref. MemoryStore keeps
// snapshots in memory; FileStore writes one YAML document per Ref below a
// root directory. Persister adapts a Store[any] to the atoms.Persister
// contract so a storage backend can write persistent keys through and
// hydrate them on first access:
//
//	store, _ := persist.NewFileStore("./state")
//	storage := atoms.NewDependencyGraphStorage(
//		atoms.WithPersister(persist.NewPersister(store, persist.WithNamespace("prefs"))),
//	)
//
// Meta carries a snapshot id and an ETag. Save rejects a non-empty ETag that
// does not match the stored one with ErrETagMismatch; Mutate builds
// optimistic read-modify-write on top of that.
package persist
