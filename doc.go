// Package atoms is a small state container built around typed keys.
//
// A State is declared once with Define, DefineFamily, DefineDerived or
// DefineExpression and registered in a Registry, which hands out a Key per
// state. Values live in a Storage, created lazily from the state's default
// the first time the key is read:
//
//	count := atoms.Define("count", func() int { return 0 })
//	storage := atoms.NewDependencyGraphStorage()
//	_ = atoms.Set(ctx, storage, count, 3)
//	v, _ := atoms.Get(ctx, storage, count)
//
// MemoryStorage keeps values and observers per key. DependencyGraphStorage
// additionally records which keys a derived state read while computing and
// recomputes materialized dependents, in dependency order, after every write.
// Edges that would close a cycle are rejected with a *CycleError.
//
// Every write assigns the value, notifies observers in registration order,
// emits one MutationEvent to the configured Telemetry and, for keys declared
// Persisted, saves through the Persister. Failures of the later steps are
// joined and returned after the value has been applied.
//
// Observers run on the writing goroutine. They may read any key, but a write
// from an observer using the context it was handed fails with
// ErrReentrantWrite; writing with an unrelated context blocks forever.
package atoms
