package livelist

import "context"

type mutationKind int

const (
	mutInsert mutationKind = iota
	mutUpdate
	mutDelete
)

// Mutation is a local change paired with the remote write that makes it
// durable. Build one with Insert, InsertPlaceholder, Update or Delete.
type Mutation[T any] struct {
	kind        mutationKind
	id          string
	placeholder *T
	change      func(T) T
	create      func(ctx context.Context) (T, error)
	update      func(ctx context.Context, local T) (T, error)
	remove      func(ctx context.Context) error
}

// Insert creates a row without a local placeholder: nothing is shown until
// the server returns the row with its authoritative id.
func Insert[T any](write func(ctx context.Context) (T, error)) Mutation[T] {
	return Mutation[T]{kind: mutInsert, create: write}
}

// InsertPlaceholder shows placeholder immediately, keyed by a client-side id,
// and swaps it for the server row once the write succeeds.
func InsertPlaceholder[T any](placeholder T, write func(ctx context.Context) (T, error)) Mutation[T] {
	return Mutation[T]{kind: mutInsert, placeholder: &placeholder, create: write}
}

// Update applies change to the entry with id locally, then sends the changed
// entry to write.
func Update[T any](id string, change func(T) T, write func(ctx context.Context, local T) (T, error)) Mutation[T] {
	return Mutation[T]{kind: mutUpdate, id: id, change: change, update: write}
}

// Delete removes the entry with id locally, then calls write.
func Delete[T any](id string, write func(ctx context.Context) error) Mutation[T] {
	return Mutation[T]{kind: mutDelete, id: id, remove: write}
}
