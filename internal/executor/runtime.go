package executor

import "context"

// Runtime is the host surface the executor resolves fields through.
//
// ResolveSync is called for fields not marked Async; it must not perform
// backend I/O. BatchResolveAsync is called once per execution depth with
// every async task collected at that depth; implementations may resolve the
// tasks concurrently but must return one result per task, in task order,
// with failures isolated per element. Implementations must be safe for
// concurrent use across requests and must not mutate sources or args.
type Runtime interface {
	// ResolveSync resolves a field from the already-available parent value.
	// Returning (nil, nil) yields null for nullable fields.
	ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one depth of queued async fields.
	// len(results) == len(tasks) and results[i] corresponds to tasks[i].
	// A list-valued result may carry an error value in an element slot;
	// the executor turns it into a field error at that index.
	BatchResolveAsync(ctx context.Context, tasks []AsyncTask) []AsyncResult

	// SerializeLeaf coerces a scalar value into its JSON-safe form.
	SerializeLeaf(ctx context.Context, scalarType string, value any) (any, error)
}

// AsyncTask is one queued field resolution.
type AsyncTask struct {
	// ObjectType is the parent GraphQL type name ("Query" for roots).
	ObjectType string
	// Field is the field name on that type.
	Field string
	// Source is the parent value (nil for root fields).
	Source any
	// Args are the coerced field arguments.
	Args map[string]any
}

// AsyncResult is the outcome of one AsyncTask. Error is scoped to this
// element; other results in the batch are unaffected.
type AsyncResult struct {
	Value any
	Error error
}
