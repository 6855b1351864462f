package executor

import (
	"context"
	"fmt"
	"sync"
)

// MockResolver resolves one field for tests. MockRuntime adapts it to the
// batched Runtime surface.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// NewMockValueResolver returns a resolver that always yields val.
func NewMockValueResolver(val any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return val, nil }
}

// NewMockErrorResolver returns a resolver that always fails with err.
func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Call records one resolver invocation. Async calls within the same flush
// share a BatchID; sync calls have BatchID zero.
type Call struct {
	Kind       string // "sync" or "async"
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	BatchID    int
}

// MockRuntime is a Runtime backed by a resolver registry keyed by
// "ObjectType.Field", with a call log for asserting on resolution traffic.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	calls     []Call
	batchSeq  int
}

func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{resolvers: make(map[string]MockResolver)}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

// SetResolver registers or replaces the resolver for objectType.field.
func (m *MockRuntime) SetResolver(objectType, field string, r MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = r
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	m.mu.Lock()
	r := m.resolvers[objectType+"."+field]
	m.calls = append(m.calls, Call{Kind: "sync", ObjectType: objectType, Field: field, Source: source, Args: args})
	m.mu.Unlock()

	if r == nil {
		return nil, nil
	}
	return r(ctx, source, args)
}

func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncTask) []AsyncResult {
	if len(tasks) == 0 {
		return nil
	}
	m.mu.Lock()
	m.batchSeq++
	batchID := m.batchSeq
	m.mu.Unlock()

	results := make([]AsyncResult, len(tasks))
	for i, t := range tasks {
		m.mu.Lock()
		r := m.resolvers[t.ObjectType+"."+t.Field]
		m.calls = append(m.calls, Call{Kind: "async", ObjectType: t.ObjectType, Field: t.Field, Source: t.Source, Args: t.Args, BatchID: batchID})
		m.mu.Unlock()

		if r == nil {
			results[i] = AsyncResult{}
			continue
		}
		val, err := r(ctx, t.Source, t.Args)
		results[i] = AsyncResult{Value: val, Error: err}
	}
	return results
}

func (m *MockRuntime) SerializeLeaf(ctx context.Context, scalarType string, value any) (any, error) {
	switch scalarType {
	case "Boolean":
		if _, ok := value.(bool); !ok {
			return nil, fmt.Errorf("expected bool for Boolean, got %T", value)
		}
	}
	return value, nil
}

// Calls returns a copy of the recorded calls in order.
func (m *MockRuntime) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
