// Package memory is an in-memory storage.Backend. It exists to make the
// resolver core testable without DynamoDB and doubles as the dev backend
// for `catalograph serve -storage.memory`. Iteration order is insertion
// order for scans and sort-key order for partition queries, pagination is
// driven by a real continuation token, and individual operations can be
// made to fail for error-path tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/catalograph/catalograph/internal/storage"
)

// Op names a backend operation for fault injection and the call log.
type Op string

const (
	OpFetch  Op = "fetch"
	OpQuery  Op = "query"
	OpScan   Op = "scan"
	OpUpdate Op = "update"
	OpPut    Op = "put"
)

// Call is one recorded backend invocation.
type Call struct {
	Op   Op
	Kind storage.Kind
	Key  string
}

// Backend is the in-memory implementation of storage.Backend.
type Backend struct {
	mu       sync.RWMutex
	tables   map[storage.Kind]*table
	faults   map[faultKey]error
	calls    []Call
	pageSize int
}

type faultKey struct {
	op   Op
	kind storage.Kind
}

type table struct {
	order []string // composite keys in insertion order
	items map[string]storage.Attributes
}

// New creates an empty backend. pageSize bounds items per scan page;
// values below 1 mean a single unbounded page.
func New(pageSize int) *Backend {
	return &Backend{
		tables:   make(map[storage.Kind]*table),
		faults:   make(map[faultKey]error),
		pageSize: pageSize,
	}
}

// SetFault makes every subsequent (op, kind) call fail with err wrapped as
// a storage unavailable error. Pass nil to clear.
func (b *Backend) SetFault(op Op, kind storage.Kind, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.faults, faultKey{op: op, kind: kind})
		return
	}
	b.faults[faultKey{op: op, kind: kind}] = err
}

// Calls returns a copy of all recorded backend invocations in order.
func (b *Backend) Calls() []Call {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

func (b *Backend) record(op Op, kind storage.Kind, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Op: op, Kind: kind, Key: key})
	if err := b.faults[faultKey{op: op, kind: kind}]; err != nil {
		return &storage.UnavailableError{Op: string(op), Kind: kind, Err: err}
	}
	return nil
}

func compositeKey(key storage.Key) string {
	if key.Sort == "" {
		return key.Partition
	}
	return key.Partition + "\x00" + key.Sort
}

func (b *Backend) FetchByKey(ctx context.Context, kind storage.Kind, key storage.Key) (storage.Attributes, error) {
	if err := b.record(OpFetch, kind, compositeKey(key)); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	t := b.tables[kind]
	if t == nil {
		return nil, nil
	}
	attrs, ok := t.items[compositeKey(key)]
	if !ok {
		return nil, nil
	}
	return cloneAttrs(attrs), nil
}

func (b *Backend) QueryByPartition(ctx context.Context, kind storage.Kind, partition string) ([]storage.Attributes, error) {
	if err := b.record(OpQuery, kind, partition); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []storage.Attributes{}
	t := b.tables[kind]
	if t == nil {
		return out, nil
	}
	matched := []string{}
	for _, ck := range t.order {
		if ck == partition || (len(ck) > len(partition) && ck[:len(partition)] == partition && ck[len(partition)] == '\x00') {
			matched = append(matched, ck)
		}
	}
	// Partition queries come back in sort-key order, not insertion order.
	sort.Strings(matched)
	for _, ck := range matched {
		out = append(out, cloneAttrs(t.items[ck]))
	}
	return out, nil
}

func (b *Backend) ScanPage(ctx context.Context, kind storage.Kind, token string) (storage.Page, error) {
	if err := b.record(OpScan, kind, token); err != nil {
		return storage.Page{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	start := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 {
			return storage.Page{}, &storage.UnavailableError{Op: string(OpScan), Kind: kind, Err: fmt.Errorf("bad continuation token %q", token)}
		}
		start = n
	}

	page := storage.Page{Items: []storage.Attributes{}}
	t := b.tables[kind]
	if t == nil {
		return page, nil
	}
	end := len(t.order)
	if b.pageSize > 0 && start+b.pageSize < end {
		end = start + b.pageSize
	}
	if start > len(t.order) {
		start = len(t.order)
	}
	for _, ck := range t.order[start:end] {
		page.Items = append(page.Items, cloneAttrs(t.items[ck]))
	}
	if end < len(t.order) {
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

func (b *Backend) UpdatePartial(ctx context.Context, kind storage.Kind, key storage.Key, changes storage.Attributes) (storage.Attributes, error) {
	if err := b.record(OpUpdate, kind, compositeKey(key)); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.tables[kind]
	if t == nil {
		return nil, storage.ErrNotFound
	}
	ck := compositeKey(key)
	attrs, ok := t.items[ck]
	if !ok {
		return nil, storage.ErrNotFound
	}
	for k, v := range changes {
		attrs[k] = v
	}
	return cloneAttrs(attrs), nil
}

func (b *Backend) Put(ctx context.Context, kind storage.Kind, key storage.Key, attrs storage.Attributes) error {
	if err := b.record(OpPut, kind, compositeKey(key)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.tables[kind]
	if t == nil {
		t = &table{items: make(map[string]storage.Attributes)}
		b.tables[kind] = t
	}
	ck := compositeKey(key)
	if _, exists := t.items[ck]; !exists {
		t.order = append(t.order, ck)
	}
	t.items[ck] = cloneAttrs(attrs)
	return nil
}

func cloneAttrs(attrs storage.Attributes) storage.Attributes {
	out := make(storage.Attributes, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
