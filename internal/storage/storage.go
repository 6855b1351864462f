// Package storage defines the backend contract the catalog resolvers read
// and write through. Implementations live in the dynamo and memory
// subpackages; everything above this interface is backend-agnostic.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Kind names an entity collection in the backend. Each kind maps to one
// DynamoDB table (or one in-memory table in the test double).
type Kind string

const (
	KindProduct   Kind = "product"
	KindReview    Kind = "review"
	KindInventory Kind = "inventory"
)

// Attributes is a raw stored record. Values are limited to string, bool,
// decimal.Decimal for numbers, nil, []any and nested map[string]any.
// Numbers stay exact decimals until an entity mapper converts them.
type Attributes = map[string]any

// Key identifies a single record. Sort is empty for kinds keyed by
// partition only (products, inventory).
type Key struct {
	Partition string
	Sort      string
}

// Page is one scan page. NextToken is an opaque continuation token;
// empty means the scan is exhausted.
type Page struct {
	Items     []Attributes
	NextToken string
}

// Backend is the storage adapter contract.
//
// Reads treat absence as a normal outcome: FetchByKey returns a nil map and
// QueryByPartition an empty slice. Only UpdatePartial turns a missing key
// into ErrNotFound, because an update target must exist. Any transport,
// throttling or auth fault surfaces as *UnavailableError. Implementations
// must be safe for concurrent use by in-flight requests.
type Backend interface {
	// FetchByKey returns the record at key, or nil when absent.
	FetchByKey(ctx context.Context, kind Kind, key Key) (Attributes, error)

	// QueryByPartition returns all records sharing the partition key, in
	// storage-native sort-key order. No matches yields an empty slice.
	QueryByPartition(ctx context.Context, kind Kind, partition string) ([]Attributes, error)

	// ScanPage returns one page of a full scan. Pass an empty token to
	// start; follow Page.NextToken until it comes back empty.
	ScanPage(ctx context.Context, kind Kind, token string) (Page, error)

	// UpdatePartial applies the supplied attribute changes to an existing
	// record and returns the record as stored afterwards. Attributes not
	// present in changes are left untouched. A missing target is ErrNotFound.
	UpdatePartial(ctx context.Context, kind Kind, key Key, changes Attributes) (Attributes, error)

	// Put writes a full record, replacing any previous value. Used by
	// seeding and tests; the query path never calls it.
	Put(ctx context.Context, kind Kind, key Key, attrs Attributes) error
}

// ErrNotFound reports that an update targeted a record that does not exist.
var ErrNotFound = errors.New("record not found")

// UnavailableError wraps a backend fault: the call could not be served,
// as opposed to the data being absent. Code carries the backend's own
// error code when it has one.
type UnavailableError struct {
	Op   string
	Kind Kind
	Code string
	Err  error
}

func (e *UnavailableError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storage %s %s: %s: %v", e.Op, e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is (or wraps) a backend fault.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
