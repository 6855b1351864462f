// Package resolver implements executor.Runtime on top of storage.Backend:
// the query and mutation roots plus the Product relationship fields.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/catalograph/catalograph/internal/catalog"
	"github.com/catalograph/catalograph/internal/executor"
	"github.com/catalograph/catalograph/internal/storage"
)

// Session resolves fields for a single operation evaluation. Relationship
// fetches are memoised per (field, product) for the lifetime of the
// session only; create a fresh session per request so nothing is cached
// across queries.
type Session struct {
	backend storage.Backend

	mu  sync.Mutex
	rel map[relKey]*relEntry
}

type relKey struct {
	field     string
	productID string
}

type relEntry struct {
	once  sync.Once
	value any
	err   error
}

// NewSession creates a resolver session bound to backend.
func NewSession(backend storage.Backend) *Session {
	return &Session{backend: backend, rel: make(map[relKey]*relEntry)}
}

// Factory returns a SessionFactory for the server: one session per request.
func Factory(backend storage.Backend) func() executor.Runtime {
	return func() executor.Runtime { return NewSession(backend) }
}

// ResolveSync serves scalar fields straight from the mapped entity.
// No backend I/O happens here.
func (s *Session) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch objectType {
	case "Product":
		p, ok := source.(catalog.Product)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for Product.%s", source, field)
		}
		switch field {
		case "productId":
			return p.ProductID, nil
		case "name":
			return deref(p.Name), nil
		case "price":
			return deref(p.Price), nil
		case "description":
			return deref(p.Description), nil
		}
	case "Review":
		r, ok := source.(catalog.Review)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for Review.%s", source, field)
		}
		switch field {
		case "productId":
			return r.ProductID, nil
		case "reviewId":
			return r.ReviewID, nil
		case "rating":
			return r.Rating, nil
		case "comment":
			return r.Comment, nil
		}
	case "Inventory":
		inv, ok := source.(catalog.Inventory)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for Inventory.%s", source, field)
		}
		switch field {
		case "productId":
			return inv.ProductID, nil
		case "quantityAvailable":
			return inv.QuantityAvailable, nil
		case "location":
			return inv.Location, nil
		}
	}
	return nil, fmt.Errorf("no resolver for %s.%s", objectType, field)
}

// BatchResolveAsync fans the depth's tasks out concurrently. Each task is
// an independent read (or the single mutation), so there is no ordering
// between them; results keep task order and failures stay per-element.
func (s *Session) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncTask) []executor.AsyncResult {
	results := make([]executor.AsyncResult, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task executor.AsyncTask) {
			defer wg.Done()
			value, err := s.resolveAsync(ctx, task)
			results[i] = executor.AsyncResult{Value: value, Error: err}
		}(i, task)
	}
	wg.Wait()
	return results
}

func (s *Session) resolveAsync(ctx context.Context, task executor.AsyncTask) (any, error) {
	switch task.ObjectType + "." + task.Field {
	case "Query.product":
		id, err := stringArg(task.Args, "productId")
		if err != nil {
			return nil, err
		}
		return s.getProduct(ctx, id)
	case "Query.products":
		return s.listProducts(ctx)
	case "Mutation.updateProduct":
		id, err := stringArg(task.Args, "productId")
		if err != nil {
			return nil, err
		}
		input, _ := task.Args["input"].(map[string]any)
		return s.updateProduct(ctx, id, input)
	case "Product.reviews":
		p, ok := task.Source.(catalog.Product)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for Product.reviews", task.Source)
		}
		return s.memoised("reviews", p.ProductID, func() (any, error) {
			return s.productReviews(ctx, p.ProductID)
		})
	case "Product.inventory":
		p, ok := task.Source.(catalog.Product)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for Product.inventory", task.Source)
		}
		return s.memoised("inventory", p.ProductID, func() (any, error) {
			return s.productInventory(ctx, p.ProductID)
		})
	}
	return nil, fmt.Errorf("no resolver for %s.%s", task.ObjectType, task.Field)
}

// getProduct fetches one product by id. Absence is a null result at the
// root, not an error.
func (s *Session) getProduct(ctx context.Context, id string) (any, error) {
	attrs, err := s.backend.FetchByKey(ctx, storage.KindProduct, storage.Key{Partition: id})
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		return nil, nil
	}
	p, err := catalog.MapProduct(attrs)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// listProducts walks every scan page until the backend reports no further
// continuation token, concatenating pages in order. A record that fails to
// map keeps its slot as an error, so the failure stays scoped to that
// element while the rest of the listing comes back intact.
func (s *Session) listProducts(ctx context.Context) (any, error) {
	out := []any{}
	token := ""
	for {
		page, err := s.backend.ScanPage(ctx, storage.KindProduct, token)
		if err != nil {
			return nil, err
		}
		for _, attrs := range page.Items {
			p, err := catalog.MapProduct(attrs)
			if err != nil {
				out = append(out, err)
				continue
			}
			out = append(out, p)
		}
		if page.NextToken == "" {
			return out, nil
		}
		token = page.NextToken
	}
}

// updateProduct applies a sparse field change set. Fields absent from the
// input are untouched; an explicit null is also left untouched rather than
// clearing the attribute. A missing target is an error, unlike reads.
func (s *Session) updateProduct(ctx context.Context, id string, input map[string]any) (any, error) {
	changes := storage.Attributes{}
	if v, ok := input["name"].(string); ok {
		changes["name"] = v
	}
	if v, ok := input["price"].(float64); ok {
		if v < 0 {
			return nil, fmt.Errorf("price must not be negative")
		}
		changes["price"] = decimal.NewFromFloat(v)
	}
	if v, ok := input["description"].(string); ok {
		changes["description"] = v
	}
	if len(changes) == 0 {
		return nil, fmt.Errorf("input must supply at least one field")
	}

	attrs, err := s.backend.UpdatePartial(ctx, storage.KindProduct, storage.Key{Partition: id}, changes)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("product %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	p, err := catalog.MapProduct(attrs)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// productReviews returns the product's reviews in storage sort-key order.
// No matching records is an empty list, never an error. A malformed review
// record keeps its slot as an error, mirroring listProducts.
func (s *Session) productReviews(ctx context.Context, productID string) (any, error) {
	items, err := s.backend.QueryByPartition(ctx, storage.KindReview, productID)
	if err != nil {
		return nil, err
	}
	out := []any{}
	for _, attrs := range items {
		r, err := catalog.MapReview(attrs)
		if err != nil {
			out = append(out, err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// productInventory returns the product's inventory record, or null when
// the product has none.
func (s *Session) productInventory(ctx context.Context, productID string) (any, error) {
	attrs, err := s.backend.FetchByKey(ctx, storage.KindInventory, storage.Key{Partition: productID})
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		return nil, nil
	}
	inv, err := catalog.MapInventory(attrs)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// memoised runs fetch once per (field, product) within this session.
// Aliased duplicates of a relationship field share one backend call.
func (s *Session) memoised(field, productID string, fetch func() (any, error)) (any, error) {
	key := relKey{field: field, productID: productID}
	s.mu.Lock()
	e, ok := s.rel[key]
	if !ok {
		e = &relEntry{}
		s.rel[key] = e
	}
	s.mu.Unlock()
	e.once.Do(func() { e.value, e.err = fetch() })
	return e.value, e.err
}

// SerializeLeaf coerces scalar values to their JSON-safe forms.
func (s *Session) SerializeLeaf(ctx context.Context, scalarType string, value any) (any, error) {
	switch scalarType {
	case "Int":
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		}
	case "Float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
	case "String", "ID":
		if v, ok := value.(string); ok {
			return v, nil
		}
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("cannot serialize %T as %s", value, scalarType)
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("argument '%s' is required", name)
	}
	return v, nil
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
