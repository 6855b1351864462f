package catalog

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/catalograph/catalograph/internal/storage"
)

// MappingError reports a stored record that cannot be turned into an
// entity. It is fatal for that record only; callers surface it as a
// field-level error and keep resolving siblings.
type MappingError struct {
	Entity string
	Attr   string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("malformed %s record: attribute %q: %s", e.Entity, e.Attr, e.Reason)
}

// MapProduct converts a raw product record. product_id is required;
// everything else defaults to absent, never to a zero value.
func MapProduct(attrs storage.Attributes) (Product, error) {
	id, err := reqString("product", attrs, "product_id")
	if err != nil {
		return Product{}, err
	}
	p := Product{ProductID: id}
	if p.Name, err = optString("product", attrs, "name"); err != nil {
		return Product{}, err
	}
	if p.Price, err = optFloat("product", attrs, "price"); err != nil {
		return Product{}, err
	}
	if p.Description, err = optString("product", attrs, "description"); err != nil {
		return Product{}, err
	}
	return p, nil
}

// MapReview converts a raw review record. All attributes are required.
func MapReview(attrs storage.Attributes) (Review, error) {
	var r Review
	var err error
	if r.ProductID, err = reqString("review", attrs, "product_id"); err != nil {
		return Review{}, err
	}
	if r.ReviewID, err = reqString("review", attrs, "review_id"); err != nil {
		return Review{}, err
	}
	if r.Rating, err = reqInt("review", attrs, "rating"); err != nil {
		return Review{}, err
	}
	if r.Comment, err = reqString("review", attrs, "comment"); err != nil {
		return Review{}, err
	}
	return r, nil
}

// MapInventory converts a raw inventory record.
func MapInventory(attrs storage.Attributes) (Inventory, error) {
	var inv Inventory
	var err error
	if inv.ProductID, err = reqString("inventory", attrs, "product_id"); err != nil {
		return Inventory{}, err
	}
	if inv.QuantityAvailable, err = reqInt("inventory", attrs, "quantity_available"); err != nil {
		return Inventory{}, err
	}
	if inv.QuantityAvailable < 0 {
		return Inventory{}, &MappingError{Entity: "inventory", Attr: "quantity_available", Reason: "negative quantity"}
	}
	if inv.Location, err = reqString("inventory", attrs, "location"); err != nil {
		return Inventory{}, err
	}
	return inv, nil
}

// FloatFromDecimal converts an exact stored decimal to float64, failing
// when the value does not survive the conversion. 19.99 must stay 19.99:
// the round-trip check rejects values whose nearest float64 reads back as
// a different decimal, instead of silently truncating.
func FloatFromDecimal(d decimal.Decimal) (float64, error) {
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("value %s overflows float64", d)
	}
	if !decimal.NewFromFloat(f).Equal(d) {
		return 0, fmt.Errorf("value %s loses precision as float64", d)
	}
	return f, nil
}

func reqString(entity string, attrs storage.Attributes, name string) (string, error) {
	v, ok := attrs[name]
	if !ok || v == nil {
		return "", &MappingError{Entity: entity, Attr: name, Reason: "required attribute missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &MappingError{Entity: entity, Attr: name, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

func optString(entity string, attrs storage.Attributes, name string) (*string, error) {
	v, ok := attrs[name]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, &MappingError{Entity: entity, Attr: name, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return &s, nil
}

func optFloat(entity string, attrs storage.Attributes, name string) (*float64, error) {
	v, ok := attrs[name]
	if !ok || v == nil {
		return nil, nil
	}
	d, ok := v.(decimal.Decimal)
	if !ok {
		return nil, &MappingError{Entity: entity, Attr: name, Reason: fmt.Sprintf("expected number, got %T", v)}
	}
	f, err := FloatFromDecimal(d)
	if err != nil {
		return nil, &MappingError{Entity: entity, Attr: name, Reason: err.Error()}
	}
	return &f, nil
}

func reqInt(entity string, attrs storage.Attributes, name string) (int, error) {
	v, ok := attrs[name]
	if !ok || v == nil {
		return 0, &MappingError{Entity: entity, Attr: name, Reason: "required attribute missing"}
	}
	d, ok := v.(decimal.Decimal)
	if !ok {
		return 0, &MappingError{Entity: entity, Attr: name, Reason: fmt.Sprintf("expected number, got %T", v)}
	}
	if !d.IsInteger() {
		return 0, &MappingError{Entity: entity, Attr: name, Reason: fmt.Sprintf("expected integer, got %s", d)}
	}
	n := d.IntPart()
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, &MappingError{Entity: entity, Attr: name, Reason: fmt.Sprintf("value %s out of range", d)}
	}
	return int(n), nil
}
