// Package language wraps the gqlparser query parser and AST so the rest of
// the codebase depends on a single import path for GraphQL syntax concerns.
package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// Error is a syntax-level GraphQL error with optional source locations.
type Error = gqlerror.Error

// ParseQuery parses an executable GraphQL document (queries and mutations).
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}
