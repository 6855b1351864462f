package executor

import (
	language "github.com/catalograph/catalograph/internal/language"
	schema "github.com/catalograph/catalograph/internal/schema"
)

// collectedField groups all occurrences of one response name, preserving
// the order fields first appear in the query.
type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

// collectFields flattens a selection set into ordered response fields,
// expanding fragment spreads and inline fragments and applying the
// @skip/@include directives.
func (s *evalState) collectFields(objectType *schema.Type, selections language.SelectionSet) []collectedField {
	var ordered []collectedField
	index := make(map[string]int)
	visited := make(map[string]bool)
	s.collectFieldsInto(objectType, selections, &ordered, index, visited)
	return ordered
}

func (s *evalState) collectFieldsInto(
	objectType *schema.Type,
	selections language.SelectionSet,
	ordered *[]collectedField,
	index map[string]int,
	visitedFragments map[string]bool,
) {
	for _, selection := range selections {
		switch sel := selection.(type) {
		case *language.Field:
			if !s.includeNode(sel.Directives) {
				continue
			}
			name := sel.Alias
			if name == "" {
				name = sel.Name
			}
			if i, ok := index[name]; ok {
				(*ordered)[i].Fields = append((*ordered)[i].Fields, sel)
			} else {
				index[name] = len(*ordered)
				*ordered = append(*ordered, collectedField{ResponseName: name, Fields: []*language.Field{sel}})
			}

		case *language.InlineFragment:
			if !s.includeNode(sel.Directives) {
				continue
			}
			if sel.TypeCondition != "" && sel.TypeCondition != objectType.Name {
				continue
			}
			s.collectFieldsInto(objectType, sel.SelectionSet, ordered, index, visitedFragments)

		case *language.FragmentSpread:
			if !s.includeNode(sel.Directives) {
				continue
			}
			if visitedFragments[sel.Name] {
				continue
			}
			visitedFragments[sel.Name] = true
			frag := s.document.Fragments.ForName(sel.Name)
			if frag == nil {
				continue
			}
			if frag.TypeCondition != "" && frag.TypeCondition != objectType.Name {
				continue
			}
			s.collectFieldsInto(objectType, frag.SelectionSet, ordered, index, visitedFragments)
		}
	}
}

// includeNode evaluates @skip and @include on a selection.
func (s *evalState) includeNode(directives language.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil {
		if v, ok := s.directiveIf(d); ok && v {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if v, ok := s.directiveIf(d); ok && !v {
			return false
		}
	}
	return true
}

func (s *evalState) directiveIf(d *language.Directive) (bool, bool) {
	for _, arg := range d.Arguments {
		if arg.Name == "if" {
			v, ok := s.valueFromAST(arg.Value).(bool)
			return v, ok
		}
	}
	return false, false
}
