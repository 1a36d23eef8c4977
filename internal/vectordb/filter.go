package vectordb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/codeindexer/pkg/types"
)

// Filter is a parsed filter expression: a conjunction of predicates, each a
// field-equality or list-membership test over string-typed fields.
//
//	relative_path == "internal/server.go"
//	file_extension in [".go", ".java"] && relative_path == "main.go"
type Filter struct {
	predicates []predicate
}

type predicate struct {
	field  string
	values []string
}

// ParseFilter parses a filter expression. An empty expression matches every
// document.
func ParseFilter(expr string) (*Filter, error) {
	f := &Filter{}

	expr = strings.TrimSpace(expr)
	if expr == "" {
		return f, nil
	}

	for _, clause := range strings.Split(expr, "&&") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			return nil, fmt.Errorf("empty clause in filter %q", expr)
		}

		pred, err := parseClause(clause)
		if err != nil {
			return nil, err
		}
		f.predicates = append(f.predicates, pred)
	}

	return f, nil
}

// filterableFields are the string-typed schema fields the grammar admits.
// Restricting the set also keeps rendered SQL free of identifier injection.
var filterableFields = map[string]bool{
	"id":             true,
	"relative_path":  true,
	"file_extension": true,
	"content":        true,
	"metadata":       true,
}

func parseClause(clause string) (predicate, error) {
	if idx := strings.Index(clause, "=="); idx >= 0 {
		field := strings.TrimSpace(clause[:idx])
		value, err := unquote(strings.TrimSpace(clause[idx+2:]))
		if err != nil {
			return predicate{}, fmt.Errorf("clause %q: %w", clause, err)
		}
		if !filterableFields[field] {
			return predicate{}, fmt.Errorf("clause %q: unknown field %q", clause, field)
		}
		return predicate{field: field, values: []string{value}}, nil
	}

	if idx := strings.Index(clause, " in "); idx >= 0 {
		field := strings.TrimSpace(clause[:idx])
		list := strings.TrimSpace(clause[idx+4:])
		if !filterableFields[field] {
			return predicate{}, fmt.Errorf("clause %q: unknown field %q", clause, field)
		}
		if !strings.HasPrefix(list, "[") || !strings.HasSuffix(list, "]") {
			return predicate{}, fmt.Errorf("clause %q: membership list must be bracketed", clause)
		}

		var values []string
		inner := strings.TrimSpace(list[1 : len(list)-1])
		if inner != "" {
			for _, item := range strings.Split(inner, ",") {
				value, err := unquote(strings.TrimSpace(item))
				if err != nil {
					return predicate{}, fmt.Errorf("clause %q: %w", clause, err)
				}
				values = append(values, value)
			}
		}
		return predicate{field: field, values: values}, nil
	}

	return predicate{}, fmt.Errorf("clause %q: expected == or in", clause)
}

// unquote decodes a quoted value. Double-quoted values are Go string
// literals (the inverse of %q, so escaped quotes and backslashes in paths
// round-trip); single-quoted values must be escape-free.
func unquote(s string) (string, error) {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		value, err := strconv.Unquote(s)
		if err != nil {
			return "", fmt.Errorf("value %s is not a valid string literal: %w", s, err)
		}
		return value, nil
	}

	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		inner := s[1 : len(s)-1]
		if strings.ContainsAny(inner, `\'`) {
			return "", fmt.Errorf("single-quoted value %s may not contain escapes", s)
		}
		return inner, nil
	}

	return "", fmt.Errorf("value %q must be quoted", s)
}

// Matches reports whether the document satisfies every predicate. Unknown
// fields never match.
func (f *Filter) Matches(doc *types.VectorDocument) bool {
	for _, pred := range f.predicates {
		value, ok := documentField(doc, pred.field)
		if !ok {
			return false
		}

		found := false
		for _, want := range pred.values {
			if value == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SQL renders the filter as a WHERE fragment with placeholders and the
// matching argument list. An empty filter renders as "1=1".
func (f *Filter) SQL() (string, []interface{}) {
	if len(f.predicates) == 0 {
		return "1=1", nil
	}

	var clauses []string
	var args []interface{}

	for _, pred := range f.predicates {
		if len(pred.values) == 1 {
			clauses = append(clauses, fmt.Sprintf("%s = ?", pred.field))
			args = append(args, pred.values[0])
			continue
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(pred.values)), ",")
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", pred.field, placeholders))
		for _, v := range pred.values {
			args = append(args, v)
		}
	}

	return strings.Join(clauses, " AND "), args
}
