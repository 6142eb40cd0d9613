// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// where.go compiles where trees into SQL over the entries table. Attribute
// values live in the data JSONB column and are cast by attribute type.
// Relation filters become EXISTS subqueries over entry_relations.
// Placeholders are emitted as "?" and rebound by sqlx for the driver.
package store

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"docpress/internal/apperr"
	"docpress/internal/query"
	"docpress/internal/schema"
)

// exprKind is the SQL type of a compiled column expression.
type exprKind int

const (
	kindText exprKind = iota
	kindNumeric
	kindBool
	kindTime
	kindInt
)

type expr struct {
	sql  string
	kind exprKind
}

type whereBuilder struct {
	schema schema.Provider
	args   []any
	depth  int
}

// compileWhere returns the SQL condition for where over rows of uid
// aliased as alias, with its positional arguments. An empty where yields
// an empty condition.
func compileWhere(provider schema.Provider, uid, alias string, where query.Where) (string, []any, error) {
	model, err := provider.Model(uid)
	if err != nil {
		return "", nil, err
	}
	b := &whereBuilder{schema: provider}
	sql, err := b.build(model, alias, nil, where)
	if err != nil {
		return "", nil, err
	}
	return sql, b.args, nil
}

func (b *whereBuilder) build(m *schema.Model, alias string, prefix []string, where map[string]any) (string, error) {
	var parts []string
	for _, key := range sortedKeys(where) {
		v := where[key]
		var (
			clause string
			err    error
		)
		switch {
		case key == query.OpAnd || key == query.OpOr:
			clause, err = b.combine(m, alias, prefix, key, v)
		case key == query.OpNot:
			sub, ok := v.(map[string]any)
			if !ok {
				return "", apperr.Validation("%s expects an object", key)
			}
			var inner string
			inner, err = b.build(m, alias, prefix, sub)
			if inner != "" {
				clause = "NOT (" + inner + ")"
			}
		case len(prefix) == 0 && query.IsSystemField(key):
			clause, err = b.value(systemColumn(alias, key), v)
		default:
			attr, ok := m.Attribute(key)
			if !ok {
				return "", apperr.Validation("invalid key %s", key).WithPath(key)
			}
			path := append(slices.Clone(prefix), key)
			switch {
			case attr.IsRelation():
				if len(prefix) > 0 {
					return "", apperr.Validation("filtering on relations inside components is not supported").WithPath(path...)
				}
				clause, err = b.relation(alias, key, attr, v)
			case attr.IsComponent():
				if attr.Repeatable {
					return "", apperr.Validation("filtering on repeatable components is not supported").WithPath(path...)
				}
				nested, ok := v.(map[string]any)
				if !ok {
					return "", apperr.Validation("component filter must be an object").WithPath(path...)
				}
				var cm *schema.Model
				cm, err = b.schema.Model(attr.Component)
				if err != nil {
					return "", err
				}
				clause, err = b.build(cm, alias, path, nested)
			case attr.IsDynamicZone():
				return "", apperr.Validation("filtering on dynamic zones is not supported").WithPath(path...)
			default:
				clause, err = b.value(dataColumn(alias, path, attr), v)
			}
		}
		if err != nil {
			return "", err
		}
		if clause != "" {
			parts = append(parts, clause)
		}
	}
	return strings.Join(parts, " AND "), nil
}

func (b *whereBuilder) combine(m *schema.Model, alias string, prefix []string, op string, v any) (string, error) {
	list, ok := query.AsList(v)
	if !ok {
		if sub, isMap := v.(map[string]any); isMap {
			list = []any{sub}
		} else {
			return "", apperr.Validation("%s expects a list", op)
		}
	}
	var parts []string
	for _, item := range list {
		sub, ok := item.(map[string]any)
		if !ok {
			return "", apperr.Validation("%s expects a list of objects", op)
		}
		clause, err := b.build(m, alias, prefix, sub)
		if err != nil {
			return "", err
		}
		if clause == "" {
			clause = "TRUE"
		}
		parts = append(parts, "("+clause+")")
	}
	if len(parts) == 0 {
		if op == query.OpOr {
			return "FALSE", nil
		}
		return "", nil
	}
	sep := " AND "
	if op == query.OpOr {
		sep = " OR "
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *whereBuilder) relation(alias, key string, attr schema.Attribute, v any) (string, error) {
	target, err := b.schema.Model(attr.Target)
	if err != nil {
		return "", err
	}
	b.depth++
	r := fmt.Sprintf("r%d", b.depth)
	t := fmt.Sprintf("t%d", b.depth)

	nested, exists := query.RelationFilter(v)
	b.args = append(b.args, key)
	sub := fmt.Sprintf("SELECT 1 FROM entry_relations %s JOIN entries %s ON %s.id = %s.target_id WHERE %s.source_id = %s.id AND %s.field = ?",
		r, t, t, r, r, alias, r)
	if exists != nil {
		if *exists {
			return "EXISTS (" + sub + ")", nil
		}
		return "NOT EXISTS (" + sub + ")", nil
	}
	inner, err := b.build(target, t, nil, nested)
	if err != nil {
		return "", err
	}
	if inner != "" {
		sub += " AND (" + inner + ")"
	}
	return "EXISTS (" + sub + ")", nil
}

// value compiles the condition applied to one column: a literal, a list
// or an operator object.
func (b *whereBuilder) value(e expr, v any) (string, error) {
	if query.IsNil(v) {
		return e.sql + " IS NULL", nil
	}
	if list, ok := query.AsList(v); ok {
		return b.in(e, list, false), nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return e.sql + " = " + b.arg(e, v), nil
	}

	var parts []string
	for _, op := range sortedKeys(m) {
		operand := m[op]
		var clause string
		switch op {
		case query.OpEq:
			if query.IsNil(operand) {
				clause = e.sql + " IS NULL"
			} else {
				clause = e.sql + " = " + b.arg(e, operand)
			}
		case query.OpNe:
			if query.IsNil(operand) {
				clause = e.sql + " IS NOT NULL"
			} else {
				clause = e.sql + " IS DISTINCT FROM " + b.arg(e, operand)
			}
		case query.OpIn, query.OpNotIn:
			list, ok := query.AsList(operand)
			if !ok {
				list = []any{operand}
			}
			clause = b.in(e, list, op == query.OpNotIn)
		case query.OpLt, query.OpLte, query.OpGt, query.OpGte:
			clause = e.sql + " " + comparators[op] + " " + b.arg(e, operand)
		case query.OpNull, query.OpNotNull:
			want, ok := operand.(bool)
			if !ok {
				return "", apperr.Validation("%s expects a boolean", op)
			}
			if want == (op == query.OpNull) {
				clause = e.sql + " IS NULL"
			} else {
				clause = e.sql + " IS NOT NULL"
			}
		case query.OpContains:
			clause = textOf(e) + " LIKE " + b.raw("%"+query.Stringify(operand)+"%")
		case query.OpNotContains:
			clause = "(" + e.sql + " IS NULL OR " + textOf(e) + " NOT LIKE " + b.raw("%"+query.Stringify(operand)+"%") + ")"
		case query.OpContainsi:
			clause = textOf(e) + " ILIKE " + b.raw("%"+query.Stringify(operand)+"%")
		case query.OpStartsWith:
			clause = textOf(e) + " LIKE " + b.raw(query.Stringify(operand)+"%")
		case query.OpEndsWith:
			clause = textOf(e) + " LIKE " + b.raw("%"+query.Stringify(operand))
		case query.OpBetween:
			bounds, ok := query.AsList(operand)
			if !ok || len(bounds) != 2 {
				return "", apperr.Validation("%s expects two bounds", op)
			}
			clause = e.sql + " BETWEEN " + b.arg(e, bounds[0]) + " AND " + b.arg(e, bounds[1])
		case query.OpNot:
			inner, err := b.value(e, operand)
			if err != nil {
				return "", err
			}
			clause = "NOT (" + inner + ")"
		case query.OpAnd, query.OpOr:
			list, ok := query.AsList(operand)
			if !ok {
				return "", apperr.Validation("%s expects a list", op)
			}
			var sub []string
			for _, item := range list {
				inner, err := b.value(e, item)
				if err != nil {
					return "", err
				}
				sub = append(sub, "("+inner+")")
			}
			if len(sub) == 0 {
				if op == query.OpOr {
					clause = "FALSE"
				}
				break
			}
			sep := " AND "
			if op == query.OpOr {
				sep = " OR "
			}
			clause = "(" + strings.Join(sub, sep) + ")"
		default:
			return "", apperr.Validation("unknown operator %s", op)
		}
		if clause != "" {
			parts = append(parts, clause)
		}
	}
	return strings.Join(parts, " AND "), nil
}

var comparators = map[string]string{
	query.OpLt:  "<",
	query.OpLte: "<=",
	query.OpGt:  ">",
	query.OpGte: ">=",
}

func (b *whereBuilder) in(e expr, list []any, negate bool) string {
	if len(list) == 0 {
		if negate {
			return "TRUE"
		}
		return "FALSE"
	}
	marks := make([]string, len(list))
	for i, item := range list {
		marks[i] = b.arg(e, item)
	}
	op := " IN ("
	if negate {
		op = " NOT IN ("
	}
	return e.sql + op + strings.Join(marks, ", ") + ")"
}

// arg binds v with the Go type the column expression expects.
func (b *whereBuilder) arg(e expr, v any) string {
	switch e.kind {
	case kindText:
		v = query.Stringify(v)
	case kindInt:
		if id, ok := query.ToInt64(v); ok {
			v = id
		}
	}
	return b.raw(v)
}

func (b *whereBuilder) raw(v any) string {
	b.args = append(b.args, v)
	return "?"
}

func textOf(e expr) string {
	if e.kind == kindText {
		return e.sql
	}
	return "(" + e.sql + ")::text"
}

func systemColumn(alias, field string) expr {
	switch field {
	case query.FieldID:
		return expr{alias + ".id", kindInt}
	case query.FieldDocumentID:
		return expr{alias + ".document_id", kindText}
	case query.FieldLocale:
		return expr{alias + ".locale", kindText}
	case query.FieldPublishedAt:
		return expr{alias + ".published_at", kindTime}
	case query.FieldCreatedAt:
		return expr{alias + ".created_at", kindTime}
	}
	return expr{alias + ".updated_at", kindTime}
}

// dataColumn addresses an attribute inside the data column. Attribute
// names come from the schema, never from user input.
func dataColumn(alias string, path []string, attr schema.Attribute) expr {
	var text string
	if len(path) == 1 {
		text = fmt.Sprintf("%s.data->>'%s'", alias, quote(path[0]))
	} else {
		quoted := make([]string, len(path))
		for i, p := range path {
			quoted[i] = quote(p)
		}
		text = fmt.Sprintf("%s.data#>>'{%s}'", alias, strings.Join(quoted, ","))
	}
	switch {
	case attr.IsNumeric():
		return expr{"(" + text + ")::numeric", kindNumeric}
	case attr.Type == schema.TypeBoolean:
		return expr{"(" + text + ")::boolean", kindBool}
	case attr.Type == schema.TypeDateTime:
		return expr{"(" + text + ")::timestamptz", kindTime}
	case attr.Type == schema.TypeDate:
		return expr{"(" + text + ")::date", kindTime}
	}
	return expr{text, kindText}
}

// orderColumn resolves a sort field to a column expression.
func orderColumn(m *schema.Model, alias, field string) (string, error) {
	if query.IsSystemField(field) {
		return systemColumn(alias, field).sql, nil
	}
	attr, ok := m.Attribute(field)
	if !ok || attr.IsRelation() || attr.IsComponent() || attr.IsDynamicZone() {
		return "", apperr.Validation("cannot sort on %s", field).WithPath(field)
	}
	return dataColumn(alias, []string{field}, attr).sql, nil
}

func quote(s string) string { return strings.ReplaceAll(s, "'", "''") }

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
