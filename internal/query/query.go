// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package query defines the contract of the row-level query engine: the
// where grammar, query parameters, relation write operations and the
// Engine interface implemented by the Postgres and in-memory stores.
// Everything here works in row-id space.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docpress/internal/models"
)

// Where is a filter tree: attribute -> literal or operator object.
type Where = map[string]any

// Logical combinators.
const (
	OpAnd = "$and"
	OpOr  = "$or"
	OpNot = "$not"
)

// Comparison operators.
const (
	OpEq          = "$eq"
	OpNe          = "$ne"
	OpIn          = "$in"
	OpNotIn       = "$notIn"
	OpLt          = "$lt"
	OpLte         = "$lte"
	OpGt          = "$gt"
	OpGte         = "$gte"
	OpNull        = "$null"
	OpNotNull     = "$notNull"
	OpContains    = "$contains"
	OpNotContains = "$notContains"
	OpContainsi   = "$containsi"
	OpStartsWith  = "$startsWith"
	OpEndsWith    = "$endsWith"
	OpBetween     = "$between"
)

// System columns addressable in a where tree.
const (
	FieldID          = "id"
	FieldDocumentID  = "documentId"
	FieldLocale      = "locale"
	FieldPublishedAt = "publishedAt"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// IsSystemField reports whether name is a row column rather than data.
func IsSystemField(name string) bool {
	switch name {
	case FieldID, FieldDocumentID, FieldLocale, FieldPublishedAt, FieldCreatedAt, FieldUpdatedAt:
		return true
	}
	return false
}

// IsCombinator reports whether key is $and, $or or $not.
func IsCombinator(key string) bool {
	return key == OpAnd || key == OpOr || key == OpNot
}

// IsOperator reports whether key is any $-prefixed operator.
func IsOperator(key string) bool { return strings.HasPrefix(key, "$") }

// Sort orders results by one field.
type Sort struct {
	Field string
	Desc  bool
}

// ParseSort parses "field" or "field:asc|desc".
func ParseSort(s string) (Sort, error) {
	field, dir, _ := strings.Cut(s, ":")
	field = strings.TrimSpace(field)
	if field == "" {
		return Sort{}, fmt.Errorf("empty sort field in %q", s)
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
		return Sort{Field: field}, nil
	case "desc":
		return Sort{Field: field, Desc: true}, nil
	}
	return Sort{}, fmt.Errorf("invalid sort direction in %q", s)
}

// Params selects rows of one content type.
type Params struct {
	Where   Where
	Select  []string
	OrderBy []Sort
	Limit   int
	Offset  int
}

// Row is the input of Engine.Create. Data holds attribute values with
// relation attributes expressed as relation write operations.
type Row struct {
	DocumentID  string
	Locale      string
	PublishedAt *time.Time
	Data        map[string]any
}

// Engine is the row-level query engine.
type Engine interface {
	FindOne(ctx context.Context, uid string, p Params) (*models.Entry, error)
	FindMany(ctx context.Context, uid string, p Params) ([]*models.Entry, error)
	Count(ctx context.Context, uid string, where Where) (int64, error)
	Create(ctx context.Context, uid string, row Row) (*models.Entry, error)
	Update(ctx context.Context, uid string, id int64, data map[string]any) (*models.Entry, error)
	Delete(ctx context.Context, uid string, id int64) error
	DeleteMany(ctx context.Context, uid string, where Where) (int64, error)
}

// And joins non-empty where trees with $and.
func And(parts ...Where) Where {
	var keep []any
	for _, p := range parts {
		if len(p) > 0 {
			keep = append(keep, p)
		}
	}
	switch len(keep) {
	case 0:
		return Where{}
	case 1:
		return keep[0].(Where)
	}
	return Where{OpAnd: keep}
}

// StatusWhere selects draft (publishedAt IS NULL) or published rows.
func StatusWhere(isDraft bool) Where {
	if isDraft {
		return Where{FieldPublishedAt: map[string]any{OpNull: true}}
	}
	return Where{FieldPublishedAt: map[string]any{OpNotNull: true}}
}

// RelationFilter interprets the value given to a relation attribute in a
// where tree. A nested filter object is returned as is. Literals and bare
// operator objects filter on the related row id. A list of literals is an
// id IN test; objects in a list are alternatives, any of which a related
// row may satisfy. {$null: true} and {$notNull: true} test for the
// presence of any related row instead, and are reported through exists.
func RelationFilter(v any) (nested Where, exists *bool) {
	if list, ok := AsList(v); ok {
		return relationList(list), nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Where{FieldID: v}, nil
	}
	if len(m) == 1 {
		if b, ok := m[OpNull].(bool); ok {
			present := !b
			return nil, &present
		}
		if b, ok := m[OpNotNull].(bool); ok {
			present := b
			return nil, &present
		}
	}
	return targetFilter(m), nil
}

func relationList(list []any) Where {
	var ids, alts []any
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			alts = append(alts, targetFilter(m))
			continue
		}
		ids = append(ids, item)
	}
	if len(alts) == 0 {
		return Where{FieldID: list}
	}
	if len(ids) > 0 {
		alts = append(alts, Where{FieldID: ids})
	}
	return Where{OpOr: alts}
}

// targetFilter returns m as a filter on the target row, or wraps it as
// an id condition when it only holds comparison operators.
func targetFilter(m map[string]any) Where {
	for k := range m {
		if !IsOperator(k) || IsCombinator(k) {
			return m
		}
	}
	return Where{FieldID: m}
}
