// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"docpress/internal/apperr"
	"docpress/internal/models"
	"docpress/internal/query"
	"docpress/internal/schema"
)

// record is a where-tree subject: a stored row or a component value.
type record interface {
	field(name string) (any, bool)
	relationIDs(name string) []int64
	system() bool
}

type entryRecord struct{ e *models.Entry }

func (r entryRecord) field(name string) (any, bool) {
	switch name {
	case query.FieldID:
		return r.e.ID, true
	case query.FieldDocumentID:
		return r.e.DocumentID, true
	case query.FieldLocale:
		if r.e.Locale == "" {
			return nil, true
		}
		return r.e.Locale, true
	case query.FieldPublishedAt:
		if r.e.PublishedAt == nil {
			return nil, true
		}
		return *r.e.PublishedAt, true
	case query.FieldCreatedAt:
		return r.e.CreatedAt, true
	case query.FieldUpdatedAt:
		return r.e.UpdatedAt, true
	}
	v, ok := r.e.Data[name]
	return v, ok
}

func (r entryRecord) relationIDs(name string) []int64 { return r.e.Relations[name] }
func (r entryRecord) system() bool                    { return true }

type componentRecord map[string]any

func (r componentRecord) field(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

func (r componentRecord) relationIDs(name string) []int64 { return InlineIDs(r[name]) }
func (r componentRecord) system() bool                    { return false }

// match evaluates where against rec. Callers hold the lock.
func (s *MemoryStore) match(model *schema.Model, rec record, where map[string]any) (bool, error) {
	for _, key := range sortedKeys(where) {
		v := where[key]
		ok, err := s.matchKey(model, rec, key, v)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *MemoryStore) matchKey(model *schema.Model, rec record, key string, v any) (bool, error) {
	switch {
	case key == query.OpAnd || key == query.OpOr:
		list, ok := query.AsList(v)
		if !ok {
			if sub, isMap := v.(map[string]any); isMap {
				list = []any{sub}
			} else {
				return false, apperr.Validation("%s expects a list", key)
			}
		}
		for _, item := range list {
			sub, ok := item.(map[string]any)
			if !ok {
				return false, apperr.Validation("%s expects a list of objects", key)
			}
			m, err := s.match(model, rec, sub)
			if err != nil {
				return false, err
			}
			if key == query.OpOr && m {
				return true, nil
			}
			if key == query.OpAnd && !m {
				return false, nil
			}
		}
		return key == query.OpAnd, nil
	case key == query.OpNot:
		sub, ok := v.(map[string]any)
		if !ok {
			return false, apperr.Validation("%s expects an object", key)
		}
		m, err := s.match(model, rec, sub)
		return !m, err
	case rec.system() && query.IsSystemField(key):
		actual, _ := rec.field(key)
		return matchValue(actual, v)
	}

	attr, ok := model.Attribute(key)
	if !ok {
		return false, apperr.Validation("invalid key %s", key).WithPath(key)
	}
	switch {
	case attr.IsRelation():
		return s.matchRelation(attr, rec.relationIDs(key), v)
	case attr.IsComponent():
		nested, ok := v.(map[string]any)
		if !ok {
			return false, apperr.Validation("component filter must be an object").WithPath(key)
		}
		cm, err := s.schema.Model(attr.Component)
		if err != nil {
			return false, err
		}
		raw, _ := rec.field(key)
		var values []any
		if attr.Repeatable {
			values, _ = query.AsList(raw)
		} else if raw != nil {
			values = []any{raw}
		}
		for _, value := range values {
			cv, ok := value.(map[string]any)
			if !ok {
				continue
			}
			m, err := s.match(cm, componentRecord(cv), nested)
			if err != nil {
				return false, err
			}
			if m {
				return true, nil
			}
		}
		return false, nil
	case attr.IsDynamicZone():
		return false, apperr.Validation("filtering on dynamic zones is not supported").WithPath(key)
	}
	actual, _ := rec.field(key)
	return matchValue(actual, v)
}

// matchRelation reports whether any related row satisfies the filter.
func (s *MemoryStore) matchRelation(attr schema.Attribute, ids []int64, v any) (bool, error) {
	nested, exists := query.RelationFilter(v)
	if exists != nil {
		return (len(ids) > 0) == *exists, nil
	}
	target, err := s.schema.Model(attr.Target)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		e, ok := s.row(attr.Target, id)
		if !ok {
			continue
		}
		m, err := s.match(target, entryRecord{e}, nested)
		if err != nil {
			return false, err
		}
		if m {
			return true, nil
		}
	}
	return false, nil
}

// matchValue applies a literal, list or operator object to one value.
func matchValue(actual, v any) (bool, error) {
	if list, ok := query.AsList(v); ok {
		return query.Evaluate(query.OpIn, actual, list)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return query.Equal(actual, v), nil
	}
	for _, op := range sortedKeys(m) {
		operand := m[op]
		var (
			ok  bool
			err error
		)
		switch op {
		case query.OpNot:
			ok, err = matchValue(actual, operand)
			ok = !ok
		case query.OpAnd, query.OpOr:
			list, isList := query.AsList(operand)
			if !isList {
				return false, apperr.Validation("%s expects a list", op)
			}
			ok = op == query.OpAnd
			for _, item := range list {
				sub, err := matchValue(actual, item)
				if err != nil {
					return false, err
				}
				if op == query.OpOr && sub {
					ok = true
					break
				}
				if op == query.OpAnd && !sub {
					ok = false
					break
				}
			}
		default:
			ok, err = query.Evaluate(op, actual, operand)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
