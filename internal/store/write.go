// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"errors"
	"maps"
	"slices"
	"sort"

	"docpress/internal/apperr"
	"docpress/internal/models"
	"docpress/internal/query"
	"docpress/internal/schema"
)

// ErrConflict is returned when a write violates the
// (document, locale, status) uniqueness of rows.
var ErrConflict = errors.New("entry conflict")

// componentKey marks the component uid of a dynamic zone entry.
const componentKey = "__component"

// preparedWrite is a write payload split into stored attribute values and
// ordered relation target lists.
type preparedWrite struct {
	data      map[string]any
	relations map[string][]int64
	touched   []string
}

// prepareWrite merges a row-id space payload into the current row state.
// Relation operations are applied against the current target lists.
// Components are replaced as a whole; relations inside them are stored
// inline as id lists.
func prepareWrite(provider schema.Provider, uid string, current *models.Entry, in map[string]any) (*preparedWrite, error) {
	model, err := provider.Model(uid)
	if err != nil {
		return nil, err
	}

	pw := &preparedWrite{data: map[string]any{}, relations: map[string][]int64{}}
	if current != nil {
		maps.Copy(pw.data, current.Data)
		for k, v := range current.Relations {
			pw.relations[k] = slices.Clone(v)
		}
	}

	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := in[key]
		if query.IsSystemField(key) {
			continue
		}
		attr, ok := model.Attribute(key)
		if !ok {
			return nil, apperr.Validation("invalid key %s", key).WithPath(key)
		}
		switch {
		case attr.IsRelation():
			next, err := query.ApplyRelation(pw.relations[key], v, !attr.IsToMany())
			if err != nil {
				return nil, withPath(err, key)
			}
			pw.relations[key] = next
			pw.touched = append(pw.touched, key)
		case attr.IsComponent():
			value, err := prepareComponent(provider, attr, v)
			if err != nil {
				return nil, withPath(err, key)
			}
			pw.data[key] = value
		case attr.IsDynamicZone():
			value, err := prepareDynamicZone(provider, attr, v)
			if err != nil {
				return nil, withPath(err, key)
			}
			pw.data[key] = value
		default:
			pw.data[key] = v
		}
	}
	return pw, nil
}

func prepareComponent(provider schema.Provider, attr schema.Attribute, v any) (any, error) {
	if query.IsNil(v) {
		return nil, nil
	}
	if attr.Repeatable {
		list, ok := query.AsList(v)
		if !ok {
			return nil, apperr.Validation("repeatable component expects a list")
		}
		out := make([]any, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, apperr.Validation("component value must be an object")
			}
			value, err := prepareComponentValue(provider, attr.Component, m)
			if err != nil {
				return nil, err
			}
			out = append(out, value)
		}
		return out, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, apperr.Validation("component value must be an object")
	}
	return prepareComponentValue(provider, attr.Component, m)
}

func prepareDynamicZone(provider schema.Provider, attr schema.Attribute, v any) (any, error) {
	if query.IsNil(v) {
		return []any{}, nil
	}
	list, ok := query.AsList(v)
	if !ok {
		return nil, apperr.Validation("dynamic zone expects a list")
	}
	out := make([]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, apperr.Validation("dynamic zone entry must be an object")
		}
		cuid, _ := m[componentKey].(string)
		if !slices.Contains(attr.Components, cuid) {
			return nil, apperr.Validation("component %q is not allowed in this dynamic zone", cuid)
		}
		value, err := prepareComponentValue(provider, cuid, m)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func prepareComponentValue(provider schema.Provider, cuid string, in map[string]any) (map[string]any, error) {
	model, err := provider.Model(cuid)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(in))
	for key, v := range in {
		if key == componentKey || key == query.FieldID {
			out[key] = v
			continue
		}
		attr, ok := model.Attribute(key)
		if !ok {
			return nil, apperr.Validation("invalid key %s", key).WithPath(key)
		}
		switch {
		case attr.IsRelation():
			ids, err := query.ApplyRelation(nil, v, !attr.IsToMany())
			if err != nil {
				return nil, withPath(err, key)
			}
			out[key] = ids
		case attr.IsComponent():
			value, err := prepareComponent(provider, attr, v)
			if err != nil {
				return nil, withPath(err, key)
			}
			out[key] = value
		case attr.IsDynamicZone():
			return nil, apperr.Structural("%s.%s: dynamic zones cannot be nested in components", cuid, key)
		default:
			out[key] = v
		}
	}
	return out, nil
}

// InlineIDs reads an inline relation id list as stored in component data.
// JSON decoding turns the stored ids into float64, so any number is accepted.
func InlineIDs(v any) []int64 {
	list, ok := query.AsList(v)
	if !ok {
		if id, ok := query.ToInt64(v); ok {
			return []int64{id}
		}
		return nil
	}
	ids := make([]int64, 0, len(list))
	for _, item := range list {
		if id, ok := query.ToInt64(item); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func withPath(err error, key string) error {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		return ve.WithPath(key)
	}
	return err
}
