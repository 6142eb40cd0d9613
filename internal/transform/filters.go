// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package transform

import (
	"docpress/internal/query"
	"docpress/internal/schema"
)

// step is what the filter walker does with one key of a filter object.
type step int

const (
	// passThrough copies the value verbatim.
	passThrough step = iota
	// renameID renames id to documentId and copies the value.
	renameID
	// intoTarget walks the value against the relation target.
	intoTarget
	// intoComponent walks the value against the component, ids kept.
	intoComponent
	// intoSame walks each combinator element against the same frame.
	intoSame
)

// frame is the schema a filter object is read against. rename is false
// inside components, where id addresses the component itself.
type frame struct {
	model  *schema.Model
	rename bool
}

// decide is the decision table of the filter walker.
func (w *filterWalker) decide(f frame, key string) (step, string, error) {
	if query.IsCombinator(key) {
		return intoSame, "", nil
	}
	if key == keyID {
		if f.rename {
			return renameID, "", nil
		}
		return passThrough, "", nil
	}
	attr, ok := f.model.Attribute(key)
	if !ok {
		return passThrough, "", nil
	}
	switch {
	case attr.IsRelation():
		if attr.Target == "" {
			return passThrough, "", errMissingTarget(f.model.UID, key)
		}
		return intoTarget, attr.Target, nil
	case attr.IsComponent():
		return intoComponent, attr.Component, nil
	}
	return passThrough, "", nil
}

type filterWalker struct {
	schema schema.Provider
}

// Filters returns a copy of where with every content-type level id key
// renamed to documentId. Relation filters are rewritten against their
// target type, combinators against the type they appear in. Keys unknown
// to the schema are copied untouched, whatever they contain. The input
// is never modified.
func Filters(provider schema.Provider, uid string, where query.Where) (query.Where, error) {
	if where == nil {
		return nil, nil
	}
	model, err := provider.Model(uid)
	if err != nil {
		return nil, err
	}
	w := &filterWalker{schema: provider}
	return w.object(frame{model: model, rename: true}, where)
}

func (w *filterWalker) object(f frame, in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	var (
		shadowed  any
		hasShadow bool
	)
	for key, v := range in {
		st, target, err := w.decide(f, key)
		if err != nil {
			return nil, err
		}
		switch st {
		case passThrough:
			out[key] = v
		case renameID:
			if _, dup := in[query.FieldDocumentID]; dup {
				shadowed, hasShadow = v, true
				continue
			}
			out[query.FieldDocumentID] = v
		case intoSame:
			if out[key], err = w.value(f, v); err != nil {
				return nil, err
			}
		case intoTarget, intoComponent:
			model, err := w.schema.Model(target)
			if err != nil {
				return nil, err
			}
			next := frame{model: model, rename: st == intoTarget}
			if out[key], err = w.value(next, v); err != nil {
				return nil, err
			}
		}
	}
	if hasShadow {
		// Both id and documentId were given; both must hold.
		return query.And(out, query.Where{query.FieldDocumentID: shadowed}), nil
	}
	return out, nil
}

// value walks an object or each object of a list against f. Anything
// else is a literal and is copied.
func (w *filterWalker) value(f frame, v any) (any, error) {
	if m, ok := v.(map[string]any); ok {
		return w.object(f, m)
	}
	list, ok := query.AsList(v)
	if !ok {
		return v, nil
	}
	out := make([]any, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			out[i] = item
			continue
		}
		nested, err := w.object(f, m)
		if err != nil {
			return nil, err
		}
		out[i] = nested
	}
	return out, nil
}
