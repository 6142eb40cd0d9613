// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package transform

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"docpress/internal/apperr"
	"docpress/internal/idmap"
	"docpress/internal/query"
	"docpress/internal/schema"
)

// componentKey marks the component uid of a dynamic zone entry.
const componentKey = "__component"

// RelationOptions describes the entity a payload is written to.
type RelationOptions struct {
	UID           string
	Locale        string
	IsDraft       bool
	AllowMissing  bool
	DefaultLocale string
}

// Relations rewrites relation values of create and update payloads from
// document-id space into row-id space.
type Relations struct {
	schema schema.Provider
	ids    *idmap.Map
	logger *zap.SugaredLogger
}

// NewRelations creates a relation transformer resolving through ids.
func NewRelations(provider schema.Provider, ids *idmap.Map, logger *zap.SugaredLogger) *Relations {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Relations{schema: provider, ids: ids, logger: logger}
}

type pass int

const (
	collect pass = iota
	rewrite
)

type walker struct {
	*Relations
	root *schema.Model
	opts RelationOptions
}

// Transform returns a copy of data with every relation reference resolved.
// All references are queued first and loaded in batches, then rewritten.
func (r *Relations) Transform(ctx context.Context, data map[string]any, opts RelationOptions) (map[string]any, error) {
	root, err := r.schema.Model(opts.UID)
	if err != nil {
		return nil, err
	}
	w := &walker{Relations: r, root: root, opts: opts}

	if _, err := w.entity(root, data, nil, collect); err != nil {
		return nil, err
	}
	if err := r.ids.Load(ctx); err != nil {
		return nil, err
	}
	return w.entity(root, data, nil, rewrite)
}

func (w *walker) entity(model *schema.Model, data map[string]any, path []string, p pass) (map[string]any, error) {
	var out map[string]any
	if p == rewrite {
		out = make(map[string]any, len(data))
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := data[key]
		attr, ok := model.Attribute(key)
		if !ok || IsExcluded(key) {
			if p == rewrite {
				out[key] = v
			}
			continue
		}
		at := append(slices.Clone(path), key)

		switch {
		case attr.IsRelation():
			target, err := w.schema.Model(attr.Target)
			if err != nil {
				return nil, err
			}
			ref, err := Classify(v)
			if err != nil {
				return nil, withPath(err, at)
			}
			if p == collect {
				if err := w.collect(target, ref, at); err != nil {
					return nil, err
				}
				continue
			}
			value, keep, err := w.rewrite(target, ref, at)
			if err != nil {
				return nil, err
			}
			if keep {
				out[key] = value
			}
		case attr.IsComponent():
			comp, err := w.schema.Model(attr.Component)
			if err != nil {
				return nil, err
			}
			value, err := w.components(comp, nil, v, at, p)
			if err != nil {
				return nil, err
			}
			if p == rewrite {
				out[key] = value
			}
		case attr.IsDynamicZone():
			value, err := w.components(nil, attr.Components, v, at, p)
			if err != nil {
				return nil, err
			}
			if p == rewrite {
				out[key] = value
			}
		default:
			if p == rewrite {
				out[key] = v
			}
		}
	}
	return out, nil
}

// components walks a component value: a single object, a list for
// repeatable components, or a dynamic zone list when allowed is set.
// Values of any other shape pass through for the store to reject.
func (w *walker) components(comp *schema.Model, allowed []string, v any, path []string, p pass) (any, error) {
	if m, ok := v.(map[string]any); ok && comp != nil {
		return w.entity(comp, m, path, p)
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
		model := comp
		if model == nil {
			cuid, _ := m[componentKey].(string)
			if !slices.Contains(allowed, cuid) {
				out[i] = item
				continue
			}
			var err error
			if model, err = w.schema.Model(cuid); err != nil {
				return nil, err
			}
		}
		value, err := w.entity(model, m, append(slices.Clone(path), strconv.Itoa(i)), p)
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}

// keys returns the id map tuples a document reference resolves through.
func (w *walker) keys(target *schema.Model, docID, refLocale, refStatus string, path []string) ([]idmap.Key, error) {
	locale, err := RelationTargetLocale(w.root, target, w.opts.Locale, refLocale, w.opts.DefaultLocale)
	if err != nil {
		return nil, withPath(err, path)
	}
	statuses, err := RelationTargetStatuses(w.root, target, refStatus, w.opts.IsDraft)
	if err != nil {
		return nil, withPath(err, path)
	}
	keys := make([]idmap.Key, len(statuses))
	for i, isDraft := range statuses {
		keys[i] = idmap.Key{UID: target.UID, DocumentID: docID, Locale: locale, IsDraft: isDraft}
	}
	return keys, nil
}

func (w *walker) collect(target *schema.Model, ref Ref, path []string) error {
	switch r := ref.(type) {
	case ShortHand:
		return w.queue(target, r.DocumentID, "", "", path)
	case LongHand:
		if r.DocumentID != "" {
			if err := w.queue(target, r.DocumentID, r.Locale, r.Status, path); err != nil {
				return err
			}
		}
		for _, anchor := range []string{"before", "after"} {
			if docID, ok := r.Position[anchor].(string); ok {
				locale, status := positionContext(r)
				if err := w.queue(target, docID, locale, status, path); err != nil {
					return err
				}
			}
		}
	case List:
		for _, item := range r.Items {
			if err := w.collect(target, item, path); err != nil {
				return err
			}
		}
	case Mutation:
		for _, items := range [][]Ref{r.Set, r.Connect, r.Disconnect} {
			for _, item := range items {
				if err := w.collect(target, item, path); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (w *walker) queue(target *schema.Model, docID, locale, status string, path []string) error {
	keys, err := w.keys(target, docID, locale, status, path)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := w.ids.Add(k); err != nil {
			return err
		}
	}
	return nil
}

// rewrite returns the row-id space value of ref. keep is false when a
// missing reference was tolerated and the attribute must be omitted.
func (w *walker) rewrite(target *schema.Model, ref Ref, path []string) (value any, keep bool, err error) {
	switch r := ref.(type) {
	case Null:
		return nil, true, nil
	case RowID:
		return r.Raw, true, nil
	case ShortHand:
		ids, err := w.lookup(target, r.DocumentID, "", "", path)
		if err != nil || len(ids) == 0 {
			return nil, false, err
		}
		if len(ids) == 1 {
			return ids[0], true, nil
		}
		return ids, true, nil
	case LongHand:
		items, err := w.longHand(target, r, path)
		if err != nil || len(items) == 0 {
			return nil, false, err
		}
		if len(items) == 1 {
			return items[0], true, nil
		}
		return items, true, nil
	case List:
		items, err := w.flatten(target, r.Items, path)
		return items, err == nil, err
	case Mutation:
		out := map[string]any{}
		for verb, items := range map[string][]Ref{
			query.RelSet:        r.Set,
			query.RelConnect:    r.Connect,
			query.RelDisconnect: r.Disconnect,
		} {
			if items == nil {
				continue
			}
			flat, err := w.flatten(target, items, path)
			if err != nil {
				return nil, false, err
			}
			out[verb] = flat
		}
		return out, true, nil
	}
	return nil, false, apperr.Structural("unhandled relation reference %T", ref)
}

// flatten rewrites list elements, dropping tolerated missing references.
func (w *walker) flatten(target *schema.Model, items []Ref, path []string) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		switch r := item.(type) {
		case Null:
		case RowID:
			out = append(out, r.Raw)
		case ShortHand:
			ids, err := w.lookup(target, r.DocumentID, "", "", path)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		case LongHand:
			lh, err := w.longHand(target, r, path)
			if err != nil {
				return nil, err
			}
			out = append(out, lh...)
		default:
			return nil, apperr.Validation("nested relation lists are not supported").WithPath(path...)
		}
	}
	return out, nil
}

// longHand resolves an object reference into one object per target row,
// keeping every field except the document coordinates.
func (w *walker) longHand(target *schema.Model, r LongHand, path []string) ([]any, error) {
	pos, err := w.position(target, r, path)
	if err != nil {
		return nil, err
	}
	build := func(id any) map[string]any {
		m := maps.Clone(r.Rest)
		if id != nil {
			m[keyID] = id
		}
		if pos != nil {
			m[query.RelPosition] = pos
		}
		return m
	}
	if r.DocumentID == "" {
		return []any{build(nil)}, nil
	}

	ids, err := w.lookup(target, r.DocumentID, r.Locale, r.Status, path)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, build(id))
	}
	return out, nil
}

// position resolves before/after anchors given as documentIds in the
// locale and status context of the reference they belong to.
func (w *walker) position(target *schema.Model, r LongHand, path []string) (map[string]any, error) {
	if r.Position == nil {
		return nil, nil
	}
	out := make(map[string]any, len(r.Position))
	for k, v := range r.Position {
		if k == keyLocale || k == keyStatus {
			continue
		}
		out[k] = v
	}
	for _, anchor := range []string{"before", "after"} {
		docID, ok := r.Position[anchor].(string)
		if !ok {
			continue
		}
		locale, status := positionContext(r)
		ids, err := w.lookup(target, docID, locale, status, path)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			delete(out, anchor)
			continue
		}
		out[anchor] = ids[0]
	}
	return out, nil
}

// positionContext returns the locale and status used to resolve anchors:
// those given on the position itself, else the reference's own.
func positionContext(r LongHand) (locale, status string) {
	locale, status = r.Locale, r.Status
	if s, ok := r.Position[keyLocale].(string); ok && s != "" {
		locale = s
	}
	if s, ok := r.Position[keyStatus].(string); ok && s != "" {
		status = s
	}
	return locale, status
}

// lookup returns the loaded row ids of a document reference. A reference
// with no row at all fails unless missing references are tolerated.
func (w *walker) lookup(target *schema.Model, docID, locale, status string, path []string) ([]any, error) {
	keys, err := w.keys(target, docID, locale, status, path)
	if err != nil {
		return nil, err
	}
	var ids []any
	for _, k := range keys {
		if id, ok := w.ids.Get(k); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		if !w.opts.AllowMissing {
			return nil, apperr.MissingDocument(docID, path...)
		}
		w.logger.Warnw("dropping reference to missing document",
			"uid", target.UID,
			"documentId", docID,
			"path", path,
		)
	}
	return ids, nil
}

func withPath(err error, path []string) error {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		return ve.WithPath(path...)
	}
	return err
}
