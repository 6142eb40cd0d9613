// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package document

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/tiendc/go-deepcopy"

	"docpress/internal/idmap"
	"docpress/internal/models"
	"docpress/internal/query"
	"docpress/internal/schema"
	"docpress/internal/store"
	"docpress/internal/transform"
)

// componentKey marks the component uid of a dynamic zone entry.
const componentKey = "__component"

// Publish copies the draft of a document into its published version, in
// one locale or in all of them with AllLocales. Relations are remapped to
// the published rows of their targets; targets that were never published
// are dropped. It returns nil when there is no draft to publish.
func (s *Service) Publish(ctx context.Context, uid string, p Params) (*Result, error) {
	start := time.Now()
	res, err := s.publish(ctx, uid, p)
	track("publish", start, err)
	return res, err
}

func (s *Service) publish(ctx context.Context, uid string, p Params) (*Result, error) {
	op, versions, err := s.beginVersions(ctx, uid, p)
	if err != nil || versions == nil {
		return nil, err
	}

	res := &Result{DocumentID: p.DocumentID}
	for _, v := range versions {
		if v.draft == nil {
			continue
		}
		if _, err := op.transition(ctx, stateOf(v.draft, v.published), EventPublish); err != nil {
			return nil, err
		}
		published, err := op.publishVersion(ctx, v.draft, v.published)
		if err != nil {
			return nil, err
		}
		doc, err := op.render(ctx, op.model, published, nil, nil)
		if err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, doc)
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}
	op.invalidate(ctx, p.DocumentID, EventPublish)
	s.logger.Infow("document published",
		"uid", uid,
		"documentId", p.DocumentID,
		"locales", len(res.Entries),
	)
	return res, nil
}

// Unpublish removes the published versions of a document and returns its
// drafts. It returns nil when nothing was published.
func (s *Service) Unpublish(ctx context.Context, uid string, p Params) (*Result, error) {
	start := time.Now()
	res, err := s.unpublish(ctx, uid, p)
	track("unpublish", start, err)
	return res, err
}

func (s *Service) unpublish(ctx context.Context, uid string, p Params) (*Result, error) {
	op, versions, err := s.beginVersions(ctx, uid, p)
	if err != nil || versions == nil {
		return nil, err
	}

	res := &Result{DocumentID: p.DocumentID}
	var removed int
	for _, v := range versions {
		if v.published == nil {
			continue
		}
		if _, err := op.transition(ctx, stateOf(v.draft, v.published), EventUnpublish); err != nil {
			return nil, err
		}
		if err := s.engine.Delete(ctx, uid, v.published.ID); err != nil {
			return nil, fmt.Errorf("unpublish document %s: %w", p.DocumentID, err)
		}
		removed++
		if v.draft == nil {
			continue
		}
		doc, err := op.render(ctx, op.model, v.draft, nil, nil)
		if err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, doc)
	}
	if removed == 0 {
		return nil, nil
	}
	op.ids.Clear()
	op.invalidate(ctx, p.DocumentID, EventUnpublish)
	s.logger.Infow("document unpublished",
		"uid", uid,
		"documentId", p.DocumentID,
		"locales", removed,
	)
	return res, nil
}

// DiscardDraft resets the drafts of a document to its published versions
// and returns the new drafts. Relations are remapped to the draft rows of
// their targets. It returns nil when nothing was published.
func (s *Service) DiscardDraft(ctx context.Context, uid string, p Params) (*Result, error) {
	start := time.Now()
	res, err := s.discardDraft(ctx, uid, p)
	track("discardDraft", start, err)
	return res, err
}

func (s *Service) discardDraft(ctx context.Context, uid string, p Params) (*Result, error) {
	op, versions, err := s.beginVersions(ctx, uid, p)
	if err != nil || versions == nil {
		return nil, err
	}

	res := &Result{DocumentID: p.DocumentID}
	for _, v := range versions {
		if v.published == nil {
			continue
		}
		if _, err := op.transition(ctx, stateOf(v.draft, v.published), EventDiscard); err != nil {
			return nil, err
		}
		data, err := op.copyVersion(ctx, v.published, true, v.draft)
		if err != nil {
			return nil, err
		}
		var draft *models.Entry
		if v.draft == nil {
			draft, err = s.engine.Create(ctx, uid, query.Row{DocumentID: p.DocumentID, Locale: v.locale, Data: data})
		} else {
			draft, err = s.engine.Update(ctx, uid, v.draft.ID, data)
		}
		if err != nil {
			return nil, fmt.Errorf("discard draft of %s: %w", p.DocumentID, err)
		}
		op.ids.Clear()
		if draft == nil {
			continue
		}
		doc, err := op.render(ctx, op.model, draft, nil, nil)
		if err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, doc)
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}
	s.logger.Infow("document draft discarded",
		"uid", uid,
		"documentId", p.DocumentID,
		"locales", len(res.Entries),
	)
	return res, nil
}

// beginVersions opens an operation for a status verb and loads the rows of
// the document per locale. versions is nil when the document has none.
func (s *Service) beginVersions(ctx context.Context, uid string, p Params) (*operation, []*localeVersions, error) {
	if err := requireDocumentID(p); err != nil {
		return nil, nil, err
	}
	op, err := s.begin(uid)
	if err != nil {
		return nil, nil, err
	}
	if !op.model.HasDraftAndPublish() {
		return nil, nil, errNoDraftAndPublish(uid)
	}
	locale, err := op.locale(p.Locale, true)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.engine.FindMany(ctx, uid, query.Params{Where: versionWhere(p.DocumentID, locale, nil)})
	if err != nil || len(entries) == 0 {
		return nil, nil, err
	}
	return op, byLocale(entries), nil
}

// publishVersion writes draft into the published row, creating it when
// current is nil. Unique attributes are checked against the other
// published rows of the locale.
func (op *operation) publishVersion(ctx context.Context, draft, current *models.Entry) (*models.Entry, error) {
	data, err := op.copyVersion(ctx, draft, false, current)
	if err != nil {
		return nil, err
	}
	if err := op.checkUnique(ctx, data, current, draft.Locale, false); err != nil {
		return nil, err
	}
	var e *models.Entry
	if current == nil {
		now := op.now()
		e, err = op.engine.Create(ctx, op.model.UID, query.Row{
			DocumentID:  draft.DocumentID,
			Locale:      draft.Locale,
			PublishedAt: &now,
			Data:        data,
		})
	} else {
		e, err = op.engine.Update(ctx, op.model.UID, current.ID, data)
	}
	op.ids.Clear()
	if err != nil {
		return nil, fmt.Errorf("publish document %s: %w", draft.DocumentID, err)
	}
	return e, nil
}

// copyVersion builds the row payload that turns dst into a copy of src.
// Relations, including those stored in components, are remapped to the
// rows of the other status. Fields dst has and src lacks are cleared.
func (op *operation) copyVersion(ctx context.Context, src *models.Entry, toDraft bool, dst *models.Entry) (map[string]any, error) {
	data := map[string]any{}
	if err := deepcopy.Copy(&data, src.Data); err != nil {
		return nil, fmt.Errorf("copy document data: %w", err)
	}

	for name, v := range data {
		attr, ok := op.model.Attribute(name)
		if !ok {
			continue
		}
		remapped, err := op.remapInline(ctx, attr, v, toDraft)
		if err != nil {
			return nil, err
		}
		data[name] = remapped
	}
	for name, attr := range op.model.Attributes {
		if !attr.IsRelation() {
			continue
		}
		ids := src.Relations[name]
		if transform.IsExcluded(name) {
			data[name] = ids
			continue
		}
		remapped, err := op.remap(ctx, attr.Target, ids, toDraft)
		if err != nil {
			return nil, err
		}
		data[name] = remapped
	}
	if dst != nil {
		for name := range dst.Data {
			if _, ok := data[name]; !ok {
				data[name] = nil
			}
		}
	}
	return data, nil
}

// remapInline remaps the relation ids stored inside component values.
func (op *operation) remapInline(ctx context.Context, attr schema.Attribute, v any, toDraft bool) (any, error) {
	var modelOf func(map[string]any) (*schema.Model, error)
	switch {
	case attr.IsComponent():
		modelOf = func(map[string]any) (*schema.Model, error) { return op.schema.Model(attr.Component) }
	case attr.IsDynamicZone():
		modelOf = func(m map[string]any) (*schema.Model, error) {
			cuid, _ := m[componentKey].(string)
			return op.schema.Model(cuid)
		}
	default:
		return v, nil
	}

	one := func(m map[string]any) error {
		comp, err := modelOf(m)
		if err != nil {
			return err
		}
		for k, val := range m {
			cattr, ok := comp.Attribute(k)
			if !ok {
				continue
			}
			if cattr.IsRelation() {
				if m[k], err = op.remap(ctx, cattr.Target, store.InlineIDs(val), toDraft); err != nil {
					return err
				}
				continue
			}
			if m[k], err = op.remapInline(ctx, cattr, val, toDraft); err != nil {
				return err
			}
		}
		return nil
	}

	if m, ok := v.(map[string]any); ok {
		return m, one(m)
	}
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				if err := one(m); err != nil {
					return nil, err
				}
			}
		}
	}
	return v, nil
}

// remap maps relation target rows to the rows of the same documents in
// the other status. Targets without draft & publish are always linked
// through their published row and are kept. Targets with no row in the
// wanted status are dropped. Versions of the same target collapse into
// one link.
func (op *operation) remap(ctx context.Context, targetUID string, ids []int64, toDraft bool) ([]int64, error) {
	out := make([]int64, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	target, err := op.schema.Model(targetUID)
	if err != nil {
		return nil, err
	}
	if !target.HasDraftAndPublish() {
		return append(out, ids...), nil
	}

	rows, err := op.engine.FindMany(ctx, targetUID, query.Params{
		Where: query.Where{query.FieldID: map[string]any{query.OpIn: ids}},
	})
	if err != nil {
		return nil, err
	}
	keys := make(map[int64]idmap.Key, len(rows))
	for _, r := range rows {
		k := idmap.Key{UID: targetUID, DocumentID: r.DocumentID, Locale: r.Locale, IsDraft: toDraft}
		keys[r.ID] = k
		if err := op.ids.Add(k); err != nil {
			return nil, err
		}
	}
	if err := op.ids.Load(ctx); err != nil {
		return nil, err
	}
	for _, id := range ids {
		k, ok := keys[id]
		if !ok {
			continue
		}
		if mapped, ok := op.ids.Get(k); ok && !slices.Contains(out, mapped) {
			out = append(out, mapped)
		}
	}
	return out, nil
}
