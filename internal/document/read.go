// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package document

import (
	"context"
	"slices"
	"time"

	"docpress/internal/apperr"
	"docpress/internal/models"
	"docpress/internal/query"
	"docpress/internal/schema"
	"docpress/internal/transform"
)

// FindOne returns one version of a document. It returns nil when the
// document has no row in the requested locale and status.
func (s *Service) FindOne(ctx context.Context, uid string, p Params) (*models.Document, error) {
	start := time.Now()
	doc, err := s.findOne(ctx, uid, p)
	track("findOne", start, err)
	return doc, err
}

func (s *Service) findOne(ctx context.Context, uid string, p Params) (*models.Document, error) {
	if err := requireDocumentID(p); err != nil {
		return nil, err
	}
	op, err := s.begin(uid)
	if err != nil {
		return nil, err
	}
	locale, err := op.locale(p.Locale, false)
	if err != nil {
		return nil, err
	}
	isDraft, err := parseStatus(p.Status)
	if err != nil {
		return nil, err
	}

	cacheable := s.cache != nil && !isDraft &&
		len(p.Fields) == 0 && len(p.Populate) == 0 && len(p.Filters) == 0
	if cacheable {
		if doc, ok := s.cache.Get(ctx, uid, p.DocumentID, locale); ok {
			return doc, nil
		}
	}

	where, err := op.where(p.Filters, versionWhere(p.DocumentID, locale, &isDraft))
	if err != nil {
		return nil, err
	}
	entry, err := s.engine.FindOne(ctx, uid, query.Params{Where: where})
	if err != nil || entry == nil {
		return nil, err
	}
	populate, err := transform.Populates(s.schema, uid, p.Populate)
	if err != nil {
		return nil, err
	}
	doc, err := op.render(ctx, op.model, entry, transform.Fields(p.Fields), populate)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.Set(ctx, uid, doc)
	}
	return doc, nil
}

// FindFirst returns the first document version matching the filters, or
// nil when none does.
func (s *Service) FindFirst(ctx context.Context, uid string, p Params) (*models.Document, error) {
	start := time.Now()
	p.Limit = 1
	docs, err := s.findMany(ctx, uid, p)
	track("findFirst", start, err)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// FindMany returns the document versions of one status matching the
// filters. Locale may be AllLocales.
func (s *Service) FindMany(ctx context.Context, uid string, p Params) ([]*models.Document, error) {
	start := time.Now()
	docs, err := s.findMany(ctx, uid, p)
	track("findMany", start, err)
	return docs, err
}

func (s *Service) findMany(ctx context.Context, uid string, p Params) ([]*models.Document, error) {
	op, where, err := s.listWhere(uid, p)
	if err != nil {
		return nil, err
	}
	populate, err := transform.Populates(s.schema, uid, p.Populate)
	if err != nil {
		return nil, err
	}
	entries, err := s.engine.FindMany(ctx, uid, query.Params{
		Where:   where,
		OrderBy: transform.Sort(p.Sort),
		Limit:   p.Limit,
		Offset:  p.Offset,
	})
	if err != nil {
		return nil, err
	}

	fields := transform.Fields(p.Fields)
	docs := make([]*models.Document, 0, len(entries))
	for _, e := range entries {
		doc, err := op.render(ctx, op.model, e, fields, populate)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Count returns the number of document versions FindMany would return
// without paging.
func (s *Service) Count(ctx context.Context, uid string, p Params) (int64, error) {
	start := time.Now()
	n, err := s.count(ctx, uid, p)
	track("count", start, err)
	return n, err
}

func (s *Service) count(ctx context.Context, uid string, p Params) (int64, error) {
	_, where, err := s.listWhere(uid, p)
	if err != nil {
		return 0, err
	}
	return s.engine.Count(ctx, uid, where)
}

func (s *Service) listWhere(uid string, p Params) (*operation, query.Where, error) {
	op, err := s.begin(uid)
	if err != nil {
		return nil, nil, err
	}
	locale, err := op.locale(p.Locale, true)
	if err != nil {
		return nil, nil, err
	}
	isDraft, err := parseStatus(p.Status)
	if err != nil {
		return nil, nil, err
	}
	scope := query.StatusWhere(isDraft)
	if locale != "" && locale != AllLocales {
		scope = query.And(scope, query.Where{query.FieldLocale: locale})
	}
	if p.DocumentID != "" {
		scope = query.And(scope, query.Where{query.FieldDocumentID: p.DocumentID})
	}
	where, err := op.where(p.Filters, scope)
	return op, where, err
}

// where joins the caller filters, rewritten into row space, with scope.
func (op *operation) where(filters query.Where, scope query.Where) (query.Where, error) {
	tf, err := transform.Filters(op.schema, op.model.UID, filters)
	if err != nil {
		return nil, err
	}
	return query.And(tf, scope), nil
}

// render turns a row into a document. Relations are only included when
// populated; relations stored inside components are never rendered since
// they hold row ids.
func (op *operation) render(ctx context.Context, model *schema.Model, e *models.Entry, fields []string, populate transform.Populate) (*models.Document, error) {
	doc := &models.Document{
		DocumentID:  e.DocumentID,
		Locale:      e.Locale,
		Status:      e.Status(),
		PublishedAt: e.PublishedAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		Fields:      make(map[string]any, len(e.Data)+len(populate)),
	}
	for k, v := range e.Data {
		if !selected(fields, k) {
			continue
		}
		attr, ok := model.Attribute(k)
		if !ok {
			continue
		}
		value, err := op.scrub(attr, v)
		if err != nil {
			return nil, err
		}
		doc.Fields[k] = value
	}
	for name, opts := range populate {
		attr, ok := model.Attribute(name)
		if !ok || !attr.IsRelation() {
			return nil, apperr.Validation("cannot populate %q: not a relation", name).WithPath(name)
		}
		related, err := op.related(ctx, attr, e.Relations[name], opts, e.PublishedAt == nil)
		if err != nil {
			return nil, err
		}
		doc.Fields[name] = related
	}
	return doc, nil
}

// related loads and renders the targets of one relation in link order,
// or in the populate sort order when one is given. A target linked
// through both of its versions is rendered once, in the status of the
// row being read.
func (op *operation) related(ctx context.Context, attr schema.Attribute, ids []int64, opts *transform.PopulateOptions, isDraft bool) (any, error) {
	if opts == nil {
		opts = &transform.PopulateOptions{}
	}
	target, err := op.schema.Model(attr.Target)
	if err != nil {
		return nil, err
	}

	var entries []*models.Entry
	if len(ids) > 0 {
		where := query.And(query.Where{query.FieldID: map[string]any{query.OpIn: ids}}, opts.Filters)
		entries, err = op.engine.FindMany(ctx, target.UID, query.Params{Where: where, OrderBy: opts.Sort})
		if err != nil {
			return nil, err
		}
		if len(opts.Sort) == 0 {
			slices.SortStableFunc(entries, func(a, b *models.Entry) int {
				return slices.Index(ids, a.ID) - slices.Index(ids, b.ID)
			})
		}
		if target.HasDraftAndPublish() {
			entries = oneVersionEach(entries, isDraft)
		}
	}

	docs := make([]*models.Document, 0, len(entries))
	for _, e := range entries {
		doc, err := op.render(ctx, target, e, opts.Fields, opts.Populate)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if attr.IsToMany() {
		return docs, nil
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// oneVersionEach keeps one row per document and locale, preferring the
// row in the wanted status. Order follows the first row of each pair.
func oneVersionEach(entries []*models.Entry, isDraft bool) []*models.Entry {
	type version struct{ documentID, locale string }
	seen := make(map[version]int, len(entries))
	out := make([]*models.Entry, 0, len(entries))
	for _, e := range entries {
		k := version{e.DocumentID, e.Locale}
		i, ok := seen[k]
		if !ok {
			seen[k] = len(out)
			out = append(out, e)
			continue
		}
		if (out[i].PublishedAt == nil) != isDraft && (e.PublishedAt == nil) == isDraft {
			out[i] = e
		}
	}
	return out
}

// scrub removes component relation ids from a stored value.
func (op *operation) scrub(attr schema.Attribute, v any) (any, error) {
	switch {
	case attr.IsComponent():
		comp, err := op.schema.Model(attr.Component)
		if err != nil {
			return nil, err
		}
		return op.scrubComponents(v, func(map[string]any) *schema.Model { return comp })
	case attr.IsDynamicZone():
		return op.scrubComponents(v, func(m map[string]any) *schema.Model {
			cuid, _ := m[componentKey].(string)
			comp, err := op.schema.Model(cuid)
			if err != nil {
				return nil
			}
			return comp
		})
	}
	return v, nil
}

func (op *operation) scrubComponents(v any, modelOf func(map[string]any) *schema.Model) (any, error) {
	one := func(m map[string]any) (map[string]any, error) {
		comp := modelOf(m)
		if comp == nil {
			return m, nil
		}
		out := make(map[string]any, len(m))
		for k, val := range m {
			attr, ok := comp.Attribute(k)
			if ok && attr.IsRelation() {
				continue
			}
			if ok {
				var err error
				if val, err = op.scrub(attr, val); err != nil {
					return nil, err
				}
			}
			out[k] = val
		}
		return out, nil
	}

	if m, ok := v.(map[string]any); ok {
		return one(m)
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
		scrubbed, err := one(m)
		if err != nil {
			return nil, err
		}
		out[i] = scrubbed
	}
	return out, nil
}

func selected(fields []string, name string) bool {
	return len(fields) == 0 || slices.Contains(fields, transform.All) || slices.Contains(fields, name)
}
