// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/tiendc/go-deepcopy"

	"docpress/internal/apperr"
	"docpress/internal/models"
	"docpress/internal/query"
	"docpress/internal/schema"
)

// MemoryStore is an in-process query engine with the same semantics as
// EntryStore. It backs tests and the schema dry-run command. Data is kept
// in its JSON form, as the entries.data column returns it.
type MemoryStore struct {
	schema schema.Provider
	now    func() time.Time

	mu   sync.RWMutex
	seq  int64
	rows map[string]map[int64]*models.Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(provider schema.Provider) *MemoryStore {
	return &MemoryStore{
		schema: provider,
		now:    time.Now,
		rows:   make(map[string]map[int64]*models.Entry),
	}
}

// FindOne returns the first matching row. Returns nil if none matches.
func (s *MemoryStore) FindOne(ctx context.Context, uid string, p query.Params) (*models.Entry, error) {
	p.Limit = 1
	entries, err := s.FindMany(ctx, uid, p)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[0], nil
}

// FindMany returns copies of all matching rows.
func (s *MemoryStore) FindMany(ctx context.Context, uid string, p query.Params) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	model, err := s.schema.Model(uid)
	if err != nil {
		return nil, err
	}
	matched, err := s.filter(model, p.Where)
	if err != nil {
		return nil, err
	}
	for _, o := range p.OrderBy {
		if !query.IsSystemField(o.Field) {
			attr, ok := model.Attribute(o.Field)
			if !ok || attr.IsRelation() || attr.IsComponent() || attr.IsDynamicZone() {
				return nil, apperr.Validation("cannot sort on %s", o.Field).WithPath(o.Field)
			}
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := entryRecord{matched[i]}, entryRecord{matched[j]}
		for _, o := range p.OrderBy {
			av, _ := a.field(o.Field)
			bv, _ := b.field(o.Field)
			if c := compareNullsFirst(av, bv); c != 0 {
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return matched[i].ID < matched[j].ID
	})

	if p.Offset > 0 {
		if p.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[p.Offset:]
		}
	}
	if p.Limit > 0 && len(matched) > p.Limit {
		matched = matched[:p.Limit]
	}

	out := make([]*models.Entry, 0, len(matched))
	for _, e := range matched {
		c, err := cloneEntry(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Count returns the number of matching rows.
func (s *MemoryStore) Count(ctx context.Context, uid string, where query.Where) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	model, err := s.schema.Model(uid)
	if err != nil {
		return 0, err
	}
	matched, err := s.filter(model, where)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Create inserts a row.
func (s *MemoryStore) Create(ctx context.Context, uid string, row query.Row) (*models.Entry, error) {
	pw, err := prepareWrite(s.schema, uid, nil, row.Data)
	if err != nil {
		return nil, err
	}
	data, err := normalize(pw.data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	isDraft := row.PublishedAt == nil
	for _, e := range s.rows[uid] {
		if e.DocumentID == row.DocumentID && e.Locale == row.Locale && e.IsDraft() == isDraft {
			return nil, fmt.Errorf("create entry: %w", ErrConflict)
		}
	}

	var publishedAt *time.Time
	if row.PublishedAt != nil {
		t := *row.PublishedAt
		publishedAt = &t
	}

	s.seq++
	now := s.now()
	e := &models.Entry{
		ID:          s.seq,
		UID:         uid,
		DocumentID:  row.DocumentID,
		Locale:      row.Locale,
		PublishedAt: publishedAt,
		Data:        data,
		Relations:   pw.relations,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if s.rows[uid] == nil {
		s.rows[uid] = make(map[int64]*models.Entry)
	}
	s.rows[uid][e.ID] = e
	return cloneEntry(e)
}

// Update merges data into the row. Returns nil if the row does not exist.
func (s *MemoryStore) Update(ctx context.Context, uid string, id int64, data map[string]any) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rows[uid][id]
	if !ok {
		return nil, nil
	}
	pw, err := prepareWrite(s.schema, uid, e, data)
	if err != nil {
		return nil, err
	}
	normalized, err := normalize(pw.data)
	if err != nil {
		return nil, err
	}
	e.Data = normalized
	e.Relations = pw.relations
	e.UpdatedAt = s.now()
	return cloneEntry(e)
}

// Delete removes one row and every relation link pointing at it.
func (s *MemoryStore) Delete(ctx context.Context, uid string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(uid, id)
	return nil
}

// DeleteMany removes all matching rows.
func (s *MemoryStore) DeleteMany(ctx context.Context, uid string, where query.Where) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	model, err := s.schema.Model(uid)
	if err != nil {
		return 0, err
	}
	matched, err := s.filter(model, where)
	if err != nil {
		return 0, err
	}
	for _, e := range matched {
		s.remove(uid, e.ID)
	}
	return int64(len(matched)), nil
}

func (s *MemoryStore) remove(uid string, id int64) {
	if _, ok := s.rows[uid][id]; !ok {
		return
	}
	delete(s.rows[uid], id)
	for _, rows := range s.rows {
		for _, e := range rows {
			for field, targets := range e.Relations {
				e.Relations[field] = dropID(targets, id)
			}
		}
	}
}

// filter returns the live rows of model matching where, in id order.
// Callers hold the lock.
func (s *MemoryStore) filter(model *schema.Model, where query.Where) ([]*models.Entry, error) {
	var out []*models.Entry
	for _, e := range s.rows[model.UID] {
		ok, err := s.match(model, entryRecord{e}, where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// row returns the live row with the given id of any content type.
func (s *MemoryStore) row(uid string, id int64) (*models.Entry, bool) {
	e, ok := s.rows[uid][id]
	return e, ok
}

func cloneEntry(e *models.Entry) (*models.Entry, error) {
	out := *e
	out.Data = map[string]any{}
	out.Relations = map[string][]int64{}
	if e.PublishedAt != nil {
		t := *e.PublishedAt
		out.PublishedAt = &t
	}
	if err := deepcopy.Copy(&out.Data, &e.Data); err != nil {
		return nil, fmt.Errorf("copy entry data: %w", err)
	}
	if err := deepcopy.Copy(&out.Relations, &e.Relations); err != nil {
		return nil, fmt.Errorf("copy entry relations: %w", err)
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	if out.Relations == nil {
		out.Relations = map[string][]int64{}
	}
	return &out, nil
}

// normalize round-trips data through JSON.
func normalize(data map[string]any) (map[string]any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode entry data: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode entry data: %w", err)
	}
	return out, nil
}

func compareNullsFirst(a, b any) int {
	an, bn := query.IsNil(a), query.IsNil(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	return query.Compare(a, b)
}

func dropID(list []int64, id int64) []int64 {
	out := list[:0:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
