// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package idmap resolves (content type, documentId, locale, status) tuples
// to internal row ids. A Map is scoped to one logical operation: lookups
// are memoized and batched inside it, and the owner clears it after every
// write so rows created mid-operation are seen.
package idmap

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"docpress/internal/apperr"
	"docpress/internal/metrics"
	"docpress/internal/query"
	"docpress/internal/schema"
)

// Key identifies one row of a document. Locale is ignored for content
// types that are not localized.
type Key struct {
	UID        string
	DocumentID string
	Locale     string
	IsDraft    bool
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%t", k.UID, k.DocumentID, k.Locale, k.IsDraft)
}

// group is the batching unit: one query per (uid, locale, status).
type group struct {
	uid     string
	locale  string
	isDraft bool
}

// Map is an operation-scoped identifier map. It is safe for concurrent use
// by the goroutines of a single operation.
type Map struct {
	engine query.Engine
	schema schema.Provider
	logger *zap.SugaredLogger

	mu      sync.Mutex
	pending map[Key]struct{}
	ids     map[Key]int64 // 0 marks a tuple looked up and not found
	flight  singleflight.Group
}

// New creates an empty Map over engine. A nil logger discards output.
func New(engine query.Engine, provider schema.Provider, logger *zap.SugaredLogger) *Map {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Map{
		engine:  engine,
		schema:  provider,
		logger:  logger,
		pending: make(map[Key]struct{}),
		ids:     make(map[Key]int64),
	}
}

// normalize drops the locale of non-localized content types.
func (m *Map) normalize(k Key) (Key, error) {
	model, err := m.schema.Model(k.UID)
	if err != nil {
		return Key{}, err
	}
	if !model.Localized {
		k.Locale = ""
	}
	return k, nil
}

// Add queues k for the next Load. Tuples already resolved are skipped.
func (m *Map) Add(k Key) error {
	k, err := m.normalize(k)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, done := m.ids[k]; !done {
		m.pending[k] = struct{}{}
	}
	return nil
}

// Load resolves every queued tuple. Tuples sharing (uid, locale, status)
// are fetched with one documentId IN query; groups run concurrently.
func (m *Map) Load(ctx context.Context) error {
	m.mu.Lock()
	batches := make(map[group][]string)
	for k := range m.pending {
		g := group{uid: k.UID, locale: k.Locale, isDraft: k.IsDraft}
		batches[g] = append(batches[g], k.DocumentID)
	}
	m.pending = make(map[Key]struct{})
	m.mu.Unlock()

	if len(batches) == 0 {
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	for g, docIDs := range batches {
		sort.Strings(docIDs)
		eg.Go(func() error {
			return m.loadGroup(ctx, g, docIDs)
		})
	}
	return eg.Wait()
}

func (m *Map) loadGroup(ctx context.Context, g group, docIDs []string) error {
	where := query.And(
		query.Where{query.FieldDocumentID: map[string]any{query.OpIn: docIDs}},
		query.StatusWhere(g.isDraft),
	)
	if g.locale != "" {
		where = query.And(where, query.Where{query.FieldLocale: g.locale})
	}

	metrics.IDMapQueries.Inc()
	rows, err := m.engine.FindMany(ctx, g.uid, query.Params{
		Where:  where,
		Select: []string{query.FieldID, query.FieldDocumentID},
	})
	if err != nil {
		return fmt.Errorf("load document ids for %s: %w", g.uid, err)
	}

	found := make(map[string]int64, len(rows))
	for _, r := range rows {
		found[r.DocumentID] = r.ID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, docID := range docIDs {
		k := Key{UID: g.uid, DocumentID: docID, Locale: g.locale, IsDraft: g.isDraft}
		m.ids[k] = found[docID]
	}
	m.logger.Debugw("document ids loaded",
		"uid", g.uid,
		"locale", g.locale,
		"draft", g.isDraft,
		"requested", len(docIDs),
		"found", len(found),
	)
	return nil
}

// Get returns the row id of a loaded tuple. ok is false when the tuple was
// never loaded or has no row.
func (m *Map) Get(k Key) (id int64, ok bool) {
	k, err := m.normalize(k)
	if err != nil {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id = m.ids[k]
	return id, id != 0
}

// Resolve returns the row id for k, loading it if needed. Concurrent calls
// for the same tuple share one lookup. A missing row is a validation
// error naming the documentId unless allowMissing is set, in which case
// ok is false.
func (m *Map) Resolve(ctx context.Context, k Key, allowMissing bool) (id int64, ok bool, err error) {
	k, err = m.normalize(k)
	if err != nil {
		return 0, false, err
	}

	m.mu.Lock()
	id, loaded := m.ids[k]
	m.mu.Unlock()

	if loaded {
		metrics.IDMapLookups.WithLabelValues(metrics.ResultHit).Inc()
	} else {
		metrics.IDMapLookups.WithLabelValues(metrics.ResultMiss).Inc()
		_, err, _ = m.flight.Do(k.String(), func() (any, error) {
			g := group{uid: k.UID, locale: k.Locale, isDraft: k.IsDraft}
			return nil, m.loadGroup(ctx, g, []string{k.DocumentID})
		})
		if err != nil {
			return 0, false, err
		}
		m.mu.Lock()
		id = m.ids[k]
		m.mu.Unlock()
	}

	if id == 0 {
		if allowMissing {
			return 0, false, nil
		}
		return 0, false, apperr.MissingDocument(k.DocumentID)
	}
	return id, true, nil
}

// Clear forgets every loaded and queued tuple.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = make(map[Key]struct{})
	m.ids = make(map[Key]int64)
}
