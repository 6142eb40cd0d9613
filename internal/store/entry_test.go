// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"docpress/internal/query"
	"docpress/internal/schema/schematest"
)

var entryCols = []string{"id", "uid", "document_id", "locale", "published_at", "data", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*EntryStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEntryStore(sqlx.NewDb(db, "pgx"), schematest.Registry()), mock
}

func TestEntryStoreFindMany(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT e.id, e.uid, e.document_id, e.locale, e.published_at, e.data, e.created_at, e.updated_at FROM entries e ` +
			`WHERE e.uid = $1 AND e.data->>'title' = $2 ORDER BY (e.data->>'views')::numeric DESC, e.id LIMIT $3`)).
		WithArgs(schematest.Article, "Hello", 5).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(int64(7), schematest.Article, "doc1", "en", nil, []byte(`{"title":"Hello","views":3}`), now, now).
			AddRow(int64(8), schematest.Article, "doc1", "en", now, []byte(`{"title":"Hello"}`), now, now))

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT source_id, field, target_id FROM entry_relations WHERE source_id IN ($1, $2) ORDER BY source_id, field, position`)).
		WithArgs(int64(7), int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"source_id", "field", "target_id"}).
			AddRow(int64(7), "tags", int64(3)).
			AddRow(int64(7), "tags", int64(1)).
			AddRow(int64(8), "category", int64(2)))

	got, err := s.FindMany(context.Background(), schematest.Article, query.Params{
		Where:   query.Where{"title": "Hello"},
		OrderBy: []query.Sort{{Field: "views", Desc: true}},
		Limit:   5,
	})
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if !got[0].IsDraft() || got[1].IsDraft() {
		t.Error("publication state not decoded")
	}
	if got[0].Locale != "en" || got[0].Data["views"] != float64(3) {
		t.Errorf("entry 7 = %+v", got[0])
	}
	if diff := cmp.Diff([]int64{3, 1}, got[0].Relations["tags"]); diff != "" {
		t.Errorf("tags order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{2}, got[1].Relations["category"]); diff != "" {
		t.Errorf("category (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEntryStoreFindOneNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM entries e WHERE e.uid = $1 AND e.document_id = $2 ORDER BY e.id LIMIT $3`)).
		WithArgs(schematest.Tag, "missing", 1).
		WillReturnRows(sqlmock.NewRows(entryCols))

	got, err := s.FindOne(context.Background(), schematest.Tag, query.Params{Where: query.Where{"documentId": "missing"}})
	if err != nil || got != nil {
		t.Errorf("FindOne = %v, %v; want nil, nil", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEntryStoreCount(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM entries e WHERE e.uid = $1 AND e.published_at IS NOT NULL`)).
		WithArgs(schematest.Article).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	n, err := s.Count(context.Background(), schematest.Article, query.StatusWhere(false))
	if err != nil || n != 4 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestEntryStoreCreate(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO entries (uid, document_id, locale, published_at, data) VALUES ($1, $2, $3, $4, $5) RETURNING`)).
		WithArgs(schematest.Article, "doc1", "en", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(int64(11), schematest.Article, "doc1", "en", nil, []byte(`{"title":"T"}`), now, now))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO entry_relations (source_id, field, target_id, position) VALUES ($1, $2, $3, $4)`)).
		WithArgs(int64(11), "tags", int64(5), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO entry_relations`)).
		WithArgs(int64(11), "tags", int64(6), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e, err := s.Create(context.Background(), schematest.Article, query.Row{
		DocumentID: "doc1",
		Locale:     "en",
		Data:       map[string]any{"title": "T", "tags": []any{int64(5), int64(6)}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.ID != 11 || !cmp.Equal(e.Relations["tags"], []int64{5, 6}) {
		t.Errorf("created entry = %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEntryStoreCreateConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO entries`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_entries_version"})
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), schematest.Tag, query.Row{DocumentID: "t1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEntryStoreUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM entries e WHERE e.uid = $1 AND e.id = $2 FOR UPDATE`)).
		WithArgs(schematest.Article, int64(3)).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(int64(3), schematest.Article, "doc1", "en", nil, []byte(`{"title":"Old","views":1}`), now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM entry_relations WHERE source_id IN ($1)`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"source_id", "field", "target_id"}).
			AddRow(int64(3), "tags", int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE entries SET data = $1, updated_at = NOW() WHERE id = $2 RETURNING`)).
		WithArgs(sqlmock.AnyArg(), int64(3)).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(int64(3), schematest.Article, "doc1", "en", nil, []byte(`{"title":"New","views":1}`), now, now))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM entry_relations WHERE source_id = $1 AND field = $2`)).
		WithArgs(int64(3), "tags").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO entry_relations`)).
		WithArgs(int64(3), "tags", int64(1), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO entry_relations`)).
		WithArgs(int64(3), "tags", int64(2), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e, err := s.Update(context.Background(), schematest.Article, 3, map[string]any{
		"title": "New",
		"tags":  map[string]any{"connect": []any{int64(2)}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.Data["title"] != "New" || !cmp.Equal(e.Relations["tags"], []int64{1, 2}) {
		t.Errorf("updated entry = %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEntryStoreUpdateMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs(schematest.Tag, int64(99)).
		WillReturnRows(sqlmock.NewRows(entryCols))
	mock.ExpectRollback()

	e, err := s.Update(context.Background(), schematest.Tag, 99, map[string]any{"label": "x"})
	if err != nil || e != nil {
		t.Errorf("Update = %v, %v; want nil, nil", e, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEntryStoreDeleteMany(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM entries e WHERE e.uid = $1 AND e.document_id = $2`)).
		WithArgs(schematest.Article, "doc1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.DeleteMany(context.Background(), schematest.Article, query.Where{"documentId": "doc1"})
	if err != nil || n != 2 {
		t.Errorf("DeleteMany = %d, %v", n, err)
	}
}

func TestCacheLogStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s := NewCacheLogStore(sqlx.NewDb(db, "pgx"), nil)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cache_invalidation_log (uid, document_id, action) VALUES ($1, $2, $3)`)).
		WithArgs(schematest.Article, "doc1", "publish").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cache_invalidation_log`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM cache_invalidation_log ORDER BY invalidated_at DESC, id DESC LIMIT $1`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uid", "document_id", "action", "invalidated_at"}).
			AddRow(int64(1), schematest.Article, "doc1", "publish", now))

	s.Log(context.Background(), schematest.Article, "doc1", "publish")
	// Failures are swallowed.
	s.Log(context.Background(), schematest.Article, "doc2", "delete")

	entries, err := s.RecentEntries(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "publish" {
		t.Errorf("entries = %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
