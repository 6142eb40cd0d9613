// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"docpress/internal/models"
	"docpress/internal/query"
	"docpress/internal/schema"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const entryColumns = `e.id, e.uid, e.document_id, e.locale, e.published_at, e.data, e.created_at, e.updated_at`

const returningColumns = `id, uid, document_id, locale, published_at, data, created_at, updated_at`

// EntryStore is the Postgres query engine. Rows live in the entries table
// and top-level relations in entry_relations.
type EntryStore struct {
	db     *sqlx.DB
	schema schema.Provider
}

// NewEntryStore creates a new EntryStore.
func NewEntryStore(db *sqlx.DB, provider schema.Provider) *EntryStore {
	return &EntryStore{db: db, schema: provider}
}

// entryRow is the scan target for the entries table.
type entryRow struct {
	ID          int64          `db:"id"`
	UID         string         `db:"uid"`
	DocumentID  string         `db:"document_id"`
	Locale      sql.NullString `db:"locale"`
	PublishedAt sql.NullTime   `db:"published_at"`
	Data        []byte         `db:"data"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *entryRow) entry() (*models.Entry, error) {
	e := &models.Entry{
		ID:         r.ID,
		UID:        r.UID,
		DocumentID: r.DocumentID,
		Locale:     r.Locale.String,
		Data:       map[string]any{},
		Relations:  map[string][]int64{},
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.PublishedAt.Valid {
		t := r.PublishedAt.Time
		e.PublishedAt = &t
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &e.Data); err != nil {
			return nil, fmt.Errorf("decode entry data: %w", err)
		}
	}
	return e, nil
}

type relationRow struct {
	SourceID int64  `db:"source_id"`
	Field    string `db:"field"`
	TargetID int64  `db:"target_id"`
}

// FindOne returns the first matching row. Returns nil if none matches.
func (s *EntryStore) FindOne(ctx context.Context, uid string, p query.Params) (*models.Entry, error) {
	p.Limit = 1
	entries, err := s.FindMany(ctx, uid, p)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// FindMany returns all matching rows with their relations loaded.
func (s *EntryStore) FindMany(ctx context.Context, uid string, p query.Params) ([]*models.Entry, error) {
	model, err := s.schema.Model(uid)
	if err != nil {
		return nil, err
	}
	cond, args, err := compileWhere(s.schema, uid, "e", p.Where)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + entryColumns + ` FROM entries e WHERE e.uid = ?`)
	args = append([]any{uid}, args...)
	if cond != "" {
		b.WriteString(" AND " + cond)
	}

	order := make([]string, 0, len(p.OrderBy)+1)
	for _, o := range p.OrderBy {
		col, err := orderColumn(model, "e", o.Field)
		if err != nil {
			return nil, err
		}
		if o.Desc {
			col += " DESC"
		}
		order = append(order, col)
	}
	order = append(order, "e.id")
	b.WriteString(" ORDER BY " + strings.Join(order, ", "))

	if p.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, p.Limit)
	}
	if p.Offset > 0 {
		b.WriteString(" OFFSET ?")
		args = append(args, p.Offset)
	}

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, s.db.Rebind(b.String()), args...); err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}

	entries := make([]*models.Entry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := loadRelations(ctx, s.db, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of matching rows.
func (s *EntryStore) Count(ctx context.Context, uid string, where query.Where) (int64, error) {
	cond, args, err := compileWhere(s.schema, uid, "e", where)
	if err != nil {
		return 0, err
	}
	q := `SELECT COUNT(*) FROM entries e WHERE e.uid = ?`
	if cond != "" {
		q += " AND " + cond
	}
	var n int64
	if err := s.db.QueryRowxContext(ctx, s.db.Rebind(q), append([]any{uid}, args...)...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Create inserts a row and its relations in one transaction.
func (s *EntryStore) Create(ctx context.Context, uid string, row query.Row) (*models.Entry, error) {
	pw, err := prepareWrite(s.schema, uid, nil, row.Data)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(pw.data)
	if err != nil {
		return nil, fmt.Errorf("encode entry data: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create entry: %w", err)
	}
	defer tx.Rollback()

	var out entryRow
	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO entries (uid, document_id, locale, published_at, data)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+returningColumns),
		uid, row.DocumentID, nullString(row.Locale), row.PublishedAt, data,
	).StructScan(&out)
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", mapError(err))
	}

	if err := writeRelations(ctx, tx, out.ID, pw.relations, sortedFields(pw.relations), false); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create entry: %w", mapError(err))
	}

	e, err := out.entry()
	if err != nil {
		return nil, err
	}
	e.Relations = pw.relations
	return e, nil
}

// Update merges data into the row. Returns nil if the row does not exist.
func (s *EntryStore) Update(ctx context.Context, uid string, id int64, data map[string]any) (*models.Entry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update entry: %w", err)
	}
	defer tx.Rollback()

	var cur entryRow
	err = tx.QueryRowxContext(ctx, tx.Rebind(`SELECT `+entryColumns+` FROM entries e WHERE e.uid = ? AND e.id = ? FOR UPDATE`), uid, id).StructScan(&cur)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock entry: %w", err)
	}
	current, err := cur.entry()
	if err != nil {
		return nil, err
	}
	if err := loadRelations(ctx, tx, []*models.Entry{current}); err != nil {
		return nil, err
	}

	pw, err := prepareWrite(s.schema, uid, current, data)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(pw.data)
	if err != nil {
		return nil, fmt.Errorf("encode entry data: %w", err)
	}

	var out entryRow
	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		UPDATE entries SET data = ?, updated_at = NOW()
		WHERE id = ?
		RETURNING `+returningColumns), encoded, id).StructScan(&out)
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", mapError(err))
	}
	if err := writeRelations(ctx, tx, id, pw.relations, pw.touched, true); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update entry: %w", mapError(err))
	}

	e, err := out.entry()
	if err != nil {
		return nil, err
	}
	e.Relations = pw.relations
	return e, nil
}

// Delete removes one row. Relations pointing at it are removed by the
// foreign key cascade.
func (s *EntryStore) Delete(ctx context.Context, uid string, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM entries WHERE uid = ? AND id = ?`), uid, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// DeleteMany removes all matching rows and returns how many were removed.
func (s *EntryStore) DeleteMany(ctx context.Context, uid string, where query.Where) (int64, error) {
	cond, args, err := compileWhere(s.schema, uid, "e", where)
	if err != nil {
		return 0, err
	}
	q := `DELETE FROM entries e WHERE e.uid = ?`
	if cond != "" {
		q += " AND " + cond
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), append([]any{uid}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	return n, nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

// loadRelations fills the Relations of every entry in one query.
func loadRelations(ctx context.Context, q queryer, entries []*models.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Entry, len(entries))
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}

	stmt, args, err := sqlx.In(`
		SELECT source_id, field, target_id FROM entry_relations
		WHERE source_id IN (?)
		ORDER BY source_id, field, position`, ids)
	if err != nil {
		return fmt.Errorf("build relation query: %w", err)
	}
	var rows []relationRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(stmt), args...); err != nil {
		return fmt.Errorf("load relations: %w", err)
	}
	for _, r := range rows {
		e := byID[r.SourceID]
		e.Relations[r.Field] = append(e.Relations[r.Field], r.TargetID)
	}
	return nil
}

// writeRelations stores the target lists of fields. With replace set the
// existing links of those fields are removed first.
func writeRelations(ctx context.Context, tx *sqlx.Tx, sourceID int64, relations map[string][]int64, fields []string, replace bool) error {
	for _, field := range fields {
		if replace {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM entry_relations WHERE source_id = ? AND field = ?`), sourceID, field); err != nil {
				return fmt.Errorf("clear relation %s: %w", field, err)
			}
		}
		for pos, target := range relations[field] {
			_, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO entry_relations (source_id, field, target_id, position)
				VALUES (?, ?, ?, ?)`), sourceID, field, target, pos)
			if err != nil {
				return fmt.Errorf("link relation %s: %w", field, mapError(err))
			}
		}
	}
	return nil
}

// mapError translates driver errors into store errors.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func sortedFields(m map[string][]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
