// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Status is the publication state a caller asks for.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ParseStatus converts a caller supplied status. An empty string means draft.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case "", StatusDraft:
		return StatusDraft, nil
	case StatusPublished:
		return StatusPublished, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// IsDraft reports whether the status selects draft rows.
func (s Status) IsDraft() bool { return s != StatusPublished }

// StatusOf maps the draft flag used by the id map back to a Status.
func StatusOf(isDraft bool) Status {
	if isDraft {
		return StatusDraft
	}
	return StatusPublished
}

// Entry is one physical row: a single (document, locale, status) version.
// Relations holds the ordered target row ids of each top-level relation
// attribute. Relations nested inside components live inline in Data.
type Entry struct {
	ID          int64              `db:"id"`
	UID         string             `db:"uid"`
	DocumentID  string             `db:"document_id"`
	Locale      string             `db:"locale"`
	PublishedAt *time.Time         `db:"published_at"`
	Data        map[string]any     `db:"-"`
	Relations   map[string][]int64 `db:"-"`
	CreatedAt   time.Time          `db:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at"`
}

// IsDraft reports whether the row is the draft version.
func (e *Entry) IsDraft() bool { return e.PublishedAt == nil }

// Status returns the publication state of the row.
func (e *Entry) Status() Status { return StatusOf(e.IsDraft()) }

// Document is the caller-facing view of an Entry. It carries the document
// id and never the internal row id.
type Document struct {
	DocumentID  string         `json:"documentId"`
	Locale      string         `json:"locale,omitempty"`
	Status      Status         `json:"status"`
	PublishedAt *time.Time     `json:"publishedAt"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Fields      map[string]any `json:"-"`
}

// MarshalJSON flattens Fields next to the system attributes.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+6)
	for k, v := range d.Fields {
		out[k] = v
	}
	out["documentId"] = d.DocumentID
	if d.Locale != "" {
		out["locale"] = d.Locale
	}
	out["status"] = d.Status
	out["publishedAt"] = d.PublishedAt
	out["createdAt"] = d.CreatedAt
	out["updatedAt"] = d.UpdatedAt
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (d *Document) UnmarshalJSON(b []byte) error {
	type system struct {
		DocumentID  string     `json:"documentId"`
		Locale      string     `json:"locale"`
		Status      Status     `json:"status"`
		PublishedAt *time.Time `json:"publishedAt"`
		CreatedAt   time.Time  `json:"createdAt"`
		UpdatedAt   time.Time  `json:"updatedAt"`
	}
	var sys system
	if err := json.Unmarshal(b, &sys); err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	for _, k := range []string{"documentId", "locale", "status", "publishedAt", "createdAt", "updatedAt"} {
		delete(fields, k)
	}
	*d = Document{
		DocumentID:  sys.DocumentID,
		Locale:      sys.Locale,
		Status:      sys.Status,
		PublishedAt: sys.PublishedAt,
		CreatedAt:   sys.CreatedAt,
		UpdatedAt:   sys.UpdatedAt,
		Fields:      fields,
	}
	return nil
}
