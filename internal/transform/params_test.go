// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package transform

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"docpress/internal/apperr"
	"docpress/internal/query"
	"docpress/internal/schema/schematest"
)

func TestFields(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, nil},
		{"star", []string{"*"}, []string{"*"}},
		{"adds documentId", []string{"title"}, []string{"title", "documentId"}},
		{"already there", []string{"documentId", "title"}, []string{"documentId", "title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Fields(tt.in)); diff != "" {
				t.Errorf("Fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSort(t *testing.T) {
	in := []query.Sort{{Field: "id", Desc: true}, {Field: "title"}}
	want := []query.Sort{{Field: "documentId", Desc: true}, {Field: "title"}}
	if diff := cmp.Diff(want, Sort(in)); diff != "" {
		t.Errorf("Sort mismatch (-want +got):\n%s", diff)
	}
	if in[0].Field != "id" {
		t.Error("input was modified")
	}
}

func TestPopulates(t *testing.T) {
	reg := schematest.Registry()

	got, err := Populates(reg, schematest.Article, Populate{
		"*": nil,
		"category": &PopulateOptions{
			Filters: query.Where{"id": "c1"},
			Fields:  []string{"name"},
			Sort:    []query.Sort{{Field: "id"}},
			Populate: Populate{
				"articles": &PopulateOptions{Filters: query.Where{"author": map[string]any{"id": "a1"}}},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Populate{
		"author": nil,
		"tags":   nil,
		"category": &PopulateOptions{
			Filters: query.Where{"documentId": "c1"},
			Fields:  []string{"name", "documentId"},
			Sort:    []query.Sort{{Field: "documentId"}},
			Populate: Populate{
				"articles": &PopulateOptions{Filters: query.Where{"author": map[string]any{"documentId": "a1"}}},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Populates mismatch (-want +got):\n%s", diff)
	}
}

func TestPopulatesRejectsNonRelations(t *testing.T) {
	_, err := Populates(schematest.Registry(), schematest.Article, Populate{"title": nil})
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
