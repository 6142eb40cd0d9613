// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package transform

import (
	"slices"
	"sort"

	"docpress/internal/apperr"
	"docpress/internal/query"
	"docpress/internal/schema"
)

// All selects every field, or every relation when used as a populate key.
const All = "*"

// Populate selects relation attributes to expand in responses.
type Populate map[string]*PopulateOptions

// PopulateOptions narrows one populated relation. A nil value populates
// the relation with defaults.
type PopulateOptions struct {
	Filters  query.Where
	Fields   []string
	Sort     []query.Sort
	Populate Populate
}

// Fields returns the field selection with documentId added. A selection
// containing "*", or an empty one, selects everything and is returned as is.
func Fields(fields []string) []string {
	if len(fields) == 0 || slices.Contains(fields, All) {
		return fields
	}
	out := slices.Clone(fields)
	if !slices.Contains(out, query.FieldDocumentID) {
		out = append(out, query.FieldDocumentID)
	}
	return out
}

// Sort rewrites sorts on id to documentId.
func Sort(sorts []query.Sort) []query.Sort {
	if sorts == nil {
		return nil
	}
	out := make([]query.Sort, len(sorts))
	for i, s := range sorts {
		if s.Field == keyID {
			s.Field = query.FieldDocumentID
		}
		out[i] = s
	}
	return out
}

// Populates transforms a populate tree of content type uid: "*" expands to
// every relation attribute, and the filters, fields and sorts of each
// entry are rewritten against the relation target. Only relation
// attributes can be populated.
func Populates(provider schema.Provider, uid string, p Populate) (Populate, error) {
	if len(p) == 0 {
		return nil, nil
	}
	model, err := provider.Model(uid)
	if err != nil {
		return nil, err
	}

	out := make(Populate, len(p))
	if opts, ok := p[All]; ok {
		for _, name := range relationAttributes(model) {
			out[name] = opts
		}
	}
	for name, opts := range p {
		if name == All {
			continue
		}
		attr, ok := model.Attribute(name)
		if !ok || !attr.IsRelation() {
			return nil, apperr.Validation("cannot populate %q: not a relation", name).WithPath(name)
		}
		out[name] = opts
	}

	for name, opts := range out {
		if opts == nil {
			continue
		}
		attr, _ := model.Attribute(name)
		if attr.Target == "" {
			return nil, errMissingTarget(uid, name)
		}
		next := &PopulateOptions{
			Fields: Fields(opts.Fields),
			Sort:   Sort(opts.Sort),
		}
		if next.Filters, err = Filters(provider, attr.Target, opts.Filters); err != nil {
			return nil, withPath(err, []string{name})
		}
		if next.Populate, err = Populates(provider, attr.Target, opts.Populate); err != nil {
			return nil, withPath(err, []string{name})
		}
		out[name] = next
	}
	return out, nil
}

// relationAttributes lists the populatable relations of model, sorted.
func relationAttributes(model *schema.Model) []string {
	var names []string
	for name, attr := range model.Attributes {
		if attr.IsRelation() && !IsExcluded(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func errMissingTarget(uid, attr string) error {
	return apperr.Structural("relation %s.%s has no target", uid, attr)
}
