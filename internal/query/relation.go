// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package query

import (
	"slices"

	"docpress/internal/apperr"
)

// Relation write verbs.
const (
	RelSet        = "set"
	RelConnect    = "connect"
	RelDisconnect = "disconnect"
	RelPosition   = "position"
)

// Position anchors a connected id relative to the current order.
type Position struct {
	Before int64
	After  int64
	Start  bool
	End    bool
}

// link is one id of a relation write with its optional position.
type link struct {
	id  int64
	pos *Position
}

// ApplyRelation applies a relation write operation expressed in row-id
// space to the current ordered target list and returns the new list.
//
// Accepted shapes: nil (clear), an id, {id}, a list of ids or {id}
// objects (set), and {set, connect, disconnect}. For to-one relations the
// ids supplied by the operation replace the current value.
func ApplyRelation(current []int64, op any, toOne bool) ([]int64, error) {
	if IsNil(op) {
		return []int64{}, nil
	}
	if id, ok := ToInt64(op); ok {
		return []int64{id}, nil
	}
	if list, ok := AsList(op); ok {
		links, err := parseLinks(list)
		if err != nil {
			return nil, err
		}
		return dedupe(linkIDs(links)), nil
	}

	m, ok := op.(map[string]any)
	if !ok {
		return nil, apperr.Validation("invalid relation value %T", op)
	}
	if _, hasID := m["id"]; hasID && !hasVerb(m) {
		l, err := parseLink(m)
		if err != nil {
			return nil, err
		}
		return []int64{l.id}, nil
	}

	result := slices.Clone(current)
	var supplied []int64

	if raw, ok := m[RelSet]; ok {
		links, err := parseLinkValue(raw)
		if err != nil {
			return nil, err
		}
		result = dedupe(linkIDs(links))
		supplied = append(supplied, result...)
	}
	if raw, ok := m[RelDisconnect]; ok {
		links, err := parseLinkValue(raw)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			result = remove(result, l.id)
		}
	}
	if raw, ok := m[RelConnect]; ok {
		links, err := parseLinkValue(raw)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			result = connect(result, l)
			supplied = append(supplied, l.id)
		}
	}

	if toOne && len(supplied) > 0 {
		return dedupe(supplied), nil
	}
	if result == nil {
		result = []int64{}
	}
	return result, nil
}

func hasVerb(m map[string]any) bool {
	_, s := m[RelSet]
	_, c := m[RelConnect]
	_, d := m[RelDisconnect]
	return s || c || d
}

func parseLinkValue(v any) ([]link, error) {
	if IsNil(v) {
		return nil, nil
	}
	if list, ok := AsList(v); ok {
		return parseLinks(list)
	}
	l, err := parseLink(v)
	if err != nil {
		return nil, err
	}
	return []link{l}, nil
}

func parseLinks(list []any) ([]link, error) {
	out := make([]link, 0, len(list))
	for _, item := range list {
		l, err := parseLink(item)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func parseLink(v any) (link, error) {
	if id, ok := ToInt64(v); ok {
		return link{id: id}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return link{}, apperr.Validation("invalid relation reference %v", v)
	}
	id, ok := ToInt64(m["id"])
	if !ok {
		return link{}, apperr.Validation("relation reference needs a numeric id, got %v", m["id"])
	}
	l := link{id: id}
	if raw, ok := m[RelPosition]; ok && !IsNil(raw) {
		pos, err := parsePosition(raw)
		if err != nil {
			return link{}, err
		}
		l.pos = pos
	}
	return l, nil
}

func parsePosition(v any) (*Position, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, apperr.Validation("invalid relation position %v", v)
	}
	p := &Position{}
	if raw, ok := m["before"]; ok {
		id, ok := ToInt64(raw)
		if !ok {
			return nil, apperr.Validation("position.before needs a numeric id, got %v", raw)
		}
		p.Before = id
	}
	if raw, ok := m["after"]; ok {
		id, ok := ToInt64(raw)
		if !ok {
			return nil, apperr.Validation("position.after needs a numeric id, got %v", raw)
		}
		p.After = id
	}
	p.Start, _ = m["start"].(bool)
	p.End, _ = m["end"].(bool)
	return p, nil
}

// connect inserts l.id according to its position. An id already present
// keeps its place unless a position is given. An anchor missing from the
// list appends at the end.
func connect(list []int64, l link) []int64 {
	if l.pos == nil || l.pos.End {
		if slices.Contains(list, l.id) && l.pos == nil {
			return list
		}
		return append(remove(list, l.id), l.id)
	}
	list = remove(list, l.id)
	switch {
	case l.pos.Start:
		return slices.Insert(list, 0, l.id)
	case l.pos.Before != 0:
		if i := slices.Index(list, l.pos.Before); i >= 0 {
			return slices.Insert(list, i, l.id)
		}
	case l.pos.After != 0:
		if i := slices.Index(list, l.pos.After); i >= 0 {
			return slices.Insert(list, i+1, l.id)
		}
	}
	return append(list, l.id)
}

func remove(list []int64, id int64) []int64 {
	return slices.DeleteFunc(slices.Clone(list), func(v int64) bool { return v == id })
}

func linkIDs(links []link) []int64 {
	ids := make([]int64, len(links))
	for i, l := range links {
		ids[i] = l.id
	}
	return ids
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
