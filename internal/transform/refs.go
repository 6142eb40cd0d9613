// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package transform

import (
	"docpress/internal/apperr"
	"docpress/internal/query"
)

// Ref is a relation reference as written by a caller. The set of
// implementations is closed: Null, RowID, ShortHand, LongHand, List and
// Mutation. Classify is the only constructor.
type Ref interface {
	ref()
}

// Null clears the relation.
type Null struct{}

// RowID is an already resolved numeric row id. It is never looked up.
type RowID struct {
	Raw any
}

// ShortHand is a bare documentId.
type ShortHand struct {
	DocumentID string
}

// LongHand is an object reference. A LongHand without a DocumentID is
// already in row-id space and passes through unchanged.
type LongHand struct {
	DocumentID string
	Locale     string
	Status     string
	Position   map[string]any
	Rest       map[string]any
	Raw        map[string]any
}

// List is an array of references.
type List struct {
	Items []Ref
}

// Mutation is the {set, connect, disconnect} form. A nil slice means the
// verb was not given.
type Mutation struct {
	Set        []Ref
	Connect    []Ref
	Disconnect []Ref
}

func (Null) ref()      {}
func (RowID) ref()     {}
func (ShortHand) ref() {}
func (LongHand) ref()  {}
func (List) ref()      {}
func (Mutation) ref()  {}

// Reference keys of the long-hand form.
const (
	keyID         = "id"
	keyDocumentID = "documentId"
	keyLocale     = "locale"
	keyStatus     = "status"
)

// Classify maps a raw relation value onto its Ref variant.
func Classify(v any) (Ref, error) {
	if query.IsNil(v) {
		return Null{}, nil
	}
	if _, ok := query.ToInt64(v); ok {
		return RowID{Raw: v}, nil
	}
	if s, ok := v.(string); ok {
		return ShortHand{DocumentID: s}, nil
	}
	if list, ok := query.AsList(v); ok {
		items, err := classifyAll(list)
		if err != nil {
			return nil, err
		}
		return List{Items: items}, nil
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, apperr.Validation("invalid relation value of type %T", v)
	}
	if isMutation(m) {
		return classifyMutation(m)
	}
	return classifyLongHand(m)
}

func isMutation(m map[string]any) bool {
	for _, verb := range []string{query.RelSet, query.RelConnect, query.RelDisconnect} {
		if _, ok := m[verb]; ok {
			return true
		}
	}
	return false
}

func classifyMutation(m map[string]any) (Ref, error) {
	var out Mutation
	for verb, dst := range map[string]*[]Ref{
		query.RelSet:        &out.Set,
		query.RelConnect:    &out.Connect,
		query.RelDisconnect: &out.Disconnect,
	} {
		raw, ok := m[verb]
		if !ok {
			continue
		}
		items := []Ref{}
		if !query.IsNil(raw) {
			list, isList := query.AsList(raw)
			if !isList {
				list = []any{raw}
			}
			var err error
			if items, err = classifyAll(list); err != nil {
				return nil, err
			}
		}
		for _, item := range items {
			if _, nested := item.(Mutation); nested {
				return nil, apperr.Validation("%s cannot contain relation operations", verb)
			}
			if _, nested := item.(List); nested {
				return nil, apperr.Validation("%s cannot contain nested lists", verb)
			}
		}
		*dst = items
	}
	return out, nil
}

func classifyLongHand(m map[string]any) (Ref, error) {
	lh := LongHand{Raw: m, Rest: map[string]any{}}
	for k, v := range m {
		switch k {
		case keyDocumentID:
			s, ok := v.(string)
			if !ok {
				return nil, apperr.Validation("documentId must be a string, got %T", v)
			}
			lh.DocumentID = s
		case keyID:
			// A string id is a documentId; a number is a row id.
			if s, ok := v.(string); ok {
				lh.DocumentID = s
			} else {
				lh.Rest[k] = v
			}
		case keyLocale:
			if s, ok := v.(string); ok {
				lh.Locale = s
			}
		case keyStatus:
			if s, ok := v.(string); ok {
				lh.Status = s
			}
		case query.RelPosition:
			pos, ok := v.(map[string]any)
			if !ok && !query.IsNil(v) {
				return nil, apperr.Validation("invalid relation position %v", v)
			}
			lh.Position = pos
		default:
			lh.Rest[k] = v
		}
	}
	if lh.DocumentID == "" {
		if _, ok := query.ToInt64(m[keyID]); !ok {
			return nil, apperr.Validation("relation reference needs an id or documentId")
		}
	}
	return lh, nil
}

func classifyAll(list []any) ([]Ref, error) {
	out := make([]Ref, 0, len(list))
	for _, item := range list {
		r, err := Classify(item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
