// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package document

import (
	"context"
	"sort"

	"docpress/internal/apperr"
	"docpress/internal/models"
	"docpress/internal/query"
	"docpress/internal/schema"
	"docpress/internal/slug"
)

// uniqueWhere selects the rows that would conflict with value for
// attribute name: same locale, same status, other rows only.
func (op *operation) uniqueWhere(name string, value any, current *models.Entry, locale string, isDraft bool) query.Where {
	scope := query.Where{name: value}
	if op.model.Localized {
		scope[query.FieldLocale] = locale
	}
	if current != nil {
		scope[query.FieldID] = map[string]any{query.OpNe: current.ID}
	}
	return query.And(scope, query.StatusWhere(isDraft))
}

// checkUnique rejects values of unique attributes already used by another
// row of the same locale and status. Values left unchanged by an update
// are not checked again.
func (op *operation) checkUnique(ctx context.Context, data map[string]any, current *models.Entry, locale string, isDraft bool) error {
	for _, name := range sortedAttributes(op.model) {
		attr := op.model.Attributes[name]
		if !attr.IsUnique() {
			continue
		}
		v, ok := data[name]
		if !ok || !isScalar(v) {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		if current != nil && query.Equal(current.Data[name], v) {
			continue
		}
		n, err := op.engine.Count(ctx, op.model.UID, op.uniqueWhere(name, v, current, locale, isDraft))
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Validation("this attribute must be unique").WithPath(name)
		}
	}
	return nil
}

// fillUIDs generates missing uid values from their target field, picking
// the first free variant. Given uid values are only checked for format.
func (op *operation) fillUIDs(ctx context.Context, data map[string]any, current *models.Entry, locale string) error {
	for _, name := range sortedAttributes(op.model) {
		attr := op.model.Attributes[name]
		if attr.Type != schema.TypeUID {
			continue
		}
		if v, ok := data[name].(string); ok && v != "" {
			if !slug.Valid(v) {
				return apperr.Validation("%q is not a valid uid", v).WithPath(name)
			}
			continue
		}
		if _, given := data[name]; !given && current != nil {
			if v, _ := current.Data[name].(string); v != "" {
				continue
			}
		}
		if attr.TargetField == "" {
			continue
		}

		source, _ := data[attr.TargetField].(string)
		if source == "" && current != nil {
			source, _ = current.Data[attr.TargetField].(string)
		}
		base := slug.Generate(source)
		if base == "" {
			continue
		}
		value, err := slug.Available(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
			n, err := op.engine.Count(ctx, op.model.UID, op.uniqueWhere(name, candidate, current, locale, true))
			return n > 0, err
		})
		if err != nil {
			return err
		}
		data[name] = value
	}
	return nil
}

func sortedAttributes(model *schema.Model) []string {
	names := make([]string, 0, len(model.Attributes))
	for name := range model.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isScalar(v any) bool {
	if query.IsNil(v) {
		return false
	}
	switch v.(type) {
	case map[string]any, []any:
		return false
	}
	return true
}
