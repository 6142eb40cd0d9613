// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package transform

import (
	"docpress/internal/apperr"
	"docpress/internal/models"
	"docpress/internal/schema"
)

// excludedAttributes are relation attributes owned by other subsystems
// with their own id space. Their values are never transformed.
var excludedAttributes = map[string]bool{
	"createdBy":       true,
	"updatedBy":       true,
	"localizations":   true,
	"strapi_stage":    true,
	"strapi_assignee": true,
}

// IsExcluded reports whether attribute values of name bypass the relation
// transformer.
func IsExcluded(name string) bool { return excludedAttributes[name] }

// RelationTargetLocale returns the locale used to look up a relation
// target. The reference's own locale wins, then the source entity's
// locale, then the default locale. Non-localized targets use no locale.
// Two localized types may only be related within one locale.
func RelationTargetLocale(source, target *schema.Model, sourceLocale, refLocale, defaultLocale string) (string, error) {
	if !target.Localized {
		return "", nil
	}
	effectiveSource := sourceLocale
	if effectiveSource == "" {
		effectiveSource = defaultLocale
	}
	locale := refLocale
	if locale == "" {
		locale = effectiveSource
	}
	if source.Localized && locale != effectiveSource {
		return "", apperr.Validation("relation locale %q does not match source locale %q", locale, effectiveSource)
	}
	return locale, nil
}

// RelationTargetStatuses returns the draft flags of the target rows a
// reference links to. A target without draft & publish is linked through
// its published row. An explicit status on the reference wins next. A
// source with draft & publish links rows of its own status, and a source
// without it links both versions of the target.
func RelationTargetStatuses(source, target *schema.Model, refStatus string, isDraft bool) ([]bool, error) {
	if !target.HasDraftAndPublish() {
		return []bool{false}, nil
	}
	if refStatus != "" {
		st, err := models.ParseStatus(refStatus)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		return []bool{st.IsDraft()}, nil
	}
	if source.HasDraftAndPublish() {
		return []bool{isDraft}, nil
	}
	return []bool{true, false}, nil
}
