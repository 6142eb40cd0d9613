// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package schema holds content-type and component definitions. Models are
// loaded once at startup and are read-only afterwards, so a Registry is
// safe to share between concurrent operations.
package schema

import "strings"

// Kind distinguishes collection types, single types and components.
type Kind string

const (
	KindCollectionType Kind = "collectionType"
	KindSingleType     Kind = "singleType"
	KindComponent      Kind = "component"
)

// AttributeType is the declared type of an attribute.
type AttributeType string

const (
	TypeString      AttributeType = "string"
	TypeText        AttributeType = "text"
	TypeRichText    AttributeType = "richtext"
	TypeEmail       AttributeType = "email"
	TypeUID         AttributeType = "uid"
	TypeEnumeration AttributeType = "enumeration"
	TypeInteger     AttributeType = "integer"
	TypeBigInteger  AttributeType = "biginteger"
	TypeFloat       AttributeType = "float"
	TypeDecimal     AttributeType = "decimal"
	TypeBoolean     AttributeType = "boolean"
	TypeDate        AttributeType = "date"
	TypeDateTime    AttributeType = "datetime"
	TypeJSON        AttributeType = "json"
	TypeRelation    AttributeType = "relation"
	TypeComponent   AttributeType = "component"
	TypeDynamicZone AttributeType = "dynamiczone"
	TypeMedia       AttributeType = "media"
)

// RelationKind is the cardinality of a relation attribute.
type RelationKind string

const (
	OneToOne   RelationKind = "oneToOne"
	OneToMany  RelationKind = "oneToMany"
	ManyToOne  RelationKind = "manyToOne"
	ManyToMany RelationKind = "manyToMany"
	MorphToOne RelationKind = "morphToOne"
	MorphMany  RelationKind = "morphToMany"
)

// Attribute describes a single field of a model.
type Attribute struct {
	Type        AttributeType `yaml:"type" validate:"required"`
	Target      string        `yaml:"target,omitempty"`
	Relation    RelationKind  `yaml:"relation,omitempty"`
	Component   string        `yaml:"component,omitempty"`
	Components  []string      `yaml:"components,omitempty"`
	Repeatable  bool          `yaml:"repeatable,omitempty"`
	Unique      bool          `yaml:"unique,omitempty"`
	Required    bool          `yaml:"required,omitempty"`
	TargetField string        `yaml:"targetField,omitempty"`
	Private     bool          `yaml:"private,omitempty"`
	Enum        []string      `yaml:"enum,omitempty"`
}

// IsRelation reports whether the attribute points at another content type.
func (a Attribute) IsRelation() bool { return a.Type == TypeRelation }

// IsComponent reports whether the attribute embeds a component.
func (a Attribute) IsComponent() bool { return a.Type == TypeComponent }

// IsDynamicZone reports whether the attribute is a dynamic zone.
func (a Attribute) IsDynamicZone() bool { return a.Type == TypeDynamicZone }

// IsToMany reports whether the relation holds more than one target.
func (a Attribute) IsToMany() bool {
	switch a.Relation {
	case OneToMany, ManyToMany, MorphMany:
		return true
	}
	return false
}

// IsNumeric reports whether values of this attribute compare as numbers.
func (a Attribute) IsNumeric() bool {
	switch a.Type {
	case TypeInteger, TypeBigInteger, TypeFloat, TypeDecimal:
		return true
	}
	return false
}

// IsUnique reports whether values must be unique per locale and status.
// uid attributes are always unique.
func (a Attribute) IsUnique() bool { return a.Unique || a.Type == TypeUID }

// Model is a content type or component definition.
type Model struct {
	UID             string               `yaml:"uid" validate:"required"`
	Kind            Kind                 `yaml:"kind" validate:"omitempty,oneof=collectionType singleType component"`
	DraftAndPublish bool                 `yaml:"draftAndPublish"`
	Localized       bool                 `yaml:"localized"`
	Attributes      map[string]Attribute `yaml:"attributes" validate:"dive"`
}

// Attribute looks up an attribute by name.
func (m *Model) Attribute(name string) (Attribute, bool) {
	a, ok := m.Attributes[name]
	return a, ok
}

// IsComponent reports whether the model is a component.
func (m *Model) IsComponent() bool { return m.Kind == KindComponent }

// DisplayName returns the last segment of the uid ("api::article.article"
// becomes "article").
func (m *Model) DisplayName() string {
	if i := strings.LastIndex(m.UID, "."); i >= 0 {
		return m.UID[i+1:]
	}
	return m.UID
}

// HasDraftAndPublish reports whether rows of this model carry a separate
// draft version. Models without it keep draft and published in sync.
func (m *Model) HasDraftAndPublish() bool { return m.DraftAndPublish }

// Provider resolves model definitions by uid.
type Provider interface {
	Model(uid string) (*Model, error)
}
