// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package schematest provides a small blog schema for tests.
//
//   - article: draft & publish, localized; relations to category, tags
//     and author; an seo component and a blocks dynamic zone.
//   - category: draft & publish, localized.
//   - tag: no draft & publish, not localized.
//   - author: draft & publish, not localized.
//   - shared.seo and shared.quote: components holding relations.
package schematest

import "docpress/internal/schema"

const (
	Article  = "api::article.article"
	Category = "api::category.category"
	Tag      = "api::tag.tag"
	Author   = "api::author.author"
	SEO      = "shared.seo"
	Quote    = "shared.quote"
)

// Models returns fresh copies of the blog models.
func Models() []*schema.Model {
	return []*schema.Model{
		{
			UID:             Article,
			DraftAndPublish: true,
			Localized:       true,
			Attributes: map[string]schema.Attribute{
				"title":    {Type: schema.TypeString, Required: true},
				"slug":     {Type: schema.TypeUID, TargetField: "title"},
				"views":    {Type: schema.TypeInteger},
				"featured": {Type: schema.TypeBoolean},
				"category": {Type: schema.TypeRelation, Relation: schema.ManyToOne, Target: Category},
				"tags":     {Type: schema.TypeRelation, Relation: schema.ManyToMany, Target: Tag},
				"author":   {Type: schema.TypeRelation, Relation: schema.ManyToOne, Target: Author},
				"seo":      {Type: schema.TypeComponent, Component: SEO},
				"blocks":   {Type: schema.TypeDynamicZone, Components: []string{Quote, SEO}},
			},
		},
		{
			UID:             Category,
			DraftAndPublish: true,
			Localized:       true,
			Attributes: map[string]schema.Attribute{
				"name":     {Type: schema.TypeString, Unique: true},
				"articles": {Type: schema.TypeRelation, Relation: schema.OneToMany, Target: Article},
			},
		},
		{
			UID: Tag,
			Attributes: map[string]schema.Attribute{
				"label": {Type: schema.TypeString},
			},
		},
		{
			UID:             Author,
			DraftAndPublish: true,
			Attributes: map[string]schema.Attribute{
				"name": {Type: schema.TypeString},
			},
		},
		{
			UID:  SEO,
			Kind: schema.KindComponent,
			Attributes: map[string]schema.Attribute{
				"metaTitle": {Type: schema.TypeString},
				"related":   {Type: schema.TypeRelation, Relation: schema.ManyToMany, Target: Tag},
			},
		},
		{
			UID:  Quote,
			Kind: schema.KindComponent,
			Attributes: map[string]schema.Attribute{
				"text":   {Type: schema.TypeText},
				"source": {Type: schema.TypeRelation, Relation: schema.ManyToOne, Target: Author},
			},
		},
	}
}

// Registry returns a registry over Models. It panics on error since the
// fixture is static.
func Registry() *schema.Registry {
	r, err := schema.New(Models()...)
	if err != nil {
		panic(err)
	}
	return r
}
