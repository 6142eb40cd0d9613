// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package document

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"docpress/internal/apperr"
	"docpress/internal/models"
	"docpress/internal/query"
	"docpress/internal/schema"
	"docpress/internal/schema/schematest"
	"docpress/internal/store"
	"docpress/internal/transform"
)

// fakeCache records cache traffic in memory.
type fakeCache struct {
	mu          sync.Mutex
	docs        map[string]*models.Document
	gets, hits  int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{docs: map[string]*models.Document{}}
}

func (c *fakeCache) Get(_ context.Context, uid, documentID, locale string) (*models.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	doc, ok := c.docs[uid+":"+documentID+":"+locale]
	if ok {
		c.hits++
	}
	return doc, ok
}

func (c *fakeCache) Set(_ context.Context, uid string, doc *models.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[uid+":"+doc.DocumentID+":"+doc.Locale] = doc
}

func (c *fakeCache) Invalidate(_ context.Context, uid, documentID, action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.docs {
		delete(c.docs, k)
	}
	c.invalidated = append(c.invalidated, action+":"+documentID)
}

var testConfig = Config{
	DefaultLocale:    "en",
	Locales:          []string{"en", "fr", "de"},
	AutoCreateLocale: true,
}

func newTestService(t *testing.T, cfg Config, cache Cache) *Service {
	t.Helper()
	return newSchemaService(t, schematest.Registry(), cfg, cache)
}

func newSchemaService(t *testing.T, reg *schema.Registry, cfg Config, cache Cache) *Service {
	t.Helper()
	svc := New(store.NewMemoryStore(reg), reg, cache, cfg, nil)
	var n int
	var mu sync.Mutex
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("doc%d", n)
	}
	return svc
}

func mustCreate(t *testing.T, svc *Service, uid string, p Params) *models.Document {
	t.Helper()
	doc, err := svc.Create(context.Background(), uid, p)
	if err != nil {
		t.Fatalf("Create %s: %v", uid, err)
	}
	return doc
}

func mustPublish(t *testing.T, svc *Service, uid, documentID string) {
	t.Helper()
	res, err := svc.Publish(context.Background(), uid, Params{DocumentID: documentID})
	if err != nil || res == nil {
		t.Fatalf("Publish %s/%s = %v, %v", uid, documentID, res, err)
	}
}

func TestCreateAndFindOne(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()

	cat := mustCreate(t, svc, schematest.Category, Params{Data: map[string]any{"name": "News"}})
	article := mustCreate(t, svc, schematest.Article, Params{
		Data: map[string]any{"title": "Hello", "views": 3, "category": cat.DocumentID},
	})

	if article.Status != models.StatusDraft || article.Locale != "en" || article.DocumentID == "" {
		t.Errorf("created = %+v", article)
	}
	if _, ok := article.Fields["id"]; ok {
		t.Error("row id leaked into the document")
	}
	if _, ok := article.Fields["category"]; ok {
		t.Error("unpopulated relation rendered")
	}

	got, err := svc.FindOne(ctx, schematest.Article, Params{
		DocumentID: article.DocumentID,
		Populate:   transform.Populate{"category": nil},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Fields["title"] != "Hello" || got.Fields["views"] != float64(3) {
		t.Errorf("fields = %v", got.Fields)
	}
	related, ok := got.Fields["category"].(*models.Document)
	if !ok || related.DocumentID != cat.DocumentID || related.Fields["name"] != "News" {
		t.Errorf("populated category = %#v", got.Fields["category"])
	}

	published, err := svc.FindOne(ctx, schematest.Article, Params{DocumentID: article.DocumentID, Status: models.StatusPublished})
	if err != nil || published != nil {
		t.Errorf("published version of a draft = %v, %v", published, err)
	}
}

func TestCreateWithoutDraftAndPublish(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()

	tag := mustCreate(t, svc, schematest.Tag, Params{Data: map[string]any{"label": "go"}, Locale: "fr"})
	if tag.Status != models.StatusPublished || tag.Locale != "" {
		t.Errorf("tag = %+v", tag)
	}
	for _, status := range []models.Status{models.StatusDraft, models.StatusPublished} {
		doc, err := svc.FindOne(ctx, schematest.Tag, Params{DocumentID: tag.DocumentID, Status: status})
		if err != nil || doc == nil {
			t.Errorf("FindOne %s = %v, %v", status, doc, err)
		}
	}

	updated, err := svc.Update(ctx, schematest.Tag, Params{DocumentID: tag.DocumentID, Data: map[string]any{"label": "golang"}})
	if err != nil || updated == nil || updated.Fields["label"] != "golang" || updated.Status != models.StatusPublished {
		t.Fatalf("Update = %+v, %v", updated, err)
	}

	if _, err := svc.Publish(ctx, schematest.Tag, Params{DocumentID: tag.DocumentID}); !apperr.IsValidation(err) {
		t.Errorf("Publish on a type without draft & publish: %v", err)
	}
}

func TestCreatePublished(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	doc := mustCreate(t, svc, schematest.Author, Params{Data: map[string]any{"name": "Ann"}, Status: models.StatusPublished})
	if doc.Status != models.StatusPublished || doc.PublishedAt == nil {
		t.Errorf("created = %+v", doc)
	}
}

func TestCreateExistingVersion(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	doc := mustCreate(t, svc, schematest.Category, Params{Data: map[string]any{"name": "News"}})

	_, err := svc.Create(context.Background(), schematest.Category, Params{DocumentID: doc.DocumentID, Data: map[string]any{"name": "Other"}})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	fr, err := svc.Create(context.Background(), schematest.Category, Params{DocumentID: doc.DocumentID, Locale: "fr", Data: map[string]any{"name": "Actualités"}})
	if err != nil || fr.DocumentID != doc.DocumentID || fr.Locale != "fr" {
		t.Errorf("new localization = %+v, %v", fr, err)
	}
}

func TestUpdateMissingDocument(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	doc, err := svc.Update(context.Background(), schematest.Article, Params{DocumentID: "missing", Data: map[string]any{"title": "x"}})
	if err != nil || doc != nil {
		t.Errorf("Update on a missing document = %v, %v; want nil, nil", doc, err)
	}
}

func TestUpdateMissingLocale(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		autoCreate bool
		wantNil    bool
	}{
		{"auto create", true, false},
		{"disabled", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig
			cfg.AutoCreateLocale = tt.autoCreate
			svc := newTestService(t, cfg, nil)
			en := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "Hello"}})

			fr, err := svc.Update(ctx, schematest.Article, Params{DocumentID: en.DocumentID, Locale: "fr", Data: map[string]any{"title": "Bonjour"}})
			if err != nil {
				t.Fatal(err)
			}
			if (fr == nil) != tt.wantNil {
				t.Fatalf("Update = %+v", fr)
			}
			if fr != nil && (fr.Locale != "fr" || fr.DocumentID != en.DocumentID) {
				t.Errorf("created localization = %+v", fr)
			}
		})
	}
}

func TestUpdateOnlyChangesDraft(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()
	doc := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "v1"}})
	mustPublish(t, svc, schematest.Article, doc.DocumentID)

	draft, err := svc.Update(ctx, schematest.Article, Params{DocumentID: doc.DocumentID, Data: map[string]any{"title": "v2"}})
	if err != nil || draft.Fields["title"] != "v2" || draft.Status != models.StatusDraft {
		t.Fatalf("Update = %+v, %v", draft, err)
	}
	published, err := svc.FindOne(ctx, schematest.Article, Params{DocumentID: doc.DocumentID, Status: models.StatusPublished})
	if err != nil || published.Fields["title"] != "v1" {
		t.Errorf("published = %+v, %v", published, err)
	}

	// Republishing replaces the published version in place.
	mustPublish(t, svc, schematest.Article, doc.DocumentID)
	published, _ = svc.FindOne(ctx, schematest.Article, Params{DocumentID: doc.DocumentID, Status: models.StatusPublished})
	if published.Fields["title"] != "v2" {
		t.Errorf("republished title = %v", published.Fields["title"])
	}
	n, err := svc.Count(ctx, schematest.Article, Params{Status: models.StatusPublished})
	if err != nil || n != 1 {
		t.Errorf("published rows = %d, %v", n, err)
	}
}

func TestPublishRemapsRelations(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()

	live := mustCreate(t, svc, schematest.Category, Params{Data: map[string]any{"name": "Live"}})
	mustPublish(t, svc, schematest.Category, live.DocumentID)
	hidden := mustCreate(t, svc, schematest.Category, Params{Data: map[string]any{"name": "Hidden"}})
	tag := mustCreate(t, svc, schematest.Tag, Params{Data: map[string]any{"label": "go"}})

	a := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{
		"title":    "A",
		"category": live.DocumentID,
		"tags":     []any{tag.DocumentID},
		"seo":      map[string]any{"metaTitle": "m", "related": []any{tag.DocumentID}},
	}})
	b := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "B", "category": hidden.DocumentID}})
	mustPublish(t, svc, schematest.Article, a.DocumentID)
	mustPublish(t, svc, schematest.Article, b.DocumentID)

	populate := transform.Populate{"category": nil, "tags": nil}
	pa, err := svc.FindOne(ctx, schematest.Article, Params{DocumentID: a.DocumentID, Status: models.StatusPublished, Populate: populate})
	if err != nil {
		t.Fatal(err)
	}
	cat, ok := pa.Fields["category"].(*models.Document)
	if !ok || cat.DocumentID != live.DocumentID || cat.Status != models.StatusPublished {
		t.Errorf("published article category = %#v", pa.Fields["category"])
	}
	tags, ok := pa.Fields["tags"].([]*models.Document)
	if !ok || len(tags) != 1 || tags[0].DocumentID != tag.DocumentID {
		t.Errorf("published article tags = %#v", pa.Fields["tags"])
	}
	seo, _ := pa.Fields["seo"].(map[string]any)
	if _, leaked := seo["related"]; leaked || seo["metaTitle"] != "m" {
		t.Errorf("seo component = %v", seo)
	}

	pb, err := svc.FindOne(ctx, schematest.Article, Params{DocumentID: b.DocumentID, Status: models.StatusPublished, Populate: populate})
	if err != nil {
		t.Fatal(err)
	}
	if pb.Fields["category"] != nil {
		t.Errorf("relation to an unpublished category survived publishing: %#v", pb.Fields["category"])
	}

	// The draft keeps linking the draft category.
	db, _ := svc.FindOne(ctx, schematest.Article, Params{DocumentID: b.DocumentID, Populate: populate})
	if c, ok := db.Fields["category"].(*models.Document); !ok || c.DocumentID != hidden.DocumentID || c.Status != models.StatusDraft {
		t.Errorf("draft article category = %#v", db.Fields["category"])
	}
}

func TestUnpublish(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()
	doc := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "T"}})

	if res, err := svc.Unpublish(ctx, schematest.Article, Params{DocumentID: doc.DocumentID}); err != nil || res != nil {
		t.Fatalf("Unpublish of a draft = %v, %v", res, err)
	}
	mustPublish(t, svc, schematest.Article, doc.DocumentID)

	res, err := svc.Unpublish(ctx, schematest.Article, Params{DocumentID: doc.DocumentID})
	if err != nil || res == nil || len(res.Entries) != 1 || res.Entries[0].Status != models.StatusDraft {
		t.Fatalf("Unpublish = %+v, %v", res, err)
	}
	if got, _ := svc.FindOne(ctx, schematest.Article, Params{DocumentID: doc.DocumentID, Status: models.StatusPublished}); got != nil {
		t.Error("published version survived Unpublish")
	}
	if got, _ := svc.FindOne(ctx, schematest.Article, Params{DocumentID: doc.DocumentID}); got == nil {
		t.Error("draft removed by Unpublish")
	}
}

func TestDiscardDraft(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()
	doc := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "v1", "views": 1}})
	mustPublish(t, svc, schematest.Article, doc.DocumentID)

	if _, err := svc.Update(ctx, schematest.Article, Params{DocumentID: doc.DocumentID, Data: map[string]any{"title": "v2", "featured": true}}); err != nil {
		t.Fatal(err)
	}
	res, err := svc.DiscardDraft(ctx, schematest.Article, Params{DocumentID: doc.DocumentID})
	if err != nil || res == nil || len(res.Entries) != 1 {
		t.Fatalf("DiscardDraft = %+v, %v", res, err)
	}
	draft := res.Entries[0]
	if draft.Status != models.StatusDraft || draft.Fields["title"] != "v1" || draft.Fields["featured"] != nil {
		t.Errorf("discarded draft = %+v", draft)
	}

	other := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "never published"}})
	if res, err := svc.DiscardDraft(ctx, schematest.Article, Params{DocumentID: other.DocumentID}); err != nil || res != nil {
		t.Errorf("DiscardDraft without a published version = %v, %v", res, err)
	}
}

func TestDeleteLocales(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()
	en := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "Hello"}})
	mustCreate(t, svc, schematest.Article, Params{DocumentID: en.DocumentID, Locale: "fr", Data: map[string]any{"title": "Bonjour"}})
	mustPublish(t, svc, schematest.Article, en.DocumentID)

	res, err := svc.Delete(ctx, schematest.Article, Params{DocumentID: en.DocumentID})
	if err != nil || len(res.Entries) != 2 {
		t.Fatalf("Delete en = %+v, %v", res, err)
	}
	n, _ := svc.Count(ctx, schematest.Article, Params{DocumentID: en.DocumentID, Locale: AllLocales})
	if n != 1 {
		t.Errorf("draft rows left = %d, want 1 (fr)", n)
	}

	res, err = svc.Delete(ctx, schematest.Article, Params{DocumentID: en.DocumentID, Locale: AllLocales})
	if err != nil || len(res.Entries) != 1 {
		t.Fatalf("Delete all = %+v, %v", res, err)
	}
	if res, err := svc.Delete(ctx, schematest.Article, Params{DocumentID: en.DocumentID}); err != nil || res != nil {
		t.Errorf("Delete of a missing document = %v, %v", res, err)
	}
}

func TestUniqueScopedByLocaleAndStatus(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()
	news := mustCreate(t, svc, schematest.Category, Params{Data: map[string]any{"name": "News"}})

	_, err := svc.Create(ctx, schematest.Category, Params{Data: map[string]any{"name": "News"}})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || len(ve.Path) != 1 || ve.Path[0] != "name" {
		t.Fatalf("duplicate in the same locale: %v", err)
	}

	if _, err := svc.Create(ctx, schematest.Category, Params{Locale: "fr", Data: map[string]any{"name": "News"}}); err != nil {
		t.Errorf("same value in another locale: %v", err)
	}
	if _, err := svc.Update(ctx, schematest.Category, Params{DocumentID: news.DocumentID, Data: map[string]any{"name": "News"}}); err != nil {
		t.Errorf("unchanged value on update: %v", err)
	}

	// The published copy does not conflict with its own draft.
	mustPublish(t, svc, schematest.Category, news.DocumentID)
	if _, err := svc.Update(ctx, schematest.Category, Params{DocumentID: news.DocumentID, Data: map[string]any{"name": "News"}}); err != nil {
		t.Errorf("update after publish: %v", err)
	}
}

func TestUIDGeneration(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()

	first := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "Hello World"}})
	second := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "Hello, World!"}})
	if first.Fields["slug"] != "hello-world" || second.Fields["slug"] != "hello-world-1" {
		t.Errorf("slugs = %v, %v", first.Fields["slug"], second.Fields["slug"])
	}

	updated, err := svc.Update(ctx, schematest.Article, Params{DocumentID: first.DocumentID, Data: map[string]any{"title": "Renamed"}})
	if err != nil || updated.Fields["slug"] != "hello-world" {
		t.Errorf("slug changed on update: %v, %v", updated, err)
	}

	if _, err := svc.Create(ctx, schematest.Article, Params{Data: map[string]any{"title": "x", "slug": "not valid"}}); !apperr.IsValidation(err) {
		t.Errorf("invalid uid: %v", err)
	}
	dup, err := svc.Create(ctx, schematest.Article, Params{Data: map[string]any{"title": "x", "slug": "hello-world"}})
	if !apperr.IsValidation(err) {
		t.Errorf("duplicate uid = %v, %v", dup, err)
	}
}

func TestMissingRelations(t *testing.T) {
	ctx := context.Background()
	data := map[string]any{"title": "T", "category": "nope", "tags": []any{"nope"}}

	svc := newTestService(t, testConfig, nil)
	_, err := svc.Create(ctx, schematest.Article, Params{Data: data})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.DocumentID != "nope" {
		t.Fatalf("expected missing document error, got %v", err)
	}

	cfg := testConfig
	cfg.AllowMissingRelations = true
	svc = newTestService(t, cfg, nil)
	doc, err := svc.Create(ctx, schematest.Article, Params{Data: data})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := svc.FindOne(ctx, schematest.Article, Params{DocumentID: doc.DocumentID, Populate: transform.Populate{"*": nil}})
	if got.Fields["category"] != nil || len(got.Fields["tags"].([]*models.Document)) != 0 {
		t.Errorf("relations = %v, %v", got.Fields["category"], got.Fields["tags"])
	}
	if data["category"] != "nope" {
		t.Error("input data was modified")
	}
}

func TestFindManyFilters(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()
	cat := mustCreate(t, svc, schematest.Category, Params{Data: map[string]any{"name": "News"}})
	for i, title := range []string{"b", "a", "c"} {
		data := map[string]any{"title": title, "views": i}
		if title != "c" {
			data["category"] = cat.DocumentID
		}
		mustCreate(t, svc, schematest.Article, Params{Data: data})
	}
	mustCreate(t, svc, schematest.Article, Params{Locale: "fr", Data: map[string]any{"title": "fr"}})

	docs, err := svc.FindMany(ctx, schematest.Article, Params{
		Filters: query.Where{"category": map[string]any{"id": cat.DocumentID}},
		Sort:    []query.Sort{{Field: "title"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Fields["title"] != "a" || docs[1].Fields["title"] != "b" {
		t.Errorf("FindMany = %+v", docs)
	}

	first, err := svc.FindFirst(ctx, schematest.Article, Params{Sort: []query.Sort{{Field: "views", Desc: true}}})
	if err != nil || first.Fields["title"] != "c" {
		t.Errorf("FindFirst = %+v, %v", first, err)
	}

	byID, err := svc.FindMany(ctx, schematest.Article, Params{Filters: query.Where{"id": first.DocumentID}, Fields: []string{"views"}})
	if err != nil || len(byID) != 1 {
		t.Fatalf("FindMany by id = %+v, %v", byID, err)
	}
	if _, ok := byID[0].Fields["title"]; ok {
		t.Errorf("unselected field rendered: %v", byID[0].Fields)
	}

	all, err := svc.Count(ctx, schematest.Article, Params{Locale: AllLocales})
	if err != nil || all != 4 {
		t.Errorf("Count all locales = %d, %v", all, err)
	}
	if _, err := svc.FindOne(ctx, schematest.Article, Params{DocumentID: first.DocumentID, Locale: AllLocales}); !apperr.IsValidation(err) {
		t.Errorf("FindOne with all locales: %v", err)
	}
	if _, err := svc.Count(ctx, schematest.Article, Params{Locale: "xx"}); !apperr.IsValidation(err) {
		t.Errorf("unknown locale: %v", err)
	}
}

func TestPublishedReadsUseCache(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(t, testConfig, cache)
	ctx := context.Background()
	doc := mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "v1"}})
	mustPublish(t, svc, schematest.Article, doc.DocumentID)

	p := Params{DocumentID: doc.DocumentID, Status: models.StatusPublished}
	for range 2 {
		if got, err := svc.FindOne(ctx, schematest.Article, p); err != nil || got == nil {
			t.Fatalf("FindOne = %v, %v", got, err)
		}
	}
	if cache.gets != 2 || cache.hits != 1 {
		t.Errorf("cache gets = %d, hits = %d", cache.gets, cache.hits)
	}

	if _, err := svc.FindOne(ctx, schematest.Article, Params{DocumentID: doc.DocumentID}); err != nil {
		t.Fatal(err)
	}
	if cache.gets != 2 {
		t.Error("draft read went through the cache")
	}

	if _, err := svc.Unpublish(ctx, schematest.Article, Params{DocumentID: doc.DocumentID}); err != nil {
		t.Fatal(err)
	}
	if got, _ := svc.FindOne(ctx, schematest.Article, p); got != nil {
		t.Error("stale cached document served after Unpublish")
	}
	want := []string{"publish:" + doc.DocumentID, "unpublish:" + doc.DocumentID}
	if fmt.Sprint(cache.invalidated) != fmt.Sprint(want) {
		t.Errorf("invalidations = %v, want %v", cache.invalidated, want)
	}
}

func TestRequiresDocumentID(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()
	checks := map[string]func() error{
		"FindOne":      func() error { _, err := svc.FindOne(ctx, schematest.Article, Params{}); return err },
		"Update":       func() error { _, err := svc.Update(ctx, schematest.Article, Params{}); return err },
		"Delete":       func() error { _, err := svc.Delete(ctx, schematest.Article, Params{}); return err },
		"Publish":      func() error { _, err := svc.Publish(ctx, schematest.Article, Params{}); return err },
		"Unpublish":    func() error { _, err := svc.Unpublish(ctx, schematest.Article, Params{}); return err },
		"DiscardDraft": func() error { _, err := svc.DiscardDraft(ctx, schematest.Article, Params{}); return err },
	}
	for name, call := range checks {
		if err := call(); !apperr.IsValidation(err) {
			t.Errorf("%s without documentId: %v", name, err)
		}
	}
}

func TestUnknownContentType(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()
	if _, err := svc.Create(ctx, "api::nope.nope", Params{}); !apperr.IsStructural(err) {
		t.Errorf("unknown type: %v", err)
	}
	if _, err := svc.Create(ctx, schematest.SEO, Params{}); !apperr.IsStructural(err) {
		t.Errorf("component as content type: %v", err)
	}
}

func TestPublishChecksUniqueAmongPublished(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()

	first := mustCreate(t, svc, schematest.Category, Params{Data: map[string]any{"name": "News"}})
	mustPublish(t, svc, schematest.Category, first.DocumentID)
	if _, err := svc.Update(ctx, schematest.Category, Params{DocumentID: first.DocumentID, Data: map[string]any{"name": "Old"}}); err != nil {
		t.Fatal(err)
	}

	// The draft scope is free again, the published one is not.
	second := mustCreate(t, svc, schematest.Category, Params{Data: map[string]any{"name": "News"}})
	_, err := svc.Publish(ctx, schematest.Category, Params{DocumentID: second.DocumentID})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || len(ve.Path) != 1 || ve.Path[0] != "name" {
		t.Fatalf("Publish with a taken published value: %v", err)
	}
	n, err := svc.Count(ctx, schematest.Category, Params{
		Status:  models.StatusPublished,
		Filters: query.Where{"name": "News"},
	})
	if err != nil || n != 1 {
		t.Errorf("published rows named News = %d, %v", n, err)
	}

	_, err = svc.Update(ctx, schematest.Category, Params{
		DocumentID: second.DocumentID,
		Status:     models.StatusPublished,
		Data:       map[string]any{"name": "News"},
	})
	if !apperr.IsValidation(err) {
		t.Errorf("Update with status published and a taken value: %v", err)
	}

	// Republishing the first document with its old name is fine.
	if _, err := svc.DiscardDraft(ctx, schematest.Category, Params{DocumentID: first.DocumentID}); err != nil {
		t.Fatal(err)
	}
	mustPublish(t, svc, schematest.Category, first.DocumentID)
}

func TestFindManyRelationListFilters(t *testing.T) {
	svc := newTestService(t, testConfig, nil)
	ctx := context.Background()
	golang := mustCreate(t, svc, schematest.Tag, Params{Data: map[string]any{"label": "go"}})
	rust := mustCreate(t, svc, schematest.Tag, Params{Data: map[string]any{"label": "rust"}})
	mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "A", "tags": []any{golang.DocumentID}}})
	mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "B", "tags": []any{rust.DocumentID}}})
	mustCreate(t, svc, schematest.Article, Params{Data: map[string]any{"title": "C"}})

	tests := []struct {
		name   string
		filter any
		want   []string
	}{
		{"object", map[string]any{"id": golang.DocumentID}, []string{"A"}},
		{"list of one object", []any{map[string]any{"id": golang.DocumentID}}, []string{"A"}},
		{"list with operator", []any{map[string]any{"id": map[string]any{"$eq": golang.DocumentID}}}, []string{"A"}},
		{
			"list of alternatives",
			[]any{map[string]any{"id": golang.DocumentID}, map[string]any{"label": "rust"}},
			[]string{"A", "B"},
		},
		{"no match", []any{map[string]any{"label": "zig"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := svc.FindMany(ctx, schematest.Article, Params{
				Filters: query.Where{"tags": tt.filter},
				Sort:    []query.Sort{{Field: "title"}},
			})
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, d := range docs {
				got = append(got, d.Fields["title"].(string))
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("titles = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPopulateFromTypeWithoutDraftAndPublish(t *testing.T) {
	blog := schematest.Models()
	for _, m := range blog {
		if m.UID == schematest.Tag {
			m.Attributes["authors"] = schema.Attribute{Type: schema.TypeRelation, Relation: schema.ManyToMany, Target: schematest.Author}
		}
	}
	reg, err := schema.New(blog...)
	if err != nil {
		t.Fatal(err)
	}
	svc := newSchemaService(t, reg, testConfig, nil)
	ctx := context.Background()

	ann := mustCreate(t, svc, schematest.Author, Params{Data: map[string]any{"name": "Ann"}})
	mustPublish(t, svc, schematest.Author, ann.DocumentID)
	tag := mustCreate(t, svc, schematest.Tag, Params{Data: map[string]any{"label": "go", "authors": []any{ann.DocumentID}}})

	for _, status := range []models.Status{models.StatusDraft, models.StatusPublished} {
		got, err := svc.FindOne(ctx, schematest.Tag, Params{
			DocumentID: tag.DocumentID,
			Status:     status,
			Populate:   transform.Populate{"authors": nil},
		})
		if err != nil {
			t.Fatal(err)
		}
		authors, ok := got.Fields["authors"].([]*models.Document)
		if !ok || len(authors) != 1 {
			t.Fatalf("%s authors = %#v", status, got.Fields["authors"])
		}
		if authors[0].DocumentID != ann.DocumentID || authors[0].Status != status {
			t.Errorf("%s author = %+v", status, authors[0])
		}
	}
}
