// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package document implements the document service: the verbs callers use
// to read and write documents by documentId, locale and status. Each verb
// translates its input from document space into row space, runs it
// against the row engine and renders the rows back as documents.
package document

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docpress/internal/apperr"
	"docpress/internal/idmap"
	"docpress/internal/metrics"
	"docpress/internal/models"
	"docpress/internal/query"
	"docpress/internal/schema"
	"docpress/internal/transform"
)

// AllLocales selects every locale of a document where that is meaningful.
const AllLocales = "*"

// Config holds the locale and relation policies of a Service.
type Config struct {
	DefaultLocale string
	// Locales lists the accepted locales. Empty accepts any locale.
	Locales []string
	// AutoCreateLocale lets Update create a missing localization of an
	// existing document instead of returning nil.
	AutoCreateLocale bool
	// AllowMissingRelations drops relation references to documents that
	// do not exist instead of failing the write.
	AllowMissingRelations bool
}

// Params is the input of every verb. Fields that a verb does not use are
// ignored.
type Params struct {
	DocumentID string
	Locale     string
	Status     models.Status
	Data       map[string]any
	Filters    query.Where
	Fields     []string
	Populate   transform.Populate
	Sort       []query.Sort
	Limit      int
	Offset     int
}

// Result is returned by the verbs that act on several rows of a document.
type Result struct {
	DocumentID string
	Entries    []*models.Document
}

// Cache is the published document read cache.
type Cache interface {
	Get(ctx context.Context, uid, documentID, locale string) (*models.Document, bool)
	Set(ctx context.Context, uid string, doc *models.Document)
	Invalidate(ctx context.Context, uid, documentID, action string)
}

// Service is the document service. It is safe for concurrent use; each
// call works in its own operation scope.
type Service struct {
	engine query.Engine
	schema schema.Provider
	cache  Cache
	cfg    Config
	logger *zap.SugaredLogger
	now    func() time.Time
	newID  func() string
}

// New creates a Service over engine. cache may be nil. A nil logger
// discards output.
func New(engine query.Engine, provider schema.Provider, cache Cache, cfg Config, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		engine: engine,
		schema: provider,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// operation is the scope of one verb call. Its identifier map is dropped
// after every write the call performs.
type operation struct {
	*Service
	model     *schema.Model
	ids       *idmap.Map
	relations *transform.Relations
}

func (s *Service) begin(uid string) (*operation, error) {
	model, err := s.schema.Model(uid)
	if err != nil {
		return nil, err
	}
	if model.IsComponent() {
		return nil, apperr.Structural("%s is a component, not a content type", uid)
	}
	ids := idmap.New(s.engine, s.schema, s.logger)
	return &operation{
		Service:   s,
		model:     model,
		ids:       ids,
		relations: transform.NewRelations(s.schema, ids, s.logger),
	}, nil
}

// track records the outcome and latency of a verb.
func track(action string, start time.Time, err error) {
	metrics.DocumentOperations.WithLabelValues(action, metrics.Outcome(err)).Inc()
	metrics.DocumentOperationSeconds.WithLabelValues(action).Observe(time.Since(start).Seconds())
}

// locale resolves the locale of a call. Non-localized types use none, an
// empty locale means the default one. AllLocales is accepted only when
// many is set.
func (op *operation) locale(requested string, many bool) (string, error) {
	if !op.model.Localized {
		return "", nil
	}
	switch requested {
	case "":
		return op.cfg.DefaultLocale, nil
	case AllLocales:
		if !many {
			return "", apperr.Validation("a single locale is required").WithPath("locale")
		}
		return AllLocales, nil
	}
	if len(op.cfg.Locales) > 0 && !slices.Contains(op.cfg.Locales, requested) {
		return "", apperr.Validation("unknown locale %q", requested).WithPath("locale")
	}
	return requested, nil
}

// versionWhere selects the rows of one document in a locale (or all of
// them) and, when status is not nil, one status.
func versionWhere(documentID, locale string, isDraft *bool) query.Where {
	w := query.Where{query.FieldDocumentID: documentID}
	if locale != "" && locale != AllLocales {
		w[query.FieldLocale] = locale
	}
	if isDraft != nil {
		return query.And(w, query.StatusWhere(*isDraft))
	}
	return w
}

func requireDocumentID(p Params) error {
	if p.DocumentID == "" {
		return apperr.Validation("documentId is required").WithPath("documentId")
	}
	return nil
}

func parseStatus(s models.Status) (bool, error) {
	st, err := models.ParseStatus(string(s))
	if err != nil {
		return false, apperr.Validation("%v", err).WithPath("status")
	}
	return st.IsDraft(), nil
}
