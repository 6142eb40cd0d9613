// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package document

import (
	"context"
	"fmt"
	"time"

	"github.com/tiendc/go-deepcopy"

	"docpress/internal/apperr"
	"docpress/internal/models"
	"docpress/internal/query"
	"docpress/internal/transform"
)

// Create creates a document version in one locale. A new documentId is
// generated unless one is given, in which case a new localization of that
// document is created. Types without draft & publish, and calls with
// status published, publish the new draft right away and return the
// published version.
func (s *Service) Create(ctx context.Context, uid string, p Params) (*models.Document, error) {
	start := time.Now()
	doc, err := s.create(ctx, uid, p)
	track("create", start, err)
	return doc, err
}

func (s *Service) create(ctx context.Context, uid string, p Params) (*models.Document, error) {
	op, err := s.begin(uid)
	if err != nil {
		return nil, err
	}
	locale, err := op.locale(p.Locale, false)
	if err != nil {
		return nil, err
	}
	isDraft, err := parseStatus(p.Status)
	if err != nil {
		return nil, err
	}

	documentID := p.DocumentID
	if documentID == "" {
		documentID = s.newID()
	} else {
		draft, published, err := op.versions(ctx, documentID, locale)
		if err != nil {
			return nil, err
		}
		if _, err := op.transition(ctx, stateOf(draft, published), EventCreate); err != nil {
			return nil, err
		}
	}

	draft, err := op.writeDraft(ctx, nil, documentID, locale, p.Data)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("document created",
		"uid", uid,
		"documentId", documentID,
		"locale", locale,
	)

	if isDraft && op.model.HasDraftAndPublish() {
		return op.render(ctx, op.model, draft, nil, nil)
	}
	published, err := op.publishVersion(ctx, draft, nil)
	if err != nil {
		return nil, err
	}
	op.invalidate(ctx, documentID, EventPublish)
	return op.render(ctx, op.model, published, nil, nil)
}

// Update changes the draft version of a document in one locale and
// returns it. It returns nil when the document does not exist. When the
// document exists in other locales only, the missing localization is
// created if AutoCreateLocale is set. Types without draft & publish, and
// calls with status published, republish the draft.
func (s *Service) Update(ctx context.Context, uid string, p Params) (*models.Document, error) {
	start := time.Now()
	doc, err := s.update(ctx, uid, p)
	track("update", start, err)
	return doc, err
}

func (s *Service) update(ctx context.Context, uid string, p Params) (*models.Document, error) {
	if err := requireDocumentID(p); err != nil {
		return nil, err
	}
	op, err := s.begin(uid)
	if err != nil {
		return nil, err
	}
	locale, err := op.locale(p.Locale, false)
	if err != nil {
		return nil, err
	}
	isDraft, err := parseStatus(p.Status)
	if err != nil {
		return nil, err
	}

	draft, published, err := op.versions(ctx, p.DocumentID, locale)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return op.updateMissing(ctx, p, locale)
	}
	if _, err := op.transition(ctx, stateOf(draft, published), EventUpdate); err != nil {
		return nil, err
	}

	next, err := op.writeDraft(ctx, draft, p.DocumentID, locale, p.Data)
	if err != nil || next == nil {
		return nil, err
	}
	s.logger.Infow("document updated",
		"uid", uid,
		"documentId", p.DocumentID,
		"locale", locale,
	)

	if isDraft && op.model.HasDraftAndPublish() {
		return op.render(ctx, op.model, next, nil, nil)
	}
	republished, err := op.publishVersion(ctx, next, published)
	if err != nil {
		return nil, err
	}
	op.invalidate(ctx, p.DocumentID, EventPublish)
	return op.render(ctx, op.model, republished, nil, nil)
}

// updateMissing handles an update whose locale has no draft row.
func (op *operation) updateMissing(ctx context.Context, p Params, locale string) (*models.Document, error) {
	n, err := op.engine.Count(ctx, op.model.UID, query.Where{query.FieldDocumentID: p.DocumentID})
	if err != nil {
		return nil, err
	}
	if n == 0 || !op.model.Localized || !op.cfg.AutoCreateLocale {
		op.logger.Debugw("update target not found",
			"uid", op.model.UID,
			"documentId", p.DocumentID,
			"locale", locale,
		)
		return nil, nil
	}
	p.Locale = locale
	return op.create(ctx, op.model.UID, p)
}

// Delete removes every version of a document in one locale, or in all of
// them with AllLocales. The removed versions are returned; nil means the
// document had none.
func (s *Service) Delete(ctx context.Context, uid string, p Params) (*Result, error) {
	start := time.Now()
	res, err := s.delete(ctx, uid, p)
	track("delete", start, err)
	return res, err
}

func (s *Service) delete(ctx context.Context, uid string, p Params) (*Result, error) {
	if err := requireDocumentID(p); err != nil {
		return nil, err
	}
	op, err := s.begin(uid)
	if err != nil {
		return nil, err
	}
	locale, err := op.locale(p.Locale, true)
	if err != nil {
		return nil, err
	}

	where := versionWhere(p.DocumentID, locale, nil)
	entries, err := s.engine.FindMany(ctx, uid, query.Params{Where: where})
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	for _, v := range byLocale(entries) {
		if _, err := op.transition(ctx, stateOf(v.draft, v.published), EventDelete); err != nil {
			return nil, err
		}
	}

	res := &Result{DocumentID: p.DocumentID}
	for _, e := range entries {
		doc, err := op.render(ctx, op.model, e, nil, nil)
		if err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, doc)
	}
	n, err := s.engine.DeleteMany(ctx, uid, where)
	if err != nil {
		return nil, fmt.Errorf("delete document %s: %w", p.DocumentID, err)
	}
	op.ids.Clear()
	op.invalidate(ctx, p.DocumentID, EventDelete)

	s.logger.Infow("document deleted",
		"uid", uid,
		"documentId", p.DocumentID,
		"locale", locale,
		"rows", n,
	)
	return res, nil
}

// writeDraft validates a payload and writes it to a new draft row, or to
// current when it is set. The payload is never modified.
func (op *operation) writeDraft(ctx context.Context, current *models.Entry, documentID, locale string, in map[string]any) (*models.Entry, error) {
	data := map[string]any{}
	if in != nil {
		if err := deepcopy.Copy(&data, in); err != nil {
			return nil, fmt.Errorf("copy document data: %w", err)
		}
	}
	if err := op.fillUIDs(ctx, data, current, locale); err != nil {
		return nil, err
	}
	if err := op.checkUnique(ctx, data, current, locale, true); err != nil {
		return nil, err
	}
	rowData, err := op.relations.Transform(ctx, data, transform.RelationOptions{
		UID:           op.model.UID,
		Locale:        locale,
		IsDraft:       true,
		AllowMissing:  op.cfg.AllowMissingRelations,
		DefaultLocale: op.cfg.DefaultLocale,
	})
	if err != nil {
		return nil, err
	}

	var e *models.Entry
	if current == nil {
		e, err = op.engine.Create(ctx, op.model.UID, query.Row{
			DocumentID: documentID,
			Locale:     locale,
			Data:       rowData,
		})
	} else {
		e, err = op.engine.Update(ctx, op.model.UID, current.ID, rowData)
	}
	op.ids.Clear()
	return e, err
}

// versions returns the draft and published rows of a document in locale.
func (op *operation) versions(ctx context.Context, documentID, locale string) (draft, published *models.Entry, err error) {
	entries, err := op.engine.FindMany(ctx, op.model.UID, query.Params{
		Where: versionWhere(documentID, locale, nil),
	})
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDraft() {
			draft = e
		} else {
			published = e
		}
	}
	return draft, published, nil
}

type localeVersions struct {
	locale           string
	draft, published *models.Entry
}

// byLocale pairs the rows of one document per locale, in row order.
func byLocale(entries []*models.Entry) []*localeVersions {
	var out []*localeVersions
	index := map[string]*localeVersions{}
	for _, e := range entries {
		v, ok := index[e.Locale]
		if !ok {
			v = &localeVersions{locale: e.Locale}
			index[e.Locale] = v
			out = append(out, v)
		}
		if e.IsDraft() {
			v.draft = e
		} else {
			v.published = e
		}
	}
	return out
}

// invalidate drops the cached published versions of a document.
func (op *operation) invalidate(ctx context.Context, documentID, action string) {
	if op.cache != nil {
		op.cache.Invalidate(ctx, op.model.UID, documentID, action)
	}
}

func errNoDraftAndPublish(uid string) error {
	return apperr.Validation("draft & publish is disabled for %s", uid)
}
