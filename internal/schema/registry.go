// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"docpress/internal/apperr"
)

var validate = validator.New()

// Registry is an immutable set of models keyed by uid.
type Registry struct {
	models map[string]*Model
}

// New validates the given models and returns a Registry holding them.
// Cross references (relation targets, component uids) must resolve within
// the same set.
func New(models ...*Model) (*Registry, error) {
	r := &Registry{models: make(map[string]*Model, len(models))}
	for _, m := range models {
		if err := validate.Struct(m); err != nil {
			return nil, fmt.Errorf("validate model %q: %w", m.UID, err)
		}
		if _, dup := r.models[m.UID]; dup {
			return nil, apperr.Structural("duplicate model uid %q", m.UID)
		}
		if m.Kind == "" {
			m.Kind = KindCollectionType
		}
		if m.Attributes == nil {
			m.Attributes = map[string]Attribute{}
		}
		r.models[m.UID] = m
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadDir reads every *.yaml / *.yml file in dir. Each file holds one model.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	var models []*Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema file %s: %w", e.Name(), err)
		}
		var m Model
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parse schema file %s: %w", e.Name(), err)
		}
		models = append(models, &m)
	}
	return New(models...)
}

// check verifies that every relation and component reference resolves.
func (r *Registry) check() error {
	for _, uid := range r.UIDs() {
		m := r.models[uid]
		for name, a := range m.Attributes {
			switch a.Type {
			case TypeRelation:
				if a.Target == "" {
					return apperr.Structural("%s.%s: relation has no target", uid, name)
				}
				if _, ok := r.models[a.Target]; !ok {
					return apperr.Structural("%s.%s: unknown relation target %q", uid, name, a.Target)
				}
			case TypeComponent:
				c, ok := r.models[a.Component]
				if !ok || !c.IsComponent() {
					return apperr.Structural("%s.%s: unknown component %q", uid, name, a.Component)
				}
			case TypeDynamicZone:
				for _, cuid := range a.Components {
					c, ok := r.models[cuid]
					if !ok || !c.IsComponent() {
						return apperr.Structural("%s.%s: unknown component %q", uid, name, cuid)
					}
				}
			case TypeUID:
				if a.TargetField != "" {
					if _, ok := m.Attributes[a.TargetField]; !ok {
						return apperr.Structural("%s.%s: unknown target field %q", uid, name, a.TargetField)
					}
				}
			}
		}
	}
	return nil
}

// Model returns the model registered under uid.
func (r *Registry) Model(uid string) (*Model, error) {
	m, ok := r.models[uid]
	if !ok {
		return nil, apperr.Structural("content type %q not found", uid)
	}
	return m, nil
}

// UIDs returns all registered uids in sorted order.
func (r *Registry) UIDs() []string {
	uids := make([]string, 0, len(r.models))
	for uid := range r.models {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// ContentTypes returns the uids of all non-component models.
func (r *Registry) ContentTypes() []string {
	var uids []string
	for _, uid := range r.UIDs() {
		if !r.models[uid].IsComponent() {
			uids = append(uids, uid)
		}
	}
	return uids
}
