// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package document

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"docpress/internal/apperr"
	"docpress/internal/models"
)

// Lifecycle states of one (document, locale) pair.
const (
	StateNone      = "none"
	StateDraft     = "draft"
	StatePublished = "published"
	// StateModified is a published document whose draft changed since.
	StateModified = "modified"
)

// Lifecycle events, one per writing verb.
const (
	EventCreate    = "create"
	EventUpdate    = "update"
	EventPublish   = "publish"
	EventUnpublish = "unpublish"
	EventDiscard   = "discard"
	EventDelete    = "delete"
)

var lifecycleEvents = fsm.Events{
	{Name: EventCreate, Src: []string{StateNone}, Dst: StateDraft},
	{Name: EventUpdate, Src: []string{StateDraft}, Dst: StateDraft},
	{Name: EventUpdate, Src: []string{StatePublished, StateModified}, Dst: StateModified},
	{Name: EventPublish, Src: []string{StateDraft, StatePublished, StateModified}, Dst: StatePublished},
	{Name: EventUnpublish, Src: []string{StatePublished, StateModified}, Dst: StateDraft},
	{Name: EventDiscard, Src: []string{StatePublished, StateModified}, Dst: StatePublished},
	{Name: EventDelete, Src: []string{StateDraft, StatePublished, StateModified}, Dst: StateNone},
}

// stateOf derives the lifecycle state from the rows of one locale.
func stateOf(draft, published *models.Entry) string {
	switch {
	case draft == nil && published == nil:
		return StateNone
	case published == nil:
		return StateDraft
	case draft != nil && draft.UpdatedAt.After(published.UpdatedAt):
		return StateModified
	}
	return StatePublished
}

// transition applies event to a document in state and returns the state it
// ends in. Events the state does not accept are validation errors.
func (op *operation) transition(ctx context.Context, state, event string) (string, error) {
	machine := fsm.NewFSM(state, lifecycleEvents, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			op.logger.Debugw("document state changed",
				"uid", op.model.UID,
				"event", e.Event,
				"from", e.Src,
				"to", e.Dst,
			)
		},
	})
	if !machine.Can(event) {
		return state, apperr.Validation("cannot %s a document in state %s", event, state)
	}
	if err := machine.Event(ctx, event); err != nil {
		var same fsm.NoTransitionError
		if !errors.As(err, &same) {
			return state, err
		}
	}
	return machine.Current(), nil
}
