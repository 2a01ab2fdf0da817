package model

import (
	"context"

	"github.com/surrealdb/surrealodm/pkg/events"
)

// Observer methods. An observer implements any subset of them.
type (
	CreatingObserver interface {
		Creating(ctx context.Context, d *Document) (events.Result, error)
	}
	CreatedObserver interface {
		Created(ctx context.Context, d *Document) (events.Result, error)
	}
	UpdatingObserver interface {
		Updating(ctx context.Context, d *Document) (events.Result, error)
	}
	UpdatedObserver interface {
		Updated(ctx context.Context, d *Document) (events.Result, error)
	}
	SavingObserver interface {
		Saving(ctx context.Context, d *Document) (events.Result, error)
	}
	SavedObserver interface {
		Saved(ctx context.Context, d *Document) (events.Result, error)
	}
	DeletingObserver interface {
		Deleting(ctx context.Context, d *Document) (events.Result, error)
	}
	DeletedObserver interface {
		Deleted(ctx context.Context, d *Document) (events.Result, error)
	}
	ValidatingObserver interface {
		Validating(ctx context.Context, d *Document) (events.Result, error)
	}
	ValidatedObserver interface {
		Validated(ctx context.Context, d *Document) (events.Result, error)
	}
)

// Observe registers every lifecycle method observer implements and returns how
// many were registered.
func (t *Type) Observe(observer any) int {
	listeners := observerListeners(observer)
	for _, p := range events.ObservablePhases {
		if l, ok := listeners[p]; ok {
			t.On(p, l)
		}
	}
	return len(listeners)
}

func observerListeners(o any) map[events.Phase]DocumentListener {
	out := make(map[events.Phase]DocumentListener)
	if v, ok := o.(CreatingObserver); ok {
		out[events.Creating] = v.Creating
	}
	if v, ok := o.(CreatedObserver); ok {
		out[events.Created] = v.Created
	}
	if v, ok := o.(UpdatingObserver); ok {
		out[events.Updating] = v.Updating
	}
	if v, ok := o.(UpdatedObserver); ok {
		out[events.Updated] = v.Updated
	}
	if v, ok := o.(SavingObserver); ok {
		out[events.Saving] = v.Saving
	}
	if v, ok := o.(SavedObserver); ok {
		out[events.Saved] = v.Saved
	}
	if v, ok := o.(DeletingObserver); ok {
		out[events.Deleting] = v.Deleting
	}
	if v, ok := o.(DeletedObserver); ok {
		out[events.Deleted] = v.Deleted
	}
	if v, ok := o.(ValidatingObserver); ok {
		out[events.Validating] = v.Validating
	}
	if v, ok := o.(ValidatedObserver); ok {
		out[events.Validated] = v.Validated
	}
	return out
}
