package model

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/events"
	"github.com/surrealdb/surrealodm/pkg/query"
)

const (
	opSave   = "save"
	opDelete = "delete"
)

// Save validates the document and inserts or updates it.
//
// It returns false without an error when a listener aborted one of the halting
// phases, and an error when validation, a listener or storage failed. After a
// failed write the changed keys stay dirty so Save can be retried. Saving a
// Persisted document without changes writes nothing and returns true.
func (d *Document) Save(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, outcome, err := d.save(ctx)
	d.typ.observe(opSave, outcome, start)
	return ok, err
}

func (d *Document) save(ctx context.Context) (bool, string, error) {
	if d.deleted {
		return false, OutcomeError, fmt.Errorf("save %s: %w", d, constants.ErrDocumentDeleted)
	}

	if ok, err := d.validate(ctx); err != nil || !ok {
		return false, outcomeOf(ok, err), err
	}

	if ok, err := d.halting(ctx, events.Saving); err != nil || !ok {
		return false, outcomeOf(ok, err), err
	}

	var (
		ok      bool
		outcome string
		err     error
	)
	if d.exists {
		ok, outcome, err = d.performUpdate(ctx)
	} else {
		ok, outcome, err = d.performInsert(ctx)
	}
	if err != nil || !ok {
		return ok, outcome, err
	}

	if _, err := d.typ.fire(ctx, events.Saved, d); err != nil {
		return false, OutcomeError, err
	}
	d.attrs.Resync()
	return true, outcome, nil
}

func (d *Document) validate(ctx context.Context) (bool, error) {
	if ok, err := d.halting(ctx, events.Validating); err != nil || !ok {
		return ok, err
	}

	v := d.typ.validator
	if v == nil || !v.SchemaExists(d.typ.schema) {
		return true, nil
	}
	if err := v.Validate(d.attrs.All(), d.typ.schema); err != nil {
		d.typ.reg.log.Debug("document failed validation", "model", d.typ.name, "error", err)
		return false, err
	}
	if _, err := d.typ.fire(ctx, events.Validated, d); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Document) performInsert(ctx context.Context) (bool, string, error) {
	if ok, err := d.halting(ctx, events.Creating); err != nil || !ok {
		return false, outcomeOf(ok, err), err
	}

	coll, err := d.typ.store()
	if err != nil {
		return false, OutcomeError, err
	}

	d.touchTimestamps()

	id, err := coll.InsertAndReturnID(ctx, d.payload(d.attrs.Keys()))
	if err != nil {
		d.typ.reg.log.Error("insert failed", "model", d.typ.name, "collection", d.typ.collection, "error", err)
		return false, OutcomeError, err
	}

	d.attrs.Put(constants.IdentityKey, id)
	d.exists = true
	d.typ.reg.log.Debug("document inserted", "model", d.typ.name, "id", id)

	if _, err := d.typ.fire(ctx, events.Created, d); err != nil {
		return false, OutcomeError, err
	}
	return true, OutcomeSuccess, nil
}

func (d *Document) performUpdate(ctx context.Context) (bool, string, error) {
	if !d.attrs.HasChanged() {
		return true, OutcomeNoop, nil
	}

	if ok, err := d.halting(ctx, events.Updating); err != nil || !ok {
		return false, outcomeOf(ok, err), err
	}

	d.touchTimestamps()

	diff := d.attrs.Dirty()
	id := d.ID()
	if id == nil {
		return false, OutcomeError, fmt.Errorf("update %s: %w", d.typ.name, constants.ErrNoIdentity)
	}

	coll, err := d.typ.store()
	if err != nil {
		return false, OutcomeError, err
	}

	if err := coll.UpdateWhere(ctx, query.ByID(id), d.payload(diff)); err != nil {
		d.typ.reg.log.Error("update failed", "model", d.typ.name, "id", id, "error", err)
		return false, OutcomeError, err
	}
	d.typ.reg.log.Debug("document updated", "model", d.typ.name, "id", id, "keys", diff)

	if _, err := d.typ.fire(ctx, events.Updated, d); err != nil {
		return false, OutcomeError, err
	}
	return true, OutcomeSuccess, nil
}

// Delete removes a Persisted document from storage. Deleting a document that was
// never stored, or was already deleted, does nothing and returns true.
func (d *Document) Delete(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, outcome, err := d.delete(ctx)
	d.typ.observe(opDelete, outcome, start)
	return ok, err
}

func (d *Document) delete(ctx context.Context) (bool, string, error) {
	if !d.exists {
		return true, OutcomeNoop, nil
	}

	if ok, err := d.halting(ctx, events.Deleting); err != nil || !ok {
		return false, outcomeOf(ok, err), err
	}

	id := d.ID()
	if id == nil {
		return false, OutcomeError, fmt.Errorf("delete %s: %w", d.typ.name, constants.ErrNoIdentity)
	}

	coll, err := d.typ.store()
	if err != nil {
		return false, OutcomeError, err
	}

	if err := coll.DeleteWhere(ctx, query.ByID(id)); err != nil {
		d.typ.reg.log.Error("delete failed", "model", d.typ.name, "id", id, "error", err)
		return false, OutcomeError, err
	}

	d.exists = false
	d.deleted = true
	d.typ.reg.log.Debug("document deleted", "model", d.typ.name, "id", id)

	if _, err := d.typ.fire(ctx, events.Deleted, d); err != nil {
		return false, OutcomeError, err
	}
	return true, OutcomeSuccess, nil
}

// halting fires a phase that may abort. ok is false when a listener aborted.
func (d *Document) halting(ctx context.Context, p events.Phase) (bool, error) {
	res, err := d.typ.fire(ctx, p, d)
	if err != nil {
		return false, err
	}
	if res == events.Abort {
		d.typ.reg.log.Debug("operation aborted by listener", "model", d.typ.name, "phase", string(p))
		return false, nil
	}
	return true, nil
}

// touchTimestamps sets updated_at, and created_at for new documents, unless the
// caller already set them.
func (d *Document) touchTimestamps() {
	if !d.typ.timestamps {
		return
	}

	now := d.typ.clock()
	if !d.exists && !d.attrs.HasChanged(constants.CreatedAt) {
		d.attrs.Set(constants.CreatedAt, now)
	}
	if !d.attrs.HasChanged(constants.UpdatedAt) {
		d.attrs.Set(constants.UpdatedAt, now)
	}
}

func outcomeOf(ok bool, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case !ok:
		return OutcomeAborted
	}
	return OutcomeSuccess
}
