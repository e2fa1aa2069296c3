package reducer

import "github.com/kittclouds/aide/internal/kernel"

func reduceEntityCreate(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.CreatePayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	if !validID(p.ID) {
		return kernel.Rejected(snap, kernel.ErrInvalidID, p.ID)
	}
	parent := p.Parent
	if parent == "" {
		parent = kernel.RootID
	}
	if !parentExists(snap, parent) {
		return kernel.Rejected(snap, kernel.ErrParentNotFound, parent)
	}
	existing, exists := snap.Entities[p.ID]
	if exists && !existing.Removed {
		return kernel.Rejected(snap, kernel.ErrEntityAlreadyExists, p.ID)
	}
	if p.Schema != "" {
		if _, ok := snap.Schemas[p.Schema]; !ok {
			return kernel.Rejected(snap, kernel.ErrSchemaNotFound, p.Schema)
		}
	}

	next := snap.Clone()
	ent := &kernel.Entity{
		ID:         p.ID,
		Parent:     parent,
		Display:    p.Display,
		Props:      p.Props,
		Schema:     p.Schema,
		Children:   []string{},
		CreatedSeq: nextSeq,
		UpdatedSeq: nextSeq,
	}
	next.Entities[p.ID] = ent

	if exists {
		oldParent := existing.Parent
		if oldParent != parent {
			detachChild(next, oldParent, p.ID)
			attachChild(next, parent, p.ID, nil)
		}
	} else {
		attachChild(next, parent, p.ID, nil)
	}

	warnings := schemaFieldWarnings(next, ent)
	if warnings.strictViolation != "" {
		return kernel.Rejected(snap, kernel.ErrStrictConstraintViolated, warnings.strictViolation)
	}
	return finish(snap, next, warnings.warnings...)
}

func reduceEntityUpdate(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.UpdatePayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	if p.Ref == "" {
		return kernel.Rejected(snap, kernel.ErrMissingRef, "ref is required")
	}
	if _, ok := liveEntity(snap, p.Ref); !ok {
		return kernel.Rejected(snap, kernel.ErrEntityNotFound, p.Ref)
	}

	next := snap.Clone()
	e := next.Entities[p.Ref]
	if e.Props == nil {
		e.Props = map[string]interface{}{}
	}
	for k, v := range p.Props {
		if v == nil {
			delete(e.Props, k)
			continue
		}
		e.Props[k] = v
	}
	e.UpdatedSeq = nextSeq

	warnings := schemaFieldWarnings(next, e)
	if warnings.strictViolation != "" {
		return kernel.Rejected(snap, kernel.ErrStrictConstraintViolated, warnings.strictViolation)
	}
	return finish(snap, next, warnings.warnings...)
}

func reduceEntityRemove(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.RemovePayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	if p.Ref == "" {
		return kernel.Rejected(snap, kernel.ErrMissingRef, "ref is required")
	}
	target, ok := snap.Entities[p.Ref]
	if !ok {
		return kernel.Rejected(snap, kernel.ErrEntityNotFound, p.Ref)
	}

	next := snap.Clone()
	if target.Removed {
		return finish(snap, next, kernel.Warning{
			Code:    kernel.WarnAlreadyRemoved,
			Message: p.Ref + " is already removed",
		})
	}
	removeDescendants(next, p.Ref)
	next.Entities[p.Ref].UpdatedSeq = nextSeq

	return finish(snap, next)
}

func reduceEntityMove(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.MovePayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	if _, ok := liveEntity(snap, p.Ref); !ok {
		return kernel.Rejected(snap, kernel.ErrEntityNotFound, p.Ref)
	}
	if !parentExists(snap, p.NewParent) {
		return kernel.Rejected(snap, kernel.ErrParentNotFound, p.NewParent)
	}
	if isDescendant(snap, p.Ref, p.NewParent) {
		return kernel.Rejected(snap, kernel.ErrCycleDetected, p.NewParent+" is "+p.Ref+" or a descendant of it")
	}

	next := snap.Clone()
	e := next.Entities[p.Ref]
	oldParent := e.Parent
	detachChild(next, oldParent, p.Ref)
	attachChild(next, p.NewParent, p.Ref, p.Position)
	e.Parent = p.NewParent
	e.UpdatedSeq = nextSeq

	return finish(snap, next)
}

func reduceEntityReorder(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.ReorderPayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	if !parentExists(snap, p.Parent) {
		return kernel.Rejected(snap, kernel.ErrParentNotFound, p.Parent)
	}

	current := liveChildren(snap, p.Parent)
	currentSet := map[string]bool{}
	for _, c := range current {
		currentSet[c] = true
	}
	providedSet := map[string]bool{}
	for _, c := range p.Children {
		providedSet[c] = true
	}
	if len(providedSet) != len(current) {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, "reorder list does not match the live children set")
	}
	for _, c := range p.Children {
		if !currentSet[c] {
			return kernel.Rejected(snap, kernel.ErrTypeMismatch, "reorder list does not match the live children set")
		}
	}

	next := snap.Clone()
	if p.Parent == kernel.RootID {
		// Root has no Entity record to store ordering on; ordering among
		// root-level entities is expressed purely by each entity's
		// _created_seq, so there is nothing to mutate here beyond
		// validating the provided set matches (already done above).
		return finish(snap, next)
	}
	parentEnt := next.Entities[p.Parent]
	removedChildren := make([]string, 0, len(parentEnt.Children))
	for _, c := range parentEnt.Children {
		if e, ok := next.Entities[c]; ok && e.Removed {
			removedChildren = append(removedChildren, c)
		}
	}
	newChildren := make([]string, 0, len(p.Children)+len(removedChildren))
	newChildren = append(newChildren, p.Children...)
	newChildren = append(newChildren, removedChildren...)
	parentEnt.Children = newChildren
	parentEnt.UpdatedSeq = nextSeq

	return finish(snap, next)
}
