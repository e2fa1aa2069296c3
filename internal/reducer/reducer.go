package reducer

import "github.com/kittclouds/aide/internal/kernel"

// Reduce applies one event to snapshot and returns the resulting snapshot,
// whether the event applied, any warnings, and a rejection code if it did
// not apply. It is the single entry point primitive dispatch goes through;
// sequence bookkeeping happens here so individual handlers never need to
// remember to bump it.
func Reduce(snap kernel.Snapshot, ev kernel.Event) kernel.ReduceResult {
	nextSeq := snap.Sequence + 1

	var res kernel.ReduceResult
	switch ev.Type {
	case kernel.EntityCreate:
		res = reduceEntityCreate(snap, ev, nextSeq)
	case kernel.EntityUpdate:
		res = reduceEntityUpdate(snap, ev, nextSeq)
	case kernel.EntityRemove:
		res = reduceEntityRemove(snap, ev, nextSeq)
	case kernel.EntityMove:
		res = reduceEntityMove(snap, ev, nextSeq)
	case kernel.EntityReorder:
		res = reduceEntityReorder(snap, ev, nextSeq)

	case kernel.RelSet:
		res = reduceRelSet(snap, ev, nextSeq)
	case kernel.RelRemove:
		res = reduceRelRemove(snap, ev, nextSeq)
	case kernel.RelConstrain:
		res = reduceConstrain(snap, ev, nextSeq, true)

	case kernel.StyleSet:
		res = reduceStyleSet(snap, ev, nextSeq)
	case kernel.StyleEntity:
		res = reduceStyleEntity(snap, ev, nextSeq)

	case kernel.MetaSet:
		res = reduceMetaSet(snap, ev, nextSeq)
	case kernel.MetaAnnotate:
		res = reduceMetaAnnotate(snap, ev, nextSeq)
	case kernel.MetaConstrain:
		res = reduceConstrain(snap, ev, nextSeq, false)

	case kernel.SchemaCreate:
		res = reduceSchemaCreate(snap, ev, nextSeq)
	case kernel.SchemaUpdate:
		res = reduceSchemaUpdate(snap, ev, nextSeq)
	case kernel.SchemaRemove:
		res = reduceSchemaRemove(snap, ev, nextSeq)

	case kernel.Voice, kernel.Escalate, kernel.BatchStart, kernel.BatchEnd:
		res = kernel.Applied(snap)

	default:
		return kernel.Rejected(snap, kernel.ErrUnknownPrimitive, string(ev.Type))
	}

	if res.Applied {
		res.Snapshot.Sequence = nextSeq
	}
	return res
}
