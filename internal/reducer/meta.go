package reducer

import (
	"strconv"

	"github.com/kittclouds/aide/internal/kernel"
)

// relConstraintKinds are the kinds rel.constrain may register: they describe
// relationships between entities rather than tree shape or field content.
var relConstraintKinds = map[kernel.ConstraintKind]bool{
	kernel.ExcludePair: true,
	kernel.RequireSame: true,
}

// reduceConstrain backs both rel.constrain (isRel true) and meta.constrain
// (isRel false). Both primitives write into the same Meta.Constraints
// registry; isRel only restricts which ConstraintKind values the primitive
// is allowed to register, matching which family of checks each primitive
// name is meant to express.
func reduceConstrain(snap kernel.Snapshot, ev kernel.Event, nextSeq int64, isRel bool) kernel.ReduceResult {
	var p kernel.ConstrainPayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	if relConstraintKinds[p.Kind] != isRel {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch,
			"constraint kind "+string(p.Kind)+" is not valid for this primitive")
	}

	next := snap.Clone()
	id := p.ID
	if id == "" {
		id = "c" + strconv.FormatInt(nextSeq, 10)
	}
	next.Meta.Constraints[id] = kernel.Constraint{
		ID:      id,
		Kind:    p.Kind,
		Strict:  p.Strict,
		EntityA: p.EntityA,
		EntityB: p.EntityB,
		RelType: p.RelType,
		Parent:  p.Parent,
		Count:   p.Count,
		Field:   p.Field,
		Path:    p.Path,
		Fields:  p.Fields,
	}

	return finish(snap, next)
}

func reduceMetaSet(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.MetaSetPayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}

	next := snap.Clone()
	if next.Meta.Props == nil {
		next.Meta.Props = map[string]interface{}{}
	}
	for k, v := range p {
		// title, identity, and visibility are typed fields on Meta rather
		// than free-form props; everything else shallow-merges into Props,
		// with null removing the key.
		if s, isString := v.(string); isString || v == nil {
			switch k {
			case "title":
				next.Meta.Title = s
				continue
			case "identity":
				next.Meta.Identity = s
				continue
			case "visibility":
				next.Meta.Visibility = s
				continue
			}
		}
		if v == nil {
			delete(next.Meta.Props, k)
			continue
		}
		next.Meta.Props[k] = v
	}

	return finish(snap, next)
}

func reduceMetaAnnotate(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.MetaAnnotatePayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}

	next := snap.Clone()
	next.Meta.Annotations = append(next.Meta.Annotations, kernel.Annotation{
		Note:   p.Note,
		Pinned: p.Pinned,
		Ts:     ev.Timestamp,
		Seq:    nextSeq,
	})

	return finish(snap, next)
}
