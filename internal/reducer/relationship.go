package reducer

import "github.com/kittclouds/aide/internal/kernel"

func reduceRelSet(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.RelSetPayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	if _, ok := liveEntity(snap, p.From); !ok {
		return kernel.Rejected(snap, kernel.ErrEntityNotFound, p.From)
	}
	if _, ok := liveEntity(snap, p.To); !ok {
		return kernel.Rejected(snap, kernel.ErrEntityNotFound, p.To)
	}

	registered, hasRegistration := snap.Relationships.Cardinalities[p.Type]
	card := p.Cardinality
	if card == "" {
		if hasRegistration {
			card = registered
		} else {
			card = kernel.ManyToMany
		}
	}
	if hasRegistration && card != registered {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch,
			"cardinality mismatch for relationship type "+p.Type)
	}

	next := snap.Clone()
	if !hasRegistration {
		next.Relationships.Cardinalities[p.Type] = card
	}

	filtered := next.Relationships.Tuples[:0]
	for _, t := range next.Relationships.Tuples {
		if t.Type != p.Type {
			filtered = append(filtered, t)
			continue
		}
		drop := false
		switch card {
		case kernel.OneToOne:
			drop = t.From == p.From || t.To == p.To
		case kernel.OneToMany:
			drop = t.To == p.To
		case kernel.ManyToOne:
			drop = t.From == p.From
		case kernel.ManyToMany:
			drop = t.From == p.From && t.To == p.To
		}
		if !drop {
			filtered = append(filtered, t)
		}
	}
	filtered = append(filtered, kernel.RelationTuple{From: p.From, To: p.To, Type: p.Type})
	next.Relationships.Tuples = filtered

	return finish(snap, next)
}

func reduceRelRemove(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.RelRemovePayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}

	next := snap.Clone()
	out := next.Relationships.Tuples[:0]
	for _, t := range next.Relationships.Tuples {
		if t.From == p.From && t.To == p.To && t.Type == p.Type {
			continue
		}
		out = append(out, t)
	}
	next.Relationships.Tuples = out

	return finish(snap, next)
}
