package reducer

import "github.com/kittclouds/aide/internal/kernel"

func reduceStyleSet(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.StyleSetPayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}

	next := snap.Clone()
	if next.Styles.Global == nil {
		next.Styles.Global = map[string]interface{}{}
	}
	for k, v := range p {
		if v == nil {
			delete(next.Styles.Global, k)
			continue
		}
		next.Styles.Global[k] = v
	}

	return finish(snap, next)
}

func reduceStyleEntity(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.StyleEntityPayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	if _, ok := liveEntity(snap, p.Ref); !ok {
		return kernel.Rejected(snap, kernel.ErrEntityNotFound, p.Ref)
	}

	next := snap.Clone()
	if next.Styles.PerEntity == nil {
		next.Styles.PerEntity = map[string]map[string]interface{}{}
	}
	cur := next.Styles.PerEntity[p.Ref]
	if cur == nil {
		cur = map[string]interface{}{}
	}
	for k, v := range p.Styles {
		if v == nil {
			delete(cur, k)
			continue
		}
		cur[k] = v
	}
	next.Styles.PerEntity[p.Ref] = cur

	return finish(snap, next)
}
