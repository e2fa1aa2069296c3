package reducer

import (
	"fmt"
	"sort"

	"github.com/kittclouds/aide/internal/kernel"
)

// violation pairs a registered constraint with the reason it is currently
// unsatisfied against a snapshot.
type violation struct {
	constraint kernel.Constraint
	message    string
}

// evaluateConstraints checks every registered constraint against snap and
// returns the ones currently violated. finish calls it after every
// state-changing primitive (entity, relationship, style, meta, and schema
// alike); only the signal primitives skip it.
func evaluateConstraints(snap kernel.Snapshot) []violation {
	ids := make([]string, 0, len(snap.Meta.Constraints))
	for id := range snap.Meta.Constraints {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []violation
	for _, id := range ids {
		c := snap.Meta.Constraints[id]
		if v, bad := checkOne(snap, c); bad {
			out = append(out, violation{constraint: c, message: v})
		}
	}
	return out
}

func checkOne(snap kernel.Snapshot, c kernel.Constraint) (string, bool) {
	switch c.Kind {
	case kernel.ExcludePair:
		return checkExcludePair(snap, c)
	case kernel.RequireSame:
		return checkRequireSame(snap, c)
	case kernel.MaxChildren:
		n := len(liveChildren(snap, c.Parent))
		if n > c.Count {
			return "max_children exceeded", true
		}
	case kernel.MinChildren:
		n := len(liveChildren(snap, c.Parent))
		if n < c.Count {
			return "min_children not met", true
		}
	case kernel.UniqueField:
		return checkUniqueField(snap, c)
	case kernel.RequiredFields:
		return checkRequiredFields(snap, c)
	}
	return "", false
}

func targetFor(snap kernel.Snapshot, from, relType string) (string, bool) {
	for _, t := range snap.Relationships.Tuples {
		if t.From == from && t.Type == relType {
			if _, ok := liveEntity(snap, t.To); ok {
				return t.To, true
			}
		}
	}
	return "", false
}

func checkExcludePair(snap kernel.Snapshot, c kernel.Constraint) (string, bool) {
	aTargets := map[string]bool{}
	for _, t := range snap.Relationships.Tuples {
		if t.From == c.EntityA && t.Type == c.RelType {
			aTargets[t.To] = true
		}
	}
	for _, t := range snap.Relationships.Tuples {
		if t.From == c.EntityB && t.Type == c.RelType && aTargets[t.To] {
			return "entities share a forbidden target", true
		}
	}
	return "", false
}

func checkRequireSame(snap kernel.Snapshot, c kernel.Constraint) (string, bool) {
	aTarget, aOK := targetFor(snap, c.EntityA, c.RelType)
	bTarget, bOK := targetFor(snap, c.EntityB, c.RelType)
	if aOK && bOK && aTarget != bTarget {
		return "entities do not share the required target", true
	}
	return "", false
}

func checkUniqueField(snap kernel.Snapshot, c kernel.Constraint) (string, bool) {
	seen := map[string]bool{}
	for _, childID := range liveChildren(snap, c.Parent) {
		e, ok := liveEntity(snap, childID)
		if !ok {
			continue
		}
		v, ok := e.Props[c.Field]
		if !ok {
			continue
		}
		key := toComparableKey(v)
		if seen[key] {
			return "duplicate value for unique field " + c.Field, true
		}
		seen[key] = true
	}
	return "", false
}

func checkRequiredFields(snap kernel.Snapshot, c kernel.Constraint) (string, bool) {
	var bad bool
	var walk func(id string)
	walk = func(id string) {
		e, ok := liveEntity(snap, id)
		if !ok {
			return
		}
		if id != c.Path {
			for _, f := range c.Fields {
				v, present := e.Props[f]
				if !present || v == nil {
					bad = true
				}
			}
		}
		for _, child := range e.Children {
			walk(child)
		}
	}
	if c.Path == kernel.RootID {
		for _, id := range liveChildren(snap, kernel.RootID) {
			walk(id)
		}
	} else {
		walk(c.Path)
	}
	if bad {
		return "required fields missing under " + c.Path, true
	}
	return "", false
}

func toComparableKey(v interface{}) string {
	return fmt.Sprintf("%T:%v", v, v)
}
