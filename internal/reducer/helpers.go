// Package reducer implements the pure (snapshot, event) -> snapshot' state
// machine described by the kernel's primitive catalog. Reduce never performs
// I/O, never reads a clock, never consults randomness, and never retains
// state between calls; determinism is the property every other subsystem
// depends on.
package reducer

import (
	"encoding/json"
	"regexp"

	"github.com/kittclouds/aide/internal/kernel"
)

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func validID(id string) bool {
	return id != "" && idPattern.MatchString(id)
}

func decode(payload json.RawMessage, v interface{}) error {
	return json.Unmarshal(payload, v)
}

// liveEntity returns the entity for id if it exists and is not soft-removed.
func liveEntity(snap kernel.Snapshot, id string) (*kernel.Entity, bool) {
	e, ok := snap.Entities[id]
	if !ok || e.Removed {
		return nil, false
	}
	return e, true
}

// parentExists reports whether parent is "root" or a live entity.
func parentExists(snap kernel.Snapshot, parent string) bool {
	if parent == kernel.RootID {
		return true
	}
	_, ok := liveEntity(snap, parent)
	return ok
}

// detachChild removes childID from parentID's Children slice, if parentID is
// a real (non-root) entity.
func detachChild(snap kernel.Snapshot, parentID, childID string) {
	if parentID == kernel.RootID {
		return
	}
	p, ok := snap.Entities[parentID]
	if !ok {
		return
	}
	out := p.Children[:0]
	for _, c := range p.Children {
		if c != childID {
			out = append(out, c)
		}
	}
	p.Children = out
}

// attachChild appends or inserts childID into parentID's Children slice, if
// parentID is a real (non-root) entity.
func attachChild(snap kernel.Snapshot, parentID, childID string, position *int) {
	if parentID == kernel.RootID {
		return
	}
	p, ok := snap.Entities[parentID]
	if !ok {
		return
	}
	if position == nil || *position < 0 || *position >= len(p.Children) {
		p.Children = append(p.Children, childID)
		return
	}
	p.Children = append(p.Children[:*position:*position],
		append([]string{childID}, p.Children[*position:]...)...)
}

// liveChildren returns the subset of parent.Children that are not
// soft-removed, in their stored order.
func liveChildren(snap kernel.Snapshot, parentID string) []string {
	var parent *kernel.Entity
	if parentID != kernel.RootID {
		p, ok := snap.Entities[parentID]
		if !ok {
			return nil
		}
		parent = p
	} else {
		// Root's "children" are every live entity whose Parent is root.
		var out []string
		for id, e := range snap.Entities {
			if e.Parent == kernel.RootID && !e.Removed {
				out = append(out, id)
			}
		}
		return out
	}
	out := make([]string, 0, len(parent.Children))
	for _, c := range parent.Children {
		if e, ok := snap.Entities[c]; ok && !e.Removed {
			out = append(out, c)
		}
	}
	return out
}

// removeDescendants marks id and every descendant of id as removed.
func removeDescendants(snap kernel.Snapshot, id string) {
	e, ok := snap.Entities[id]
	if !ok {
		return
	}
	e.Removed = true
	for _, c := range e.Children {
		removeDescendants(snap, c)
	}
}

// isDescendant reports whether candidate is ref or a descendant of ref,
// walking down from ref. Used by entity.move's cycle check.
func isDescendant(snap kernel.Snapshot, ref, candidate string) bool {
	if ref == candidate {
		return true
	}
	e, ok := snap.Entities[ref]
	if !ok {
		return false
	}
	for _, c := range e.Children {
		if isDescendant(snap, c, candidate) {
			return true
		}
	}
	return false
}
