package reducer

import (
	"encoding/json"
	"testing"

	"github.com/kittclouds/aide/internal/kernel"
)

func ev(t kernel.PrimitiveType, payload string) kernel.Event {
	return kernel.Event{Type: t, Payload: json.RawMessage(payload)}
}

// mustApply folds events over snap, failing the test on the first rejection.
func mustApply(t *testing.T, snap kernel.Snapshot, events ...kernel.Event) kernel.Snapshot {
	t.Helper()
	for i, e := range events {
		res := Reduce(snap, e)
		if !res.Applied {
			t.Fatalf("event %d (%s) rejected: %v", i, e.Type, res.Error)
		}
		snap = res.Snapshot
	}
	return snap
}

func TestEntityCreate(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"league","display":"page","props":{"name":"Poker League"}}`),
		ev(kernel.EntityCreate, `{"id":"roster","parent":"league","display":"section"}`),
	)

	league := snap.Entities["league"]
	if league == nil {
		t.Fatal("league not created")
	}
	if league.Parent != kernel.RootID {
		t.Errorf("expected parent root, got %q", league.Parent)
	}
	if league.CreatedSeq != 1 {
		t.Errorf("expected _created_seq 1, got %d", league.CreatedSeq)
	}
	if snap.Sequence != 2 {
		t.Errorf("expected sequence 2, got %d", snap.Sequence)
	}
	if len(league.Children) != 1 || league.Children[0] != "roster" {
		t.Errorf("expected league children [roster], got %v", league.Children)
	}
}

func TestEntityCreateRejections(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"a"}`),
	)

	cases := []struct {
		name    string
		payload string
		code    kernel.RejectCode
	}{
		{"duplicate live id", `{"id":"a"}`, kernel.ErrEntityAlreadyExists},
		{"missing parent", `{"id":"b","parent":"ghost"}`, kernel.ErrParentNotFound},
		{"invalid id uppercase", `{"id":"NotSnake"}`, kernel.ErrInvalidID},
		{"invalid id empty", `{"id":""}`, kernel.ErrInvalidID},
		{"invalid id leading digit", `{"id":"1abc"}`, kernel.ErrInvalidID},
	}
	for _, tc := range cases {
		res := Reduce(snap, ev(kernel.EntityCreate, tc.payload))
		if res.Applied {
			t.Errorf("%s: expected rejection, got applied", tc.name)
			continue
		}
		if res.Error.Code != tc.code {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.code, res.Error.Code)
		}
		if res.Snapshot.Sequence != snap.Sequence {
			t.Errorf("%s: rejected event must not advance sequence", tc.name)
		}
	}
}

func TestEntityUpdate(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"player_mike","props":{"status":"active","wins":2}}`),
		ev(kernel.EntityUpdate, `{"ref":"player_mike","props":{"status":"out"}}`),
	)

	e := snap.Entities["player_mike"]
	if e.Props["status"] != "out" {
		t.Errorf("expected status out, got %v", e.Props["status"])
	}
	if e.Props["wins"] != float64(2) {
		t.Errorf("shallow merge must preserve untouched props, got %v", e.Props["wins"])
	}
	if e.UpdatedSeq != 2 {
		t.Errorf("expected _updated_seq 2, got %d", e.UpdatedSeq)
	}
}

func TestEntityUpdateNullRemovesProp(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"a","props":{"x":1,"y":2}}`),
		ev(kernel.EntityUpdate, `{"ref":"a","props":{"x":null}}`),
	)
	if _, ok := snap.Entities["a"].Props["x"]; ok {
		t.Error("null prop value must remove the key")
	}
	if snap.Entities["a"].Props["y"] != float64(2) {
		t.Error("other props must survive")
	}
}

func TestEntityUpdateRejections(t *testing.T) {
	snap := mustApply(t, kernel.Empty(), ev(kernel.EntityCreate, `{"id":"a"}`))

	res := Reduce(snap, ev(kernel.EntityUpdate, `{"ref":"missing","props":{}}`))
	if res.Applied || res.Error.Code != kernel.ErrEntityNotFound {
		t.Errorf("expected ENTITY_NOT_FOUND, got %+v", res.Error)
	}
	res = Reduce(snap, ev(kernel.EntityUpdate, `{"props":{}}`))
	if res.Applied || res.Error.Code != kernel.ErrMissingRef {
		t.Errorf("expected MISSING_REF, got %+v", res.Error)
	}
}

func TestEntityRemoveCascades(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"a"}`),
		ev(kernel.EntityCreate, `{"id":"b","parent":"a"}`),
		ev(kernel.EntityCreate, `{"id":"c","parent":"b"}`),
		ev(kernel.EntityRemove, `{"ref":"a"}`),
	)
	for _, id := range []string{"a", "b", "c"} {
		if !snap.Entities[id].Removed {
			t.Errorf("%s should be soft-removed", id)
		}
	}
	// Soft-removed entities remain addressable.
	if snap.Entities["c"] == nil {
		t.Fatal("removed entity must remain in the snapshot")
	}
}

func TestEntityRemoveIdempotent(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"a"}`),
		ev(kernel.EntityRemove, `{"ref":"a"}`),
	)

	res := Reduce(snap, ev(kernel.EntityRemove, `{"ref":"a"}`))
	if !res.Applied {
		t.Fatalf("second remove must still apply: %v", res.Error)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != kernel.WarnAlreadyRemoved {
		t.Errorf("expected ALREADY_REMOVED warning, got %v", res.Warnings)
	}

	// Identical snapshot modulo sequence.
	a, b := snap, res.Snapshot
	b.Sequence = a.Sequence
	aj, _ := a.CanonicalJSON()
	bj, _ := b.CanonicalJSON()
	if string(aj) != string(bj) {
		t.Error("second remove must not change state beyond the sequence")
	}
}

func TestRecreateAfterRemove(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"a","props":{"old":true}}`),
		ev(kernel.EntityRemove, `{"ref":"a"}`),
		ev(kernel.EntityCreate, `{"id":"a","props":{"fresh":true}}`),
	)
	e := snap.Entities["a"]
	if e.Removed {
		t.Error("re-created entity must be live")
	}
	if _, ok := e.Props["old"]; ok {
		t.Error("re-creation overwrites, old props must not survive")
	}
	if e.Props["fresh"] != true {
		t.Error("re-created props missing")
	}
	if e.CreatedSeq != 3 {
		t.Errorf("re-creation resets _created_seq to the new sequence, got %d", e.CreatedSeq)
	}
}

func TestEntityMove(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"x"}`),
		ev(kernel.EntityCreate, `{"id":"y"}`),
		ev(kernel.EntityCreate, `{"id":"child","parent":"x"}`),
		ev(kernel.EntityMove, `{"ref":"child","new_parent":"y"}`),
	)
	if snap.Entities["child"].Parent != "y" {
		t.Errorf("expected parent y, got %q", snap.Entities["child"].Parent)
	}
	if len(snap.Entities["x"].Children) != 0 {
		t.Errorf("old parent must not retain child, got %v", snap.Entities["x"].Children)
	}
	if len(snap.Entities["y"].Children) != 1 || snap.Entities["y"].Children[0] != "child" {
		t.Errorf("new parent children wrong: %v", snap.Entities["y"].Children)
	}
}

func TestEntityMovePosition(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"p"}`),
		ev(kernel.EntityCreate, `{"id":"a","parent":"p"}`),
		ev(kernel.EntityCreate, `{"id":"b","parent":"p"}`),
		ev(kernel.EntityCreate, `{"id":"c"}`),
		ev(kernel.EntityMove, `{"ref":"c","new_parent":"p","position":0}`),
	)
	got := snap.Entities["p"].Children
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected children %v, got %v", want, got)
		}
	}
}

func TestEntityMoveCycleDetected(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"a"}`),
		ev(kernel.EntityCreate, `{"id":"b","parent":"a"}`),
	)

	before, _ := snap.CanonicalJSON()

	res := Reduce(snap, ev(kernel.EntityMove, `{"ref":"a","new_parent":"b"}`))
	if res.Applied {
		t.Fatal("move into own descendant must be rejected")
	}
	if res.Error.Code != kernel.ErrCycleDetected {
		t.Errorf("expected CYCLE_DETECTED, got %s", res.Error.Code)
	}

	after, _ := res.Snapshot.CanonicalJSON()
	if string(before) != string(after) {
		t.Error("rejected move must leave the snapshot unchanged")
	}

	// Moving onto itself is the degenerate cycle.
	res = Reduce(snap, ev(kernel.EntityMove, `{"ref":"a","new_parent":"a"}`))
	if res.Applied || res.Error.Code != kernel.ErrCycleDetected {
		t.Errorf("self-move: expected CYCLE_DETECTED, got %+v", res.Error)
	}
}

func TestEntityMoveLastWins(t *testing.T) {
	base := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"x"}`),
		ev(kernel.EntityCreate, `{"id":"y"}`),
		ev(kernel.EntityCreate, `{"id":"a","parent":"x"}`),
	)

	twoMoves := mustApply(t, base,
		ev(kernel.EntityMove, `{"ref":"a","new_parent":"y"}`),
		ev(kernel.EntityMove, `{"ref":"a","new_parent":"x"}`),
	)
	direct := mustApply(t, base)
	if twoMoves.Entities["a"].Parent != "x" {
		t.Errorf("expected final parent x, got %q", twoMoves.Entities["a"].Parent)
	}
	if got, want := twoMoves.Entities["x"].Children, direct.Entities["x"].Children; len(got) != len(want) {
		t.Errorf("move there and back must restore the child set: %v vs %v", got, want)
	}
}

func TestEntityReorder(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"p"}`),
		ev(kernel.EntityCreate, `{"id":"a","parent":"p"}`),
		ev(kernel.EntityCreate, `{"id":"b","parent":"p"}`),
		ev(kernel.EntityCreate, `{"id":"c","parent":"p"}`),
		ev(kernel.EntityReorder, `{"parent":"p","children":["c","a","b"]}`),
	)
	got := snap.Entities["p"].Children
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestEntityReorderRejectsWrongSet(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"p"}`),
		ev(kernel.EntityCreate, `{"id":"a","parent":"p"}`),
		ev(kernel.EntityCreate, `{"id":"b","parent":"p"}`),
	)

	for _, payload := range []string{
		`{"parent":"p","children":["a"]}`,         // missing b
		`{"parent":"p","children":["a","b","z"]}`, // extra id
		`{"parent":"p","children":["a","a"]}`,     // duplicate
	} {
		res := Reduce(snap, ev(kernel.EntityReorder, payload))
		if res.Applied {
			t.Errorf("reorder %s must be rejected", payload)
		}
	}
}

func TestEntityReorderSkipsRemovedChildren(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"p"}`),
		ev(kernel.EntityCreate, `{"id":"a","parent":"p"}`),
		ev(kernel.EntityCreate, `{"id":"b","parent":"p"}`),
		ev(kernel.EntityRemove, `{"ref":"b"}`),
		ev(kernel.EntityReorder, `{"parent":"p","children":["a"]}`),
	)
	// Removed children stay tracked after the live ones.
	got := snap.Entities["p"].Children
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
}

func TestEntityReorderSingleAndEmpty(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"p"}`),
	)
	res := Reduce(snap, ev(kernel.EntityReorder, `{"parent":"p","children":[]}`))
	if !res.Applied {
		t.Fatalf("reordering zero children must apply: %v", res.Error)
	}

	snap = mustApply(t, snap, ev(kernel.EntityCreate, `{"id":"only","parent":"p"}`))
	res = Reduce(snap, ev(kernel.EntityReorder, `{"parent":"p","children":["only"]}`))
	if !res.Applied {
		t.Fatalf("reordering one child must apply: %v", res.Error)
	}
}

func TestRelSetCardinality(t *testing.T) {
	base := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"a"}`),
		ev(kernel.EntityCreate, `{"id":"b"}`),
		ev(kernel.EntityCreate, `{"id":"c"}`),
	)

	// many_to_one: a source may appear only once for the type.
	snap := mustApply(t, base,
		ev(kernel.RelSet, `{"from":"a","to":"b","type":"assigned_to","cardinality":"many_to_one"}`),
		ev(kernel.RelSet, `{"from":"a","to":"c","type":"assigned_to"}`),
	)
	tuples := snap.Relationships.Tuples
	if len(tuples) != 1 {
		t.Fatalf("many_to_one must auto-remove the conflicting tuple, got %v", tuples)
	}
	if tuples[0].To != "c" {
		t.Errorf("latest tuple wins, got %v", tuples[0])
	}

	// Cardinality is immutable after first registration.
	res := Reduce(snap, ev(kernel.RelSet, `{"from":"b","to":"c","type":"assigned_to","cardinality":"one_to_one"}`))
	if res.Applied || res.Error.Code != kernel.ErrTypeMismatch {
		t.Errorf("cardinality change must be rejected, got %+v", res.Error)
	}
}

func TestRelSetOneToOne(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"a"}`),
		ev(kernel.EntityCreate, `{"id":"b"}`),
		ev(kernel.EntityCreate, `{"id":"c"}`),
		ev(kernel.RelSet, `{"from":"a","to":"b","type":"pairs","cardinality":"one_to_one"}`),
		ev(kernel.RelSet, `{"from":"c","to":"b","type":"pairs"}`),
	)
	if len(snap.Relationships.Tuples) != 1 {
		t.Fatalf("one_to_one must drop the conflicting target tuple, got %v", snap.Relationships.Tuples)
	}
	if snap.Relationships.Tuples[0].From != "c" {
		t.Errorf("latest wins: %v", snap.Relationships.Tuples[0])
	}
}

func TestRelSetEndpointMissing(t *testing.T) {
	snap := mustApply(t, kernel.Empty(), ev(kernel.EntityCreate, `{"id":"a"}`))
	res := Reduce(snap, ev(kernel.RelSet, `{"from":"a","to":"ghost","type":"x"}`))
	if res.Applied || res.Error.Code != kernel.ErrEntityNotFound {
		t.Errorf("expected ENTITY_NOT_FOUND, got %+v", res.Error)
	}
}

func TestRelRemoveIdempotent(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"a"}`),
		ev(kernel.EntityCreate, `{"id":"b"}`),
		ev(kernel.RelSet, `{"from":"a","to":"b","type":"likes"}`),
		ev(kernel.RelRemove, `{"from":"a","to":"b","type":"likes"}`),
	)
	if len(snap.Relationships.Tuples) != 0 {
		t.Fatalf("tuple should be gone, got %v", snap.Relationships.Tuples)
	}
	res := Reduce(snap, ev(kernel.RelRemove, `{"from":"a","to":"b","type":"likes"}`))
	if !res.Applied {
		t.Fatalf("removing a missing tuple must still apply: %v", res.Error)
	}
}

func TestConstraintStrictRejects(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"p"}`),
		ev(kernel.EntityCreate, `{"id":"a","parent":"p"}`),
		ev(kernel.MetaConstrain, `{"id":"cap","kind":"max_children","strict":true,"parent":"p","count":1}`),
	)

	res := Reduce(snap, ev(kernel.EntityCreate, `{"id":"b","parent":"p"}`))
	if res.Applied {
		t.Fatal("strict max_children must reject the event")
	}
	if res.Error.Code != kernel.ErrStrictConstraintViolated {
		t.Errorf("expected STRICT_CONSTRAINT_VIOLATED, got %s", res.Error.Code)
	}
}

func TestConstraintNonStrictWarns(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"p"}`),
		ev(kernel.EntityCreate, `{"id":"a","parent":"p"}`),
		ev(kernel.MetaConstrain, `{"id":"cap","kind":"max_children","parent":"p","count":1}`),
	)

	res := Reduce(snap, ev(kernel.EntityCreate, `{"id":"b","parent":"p"}`))
	if !res.Applied {
		t.Fatalf("non-strict violation must still apply: %v", res.Error)
	}
	found := false
	for _, w := range res.Warnings {
		if w.Code == kernel.WarnConstraintViolated {
			found = true
		}
	}
	if !found {
		t.Errorf("expected CONSTRAINT_VIOLATED warning, got %v", res.Warnings)
	}
}

func TestConstraintUniqueField(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"p"}`),
		ev(kernel.EntityCreate, `{"id":"a","parent":"p","props":{"name":"mike"}}`),
		ev(kernel.MetaConstrain, `{"id":"uniq","kind":"unique_field","parent":"p","field":"name"}`),
	)
	res := Reduce(snap, ev(kernel.EntityCreate, `{"id":"b","parent":"p","props":{"name":"mike"}}`))
	if !res.Applied {
		t.Fatalf("non-strict unique_field must warn, not reject: %v", res.Error)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for the duplicate name")
	}
}

func TestConstrainKindRouting(t *testing.T) {
	snap := mustApply(t, kernel.Empty(), ev(kernel.EntityCreate, `{"id":"p"}`))

	// rel.constrain only takes relationship-shaped kinds.
	res := Reduce(snap, ev(kernel.RelConstrain, `{"kind":"max_children","parent":"p","count":1}`))
	if res.Applied {
		t.Error("rel.constrain must not register a tree-shape kind")
	}
	// meta.constrain only takes the rest.
	res = Reduce(snap, ev(kernel.MetaConstrain, `{"kind":"exclude_pair","entity_a":"p","entity_b":"p","rel_type":"x"}`))
	if res.Applied {
		t.Error("meta.constrain must not register a relationship kind")
	}
}

func TestStyleSet(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.StyleSet, `{"accent":"#ff0000","radius":"4px"}`),
		ev(kernel.StyleSet, `{"radius":null}`),
	)
	if snap.Styles.Global["accent"] != "#ff0000" {
		t.Errorf("accent missing: %v", snap.Styles.Global)
	}
	if _, ok := snap.Styles.Global["radius"]; ok {
		t.Error("null must remove the key")
	}
}

func TestStyleEntity(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"a"}`),
		ev(kernel.StyleEntity, `{"ref":"a","styles":{"color":"blue"}}`),
	)
	if snap.Styles.PerEntity["a"]["color"] != "blue" {
		t.Errorf("per-entity style missing: %v", snap.Styles.PerEntity)
	}

	res := Reduce(snap, ev(kernel.StyleEntity, `{"ref":"ghost","styles":{}}`))
	if res.Applied || res.Error.Code != kernel.ErrEntityNotFound {
		t.Errorf("expected ENTITY_NOT_FOUND, got %+v", res.Error)
	}
}

func TestMetaSetRoutesTypedFields(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.MetaSet, `{"title":"Poker League","visibility":"private","theme":"dark"}`),
	)
	if snap.Meta.Title != "Poker League" {
		t.Errorf("title must land on the typed field, got %q", snap.Meta.Title)
	}
	if snap.Meta.Visibility != "private" {
		t.Errorf("visibility must land on the typed field, got %q", snap.Meta.Visibility)
	}
	if snap.Meta.Props["theme"] != "dark" {
		t.Errorf("other keys merge into props: %v", snap.Meta.Props)
	}
	if _, ok := snap.Meta.Props["title"]; ok {
		t.Error("title must not be duplicated into props")
	}
}

func TestMetaAnnotate(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.MetaAnnotate, `{"note":"first","pinned":true}`),
		ev(kernel.MetaAnnotate, `{"note":"second"}`),
	)
	if len(snap.Meta.Annotations) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(snap.Meta.Annotations))
	}
	if snap.Meta.Annotations[0].Seq != 1 || snap.Meta.Annotations[1].Seq != 2 {
		t.Errorf("annotation seqs wrong: %+v", snap.Meta.Annotations)
	}
	if !snap.Meta.Annotations[0].Pinned {
		t.Error("pinned flag lost")
	}
}

func TestSchemaLifecycle(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.SchemaCreate, `{"id":"player","name":"Player","fields":[{"name":"status","required":true}]}`),
		ev(kernel.EntityCreate, `{"id":"mike","schema":"player","props":{"status":"active"}}`),
	)

	// In use: removal rejected.
	res := Reduce(snap, ev(kernel.SchemaRemove, `{"id":"player"}`))
	if res.Applied || res.Error.Code != kernel.ErrSchemaInUse {
		t.Errorf("expected SCHEMA_IN_USE, got %+v", res.Error)
	}

	// After the referencing entity is removed, removal succeeds.
	snap = mustApply(t, snap,
		ev(kernel.EntityRemove, `{"ref":"mike"}`),
		ev(kernel.SchemaRemove, `{"id":"player"}`),
	)
	if _, ok := snap.Schemas["player"]; ok {
		t.Error("schema should be gone")
	}

	res = Reduce(snap, ev(kernel.SchemaRemove, `{"id":"player"}`))
	if res.Applied || res.Error.Code != kernel.ErrSchemaNotFound {
		t.Errorf("expected SCHEMA_NOT_FOUND, got %+v", res.Error)
	}
}

func TestSchemaMissingFieldWarnsOrRejects(t *testing.T) {
	base := mustApply(t, kernel.Empty(),
		ev(kernel.SchemaCreate, `{"id":"lax","name":"Lax","fields":[{"name":"status","required":true}]}`),
		ev(kernel.SchemaCreate, `{"id":"hard","name":"Hard","strict":true,"fields":[{"name":"status","required":true}]}`),
	)

	res := Reduce(base, ev(kernel.EntityCreate, `{"id":"a","schema":"lax"}`))
	if !res.Applied {
		t.Fatalf("warn-only schema must apply: %v", res.Error)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != kernel.WarnSchemaFieldMissing {
		t.Errorf("expected SCHEMA_FIELD_MISSING warning, got %v", res.Warnings)
	}

	res = Reduce(base, ev(kernel.EntityCreate, `{"id":"b","schema":"hard"}`))
	if res.Applied {
		t.Error("strict schema must reject the missing field")
	}

	res = Reduce(base, ev(kernel.EntityCreate, `{"id":"c","schema":"ghost"}`))
	if res.Applied || res.Error.Code != kernel.ErrSchemaNotFound {
		t.Errorf("expected SCHEMA_NOT_FOUND, got %+v", res.Error)
	}
}

func TestSignalsPassThrough(t *testing.T) {
	snap := mustApply(t, kernel.Empty(), ev(kernel.EntityCreate, `{"id":"a"}`))
	before, _ := snap.CanonicalJSON()

	for _, typ := range []kernel.PrimitiveType{kernel.Voice, kernel.Escalate, kernel.BatchStart, kernel.BatchEnd} {
		res := Reduce(snap, ev(typ, `{}`))
		if !res.Applied {
			t.Fatalf("%s must pass through: %v", typ, res.Error)
		}
		after := res.Snapshot
		after.Sequence = snap.Sequence
		afterJSON, _ := after.CanonicalJSON()
		if string(before) != string(afterJSON) {
			t.Errorf("%s must not mutate the snapshot", typ)
		}
	}
}

func TestUnknownPrimitive(t *testing.T) {
	res := Reduce(kernel.Empty(), ev("entity.explode", `{}`))
	if res.Applied || res.Error.Code != kernel.ErrUnknownPrimitive {
		t.Errorf("expected UNKNOWN_PRIMITIVE, got %+v", res.Error)
	}
}

func TestMalformedPayload(t *testing.T) {
	res := Reduce(kernel.Empty(), ev(kernel.EntityCreate, `{"id":42}`))
	if res.Applied || res.Error.Code != kernel.ErrTypeMismatch {
		t.Errorf("expected TYPE_MISMATCH, got %+v", res.Error)
	}
}

func TestUpdateWithEmptyPropsIsNoOp(t *testing.T) {
	snap := mustApply(t, kernel.Empty(), ev(kernel.EntityCreate, `{"id":"a","props":{"x":1}}`))

	res := Reduce(snap, ev(kernel.EntityUpdate, `{"ref":"a","props":{}}`))
	if !res.Applied {
		t.Fatalf("empty update must apply: %v", res.Error)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("empty update warns on nothing, got %v", res.Warnings)
	}
	if res.Snapshot.Entities["a"].Props["x"] != float64(1) {
		t.Error("props must be untouched")
	}
}

func TestInputSnapshotNeverMutated(t *testing.T) {
	snap := mustApply(t, kernel.Empty(),
		ev(kernel.EntityCreate, `{"id":"p"}`),
		ev(kernel.EntityCreate, `{"id":"a","parent":"p","props":{"x":1}}`),
	)
	before, _ := snap.CanonicalJSON()

	mustApply(t, snap,
		ev(kernel.EntityUpdate, `{"ref":"a","props":{"x":2}}`),
		ev(kernel.EntityRemove, `{"ref":"p"}`),
	)

	after, _ := snap.CanonicalJSON()
	if string(before) != string(after) {
		t.Error("Reduce must never mutate its input snapshot")
	}
}
