// Package kernel defines the typed entity tree, relationship and constraint
// model, and the event envelope that the reducer operates over. Nothing in
// this package performs I/O; it is the shared vocabulary between the reducer,
// orchestrator, and persistence facade.
package kernel

import "encoding/json"

// RootID is the synthetic id every top-level entity's Parent resolves to.
const RootID = "root"

// Entity is a node in the parent/child content tree.
type Entity struct {
	ID         string                 `json:"id"`
	Parent     string                 `json:"parent"`
	Display    string                 `json:"display,omitempty"`
	Props      map[string]interface{} `json:"props,omitempty"`
	Schema     string                 `json:"schema,omitempty"`
	Removed    bool                   `json:"_removed"`
	Children   []string               `json:"_children"`
	CreatedSeq int64                  `json:"_created_seq"`
	UpdatedSeq int64                  `json:"_updated_seq"`
}

// Cardinality constrains how many tuples of a relationship type may share an
// endpoint. Registered at first use for a type and immutable thereafter.
type Cardinality string

const (
	OneToOne   Cardinality = "one_to_one"
	OneToMany  Cardinality = "one_to_many"
	ManyToOne  Cardinality = "many_to_one"
	ManyToMany Cardinality = "many_to_many"
)

// RelationTuple is a directed (from, to, type) edge.
type RelationTuple struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Relationships is the multiset of tuples plus the cardinality registry.
type Relationships struct {
	Tuples        []RelationTuple        `json:"tuples"`
	Cardinalities map[string]Cardinality `json:"cardinalities"`
}

// ConstraintKind enumerates the recognized constraint rule shapes.
type ConstraintKind string

const (
	ExcludePair    ConstraintKind = "exclude_pair"
	RequireSame    ConstraintKind = "require_same"
	MaxChildren    ConstraintKind = "max_children"
	MinChildren    ConstraintKind = "min_children"
	UniqueField    ConstraintKind = "unique_field"
	RequiredFields ConstraintKind = "required_fields"
)

// Constraint is a named rule, optionally strict (reject on violation rather
// than warn).
type Constraint struct {
	ID     string         `json:"id"`
	Kind   ConstraintKind `json:"kind"`
	Strict bool           `json:"strict"`

	// The fields below are kind-specific: each kind uses only the ones its
	// check reads, and the rest stay empty.
	EntityA string   `json:"entity_a,omitempty"`
	EntityB string   `json:"entity_b,omitempty"`
	RelType string   `json:"rel_type,omitempty"`
	Parent  string   `json:"parent,omitempty"`
	Count   int      `json:"count,omitempty"`
	Field   string   `json:"field,omitempty"`
	Path    string   `json:"path,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

// Annotation is a timestamped, pinnable note attached to an aide's meta.
type Annotation struct {
	Note   string `json:"note"`
	Pinned bool   `json:"pinned"`
	Ts     string `json:"ts"`
	Seq    int64  `json:"seq"`
}

// Meta holds aide-level identity, visibility, arbitrary properties,
// annotations, and named constraints.
type Meta struct {
	Title       string                 `json:"title,omitempty"`
	Identity    string                 `json:"identity,omitempty"`
	Visibility  string                 `json:"visibility,omitempty"`
	Props       map[string]interface{} `json:"props,omitempty"`
	Annotations []Annotation           `json:"annotations"`
	Constraints map[string]Constraint  `json:"constraints"`
}

// Styles holds global design tokens and per-entity overrides.
type Styles struct {
	Global    map[string]interface{}            `json:"global"`
	PerEntity map[string]map[string]interface{} `json:"per_entity"`
}

// SchemaField declares one field of a Schema's shape.
type SchemaField struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// Schema declares an optional shape entities may be validated against.
// Strict controls whether a missing required field rejects the mutating
// event outright (true) or merely attaches a SCHEMA_FIELD_MISSING warning
// (false, the default); per-schema, reusing the same strict/warn split
// Constraint uses.
type Schema struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Fields    []SchemaField     `json:"fields"`
	Templates map[string]string `json:"templates,omitempty"`
	Strict    bool              `json:"strict,omitempty"`
}

// Snapshot is the full materialized state of one aide.
type Snapshot struct {
	Meta          Meta               `json:"meta"`
	Entities      map[string]*Entity `json:"entities"`
	Relationships Relationships      `json:"relationships"`
	Styles        Styles             `json:"styles"`
	Schemas       map[string]Schema  `json:"schemas,omitempty"`
	Version       int                `json:"version"`
	Sequence      int64              `json:"sequence"`
}

// Empty returns a freshly initialized, valid empty snapshot (sequence 0, no
// entities), the canonical starting point for replay.
func Empty() Snapshot {
	return Snapshot{
		Meta: Meta{
			Annotations: []Annotation{},
			Constraints: map[string]Constraint{},
		},
		Entities: map[string]*Entity{},
		Relationships: Relationships{
			Tuples:        []RelationTuple{},
			Cardinalities: map[string]Cardinality{},
		},
		Styles: Styles{
			Global:    map[string]interface{}{},
			PerEntity: map[string]map[string]interface{}{},
		},
		Schemas: map[string]Schema{},
		Version: 1,
	}
}

// PrimitiveType is the tag discriminating an Event's Payload shape.
type PrimitiveType string

const (
	EntityCreate  PrimitiveType = "entity.create"
	EntityUpdate  PrimitiveType = "entity.update"
	EntityRemove  PrimitiveType = "entity.remove"
	EntityMove    PrimitiveType = "entity.move"
	EntityReorder PrimitiveType = "entity.reorder"

	RelSet       PrimitiveType = "rel.set"
	RelRemove    PrimitiveType = "rel.remove"
	RelConstrain PrimitiveType = "rel.constrain"

	StyleSet    PrimitiveType = "style.set"
	StyleEntity PrimitiveType = "style.entity"

	MetaSet       PrimitiveType = "meta.set"
	MetaAnnotate  PrimitiveType = "meta.annotate"
	MetaConstrain PrimitiveType = "meta.constrain"

	SchemaCreate PrimitiveType = "schema.create"
	SchemaUpdate PrimitiveType = "schema.update"
	SchemaRemove PrimitiveType = "schema.remove"

	Voice      PrimitiveType = "voice"
	Escalate   PrimitiveType = "escalate"
	BatchStart PrimitiveType = "batch.start"
	BatchEnd   PrimitiveType = "batch.end"
)

// Event wraps one primitive. Timestamp is assigned by the orchestrator on
// persist and is never read by the reducer.
type Event struct {
	ID        string          `json:"id"`
	Sequence  int64           `json:"sequence"`
	Timestamp string          `json:"timestamp"`
	Actor     string          `json:"actor"`
	Source    string          `json:"source"`
	Type      PrimitiveType   `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}
