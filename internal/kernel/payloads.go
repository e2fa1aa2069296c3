package kernel

// Payload shapes for each PrimitiveType. The reducer decodes Event.Payload
// into the matching struct for the event's Type before applying it: a
// tagged union realized as (tag string, json.RawMessage) plus per-tag
// decode, rather than a dynamic map.

type CreatePayload struct {
	ID      string                 `json:"id"`
	Parent  string                 `json:"parent,omitempty"`
	Display string                 `json:"display,omitempty"`
	Props   map[string]interface{} `json:"props,omitempty"`
	Schema  string                 `json:"schema,omitempty"`
}

type UpdatePayload struct {
	Ref   string                 `json:"ref"`
	Props map[string]interface{} `json:"props"`
}

type RemovePayload struct {
	Ref string `json:"ref"`
}

type MovePayload struct {
	Ref       string `json:"ref"`
	NewParent string `json:"new_parent"`
	Position  *int   `json:"position,omitempty"`
}

type ReorderPayload struct {
	Parent   string   `json:"parent"`
	Children []string `json:"children"`
}

type RelSetPayload struct {
	From        string      `json:"from"`
	To          string      `json:"to"`
	Type        string      `json:"type"`
	Cardinality Cardinality `json:"cardinality,omitempty"`
}

type RelRemovePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// ConstrainPayload backs both rel.constrain and meta.constrain; it is just a
// Constraint without requiring a unique ID to be pre-assigned by the caller.
type ConstrainPayload struct {
	ID      string         `json:"id,omitempty"`
	Kind    ConstraintKind `json:"kind"`
	Strict  bool           `json:"strict,omitempty"`
	EntityA string         `json:"entity_a,omitempty"`
	EntityB string         `json:"entity_b,omitempty"`
	RelType string         `json:"rel_type,omitempty"`
	Parent  string         `json:"parent,omitempty"`
	Count   int            `json:"count,omitempty"`
	Field   string         `json:"field,omitempty"`
	Path    string         `json:"path,omitempty"`
	Fields  []string       `json:"fields,omitempty"`
}

// StyleSetPayload is a flat key/value map merged into global styles. A null
// value (nil in the decoded map) removes the key.
type StyleSetPayload map[string]interface{}

type StyleEntityPayload struct {
	Ref    string                 `json:"ref"`
	Styles map[string]interface{} `json:"styles"`
}

// MetaSetPayload is a flat key/value map shallow-merged into meta.props.
type MetaSetPayload map[string]interface{}

type MetaAnnotatePayload struct {
	Note   string `json:"note"`
	Pinned bool   `json:"pinned,omitempty"`
}

type SchemaCreatePayload struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Fields    []SchemaField     `json:"fields"`
	Templates map[string]string `json:"templates,omitempty"`
	Strict    bool              `json:"strict,omitempty"`
}

type SchemaUpdatePayload struct {
	ID        string            `json:"id"`
	Name      string            `json:"name,omitempty"`
	Fields    []SchemaField     `json:"fields,omitempty"`
	Templates map[string]string `json:"templates,omitempty"`
	Strict    *bool             `json:"strict,omitempty"`
}

type SchemaRemovePayload struct {
	ID string `json:"id"`
}

type VoicePayload struct {
	Text string `json:"text"`
}

type EscalatePayload struct {
	Tier   string `json:"tier,omitempty"`
	Reason string `json:"reason,omitempty"`
}
