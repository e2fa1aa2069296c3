package kernel

// Clone returns a snapshot whose maps and slices are independent of the
// receiver, so the reducer can mutate the copy freely without the caller's
// snapshot changing underneath it. Structural sharing below the entity
// level is deliberately not attempted; a plain copy keeps the reducer's
// value semantics obvious.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Meta:     s.Meta.clone(),
		Entities: make(map[string]*Entity, len(s.Entities)),
		Relationships: Relationships{
			Tuples:        append([]RelationTuple(nil), s.Relationships.Tuples...),
			Cardinalities: cloneStringMap(s.Relationships.Cardinalities),
		},
		Styles: Styles{
			Global:    cloneAnyMap(s.Styles.Global),
			PerEntity: make(map[string]map[string]interface{}, len(s.Styles.PerEntity)),
		},
		Schemas:  make(map[string]Schema, len(s.Schemas)),
		Version:  s.Version,
		Sequence: s.Sequence,
	}
	for id, e := range s.Entities {
		cp := *e
		cp.Children = append([]string(nil), e.Children...)
		cp.Props = cloneAnyMap(e.Props)
		out.Entities[id] = &cp
	}
	for id, ov := range s.Styles.PerEntity {
		out.Styles.PerEntity[id] = cloneAnyMap(ov)
	}
	for id, sc := range s.Schemas {
		out.Schemas[id] = sc.clone()
	}
	return out
}

func (m Meta) clone() Meta {
	return Meta{
		Title:       m.Title,
		Identity:    m.Identity,
		Visibility:  m.Visibility,
		Props:       cloneAnyMap(m.Props),
		Annotations: append([]Annotation(nil), m.Annotations...),
		Constraints: cloneConstraintMap(m.Constraints),
	}
}

func (sc Schema) clone() Schema {
	out := sc
	out.Fields = append([]SchemaField(nil), sc.Fields...)
	out.Templates = cloneStringMapV(sc.Templates)
	return out
}

func cloneAnyMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStringMap(in map[string]Cardinality) map[string]Cardinality {
	out := make(map[string]Cardinality, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStringMapV(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneConstraintMap(in map[string]Constraint) map[string]Constraint {
	out := make(map[string]Constraint, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
