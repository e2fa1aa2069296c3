package reducer

import "github.com/kittclouds/aide/internal/kernel"

func reduceSchemaCreate(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.SchemaCreatePayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	if p.ID == "" {
		return kernel.Rejected(snap, kernel.ErrMissingRef, "id is required")
	}

	next := snap.Clone()
	next.Schemas[p.ID] = kernel.Schema{
		ID:        p.ID,
		Name:      p.Name,
		Fields:    p.Fields,
		Templates: p.Templates,
		Strict:    p.Strict,
	}

	return finish(snap, next)
}

func reduceSchemaUpdate(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.SchemaUpdatePayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	existing, ok := snap.Schemas[p.ID]
	if !ok {
		return kernel.Rejected(snap, kernel.ErrSchemaNotFound, p.ID)
	}

	next := snap.Clone()
	s := existing
	if p.Name != "" {
		s.Name = p.Name
	}
	if p.Fields != nil {
		s.Fields = p.Fields
	}
	if p.Templates != nil {
		s.Templates = p.Templates
	}
	if p.Strict != nil {
		s.Strict = *p.Strict
	}
	next.Schemas[p.ID] = s

	return finish(snap, next)
}

func reduceSchemaRemove(snap kernel.Snapshot, ev kernel.Event, nextSeq int64) kernel.ReduceResult {
	var p kernel.SchemaRemovePayload
	if err := decode(ev.Payload, &p); err != nil {
		return kernel.Rejected(snap, kernel.ErrTypeMismatch, err.Error())
	}
	if _, ok := snap.Schemas[p.ID]; !ok {
		return kernel.Rejected(snap, kernel.ErrSchemaNotFound, p.ID)
	}
	for _, e := range snap.Entities {
		if !e.Removed && e.Schema == p.ID {
			return kernel.Rejected(snap, kernel.ErrSchemaInUse, p.ID)
		}
	}

	next := snap.Clone()
	delete(next.Schemas, p.ID)

	return finish(snap, next)
}

// schemaValidation is the outcome of checking one entity's props against its
// declared schema's required fields.
type schemaValidation struct {
	warnings        []kernel.Warning
	strictViolation string
}

// schemaFieldWarnings validates ent.Props against its declared schema's
// required fields, if any. A schema with Strict set turns a missing field
// into a rejection; otherwise it becomes a SCHEMA_FIELD_MISSING warning.
func schemaFieldWarnings(snap kernel.Snapshot, ent *kernel.Entity) schemaValidation {
	if ent.Schema == "" {
		return schemaValidation{}
	}
	schema, ok := snap.Schemas[ent.Schema]
	if !ok {
		return schemaValidation{}
	}
	var out schemaValidation
	for _, f := range schema.Fields {
		if !f.Required {
			continue
		}
		v, present := ent.Props[f.Name]
		if present && v != nil {
			continue
		}
		msg := "entity " + ent.ID + " missing required schema field " + f.Name
		if schema.Strict {
			out.strictViolation = msg
			return out
		}
		out.warnings = append(out.warnings, kernel.Warning{
			Code:    kernel.WarnSchemaFieldMissing,
			Message: msg,
		})
	}
	return out
}
