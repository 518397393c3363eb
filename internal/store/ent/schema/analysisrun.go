package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// AnalysisRun holds the schema definition for the AnalysisRun entity.
type AnalysisRun struct {
	ent.Schema
}

// Fields of the AnalysisRun.
func (AnalysisRun) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("run_id").
			Unique().
			Immutable(),
		field.String("repo").
			Default(""),
		field.String("status").
			Default("pending"),
		field.String("format").
			Default(""),
		field.Bool("detail").
			Default(false),
		field.String("error").
			Default(""),
		field.Text("diagram").
			Default(""),
		field.Time("created_at").
			Default(time.Now),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the AnalysisRun.
func (AnalysisRun) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("artifacts", RunArtifact.Type),
	}
}
