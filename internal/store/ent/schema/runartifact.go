package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// RunArtifact holds the schema definition for the RunArtifact entity.
type RunArtifact struct {
	ent.Schema
}

// Fields of the RunArtifact.
func (RunArtifact) Fields() []ent.Field {
	return []ent.Field{
		field.Int("id").
			Unique().
			Immutable(),
		field.String("run_id").
			NotEmpty(),
		field.String("name").
			NotEmpty(),
		field.Time("created_at").
			Default(time.Now),
	}
}

// Edges of the RunArtifact.
func (RunArtifact) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("run", AnalysisRun.Type).
			Ref("artifacts").
			Unique(),
	}
}

// Indexes of the RunArtifact.
func (RunArtifact) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("run_id", "name").Unique(),
	}
}
