package domain

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	shared "github.com/kanban-platform/replenishment-service/pkg/domain"
)

// Normalization defaults for incomplete card master data
const (
	// DefaultStdOpTime is assumed when a card has no standard operation time
	DefaultStdOpTime = 10
	// DefaultTargetLeadTime is assumed when a card has no delivery target
	DefaultTargetLeadTime = 30
)

// CardSpec is a kanban card definition from the plant catalog.
// The catalog is maintained by the planning system; this service only reads it.
type CardSpec struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	CardID           string             `bson:"cardId"`
	PartNumber       string             `bson:"partNumber"`
	Description      string             `bson:"description"`
	Location         string             `bson:"location"`
	Zone             string             `bson:"zone,omitempty"`
	StandardPack     int                `bson:"standardPack"`
	ComplexityWeight int                `bson:"complexityWeight"`
	TargetLeadTime   int                `bson:"targetLeadTime"`
	StdOpTime        int                `bson:"stdOpTime"`
	Active           bool               `bson:"active"`
}

// EffectiveStdOpTime returns the standard operation time in minutes,
// falling back to the default for missing or nonpositive values
func (c *CardSpec) EffectiveStdOpTime() int {
	if c.StdOpTime <= 0 {
		return DefaultStdOpTime
	}
	return c.StdOpTime
}

// EffectiveComplexity returns the complexity rating clamped to the valid range
func (c *CardSpec) EffectiveComplexity() shared.Complexity {
	return shared.NormalizeComplexity(c.ComplexityWeight)
}

// EffectiveTargetLeadTime returns the delivery target in minutes,
// falling back to the default for missing or nonpositive values
func (c *CardSpec) EffectiveTargetLeadTime() int {
	if c.TargetLeadTime <= 0 {
		return DefaultTargetLeadTime
	}
	return c.TargetLeadTime
}

// EffectiveLocation returns the normalized delivery point
func (c *CardSpec) EffectiveLocation() shared.Location {
	return shared.ParseLocationOrUnknown(c.Location)
}
