package domain

import (
	"math"
	"time"
)

const (
	// onTimeBonus multiplies load points for deliveries inside the target
	onTimeBonus = 1.5
	// suspiciousFraction of the standard operation time marks implausibly fast work
	suspiciousFraction = 0.2
)

// DeliveryMetrics is the per-delivery scorecard computed when an order closes.
// All durations are whole minutes.
type DeliveryMetrics struct {
	ReactionTime   int  `bson:"reactionTime" json:"reactionTime"`
	ExecutionTime  int  `bson:"executionTime" json:"executionTime"`
	TotalLeadTime  int  `bson:"totalLeadTime" json:"totalLeadTime"`
	TaskEfficiency int  `bson:"taskEfficiency" json:"taskEfficiency"`
	LoadPoints     int  `bson:"loadPoints" json:"loadPoints"`
	OnTimeDelivery bool `bson:"onTimeDelivery" json:"onTimeDelivery"`
	EffortPoints   int  `bson:"effortPoints" json:"effortPoints"`
	IsSuspicious   bool `bson:"isSuspicious" json:"isSuspicious"`
}

// ComputeDeliveryMetrics scores a delivery from its phase timestamps and the
// card spec snapshot. Card values are normalized first so incomplete master
// data still yields a usable scorecard.
func ComputeDeliveryMetrics(createdAt, dispatchedAt, deliveredAt time.Time, card *CardSpec) DeliveryMetrics {
	stdOpTime := card.EffectiveStdOpTime()
	complexity := card.EffectiveComplexity()
	targetLeadTime := card.EffectiveTargetLeadTime()

	reactionTime := minutesBetween(createdAt, dispatchedAt)
	executionTime := minutesBetween(dispatchedAt, deliveredAt)
	totalLeadTime := minutesBetween(createdAt, deliveredAt)

	taskEfficiency := int(math.Round(100 * float64(stdOpTime) / float64(executionTime)))

	loadPoints := complexity.LoadPoints()
	onTime := totalLeadTime <= targetLeadTime

	effortPoints := loadPoints
	if onTime {
		effortPoints = int(math.Round(float64(loadPoints) * onTimeBonus))
	}

	return DeliveryMetrics{
		ReactionTime:   reactionTime,
		ExecutionTime:  executionTime,
		TotalLeadTime:  totalLeadTime,
		TaskEfficiency: taskEfficiency,
		LoadPoints:     loadPoints,
		OnTimeDelivery: onTime,
		EffortPoints:   effortPoints,
		IsSuspicious:   float64(executionTime) < float64(stdOpTime)*suspiciousFraction,
	}
}

// minutesBetween returns elapsed whole minutes, floored, never below 1.
// Sub-minute and out-of-order timestamps both collapse to the 1-minute floor.
func minutesBetween(from, to time.Time) int {
	minutes := int(math.Floor(to.Sub(from).Minutes()))
	if minutes < 1 {
		return 1
	}
	return minutes
}
