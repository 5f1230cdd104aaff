package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deliveryFixture struct {
	partNumber  string
	operator    string
	reaction    int
	execution   int
	leadTime    int
	efficiency  int
	effort      int
	complexity  int
	onTime      bool
	suspicious  bool
	createdAt   time.Time
	deliveredAt time.Time
}

func completedOrder(f deliveryFixture) *Order {
	createdAt := f.createdAt
	if createdAt.IsZero() {
		createdAt = f.deliveredAt
	}
	deliveredAt := f.deliveredAt
	return &Order{
		OrderID:          "order-" + f.partNumber + "-" + f.operator,
		CardID:           "card-" + f.partNumber,
		PartNumber:       f.partNumber,
		Description:      "part " + f.partNumber,
		ComplexityWeight: f.complexity,
		Status:           OrderStatusDelivered,
		DeliveredBy:      f.operator,
		CreatedAt:        createdAt,
		DeliveredAt:      &deliveredAt,
		Metrics: &DeliveryMetrics{
			ReactionTime:   f.reaction,
			ExecutionTime:  f.execution,
			TotalLeadTime:  f.leadTime,
			TaskEfficiency: f.efficiency,
			EffortPoints:   f.effort,
			OnTimeDelivery: f.onTime,
			IsSuspicious:   f.suspicious,
		},
	}
}

func TestBuildKPIReportEmptyWindow(t *testing.T) {
	windowStart := time.Now().Add(-30 * 24 * time.Hour)
	report := BuildKPIReport(nil, windowStart, time.Now())

	assert.Equal(t, 0, report.TotalDeliveries)
	assert.Zero(t, report.OverallLeadTime)
	assert.Zero(t, report.SLASuccessRate)
	assert.Empty(t, report.OperatorRanking)
	assert.Empty(t, report.TopMaterials)
	assert.Empty(t, report.ProblemMaterials)
	assert.False(t, report.Degraded)
}

func TestBuildKPIReportTotals(t *testing.T) {
	monday10 := time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC)
	tuesday14 := time.Date(2026, 3, 10, 14, 5, 0, 0, time.UTC)

	completed := []*Order{
		completedOrder(deliveryFixture{partNumber: "PN-1", operator: "Luis", leadTime: 20, efficiency: 80, effort: 5, complexity: 3, onTime: true, deliveredAt: monday10}),
		completedOrder(deliveryFixture{partNumber: "PN-2", operator: "Maria", leadTime: 40, efficiency: 60, effort: 4, complexity: 4, onTime: false, deliveredAt: tuesday14}),
		completedOrder(deliveryFixture{partNumber: "PN-1", operator: "Luis", leadTime: 15, efficiency: 90, effort: 3, complexity: 3, onTime: true, suspicious: true, deliveredAt: monday10}),
	}

	report := BuildKPIReport(completed, monday10.Add(-24*time.Hour), time.Now())

	assert.Equal(t, 3, report.TotalDeliveries)
	assert.InDelta(t, 25.0, report.OverallLeadTime, 0.001)
	assert.InDelta(t, 66.7, report.SLASuccessRate, 0.001)
	assert.Equal(t, 1, report.CriticalDeliveries)
	assert.InDelta(t, 33.3, report.SuspiciousRate, 0.001)

	hour10 := report.HourlyDistribution[10]
	assert.Equal(t, 2, hour10.Count)
	assert.InDelta(t, 17.5, hour10.AvgLeadTime, 0.001)
	assert.InDelta(t, 85.0, hour10.AvgEfficiency, 0.001)

	hour14 := report.HourlyDistribution[14]
	assert.Equal(t, 1, hour14.Count)
	assert.InDelta(t, 40.0, hour14.AvgLeadTime, 0.001)
	assert.InDelta(t, 60.0, hour14.AvgEfficiency, 0.001)

	assert.Equal(t, TemporalBucket{}, report.HourlyDistribution[0])
	assert.Equal(t, 2, report.WeekdayDistribution["Monday"].Count)
	assert.Equal(t, 1, report.WeekdayDistribution["Tuesday"].Count)
}

func TestBuildKPIReportBucketsByCreation(t *testing.T) {
	created := time.Date(2026, 3, 9, 8, 15, 0, 0, time.UTC)    // Monday 08
	delivered := time.Date(2026, 3, 10, 9, 40, 0, 0, time.UTC) // Tuesday 09

	completed := []*Order{
		completedOrder(deliveryFixture{partNumber: "PN-1", operator: "Luis", leadTime: 30, efficiency: 80, effort: 3, complexity: 1, createdAt: created, deliveredAt: delivered}),
	}

	report := BuildKPIReport(completed, created.Add(-time.Hour), time.Now())

	// The delivery counts toward the slot the order was opened in
	assert.Equal(t, 1, report.HourlyDistribution[8].Count)
	assert.Equal(t, 0, report.HourlyDistribution[9].Count)
	assert.Contains(t, report.WeekdayDistribution, "Monday")
	assert.NotContains(t, report.WeekdayDistribution, "Tuesday")
}

func TestBuildKPIReportOperatorRanking(t *testing.T) {
	at := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	completed := []*Order{
		completedOrder(deliveryFixture{partNumber: "PN-1", operator: "Luis", reaction: 5, execution: 12, leadTime: 20, efficiency: 80, effort: 3, complexity: 1, onTime: true, deliveredAt: at}),
		completedOrder(deliveryFixture{partNumber: "PN-2", operator: "Maria", reaction: 2, execution: 10, leadTime: 20, efficiency: 100, effort: 8, complexity: 1, onTime: true, deliveredAt: at}),
		completedOrder(deliveryFixture{partNumber: "PN-4", operator: "Maria", reaction: 3, execution: 15, leadTime: 25, efficiency: 90, effort: 4, complexity: 1, onTime: true, deliveredAt: at}),
		completedOrder(deliveryFixture{partNumber: "PN-3", operator: "Pedro", reaction: 1, execution: 1, leadTime: 20, efficiency: 60, effort: 3, complexity: 1, onTime: true, suspicious: true, deliveredAt: at}),
	}

	report := BuildKPIReport(completed, at.Add(-time.Hour), time.Now())

	require.Len(t, report.OperatorRanking, 3)
	assert.Equal(t, "Maria", report.OperatorRanking[0].Operator)
	// Luis and Pedro tie on effort points; first appearance wins
	assert.Equal(t, "Luis", report.OperatorRanking[1].Operator)
	assert.Equal(t, "Pedro", report.OperatorRanking[2].Operator)

	maria := report.OperatorRanking[0]
	assert.Equal(t, 2, maria.Deliveries)
	assert.InDelta(t, 2.5, maria.AvgReaction, 0.001)
	assert.InDelta(t, 12.5, maria.AvgExecution, 0.001)
	assert.InDelta(t, 95.0, maria.AvgEfficiency, 0.001)
	assert.Equal(t, 100, maria.IntegrityScore)

	luis := report.OperatorRanking[1]
	assert.InDelta(t, 5.0, luis.AvgReaction, 0.001)
	assert.InDelta(t, 12.0, luis.AvgExecution, 0.001)
	assert.InDelta(t, 80.0, luis.AvgEfficiency, 0.001)

	pedro := report.OperatorRanking[2]
	assert.Equal(t, 1, pedro.SuspiciousCount)
	assert.Equal(t, 0, pedro.IntegrityScore)
}

func TestBuildKPIReportMaterials(t *testing.T) {
	at := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	fixtures := []deliveryFixture{
		{partNumber: "PN-SLOW", operator: "Luis", leadTime: 60, efficiency: 50, effort: 1, complexity: 1, deliveredAt: at},
		{partNumber: "PN-SLOW", operator: "Luis", leadTime: 80, efficiency: 50, effort: 1, complexity: 1, deliveredAt: at},
		{partNumber: "PN-FAST", operator: "Luis", leadTime: 10, efficiency: 50, effort: 1, complexity: 1, onTime: true, deliveredAt: at},
		{partNumber: "PN-FAST", operator: "Luis", leadTime: 12, efficiency: 50, effort: 1, complexity: 1, onTime: true, deliveredAt: at},
		{partNumber: "PN-FAST", operator: "Luis", leadTime: 14, efficiency: 50, effort: 1, complexity: 1, onTime: true, deliveredAt: at},
		{partNumber: "PN-ONCE", operator: "Luis", leadTime: 200, efficiency: 50, effort: 1, complexity: 1, deliveredAt: at},
	}
	completed := make([]*Order, 0, len(fixtures))
	for _, f := range fixtures {
		completed = append(completed, completedOrder(f))
	}

	report := BuildKPIReport(completed, at.Add(-time.Hour), time.Now())

	require.Len(t, report.TopMaterials, 3)
	assert.Equal(t, "PN-FAST", report.TopMaterials[0].PartNumber)
	assert.Equal(t, 3, report.TopMaterials[0].Count)
	assert.Equal(t, "PN-SLOW", report.TopMaterials[1].PartNumber)

	// Single-delivery parts never qualify as problem materials
	require.Len(t, report.ProblemMaterials, 2)
	assert.Equal(t, "PN-SLOW", report.ProblemMaterials[0].PartNumber)
	assert.InDelta(t, 70.0, report.ProblemMaterials[0].AvgLeadTime, 0.001)
	assert.Equal(t, "PN-FAST", report.ProblemMaterials[1].PartNumber)
	assert.InDelta(t, 12.0, report.ProblemMaterials[1].AvgLeadTime, 0.001)
}

func TestBuildKPIReportSkipsRecordsWithoutScorecard(t *testing.T) {
	at := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	withMetrics := completedOrder(deliveryFixture{partNumber: "PN-1", operator: "Luis", leadTime: 20, efficiency: 80, effort: 3, complexity: 1, onTime: true, deliveredAt: at})
	withoutMetrics := completedOrder(deliveryFixture{partNumber: "PN-2", operator: "Maria", leadTime: 20, efficiency: 80, effort: 3, complexity: 1, deliveredAt: at})
	withoutMetrics.Metrics = nil

	report := BuildKPIReport([]*Order{withMetrics, withoutMetrics}, at.Add(-time.Hour), time.Now())

	assert.Equal(t, 1, report.TotalDeliveries)
	require.Len(t, report.OperatorRanking, 1)
	assert.Equal(t, "Luis", report.OperatorRanking[0].Operator)
}

func TestBuildKPIReportIsIdempotent(t *testing.T) {
	at := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	generated := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	completed := []*Order{
		completedOrder(deliveryFixture{partNumber: "PN-1", operator: "Luis", leadTime: 20, efficiency: 80, effort: 3, complexity: 1, onTime: true, deliveredAt: at}),
		completedOrder(deliveryFixture{partNumber: "PN-2", operator: "Maria", leadTime: 30, efficiency: 70, effort: 5, complexity: 4, deliveredAt: at}),
	}

	first := BuildKPIReport(completed, at.Add(-time.Hour), generated)
	second := BuildKPIReport(completed, at.Add(-time.Hour), generated)

	assert.Equal(t, first, second)
}
