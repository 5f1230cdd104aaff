package domain

import (
	"math"
	"sort"
	"time"

	shared "github.com/kanban-platform/replenishment-service/pkg/domain"
)

const (
	topMaterialsLimit     = 5
	problemMaterialsLimit = 5
	problemMinFrequency   = 2
)

// KPIReport is the plant performance report reduced from completed deliveries
type KPIReport struct {
	WindowStart         time.Time           `json:"windowStart"`
	GeneratedAt         time.Time           `json:"generatedAt"`
	TotalDeliveries     int                 `json:"totalDeliveries"`
	OverallLeadTime     float64             `json:"overallLeadTime"`
	SLASuccessRate      float64             `json:"slaSuccessRate"`
	CriticalDeliveries  int                 `json:"criticalDeliveries"`
	SuspiciousRate      float64             `json:"suspiciousRate"`
	OperatorRanking     []OperatorStanding        `json:"operatorRanking"`
	TopMaterials        []MaterialFrequency       `json:"topMaterials"`
	ProblemMaterials    []ProblemMaterial         `json:"problemMaterials"`
	HourlyDistribution  [24]TemporalBucket        `json:"hourlyDistribution"`
	WeekdayDistribution map[string]TemporalBucket `json:"weekdayDistribution"`
	Degraded            bool                      `json:"degraded"`
}

// OperatorStanding is one row of the operator ranking
type OperatorStanding struct {
	Operator        string  `json:"operator"`
	Deliveries      int     `json:"deliveries"`
	EffortPoints    int     `json:"effortPoints"`
	AvgReaction     float64 `json:"avgReaction"`
	AvgExecution    float64 `json:"avgExecution"`
	AvgEfficiency   float64 `json:"avgEfficiency"`
	SuspiciousCount int     `json:"suspiciousCount"`
	IntegrityScore  int     `json:"integrityScore"`
}

// TemporalBucket aggregates the deliveries whose orders were opened in one
// hour-of-day or weekday slot
type TemporalBucket struct {
	Count         int     `json:"count"`
	AvgLeadTime   float64 `json:"avgLeadTime"`
	AvgEfficiency float64 `json:"avgEfficiency"`
}

// MaterialFrequency is a part number with its delivery count
type MaterialFrequency struct {
	PartNumber  string `json:"partNumber"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// ProblemMaterial is a recurring part number whose deliveries run slow
type ProblemMaterial struct {
	PartNumber  string  `json:"partNumber"`
	Count       int     `json:"count"`
	AvgLeadTime float64 `json:"avgLeadTime"`
}

// EmptyKPIReport returns the zero-valued report for an empty or unreadable window
func EmptyKPIReport(windowStart, generatedAt time.Time, degraded bool) *KPIReport {
	return &KPIReport{
		WindowStart:         windowStart,
		GeneratedAt:         generatedAt,
		OperatorRanking:     make([]OperatorStanding, 0),
		TopMaterials:        make([]MaterialFrequency, 0),
		ProblemMaterials:    make([]ProblemMaterial, 0),
		WeekdayDistribution: make(map[string]TemporalBucket),
		Degraded:            degraded,
	}
}

// BuildKPIReport reduces completed deliveries into the plant report.
// The reduction is pure: the same input set always yields the same report.
// Orders without an embedded scorecard are skipped.
func BuildKPIReport(completed []*Order, windowStart, generatedAt time.Time) *KPIReport {
	report := EmptyKPIReport(windowStart, generatedAt, false)

	var (
		leadTimeSum     int
		onTimeCount     int
		suspiciousCount int
	)

	type operatorAcc struct {
		deliveries    int
		effortPoints  int
		reactionSum   int
		executionSum  int
		efficiencySum int
		suspicious    int
	}
	operatorOrder := make([]string, 0)
	operators := make(map[string]*operatorAcc)

	type materialAcc struct {
		description string
		count       int
		leadTimeSum int
	}
	materialOrder := make([]string, 0)
	materials := make(map[string]*materialAcc)

	type bucketAcc struct {
		count         int
		leadTimeSum   int
		efficiencySum int
	}
	var hourly [24]bucketAcc
	weekdays := make(map[string]*bucketAcc)

	for _, order := range completed {
		if order.Metrics == nil || order.DeliveredAt == nil {
			continue
		}
		m := order.Metrics

		report.TotalDeliveries++
		leadTimeSum += m.TotalLeadTime
		if m.OnTimeDelivery {
			onTimeCount++
		}
		if m.IsSuspicious {
			suspiciousCount++
		}
		if shared.NormalizeComplexity(order.ComplexityWeight).IsCritical() {
			report.CriticalDeliveries++
		}

		operator := order.DeliveredBy
		acc, ok := operators[operator]
		if !ok {
			acc = &operatorAcc{}
			operators[operator] = acc
			operatorOrder = append(operatorOrder, operator)
		}
		acc.deliveries++
		acc.effortPoints += m.EffortPoints
		acc.reactionSum += m.ReactionTime
		acc.executionSum += m.ExecutionTime
		acc.efficiencySum += m.TaskEfficiency
		if m.IsSuspicious {
			acc.suspicious++
		}

		mat, ok := materials[order.PartNumber]
		if !ok {
			mat = &materialAcc{description: order.Description}
			materials[order.PartNumber] = mat
			materialOrder = append(materialOrder, order.PartNumber)
		}
		mat.count++
		mat.leadTimeSum += m.TotalLeadTime

		// Buckets key on the creation slot, not the delivery slot
		hour := &hourly[order.CreatedAt.Hour()]
		hour.count++
		hour.leadTimeSum += m.TotalLeadTime
		hour.efficiencySum += m.TaskEfficiency

		weekday := order.CreatedAt.Weekday().String()
		day, ok := weekdays[weekday]
		if !ok {
			day = &bucketAcc{}
			weekdays[weekday] = day
		}
		day.count++
		day.leadTimeSum += m.TotalLeadTime
		day.efficiencySum += m.TaskEfficiency
	}

	if report.TotalDeliveries == 0 {
		return report
	}

	total := float64(report.TotalDeliveries)
	report.OverallLeadTime = round1(float64(leadTimeSum) / total)
	report.SLASuccessRate = round1(100 * float64(onTimeCount) / total)
	report.SuspiciousRate = round1(100 * float64(suspiciousCount) / total)

	for h, acc := range hourly {
		if acc.count == 0 {
			continue
		}
		report.HourlyDistribution[h] = TemporalBucket{
			Count:         acc.count,
			AvgLeadTime:   round1(float64(acc.leadTimeSum) / float64(acc.count)),
			AvgEfficiency: round1(float64(acc.efficiencySum) / float64(acc.count)),
		}
	}
	for weekday, acc := range weekdays {
		report.WeekdayDistribution[weekday] = TemporalBucket{
			Count:         acc.count,
			AvgLeadTime:   round1(float64(acc.leadTimeSum) / float64(acc.count)),
			AvgEfficiency: round1(float64(acc.efficiencySum) / float64(acc.count)),
		}
	}

	for _, operator := range operatorOrder {
		acc := operators[operator]
		deliveries := float64(acc.deliveries)
		report.OperatorRanking = append(report.OperatorRanking, OperatorStanding{
			Operator:        operator,
			Deliveries:      acc.deliveries,
			EffortPoints:    acc.effortPoints,
			AvgReaction:     round1(float64(acc.reactionSum) / deliveries),
			AvgExecution:    round1(float64(acc.executionSum) / deliveries),
			AvgEfficiency:   round1(float64(acc.efficiencySum) / deliveries),
			SuspiciousCount: acc.suspicious,
			IntegrityScore:  100 - int(math.Round(100*float64(acc.suspicious)/deliveries)),
		})
	}
	// Stable sort keeps first-appearance order on equal effort points
	sort.SliceStable(report.OperatorRanking, func(i, j int) bool {
		return report.OperatorRanking[i].EffortPoints > report.OperatorRanking[j].EffortPoints
	})

	frequencies := make([]MaterialFrequency, 0, len(materialOrder))
	for _, part := range materialOrder {
		mat := materials[part]
		frequencies = append(frequencies, MaterialFrequency{
			PartNumber:  part,
			Description: mat.description,
			Count:       mat.count,
		})
	}
	sort.SliceStable(frequencies, func(i, j int) bool {
		return frequencies[i].Count > frequencies[j].Count
	})
	report.TopMaterials = truncateMaterials(frequencies, topMaterialsLimit)

	problems := make([]ProblemMaterial, 0)
	for _, part := range materialOrder {
		mat := materials[part]
		if mat.count < problemMinFrequency {
			continue
		}
		problems = append(problems, ProblemMaterial{
			PartNumber:  part,
			Count:       mat.count,
			AvgLeadTime: round1(float64(mat.leadTimeSum) / float64(mat.count)),
		})
	}
	sort.SliceStable(problems, func(i, j int) bool {
		return problems[i].AvgLeadTime > problems[j].AvgLeadTime
	})
	if len(problems) > problemMaterialsLimit {
		problems = problems[:problemMaterialsLimit]
	}
	report.ProblemMaterials = problems

	return report
}

func truncateMaterials(materials []MaterialFrequency, limit int) []MaterialFrequency {
	if len(materials) > limit {
		return materials[:limit]
	}
	return materials
}

// round1 rounds to one decimal place
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
