package domain

import (
	"sort"
)

// OverallScore is the weighted sum of scored responses, rounded to 2 decimals.
// Unscored responses contribute 0 without reducing the denominator.
func OverallScore(responses []*AuditResponse) float64 {
	contributions := make([]float64, 0, len(responses))
	for _, r := range responses {
		if r.Score == nil {
			continue
		}
		contributions = append(contributions, r.WeightedScore())
	}
	return Round2(sortedSum(contributions))
}

// AverageMaturityLevel is the weight-averaged maturity level over responses
// that have one. It returns nil when no response carries a level.
func AverageMaturityLevel(responses []*AuditResponse) *float64 {
	var (
		weighted []float64
		weights  []float64
		levels   []float64
	)
	for _, r := range responses {
		if r.AchievedMaturityLevel == nil {
			continue
		}
		level := float64(*r.AchievedMaturityLevel)
		weighted = append(weighted, level*r.Weight)
		weights = append(weights, r.Weight)
		levels = append(levels, level)
	}
	if len(levels) == 0 {
		return nil
	}

	var avg float64
	if total := sortedSum(weights); total > 0 {
		avg = sortedSum(weighted) / total
	} else {
		// all carriers weigh 0; fall back to a plain mean
		avg = sortedSum(levels) / float64(len(levels))
	}
	avg = Round2(avg)
	return &avg
}

// LevelStat is a count and its share of the total response count
type LevelStat struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ComplianceBreakdown counts responses per compliance level
type ComplianceBreakdown struct {
	Total              int       `json:"total"`
	Compliant          LevelStat `json:"compliant"`
	PartiallyCompliant LevelStat `json:"partially_compliant"`
	NonCompliant       LevelStat `json:"non_compliant"`
	NotApplicable      LevelStat `json:"not_applicable"`
	NotEvaluated       LevelStat `json:"not_evaluated"`
}

// ComplianceMetrics counts responses per compliance level plus those not yet
// evaluated; percentages are relative to the total response count.
func ComplianceMetrics(responses []*AuditResponse) ComplianceBreakdown {
	counts := make(map[ComplianceLevel]int, len(ComplianceLevels))
	notEvaluated := 0
	for _, r := range responses {
		if r.ComplianceLevel == nil {
			notEvaluated++
			continue
		}
		counts[*r.ComplianceLevel]++
	}

	total := len(responses)
	stat := func(n int) LevelStat {
		return LevelStat{Count: n, Percentage: percentage(n, total)}
	}
	return ComplianceBreakdown{
		Total:              total,
		Compliant:          stat(counts[ComplianceLevelCompliant]),
		PartiallyCompliant: stat(counts[ComplianceLevelPartiallyCompliant]),
		NonCompliant:       stat(counts[ComplianceLevelNonCompliant]),
		NotApplicable:      stat(counts[ComplianceLevelNotApplicable]),
		NotEvaluated:       stat(notEvaluated),
	}
}

// Progress counts responses per lifecycle status
type Progress struct {
	Total              int     `json:"total"`
	NotStarted         int     `json:"not_started"`
	InProgress         int     `json:"in_progress"`
	Completed          int     `json:"completed"`
	Reviewed           int     `json:"reviewed"`
	PercentageComplete float64 `json:"percentage_complete"`
}

// ProgressStats counts statuses; completed and reviewed both count as done
func ProgressStats(responses []*AuditResponse) Progress {
	p := Progress{Total: len(responses)}
	for _, r := range responses {
		switch r.Status {
		case ResponseStatusNotStarted:
			p.NotStarted++
		case ResponseStatusInProgress:
			p.InProgress++
		case ResponseStatusCompleted:
			p.Completed++
		case ResponseStatusReviewed:
			p.Reviewed++
		}
	}
	p.PercentageComplete = percentage(p.Completed+p.Reviewed, p.Total)
	return p
}

// CheckCompleteness fails with ErrIncompleteEvaluation listing the ids of
// responses that are neither completed nor reviewed.
func CheckCompleteness(responses []*AuditResponse) error {
	var pending []string
	for _, r := range responses {
		if !r.IsFinished() {
			pending = append(pending, r.ID)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Strings(pending)
	return ErrIncompleteEvaluation.With(pending...)
}

// ScoreSummary gathers every scoring output for one response set
type ScoreSummary struct {
	OverallScore         float64             `json:"overall_score"`
	AverageMaturityLevel *float64            `json:"average_maturity_level,omitempty"`
	MaturityTier         *MaturityTier       `json:"maturity_tier,omitempty"`
	TotalWeight          float64             `json:"total_weight"`
	Compliance           ComplianceBreakdown `json:"compliance"`
	Progress             Progress            `json:"progress"`
	Complete             bool                `json:"complete"`
}

// Summarize runs the whole scoring engine over responses. A nil framework
// falls back to the default maturity scale.
func Summarize(responses []*AuditResponse, framework *ScoringFramework) ScoreSummary {
	if framework == nil {
		framework = DefaultScoringFramework()
	}
	summary := ScoreSummary{
		OverallScore:         OverallScore(responses),
		AverageMaturityLevel: AverageMaturityLevel(responses),
		TotalWeight:          SumWeights(ResponseWeights(responses)),
		Compliance:           ComplianceMetrics(responses),
		Progress:             ProgressStats(responses),
		Complete:             CheckCompleteness(responses) == nil,
	}
	if summary.AverageMaturityLevel != nil {
		if tier, ok := framework.TierFor(*summary.AverageMaturityLevel); ok {
			summary.MaturityTier = &tier
		}
	}
	return summary
}

// sortedSum adds values in ascending order so the result never depends on
// the order responses were loaded in.
func sortedSum(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sum
}

func percentage(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round2(float64(n) / float64(total) * 100)
}
