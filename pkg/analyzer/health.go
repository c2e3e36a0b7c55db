package analyzer

// Deductions per finding severity. Info findings are free.
var severityDeductions = map[Severity]int{
	SeverityCritical: 25,
	SeverityHigh:     10,
	SeverityMedium:   3,
	SeverityLow:      1,
	SeverityInfo:     0,
}

// maxRecommendations caps the health score's recommendation list.
const maxRecommendations = 5

// scoreHealth derives the 0-100 score, its grade bucket, and the top
// auto-fixable recommendations. Findings must already be sorted by
// severity so the recommendation list picks the most severe fixes first.
func scoreHealth(findings []Finding) HealthScore {
	score := 100
	for _, f := range findings {
		score -= severityDeductions[f.Severity]
	}
	if score < 0 {
		score = 0
	}

	recommendations := make([]string, 0, maxRecommendations)
	for _, f := range findings {
		if !f.AutoFixable {
			continue
		}
		recommendations = append(recommendations, f.Recommendation)
		if len(recommendations) == maxRecommendations {
			break
		}
	}

	return HealthScore{
		TotalScore:      score,
		Grade:           gradeFor(score),
		Recommendations: recommendations,
	}
}

func gradeFor(score int) string {
	switch {
	case score >= 95:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 70:
		return "B"
	case score >= 50:
		return "C"
	case score >= 25:
		return "D"
	}
	return "F"
}
