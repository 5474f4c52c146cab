package pipeline

import (
	"math"
	"sort"

	"planktovision/internal/policy"
)

// Aggregate converts a flat detection list into per-class statistics and an
// overall verdict under the given safety policy. It is a pure function: the
// same detections and policy always produce the same stats and verdict.
func Aggregate(detections []Detection, pol *policy.Policy) ([]ClassStat, Verdict) {
	total := len(detections)
	if total == 0 {
		return []ClassStat{}, Verdict{Verdict: policy.TierSafe, Reason: "no detections"}
	}

	counts := make(map[string]int)
	confSums := make(map[string]float64)
	for _, d := range detections {
		counts[d.Class]++
		confSums[d.Class] += d.Confidence
	}

	perClass := make([]ClassStat, 0, len(counts))
	for class, count := range counts {
		tier := pol.TierFor(class)
		perClass = append(perClass, ClassStat{
			Class:         class,
			Count:         count,
			Percentage:    round1(float64(count) / float64(total) * 100),
			AvgConfidence: round3(confSums[class] / float64(count)),
			Safety:        tier,
			Description:   policy.Describe(tier),
		})
	}

	sort.Slice(perClass, func(i, j int) bool {
		if perClass[i].Count != perClass[j].Count {
			return perClass[i].Count > perClass[j].Count
		}
		return perClass[i].AvgConfidence > perClass[j].AvgConfidence
	})

	return perClass, evaluate(perClass, pol)
}

// evaluate derives the overall verdict from per-class tiers and shares using
// the policy escalation thresholds.
func evaluate(perClass []ClassStat, pol *policy.Policy) Verdict {
	unsafeCount := 0
	dominantUnsafe := false
	cautionPresent := false
	for _, row := range perClass {
		switch row.Safety {
		case policy.TierUnsafe:
			unsafeCount++
			if row.Percentage > pol.UnsafeSharePercent {
				dominantUnsafe = true
			}
		case policy.TierCaution:
			cautionPresent = true
		}
	}

	switch {
	case unsafeCount > pol.MaxUnsafeClasses || dominantUnsafe:
		return Verdict{Verdict: policy.TierUnsafe, Reason: "Multiple or dominant unsafe classes detected."}
	case cautionPresent:
		return Verdict{Verdict: policy.TierCaution, Reason: "One or more cautionary classes detected."}
	default:
		return Verdict{Verdict: policy.TierSafe, Reason: "No concerning classes detected."}
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
