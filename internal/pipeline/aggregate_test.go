package pipeline

import (
	"math"
	"reflect"
	"testing"

	"planktovision/internal/policy"
)

func det(class string, conf float64) Detection {
	return Detection{BBox: BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, Class: class, Confidence: conf}
}

func TestAggregateNoDetections(t *testing.T) {
	perClass, verdict := Aggregate(nil, policy.Default())

	if perClass == nil || len(perClass) != 0 {
		t.Fatalf("expected empty per-class stats, got %v", perClass)
	}
	if verdict.Verdict != policy.TierSafe {
		t.Errorf("expected Safe verdict, got %s", verdict.Verdict)
	}
	if verdict.Reason != "no detections" {
		t.Errorf("unexpected reason %q", verdict.Reason)
	}
}

func TestAggregateSingleCautionClass(t *testing.T) {
	detections := []Detection{det("algae", 0.9), det("algae", 0.8)}

	perClass, verdict := Aggregate(detections, policy.Default())

	if len(perClass) != 1 {
		t.Fatalf("expected 1 class, got %d", len(perClass))
	}
	row := perClass[0]
	if row.Class != "algae" || row.Count != 2 {
		t.Errorf("unexpected row %+v", row)
	}
	if row.Percentage != 100.0 {
		t.Errorf("expected 100%% share, got %v", row.Percentage)
	}
	if row.AvgConfidence != 0.85 {
		t.Errorf("expected avg confidence 0.85, got %v", row.AvgConfidence)
	}
	if row.Safety != policy.TierCaution {
		t.Errorf("expected Caution tier, got %s", row.Safety)
	}
	if verdict.Verdict != policy.TierCaution {
		t.Errorf("expected Caution verdict, got %s", verdict.Verdict)
	}
	if verdict.Reason != "One or more cautionary classes detected." {
		t.Errorf("unexpected reason %q", verdict.Reason)
	}
}

func TestAggregateDominantUnsafeClass(t *testing.T) {
	// 2 copepod out of 8 is a 25% share, above the 20% threshold.
	detections := []Detection{
		det("rotifer", 0.9), det("rotifer", 0.9), det("rotifer", 0.9),
		det("rotifer", 0.9), det("rotifer", 0.9), det("rotifer", 0.9),
		det("copepod", 0.7), det("copepod", 0.8),
	}

	perClass, verdict := Aggregate(detections, policy.Default())

	if verdict.Verdict != policy.TierUnsafe {
		t.Fatalf("expected Unsafe verdict, got %s", verdict.Verdict)
	}
	if verdict.Reason != "Multiple or dominant unsafe classes detected." {
		t.Errorf("unexpected reason %q", verdict.Reason)
	}
	if perClass[0].Class != "rotifer" {
		t.Errorf("expected rotifer first (highest count), got %s", perClass[0].Class)
	}
	if perClass[1].Percentage != 25.0 {
		t.Errorf("expected 25%% copepod share, got %v", perClass[1].Percentage)
	}
}

func TestAggregateMultipleUnsafeClasses(t *testing.T) {
	pol := &policy.Policy{
		Tiers: map[string]policy.Tier{
			"cyanobacteria": policy.TierUnsafe,
			"copepod":       policy.TierUnsafe,
		},
		MaxUnsafeClasses:   1,
		UnsafeSharePercent: 20.0,
	}

	// Each unsafe class holds only a 10% share, but two distinct unsafe
	// classes exceed the tolerated count.
	detections := []Detection{det("cyanobacteria", 0.9), det("copepod", 0.9)}
	for i := 0; i < 8; i++ {
		detections = append(detections, det("diatom", 0.9))
	}

	_, verdict := Aggregate(detections, pol)
	if verdict.Verdict != policy.TierUnsafe {
		t.Errorf("expected Unsafe verdict, got %s", verdict.Verdict)
	}
}

func TestAggregateSafeOnly(t *testing.T) {
	detections := []Detection{det("diatom", 0.9), det("diatom", 0.6)}

	_, verdict := Aggregate(detections, policy.Default())
	if verdict.Verdict != policy.TierSafe {
		t.Errorf("expected Safe verdict, got %s", verdict.Verdict)
	}
	if verdict.Reason != "No concerning classes detected." {
		t.Errorf("unexpected reason %q", verdict.Reason)
	}
}

func TestAggregateUnknownClassDefaultsSafe(t *testing.T) {
	perClass, verdict := Aggregate([]Detection{det("tardigrade", 0.9)}, policy.Default())

	if perClass[0].Safety != policy.TierSafe {
		t.Errorf("expected unknown class to be Safe, got %s", perClass[0].Safety)
	}
	if verdict.Verdict != policy.TierSafe {
		t.Errorf("expected Safe verdict, got %s", verdict.Verdict)
	}
}

func TestAggregatePercentagesSum(t *testing.T) {
	detections := []Detection{
		det("diatom", 0.9), det("diatom", 0.8), det("rotifer", 0.7),
		det("algae", 0.6), det("copepod", 0.5), det("diatom", 0.4),
	}

	perClass, _ := Aggregate(detections, policy.Default())

	sum := 0.0
	for _, row := range perClass {
		sum += row.Percentage
	}
	if math.Abs(sum-100.0) > 0.5 {
		t.Errorf("percentages sum to %v, expected ~100", sum)
	}
}

func TestAggregateOrdering(t *testing.T) {
	// Equal counts break the tie on average confidence.
	detections := []Detection{
		det("diatom", 0.6), det("diatom", 0.6),
		det("algae", 0.9), det("algae", 0.9),
		det("rotifer", 0.5),
	}

	perClass, _ := Aggregate(detections, policy.Default())

	if len(perClass) != 3 {
		t.Fatalf("expected 3 classes, got %d", len(perClass))
	}
	if perClass[0].Class != "algae" || perClass[1].Class != "diatom" || perClass[2].Class != "rotifer" {
		t.Errorf("unexpected order: %s, %s, %s", perClass[0].Class, perClass[1].Class, perClass[2].Class)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	detections := []Detection{
		det("diatom", 0.9), det("rotifer", 0.7), det("copepod", 0.5), det("diatom", 0.8),
	}
	pol := policy.Default()

	stats1, verdict1 := Aggregate(detections, pol)
	stats2, verdict2 := Aggregate(detections, pol)

	if !reflect.DeepEqual(stats1, stats2) {
		t.Errorf("per-class stats differ between runs:\n%v\n%v", stats1, stats2)
	}
	if verdict1 != verdict2 {
		t.Errorf("verdicts differ between runs: %v vs %v", verdict1, verdict2)
	}
}
