package policy

import (
	"encoding/json"
	"fmt"
	"os"
)

// Tier is the categorical risk level assigned to a detected class.
type Tier string

const (
	TierSafe    Tier = "Safe"
	TierCaution Tier = "Caution"
	TierUnsafe  Tier = "Unsafe"
)

// Descriptions maps each tier to operator-facing guidance text.
var Descriptions = map[Tier]string{
	TierSafe:    "No immediate concern detected for this class.",
	TierCaution: "Presence of this class may indicate moderate contamination; review recommended.",
	TierUnsafe:  "High-risk organism detected. Immediate action recommended.",
}

// Policy maps class labels to safety tiers and carries the escalation
// thresholds used to derive an overall verdict. It is configuration, loaded
// once at startup and treated as read-only afterwards.
type Policy struct {
	// Tiers maps a class label to its tier. Unknown labels are Safe.
	Tiers map[string]Tier `json:"tiers"`

	// MaxUnsafeClasses is the number of distinct unsafe classes tolerated
	// before the overall verdict escalates to Unsafe.
	MaxUnsafeClasses int `json:"max_unsafe_classes"`

	// UnsafeSharePercent escalates to Unsafe when any single unsafe class
	// exceeds this share of total detections.
	UnsafeSharePercent float64 `json:"unsafe_share_percent"`
}

// Default returns the built-in policy for the demo organism set.
func Default() *Policy {
	return &Policy{
		Tiers: map[string]Tier{
			"diatom":  TierSafe,
			"rotifer": TierCaution,
			"copepod": TierUnsafe,
			"algae":   TierCaution,
		},
		MaxUnsafeClasses:   1,
		UnsafeSharePercent: 20.0,
	}
}

// Load reads a policy from a JSON file. A tiers key replaces the built-in
// map entirely; escalation thresholds missing from the file keep their
// defaults.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read safety policy: %w", err)
	}

	var file struct {
		Tiers              map[string]Tier `json:"tiers"`
		MaxUnsafeClasses   *int            `json:"max_unsafe_classes"`
		UnsafeSharePercent *float64        `json:"unsafe_share_percent"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse safety policy: %w", err)
	}

	p := Default()
	if file.Tiers != nil {
		p.Tiers = file.Tiers
	}
	if file.MaxUnsafeClasses != nil {
		p.MaxUnsafeClasses = *file.MaxUnsafeClasses
	}
	if file.UnsafeSharePercent != nil {
		p.UnsafeSharePercent = *file.UnsafeSharePercent
	}
	if len(p.Tiers) == 0 {
		return nil, fmt.Errorf("safety policy %s defines no tiers", path)
	}
	for class, tier := range p.Tiers {
		switch tier {
		case TierSafe, TierCaution, TierUnsafe:
		default:
			return nil, fmt.Errorf("safety policy %s: unknown tier %q for class %q", path, tier, class)
		}
	}
	return p, nil
}

// TierFor returns the tier for a class label, defaulting to Safe for labels
// the policy does not know about.
func (p *Policy) TierFor(class string) Tier {
	if t, ok := p.Tiers[class]; ok {
		return t
	}
	return TierSafe
}

// Describe returns the guidance text for a tier.
func Describe(t Tier) string {
	return Descriptions[t]
}
