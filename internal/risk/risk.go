// Package risk buckets road-safety statistics into severity categories.
//
// Classification is threshold-based and ordered: rules are checked from the
// most severe category down, and the first rule whose floor is met wins.
// Anything that matches no rule lands in the least severe category, so every
// non-negative input maps to exactly one category.
package risk

import "fmt"

// Category is a named severity bucket.
type Category string

const (
	CategoryCritical Category = "critical"
	CategoryVeryHigh Category = "very_high"
	CategoryHigh     Category = "high"
	CategoryModerate Category = "moderate"
	CategoryMedium   Category = "medium"
	CategoryLow      Category = "low"
)

// Rule is one threshold in an ordered scale. An input matches when its count
// reaches MinCount, or, for scored classification, when its score reaches
// MinScore.
type Rule struct {
	Category Category
	MinCount int
	MinScore float64
}

// Thresholds is an ordered scale, most severe first. The final rule should
// have zero floors so it acts as the catch-all least-severe category.
type Thresholds []Rule

// AreaThresholds is the scale applied to area-level casualty hotspots.
// Counts are incidents per area per year; scores are the composite danger
// score (0-100) computed upstream.
var AreaThresholds = Thresholds{
	{Category: CategoryCritical, MinCount: 40, MinScore: 90},
	{Category: CategoryVeryHigh, MinCount: 25, MinScore: 75},
	{Category: CategoryHigh, MinCount: 15, MinScore: 50},
	{Category: CategoryModerate, MinCount: 5, MinScore: 25},
	{Category: CategoryLow, MinCount: 0, MinScore: 0},
}

// SchoolThresholds is the scale applied to incidents near schools.
var SchoolThresholds = Thresholds{
	{Category: CategoryHigh, MinCount: 10},
	{Category: CategoryMedium, MinCount: 5},
	{Category: CategoryLow, MinCount: 0},
}

// Classify returns the category for an incident count. The scan is ordered
// most to least severe; the first matching rule wins, and an input below
// every floor falls through to the last (least severe) category.
func (t Thresholds) Classify(count int) Category {
	for _, r := range t {
		if count >= r.MinCount {
			return r.Category
		}
	}
	return t.least()
}

// ClassifyScored is Classify with a second signal: a rule also matches when
// the score reaches its score floor. Either signal alone is enough, so a low
// count with a high composite score still escalates.
func (t Thresholds) ClassifyScored(count int, score float64) Category {
	for _, r := range t {
		if count >= r.MinCount || score >= r.MinScore {
			return r.Category
		}
	}
	return t.least()
}

func (t Thresholds) least() Category {
	if len(t) == 0 {
		return CategoryLow
	}
	return t[len(t)-1].Category
}

// Validate checks that the scale is usable: non-empty, floors strictly
// decreasing toward the final catch-all rule, and a zero-floor last rule.
// A scale that passes Validate makes Classify total and monotonic: raising
// the count (or score) never yields a less severe category.
func (t Thresholds) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("risk: empty threshold scale")
	}
	for i := 1; i < len(t); i++ {
		if t[i].MinCount >= t[i-1].MinCount {
			return fmt.Errorf("risk: rule %d count floor %d not below previous %d",
				i, t[i].MinCount, t[i-1].MinCount)
		}
		if t[i].MinScore > t[i-1].MinScore {
			return fmt.Errorf("risk: rule %d score floor %g above previous %g",
				i, t[i].MinScore, t[i-1].MinScore)
		}
	}
	last := t[len(t)-1]
	if last.MinCount != 0 || last.MinScore != 0 {
		return fmt.Errorf("risk: last rule %q must have zero floors", last.Category)
	}
	return nil
}

// ClassifyArea buckets an area hotspot by incident count alone.
func ClassifyArea(count int) Category {
	return AreaThresholds.Classify(count)
}

// ClassifyAreaScored buckets an area hotspot by count and composite score.
func ClassifyAreaScored(count int, score float64) Category {
	return AreaThresholds.ClassifyScored(count, score)
}

// ClassifySchool buckets a school by nearby incident count.
func ClassifySchool(count int) Category {
	return SchoolThresholds.Classify(count)
}
