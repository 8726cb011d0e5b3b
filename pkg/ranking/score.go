// Package ranking computes the composite trending score of a video from its
// view history. Everything here is pure: callers pass the clock in.
package ranking

import (
	"math"
	"sort"
	"time"
)

const (
	WeightVelocity   = 0.4
	WeightTotalViews = 0.25
	WeightFreshness  = 0.2
	WeightEngagement = 0.15

	// VelocityCeiling is the views/hour treated as a full velocity score
	VelocityCeiling = 10000.0

	// FreshnessHalfLife - the freshness component halves every 48h
	FreshnessHalfLife = 48 * time.Hour

	// EngagementCap - comment/view ratios above 10% score the same
	EngagementCap = 0.1

	// MaxSnapshots is how much history a single computation looks at
	MaxSnapshots = 50

	// VelocityWindow - snapshots inside it are preferred for velocity
	VelocityWindow = 24 * time.Hour
)

// Sample is one point of a video's view counter
type Sample struct {
	Views int64
	At    time.Time
}

// Input is everything the score depends on
type Input struct {
	Views       int64
	Comments    int64
	PublishedAt *time.Time
	CreatedAt   time.Time
	Samples     []Sample // any order
}

// Breakdown keeps the normalized components next to the weighted total
type Breakdown struct {
	Velocity   float64
	TotalViews float64
	Freshness  float64
	Engagement float64
	Score      float64
}

// Score computes the weighted sum of the four components
func Score(in Input, now time.Time) Breakdown {
	b := Breakdown{
		Velocity:   Velocity(in.Samples, now),
		TotalViews: TotalViews(in.Views),
		Freshness:  Freshness(referenceTime(in), now),
		Engagement: Engagement(in.Comments, in.Views),
	}
	b.Score = WeightVelocity*b.Velocity +
		WeightTotalViews*b.TotalViews +
		WeightFreshness*b.Freshness +
		WeightEngagement*b.Engagement
	return b
}

func referenceTime(in Input) time.Time {
	if in.PublishedAt != nil {
		return *in.PublishedAt
	}
	return in.CreatedAt
}

// Velocity is views gained per hour divided by VelocityCeiling, clamped to
// [0,1]. It uses the earliest and latest samples from the last 24h when at
// least two exist, otherwise the oldest and newest of all given samples.
func Velocity(samples []Sample, now time.Time) float64 {
	if len(samples) < 2 {
		return 0
	}

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })
	if len(sorted) > MaxSnapshots {
		sorted = sorted[len(sorted)-MaxSnapshots:]
	}

	cutoff := now.Add(-VelocityWindow)
	start := sort.Search(len(sorted), func(i int) bool { return !sorted[i].At.Before(cutoff) })
	window := sorted[start:]
	if len(window) < 2 {
		window = sorted
	}

	earliest, latest := window[0], window[len(window)-1]
	hours := latest.At.Sub(earliest.At).Hours()
	if hours <= 0 {
		return 0
	}

	perHour := float64(latest.Views-earliest.Views) / hours
	// counters are sampled without a transaction; a dip is noise, not negative velocity
	if perHour <= 0 {
		return 0
	}
	return math.Min(perHour/VelocityCeiling, 1)
}

// TotalViews is log10(max(views,1))/10. Not clamped above 1.
func TotalViews(views int64) float64 {
	if views < 1 {
		views = 1
	}
	return math.Log10(float64(views)) / 10
}

// Freshness decays with a 48h half-life from ref. Future timestamps count as age 0.
func Freshness(ref, now time.Time) float64 {
	ageHours := now.Sub(ref).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-(ageHours / FreshnessHalfLife.Hours()) * math.Ln2)
}

// Engagement is min(comments/views, 0.1)*10, or 0 without views
func Engagement(comments, views int64) float64 {
	if views <= 0 || comments <= 0 {
		return 0
	}
	return math.Min(float64(comments)/float64(views), EngagementCap) * 10
}
