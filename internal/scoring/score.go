// Package scoring computes provider-to-request compatibility.
package scoring

import (
	"math"
	"sort"
	"strings"
)

// Weights configures one call site. A zero weight removes the component
// from both the numerator and the denominator.
type Weights struct {
	Specialty    float64
	Rating       float64
	Language     float64
	Availability float64
	Preference   float64
	Urgency      float64
}

var (
	// SearchWeights ranks patient search results.
	SearchWeights = Weights{Specialty: 40, Rating: 25, Language: 15, Availability: 15, Urgency: 5}
	// WaitlistWeights ranks (provider, slot) pairs for a queued request.
	WaitlistWeights = Weights{Specialty: 35, Rating: 20, Language: 15, Availability: 10, Preference: 15, Urgency: 5}
	// ShiftApplicationWeights ranks specialists applying for a shift.
	ShiftApplicationWeights = Weights{Specialty: 45, Rating: 35, Language: 10, Availability: 0, Urgency: 10}
)

// Factors describes one candidate against one request.
type Factors struct {
	CandidateID string

	SpecialtyMatch bool
	Rating         float64

	// LanguageRequested is false when the request has no language; the
	// language component is then not applicable.
	LanguageRequested bool
	LanguageMatch     bool

	// DaysUntilAvailable is nil when no open slot is known.
	DaysUntilAvailable *float64

	PreferenceRequested bool
	PreferenceMatch     bool

	Urgent bool
}

// Breakdown holds each normalized component in [0,1].
type Breakdown struct {
	Specialty    float64 `json:"specialty"`
	Rating       float64 `json:"rating"`
	Language     float64 `json:"language"`
	Availability float64 `json:"availability"`
	Preference   float64 `json:"preference"`
	Urgency      float64 `json:"urgency"`
}

// MatchScore is the derived result for one candidate.
type MatchScore struct {
	CandidateID string    `json:"candidate_id"`
	Score       float64   `json:"score"`
	Breakdown   Breakdown `json:"breakdown"`
}

// AvailabilityStep maps days until the next open slot to [0,1].
func AvailabilityStep(days *float64) float64 {
	if days == nil || *days < 0 {
		return 0
	}
	switch d := *days; {
	case d <= 1:
		return 1.0
	case d <= 3:
		return 0.6
	case d <= 7:
		return 0.3
	default:
		return 0
	}
}

// Score is pure; equal inputs always give equal output.
func Score(f Factors, w Weights) MatchScore {
	b := Breakdown{
		Specialty:    boolScore(f.SpecialtyMatch),
		Rating:       clamp(f.Rating, 0, 5) / 5,
		Availability: AvailabilityStep(f.DaysUntilAvailable),
	}
	if f.LanguageRequested {
		b.Language = boolScore(f.LanguageMatch)
	}
	if f.PreferenceRequested {
		b.Preference = boolScore(f.PreferenceMatch)
	}
	if f.Urgent {
		b.Urgency = b.Availability
	}

	var num, den float64
	add := func(weight, value float64, applicable bool) {
		if !applicable || weight <= 0 {
			return
		}
		num += weight * value
		den += weight
	}
	add(w.Specialty, b.Specialty, true)
	add(w.Rating, b.Rating, true)
	add(w.Language, b.Language, f.LanguageRequested)
	add(w.Availability, b.Availability, true)
	add(w.Preference, b.Preference, f.PreferenceRequested)
	add(w.Urgency, b.Urgency, f.Urgent)

	total := 0.0
	if den > 0 {
		total = round2(100 * num / den)
	}
	return MatchScore{CandidateID: f.CandidateID, Score: total, Breakdown: b}
}

// Ranked pairs a score with the tie-break inputs.
type Ranked struct {
	MatchScore
	Rating             float64
	DaysUntilAvailable *float64
}

// Rank orders by score desc, earliest availability, rating desc, then id.
func Rank(items []Ranked) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		da, db := days(a.DaysUntilAvailable), days(b.DaysUntilAvailable)
		if da != db {
			return da < db
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return strings.Compare(a.CandidateID, b.CandidateID) < 0
	})
}

func days(d *float64) float64 {
	if d == nil {
		return math.Inf(1)
	}
	return *d
}

func boolScore(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
