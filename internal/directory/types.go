// Package directory is the read-only provider directory.
package directory

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable marks a transient directory failure. Callers may retry.
var ErrUnavailable = errors.New("directory: unavailable")

// Verification states.
const (
	VerificationVerified = "verified"
	VerificationPending  = "pending"
	VerificationRejected = "rejected"
)

// ProviderCandidate is a clinician as the directory reports it.
type ProviderCandidate struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Specialties          []string `json:"specialties"`
	Conditions           []string `json:"conditions,omitempty"`
	Rating               float64  `json:"rating"`
	ReviewCount          int      `json:"review_count"`
	Languages            []string `json:"languages,omitempty"`
	Modalities           []string `json:"modalities,omitempty"`
	TimeZone             string   `json:"time_zone,omitempty"`
	ConsultationFee      float64  `json:"consultation_fee"`
	AcceptsInsurance     bool     `json:"accepts_insurance"`
	AcceptingNewPatients bool     `json:"accepting_new_patients"`
	VerificationStatus   string   `json:"verification_status"`
}

// HasSpecialty reports a case-insensitive specialty match.
func (p ProviderCandidate) HasSpecialty(specialty string) bool {
	return containsFold(p.Specialties, specialty)
}

// SpeaksLanguage reports a case-insensitive language match.
func (p ProviderCandidate) SpeaksLanguage(language string) bool {
	return containsFold(p.Languages, language)
}

// Query is a set of filters. Nil pointers and empty strings mean "no filter".
type Query struct {
	Specialty        string
	Language         string
	Condition        string
	TimeZone         string
	ConsultationType string
	MinFee           *float64
	MaxFee           *float64
	AcceptsInsurance *bool
	MinRating        *float64
	VerifiedOnly     bool
	AcceptingOnly    bool
	Limit            int
}

// Directory finds providers matching a query, best rated first.
type Directory interface {
	Find(ctx context.Context, q Query) ([]ProviderCandidate, error)
}

// Lookup loads a single provider. Unknown ids return (nil, nil).
type Lookup interface {
	Get(ctx context.Context, id string) (*ProviderCandidate, error)
}

// Matches applies q to a single candidate.
func (q Query) Matches(p ProviderCandidate) bool {
	if q.Specialty != "" && !p.HasSpecialty(q.Specialty) {
		return false
	}
	if q.VerifiedOnly && p.VerificationStatus != VerificationVerified {
		return false
	}
	if q.AcceptingOnly && !p.AcceptingNewPatients {
		return false
	}
	if q.Language != "" && !p.SpeaksLanguage(q.Language) {
		return false
	}
	if q.Condition != "" && !containsFold(p.Conditions, q.Condition) {
		return false
	}
	if q.TimeZone != "" && !strings.EqualFold(p.TimeZone, q.TimeZone) {
		return false
	}
	if q.ConsultationType != "" && !containsFold(p.Modalities, q.ConsultationType) {
		return false
	}
	if q.MinFee != nil && p.ConsultationFee < *q.MinFee {
		return false
	}
	if q.MaxFee != nil && p.ConsultationFee > *q.MaxFee {
		return false
	}
	if q.AcceptsInsurance != nil && *q.AcceptsInsurance && !p.AcceptsInsurance {
		return false
	}
	if q.MinRating != nil && p.Rating < *q.MinRating {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}
