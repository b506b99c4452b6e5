// Package search turns a patient search request into a ranked, never
// silently empty list of specialists.
package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/telehealth-coordination/internal/directory"
)

var (
	ErrMissingSpecialty = errors.New("search: specialty is required")
	ErrInvalidRequest   = errors.New("search: invalid request")
)

// Request is one patient search. It is never mutated after validation.
type Request struct {
	Specialty        string   `json:"specialty"`
	Language         string   `json:"language,omitempty"`
	Condition        string   `json:"condition,omitempty"`
	TimeZone         string   `json:"timeZone,omitempty"`
	ConsultationType string   `json:"consultationType,omitempty"`
	MinFee           *float64 `json:"minFee,omitempty"`
	MaxFee           *float64 `json:"maxFee,omitempty"`
	AcceptsInsurance *bool    `json:"acceptsInsurance,omitempty"`
	MinRating        *float64 `json:"minRating,omitempty"`
	VerifiedOnly     *bool    `json:"verifiedOnly,omitempty"`
	Urgent           bool     `json:"urgent,omitempty"`
}

var consultationTypes = map[string]bool{"video": true, "phone": true, "chat": true, "in_person": true}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Specialty) == "" {
		return ErrMissingSpecialty
	}
	if r.ConsultationType != "" && !consultationTypes[strings.ToLower(r.ConsultationType)] {
		return fmt.Errorf("%w: consultationType %q", ErrInvalidRequest, r.ConsultationType)
	}
	if r.MinRating != nil && (*r.MinRating < 0 || *r.MinRating > 5) {
		return fmt.Errorf("%w: minRating must be between 0 and 5", ErrInvalidRequest)
	}
	if r.MinFee != nil && r.MaxFee != nil && *r.MinFee > *r.MaxFee {
		return fmt.Errorf("%w: minFee exceeds maxFee", ErrInvalidRequest)
	}
	return nil
}

// normalized trims strings so equivalent requests share a cache key.
func (r Request) normalized() Request {
	r.Specialty = strings.TrimSpace(r.Specialty)
	r.Language = strings.TrimSpace(r.Language)
	r.Condition = strings.TrimSpace(r.Condition)
	r.TimeZone = strings.TrimSpace(r.TimeZone)
	r.ConsultationType = strings.ToLower(strings.TrimSpace(r.ConsultationType))
	return r
}

// baseQuery is the exact-level query. Verification and accepting-patients
// are always enforced; verifiedOnly=false cannot loosen them.
func (r Request) baseQuery(limit int) directory.Query {
	return directory.Query{
		Specialty:        r.Specialty,
		Language:         r.Language,
		Condition:        r.Condition,
		TimeZone:         r.TimeZone,
		ConsultationType: r.ConsultationType,
		MinFee:           r.MinFee,
		MaxFee:           r.MaxFee,
		AcceptsInsurance: r.AcceptsInsurance,
		MinRating:        r.MinRating,
		VerifiedOnly:     true,
		AcceptingOnly:    true,
		Limit:            limit,
	}
}
