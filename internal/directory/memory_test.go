package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDirectoryFiltersAndOrders(t *testing.T) {
	dir := NewInMemoryDirectory(
		ProviderCandidate{ID: "c", Specialties: []string{"cardiology"}, Rating: 4.2, AcceptingNewPatients: true, VerificationStatus: VerificationVerified},
		ProviderCandidate{ID: "a", Specialties: []string{"Cardiology"}, Rating: 4.8, AcceptingNewPatients: true, VerificationStatus: VerificationVerified},
		ProviderCandidate{ID: "b", Specialties: []string{"Cardiology"}, Rating: 4.8, AcceptingNewPatients: true, VerificationStatus: VerificationPending},
		ProviderCandidate{ID: "d", Specialties: []string{"Cardiology"}, Rating: 5.0, AcceptingNewPatients: false, VerificationStatus: VerificationVerified},
	)

	got, err := dir.Find(context.Background(), Query{Specialty: "CARDIOLOGY", VerifiedOnly: true, AcceptingOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	got, err = dir.Find(context.Background(), Query{Specialty: "Cardiology", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d", got[0].ID)
}

func TestQueryMatchesInsuranceAndFees(t *testing.T) {
	yes := true
	maxFee := 100.0
	p := ProviderCandidate{Specialties: []string{"Dermatology"}, ConsultationFee: 120}
	assert.False(t, Query{AcceptsInsurance: &yes}.Matches(p))
	assert.False(t, Query{MaxFee: &maxFee}.Matches(p))
	assert.True(t, Query{Specialty: "dermatology"}.Matches(p))
}

func TestQueryMatchesModalityIgnoresCase(t *testing.T) {
	p := ProviderCandidate{Specialties: []string{"Dermatology"}, Modalities: []string{"Video"}}
	assert.True(t, Query{ConsultationType: "video"}.Matches(p))
	assert.True(t, Query{ConsultationType: "VIDEO"}.Matches(p))
	assert.False(t, Query{ConsultationType: "phone"}.Matches(p))
}

func TestInMemoryDirectoryError(t *testing.T) {
	dir := NewInMemoryDirectory()
	dir.SetError(ErrUnavailable)
	_, err := dir.Find(context.Background(), Query{})
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestInMemoryDirectoryGet(t *testing.T) {
	dir := NewInMemoryDirectory(ProviderCandidate{ID: "a", Rating: 4})
	p, err := dir.Get(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 4.0, p.Rating)

	p, err = dir.Get(context.Background(), "zz")
	require.NoError(t, err)
	assert.Nil(t, p)
}
