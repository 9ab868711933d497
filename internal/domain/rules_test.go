package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to AssignmentStatus
		ok       bool
	}{
		{AssignmentAssigned, AssignmentInProgress, true},
		{AssignmentAssigned, AssignmentCompleted, true},
		{AssignmentInProgress, AssignmentCompleted, true},
		{AssignmentInProgress, AssignmentAssigned, true},
		{AssignmentCompleted, AssignmentInProgress, true},
		{AssignmentCompleted, AssignmentAssigned, false},
		{AssignmentAssigned, AssignmentAssigned, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestVoterFieldsApplyAndChanged(t *testing.T) {
	city := "Baton Rouge"
	age := 41
	geom := GeoPoint{Lat: 30.45, Lng: -91.18}
	f := VoterFields{City: &city, Age: &age, Geom: &geom}

	assert.Equal(t, []string{"age", "city", "geom"}, f.ChangedFields())

	v := Voter{FirstName: "Ann", LastName: "Lee", Address: "1 Main", City: "Old"}
	f.Apply(&v)
	assert.Equal(t, "Baton Rouge", v.City)
	assert.Equal(t, "Ann", v.FirstName)
	require.NotNil(t, v.Age)
	assert.Equal(t, 41, *v.Age)
	assert.Equal(t, geom, v.Geom)

	age = 50
	assert.Equal(t, 41, *v.Age, "apply copies the age value")
}

func TestErrorKindsMatch(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("voter"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrBadRequest))
	assert.Equal(t, "voter not found", errors.Unwrap(err).Error())

	var de *Error
	require.True(t, errors.As(BadRequest("missing %s", "name"), &de))
	assert.Equal(t, KindBadRequest, de.Kind)
	assert.Equal(t, "missing name", de.Msg)
}
