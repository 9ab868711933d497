package importer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voterfield/internal/domain"
)

func TestCleanHeader(t *testing.T) {
	cases := map[string]string{
		"REG_NUMBER,N,10,0": "reg_number",
		"  First Name ":     "first_name",
		"\ufeffZip-Code":    "zip_code",
		"lat":               "lat",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanHeader(in), in)
	}
}

func TestParseVotersMapsAliases(t *testing.T) {
	data := `"REG_NUMBER,N,10,0","FIRSTNAME,C,20",LAST_NAME,Street,City,Party,Age,Lat,Lon,Ignored
1001,Ana,Diaz,"12 Elm St, Apt 2",Baton Rouge,DEM,44,30.45,-91.18,x
1002,Bo,,9 Oak Ave,,,not-a-number,30.1,,y
,,,,,,,,,
`
	got, err := ParseVoters(strings.NewReader(data), Options{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "1001", *first.ExternalID)
	assert.Equal(t, "Ana", *first.FirstName)
	assert.Equal(t, "Diaz", *first.LastName)
	assert.Equal(t, "12 Elm St, Apt 2", *first.Address)
	assert.Equal(t, "Baton Rouge", *first.City)
	assert.Equal(t, "DEM", *first.Party)
	assert.Equal(t, 44, *first.Age)
	require.NotNil(t, first.Geom)
	assert.Equal(t, domain.GeoPoint{Lat: 30.45, Lng: -91.18}, *first.Geom)

	second := got[1]
	assert.Nil(t, second.LastName)
	assert.Nil(t, second.City)
	assert.Nil(t, second.Age, "unparseable age is left absent")
	assert.Nil(t, second.Geom, "a lone latitude is not a point")
}

func TestParseVotersRejectsUnusableFiles(t *testing.T) {
	_, err := ParseVoters(strings.NewReader(""), Options{})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	_, err = ParseVoters(strings.NewReader("foo,bar\n1,2\n"), Options{})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestParseVotersHeaderOnly(t *testing.T) {
	got, err := ParseVoters(strings.NewReader("first_name,last_name\n"), Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseVotersMaxRows(t *testing.T) {
	data := "first_name\na\nb\nc\n"
	_, err := ParseVoters(strings.NewReader(data), Options{MaxRows: 2})
	assert.True(t, errors.Is(err, ErrTooManyRows))

	got, err := ParseVoters(strings.NewReader(data), Options{MaxRows: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
