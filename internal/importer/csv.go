// Package importer decodes voter registration files into candidate voter
// records. Decoding is permissive: unknown columns are ignored and values
// that do not parse are left absent for the normalizer to default.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"voterfield/internal/domain"
)

// ErrTooManyRows is returned when a file exceeds Options.MaxRows.
var ErrTooManyRows = errors.New("too many rows")

type Options struct {
	// MaxRows caps data rows; 0 means unlimited.
	MaxRows int
}

type field int

const (
	fExternalID field = iota
	fFirstName
	fMiddleName
	fLastName
	fSuffix
	fAge
	fGender
	fRace
	fParty
	fPhone
	fAddress
	fUnit
	fCity
	fState
	fZip
	fLat
	fLng
)

var aliases = map[string]field{
	"reg_number":        fExternalID,
	"registration_no":   fExternalID,
	"voter_id":          fExternalID,
	"external_id":       fExternalID,
	"externalid":        fExternalID,
	"first_name":        fFirstName,
	"firstname":         fFirstName,
	"first":             fFirstName,
	"middle_name":       fMiddleName,
	"middlename":        fMiddleName,
	"last_name":         fLastName,
	"lastname":          fLastName,
	"last":              fLastName,
	"suffix":            fSuffix,
	"name_suffix":       fSuffix,
	"age":               fAge,
	"gender":            fGender,
	"sex":               fGender,
	"race":              fRace,
	"party":             fParty,
	"party_code":        fParty,
	"phone":             fPhone,
	"phone_number":      fPhone,
	"address":           fAddress,
	"address_line1":     fAddress,
	"street":            fAddress,
	"residence_address": fAddress,
	"unit":              fUnit,
	"apt":               fUnit,
	"address_line2":     fUnit,
	"city":              fCity,
	"residence_city":    fCity,
	"state":             fState,
	"zip":               fZip,
	"zip_code":          fZip,
	"postal_code":       fZip,
	"lat":               fLat,
	"latitude":          fLat,
	"lng":               fLng,
	"lon":               fLng,
	"longitude":         fLng,
}

// CleanHeader reduces a header cell to its lookup key. Some registration
// exports describe columns as "NAME,TYPE,WIDTH,SCALE"; only the name is kept.
func CleanHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	if i := strings.IndexByte(h, ','); i >= 0 {
		h = h[:i]
	}
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

// ParseVoters reads a CSV with a header row. Rows whose cells are all empty
// are skipped. A file without a recognized column is rejected.
func ParseVoters(r io.Reader, opts Options) ([]domain.VoterFields, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, domain.BadRequest("file is empty")
	}
	if err != nil {
		return nil, domain.BadRequest("invalid csv header: %v", err)
	}
	columns := make(map[int]field, len(header))
	for i, h := range header {
		if f, ok := aliases[CleanHeader(h)]; ok {
			columns[i] = f
		}
	}
	if len(columns) == 0 {
		return nil, domain.BadRequest("no recognized columns in header")
	}

	var out []domain.VoterFields
	line := 1
	for {
		rec, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.BadRequest("line %d: %v", line, err)
		}
		v, ok := decodeRow(rec, columns)
		if !ok {
			continue
		}
		if opts.MaxRows > 0 && len(out) >= opts.MaxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, opts.MaxRows)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeRow(rec []string, columns map[int]field) (domain.VoterFields, bool) {
	var (
		v        domain.VoterFields
		lat, lng *float64
		nonEmpty bool
	)
	for i, raw := range rec {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		nonEmpty = true
		f, ok := columns[i]
		if !ok {
			continue
		}
		s := val
		switch f {
		case fExternalID:
			v.ExternalID = &s
		case fFirstName:
			v.FirstName = &s
		case fMiddleName:
			v.MiddleName = &s
		case fLastName:
			v.LastName = &s
		case fSuffix:
			v.Suffix = &s
		case fAge:
			if n, err := strconv.Atoi(val); err == nil {
				v.Age = &n
			}
		case fGender:
			v.Gender = &s
		case fRace:
			v.Race = &s
		case fParty:
			v.Party = &s
		case fPhone:
			v.Phone = &s
		case fAddress:
			v.Address = &s
		case fUnit:
			v.Unit = &s
		case fCity:
			v.City = &s
		case fState:
			v.State = &s
		case fZip:
			v.Zip = &s
		case fLat:
			if n, err := strconv.ParseFloat(val, 64); err == nil {
				lat = &n
			}
		case fLng:
			if n, err := strconv.ParseFloat(val, 64); err == nil {
				lng = &n
			}
		}
	}
	if lat != nil && lng != nil {
		v.Geom = &domain.GeoPoint{Lat: *lat, Lng: *lng}
	}
	return v, nonEmpty
}
