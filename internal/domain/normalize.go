package domain

import "strings"

// Defaults applied to imported records.
const (
	DefaultName  = "Unknown"
	DefaultCity  = "Unknown"
	DefaultState = "LA"
	DefaultParty = "Unenrolled"
)

func val(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func orDefault(p *string, def string) string {
	if v := val(p); v != "" {
		return v
	}
	return def
}

// NormalizeImported turns a permissive import record into a full voter.
// Nothing is rejected: missing fields take defaults, a missing external id
// takes the synthesized one, and a missing location becomes {0,0}.
func NormalizeImported(f VoterFields, orgID, id, syntheticExternalID string) Voter {
	v := Voter{
		ID:         id,
		OrgID:      orgID,
		ExternalID: orDefault(f.ExternalID, syntheticExternalID),
		FirstName:  orDefault(f.FirstName, DefaultName),
		MiddleName: val(f.MiddleName),
		LastName:   orDefault(f.LastName, DefaultName),
		Suffix:     val(f.Suffix),
		Gender:     val(f.Gender),
		Race:       val(f.Race),
		Party:      orDefault(f.Party, DefaultParty),
		Phone:      val(f.Phone),
		Address:    orDefault(f.Address, DefaultName),
		Unit:       val(f.Unit),
		City:       orDefault(f.City, DefaultCity),
		State:      orDefault(f.State, DefaultState),
		Zip:        val(f.Zip),
	}
	if f.Age != nil && *f.Age >= 0 {
		age := *f.Age
		v.Age = &age
	}
	if f.Geom != nil && f.Geom.Valid() {
		v.Geom = *f.Geom
	}
	return v
}
