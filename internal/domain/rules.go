package domain

// assignmentTransitions lists the status moves an admin or the assigned
// canvasser may request explicitly.
var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentAssigned:   {AssignmentInProgress, AssignmentCompleted},
	AssignmentInProgress: {AssignmentCompleted, AssignmentAssigned},
	AssignmentCompleted:  {AssignmentInProgress},
}

func CanTransition(from, to AssignmentStatus) bool {
	for _, s := range assignmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Voter fields a partial update may touch. Identity and tenancy columns are
// not in this set.
var UpdatableVoterFields = []string{
	"firstName", "middleName", "lastName", "suffix", "age", "gender", "race", "party",
	"phone", "address", "unit", "city", "state", "zip", "geom",
}

// ChangedFields names the fields present in f, in UpdatableVoterFields order.
func (f VoterFields) ChangedFields() []string {
	present := map[string]bool{
		"firstName":  f.FirstName != nil,
		"middleName": f.MiddleName != nil,
		"lastName":   f.LastName != nil,
		"suffix":     f.Suffix != nil,
		"age":        f.Age != nil,
		"gender":     f.Gender != nil,
		"race":       f.Race != nil,
		"party":      f.Party != nil,
		"phone":      f.Phone != nil,
		"address":    f.Address != nil,
		"unit":       f.Unit != nil,
		"city":       f.City != nil,
		"state":      f.State != nil,
		"zip":        f.Zip != nil,
		"geom":       f.Geom != nil,
	}
	var out []string
	for _, name := range UpdatableVoterFields {
		if present[name] {
			out = append(out, name)
		}
	}
	return out
}

// Apply merges the present fields of f onto v.
func (f VoterFields) Apply(v *Voter) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&v.FirstName, f.FirstName)
	set(&v.MiddleName, f.MiddleName)
	set(&v.LastName, f.LastName)
	set(&v.Suffix, f.Suffix)
	if f.Age != nil {
		age := *f.Age
		v.Age = &age
	}
	set(&v.Gender, f.Gender)
	set(&v.Race, f.Race)
	set(&v.Party, f.Party)
	set(&v.Phone, f.Phone)
	set(&v.Address, f.Address)
	set(&v.Unit, f.Unit)
	set(&v.City, f.City)
	set(&v.State, f.State)
	set(&v.Zip, f.Zip)
	if f.Geom != nil {
		v.Geom = *f.Geom
	}
}
