package voters

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"voterfield/internal/domain"
	"voterfield/internal/ports"
	"voterfield/internal/services/audit"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Manually entered voters without a location are placed near this point,
// offset slightly so map markers do not stack.
var placeholder = domain.GeoPoint{Lat: 40.7128, Lng: -74.0060}

type Service struct {
	orgs   ports.OrgRepository
	voters ports.VoterRepository
	trail  *audit.Trail
	jitter func() float64
}

func New(orgs ports.OrgRepository, voters ports.VoterRepository, trail *audit.Trail) *Service {
	return &Service{orgs: orgs, voters: voters, trail: trail, jitter: rand.Float64}
}

// ListParams are the raw list inputs; nil means absent.
type ListParams struct {
	Search   string
	Party    string
	City     string
	NearLat  *float64
	NearLng  *float64
	RadiusKM *float64
	Limit    *int
	Offset   *int
}

func (p ListParams) filter() (domain.VoterFilter, error) {
	f := domain.VoterFilter{
		Search: strings.TrimSpace(p.Search),
		Party:  strings.TrimSpace(p.Party),
		City:   strings.TrimSpace(p.City),
		Limit:  DefaultLimit,
	}
	if p.Limit != nil {
		if *p.Limit < 1 || *p.Limit > MaxLimit {
			return f, domain.BadRequest("limit must be between 1 and %d", MaxLimit)
		}
		f.Limit = *p.Limit
	}
	if p.Offset != nil {
		if *p.Offset < 0 {
			return f, domain.BadRequest("offset must not be negative")
		}
		f.Offset = *p.Offset
	}
	set := 0
	for _, v := range []*float64{p.NearLat, p.NearLng, p.RadiusKM} {
		if v != nil {
			set++
		}
	}
	switch set {
	case 0:
	case 3:
		near := domain.GeoPoint{Lat: *p.NearLat, Lng: *p.NearLng}
		if !near.Valid() {
			return f, domain.BadRequest("near_lat/near_lng out of range")
		}
		if *p.RadiusKM <= 0 {
			return f, domain.BadRequest("radius_km must be positive")
		}
		f.Near, f.RadiusKM = &near, *p.RadiusKM
	default:
		return f, domain.BadRequest("near_lat, near_lng and radius_km must be given together")
	}
	return f, nil
}

func (s *Service) List(ctx context.Context, caller domain.Caller, p ListParams) ([]domain.Voter, error) {
	f, err := p.filter()
	if err != nil {
		return nil, err
	}
	return s.voters.ListVoters(ctx, caller.OrgID, f)
}

func (s *Service) Get(ctx context.Context, caller domain.Caller, voterID string) (domain.Voter, error) {
	if uuid.Validate(voterID) != nil {
		return domain.Voter{}, domain.NotFound("voter")
	}
	return s.voters.GetVoter(ctx, caller.OrgID, voterID)
}

func present(p *string) bool { return p != nil && strings.TrimSpace(*p) != "" }

func validate(f domain.VoterFields) error {
	if f.Age != nil && *f.Age < 0 {
		return domain.BadRequest("age must not be negative")
	}
	if f.Geom != nil && !f.Geom.Valid() {
		return domain.BadRequest("geom is out of range")
	}
	return nil
}

// Create stores a manually entered voter. First name, last name and
// address are required; optional fields stay empty.
func (s *Service) Create(ctx context.Context, caller domain.Caller, f domain.VoterFields) (domain.Voter, error) {
	if !present(f.FirstName) || !present(f.LastName) || !present(f.Address) {
		return domain.Voter{}, domain.BadRequest("firstName, lastName and address are required")
	}
	if err := validate(f); err != nil {
		return domain.Voter{}, err
	}
	org, err := s.orgs.GetOrg(ctx, caller.OrgID)
	if err != nil {
		return domain.Voter{}, err
	}
	if limit, ok := org.Limit(domain.LimitMaxVoters); ok {
		n, err := s.voters.CountVoters(ctx, caller.OrgID)
		if err != nil {
			return domain.Voter{}, err
		}
		if n >= limit {
			return domain.Voter{}, domain.Forbidden("Organization voter limit reached")
		}
	}

	v := domain.Voter{ID: uuid.NewString(), OrgID: caller.OrgID}
	f.Apply(&v)
	v.FirstName, v.LastName, v.Address = strings.TrimSpace(v.FirstName), strings.TrimSpace(v.LastName), strings.TrimSpace(v.Address)
	v.ExternalID = "MAN-" + uuid.NewString()
	if present(f.ExternalID) {
		v.ExternalID = strings.TrimSpace(*f.ExternalID)
	}
	if f.Geom == nil {
		v.Geom = domain.GeoPoint{
			Lat: placeholder.Lat + s.jitter()*0.01,
			Lng: placeholder.Lng + s.jitter()*0.01,
		}
	}

	created, err := s.voters.CreateVoter(ctx, v)
	if err != nil {
		return domain.Voter{}, err
	}
	s.trail.Log(ctx, "voter.create", caller.UserID, caller.OrgID, map[string]any{
		"voter_id": created.ID,
		"name":     created.FirstName + " " + created.LastName,
	})
	return created, nil
}

// Update merges the present fields. The audit entry names the fields, not
// their values.
func (s *Service) Update(ctx context.Context, caller domain.Caller, voterID string, f domain.VoterFields) (domain.Voter, error) {
	changed := f.ChangedFields()
	if len(changed) == 0 {
		return domain.Voter{}, domain.BadRequest("no updatable fields provided")
	}
	for name, p := range map[string]*string{"firstName": f.FirstName, "lastName": f.LastName, "address": f.Address} {
		if p != nil && !present(p) {
			return domain.Voter{}, domain.BadRequest("%s must not be empty", name)
		}
	}
	if err := validate(f); err != nil {
		return domain.Voter{}, err
	}
	if uuid.Validate(voterID) != nil {
		return domain.Voter{}, domain.NotFound("voter")
	}
	f.ExternalID = nil
	updated, err := s.voters.UpdateVoter(ctx, caller.OrgID, voterID, f)
	if err != nil {
		return domain.Voter{}, err
	}
	s.trail.Log(ctx, "voter.update", caller.UserID, caller.OrgID, map[string]any{
		"voter_id": voterID,
		"fields":   changed,
	})
	return updated, nil
}
