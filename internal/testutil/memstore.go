// Package testutil provides an in-memory implementation of the repository,
// queue and object store ports, with the same uniqueness and tenancy rules
// as the Postgres schema.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"voterfield/internal/domain"
	"voterfield/internal/ports"
)

var errInjected = errors.New("injected failure")

type queued struct {
	name    string
	task    ports.ImportTask
	claimed bool
}

type Store struct {
	mu sync.Mutex

	orgs         map[string]domain.Organization
	users        map[string]domain.User
	voters       map[string]domain.Voter
	lists        map[string]domain.WalkList
	assignments  map[string]domain.Assignment
	interactions []domain.Interaction
	jobs         map[string]domain.Job
	queue        []*queued
	audits       []domain.AuditLogEntry
	events       []domain.PlatformEvent
	objects      map[string][]byte

	// Now stamps rows; tests may replace it.
	Now func() time.Time
	// FailTrail makes audit and event appends fail.
	FailTrail bool
	// FailInteractions makes interaction inserts fail before any write.
	FailInteractions bool
	// FailUpserts makes voter batch upserts fail.
	FailUpserts bool
	// FailEnqueue makes job submission fail before any write.
	FailEnqueue bool
	// PingErr is returned by Ping.
	PingErr error
}

func NewStore() *Store {
	return &Store{
		orgs:        map[string]domain.Organization{},
		users:       map[string]domain.User{},
		voters:      map[string]domain.Voter{},
		lists:       map[string]domain.WalkList{},
		assignments: map[string]domain.Assignment{},
		jobs:        map[string]domain.Job{},
		objects:     map[string][]byte{},
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ ports.OrgRepository         = (*Store)(nil)
	_ ports.UserRepository        = (*Store)(nil)
	_ ports.VoterRepository       = (*Store)(nil)
	_ ports.ListRepository        = (*Store)(nil)
	_ ports.AssignmentRepository  = (*Store)(nil)
	_ ports.InteractionRepository = (*Store)(nil)
	_ ports.TrailRepository       = (*Store)(nil)
	_ ports.MetricsRepository     = (*Store)(nil)
	_ ports.JobRepository         = (*Store)(nil)
	_ ports.ImportQueue           = (*Store)(nil)
	_ ports.ObjectStore           = (*Store)(nil)
	_ ports.Pinger                = (*Store)(nil)
)

func (s *Store) Ping(context.Context) error { return s.PingErr }

// Organizations

func (s *Store) GetOrg(_ context.Context, orgID string) (domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return o, domain.NotFound("organization")
	}
	return cloneOrg(o), nil
}

func (s *Store) UpdateOrg(_ context.Context, orgID string, patch domain.OrgPatch) (domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return o, domain.NotFound("organization")
	}
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.PlanID != nil {
		o.PlanID = *patch.PlanID
	}
	if patch.Limits != nil {
		o.Limits = *patch.Limits
	}
	s.orgs[orgID] = cloneOrg(o)
	return cloneOrg(o), nil
}

func (s *Store) ProvisionOrg(_ context.Context, org domain.Organization, admin domain.User) (domain.Organization, domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(admin.Email) {
		return org, admin, domain.Conflict("email already in use")
	}
	now := s.Now()
	if org.Status == "" {
		org.Status = domain.OrgActive
	}
	if org.PlanID == "" {
		org.PlanID = "starter"
	}
	if org.Limits == nil {
		org.Limits = map[string]int{}
	}
	org.CreatedAt, org.LastActivityAt = now, now
	s.orgs[org.ID] = cloneOrg(org)
	admin.OrgID = org.ID
	admin.CreatedAt = now
	s.users[admin.ID] = admin
	return cloneOrg(org), admin, nil
}

func cloneOrg(o domain.Organization) domain.Organization {
	limits := make(map[string]int, len(o.Limits))
	for k, v := range o.Limits {
		limits[k] = v
	}
	o.Limits = limits
	return o
}

// Users

func (s *Store) emailTaken(email string) bool {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) GetUser(_ context.Context, orgID, userID string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.OrgID != orgID {
		return domain.User{}, domain.NotFound("user")
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.NotFound("user")
}

func (s *Store) FirstUserWithRole(_ context.Context, orgID string, role domain.Role) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []domain.User
	for _, u := range s.users {
		if u.OrgID == orgID && u.Role == role {
			found = append(found, u)
		}
	}
	if len(found) == 0 {
		return domain.User{}, domain.NotFound("user")
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].CreatedAt.Before(found[j].CreatedAt)
		}
		return found[i].ID < found[j].ID
	})
	return found[0], nil
}

func (s *Store) ListUsers(_ context.Context, orgID string, role domain.Role) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.User{}
	for _, u := range s.users {
		if u.OrgID == orgID && (role == "" || u.Role == role) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CountUsers(_ context.Context, orgID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.OrgID == orgID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[u.OrgID]; !ok {
		return u, domain.NotFound("organization")
	}
	if s.emailTaken(u.Email) {
		return u, domain.Conflict("email already in use")
	}
	u.CreatedAt = s.Now()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUserLocation(_ context.Context, orgID, userID string, loc domain.GeoPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.OrgID != orgID {
		return domain.NotFound("user")
	}
	u.Location = &loc
	s.users[userID] = u
	return nil
}

// Voters

// project fills the last-interaction fields from the ledger. Caller holds mu.
func (s *Store) project(v domain.Voter) domain.Voter {
	var latest *domain.Interaction
	for i := range s.interactions {
		in := &s.interactions[i]
		if in.OrgID != v.OrgID || in.VoterID != v.ID {
			continue
		}
		if latest == nil || in.OccurredAt.After(latest.OccurredAt) ||
			(in.OccurredAt.Equal(latest.OccurredAt) && !in.CreatedAt.Before(latest.CreatedAt)) {
			latest = in
		}
	}
	v.LastInteractionStatus, v.LastInteractionTime = "", nil
	if latest != nil {
		at := latest.OccurredAt
		v.LastInteractionStatus = latest.ResultCode
		v.LastInteractionTime = &at
	}
	return v
}

func (s *Store) ListVoters(_ context.Context, orgID string, f domain.VoterFilter) ([]domain.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(f.Search)
	var matched []domain.Voter
	for _, v := range s.voters {
		if v.OrgID != orgID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(v.FirstName), search) &&
			!strings.Contains(strings.ToLower(v.LastName), search) &&
			!strings.Contains(strings.ToLower(v.Address), search) {
			continue
		}
		if f.Party != "" && !strings.EqualFold(v.Party, f.Party) {
			continue
		}
		if f.City != "" && !strings.EqualFold(v.City, f.City) {
			continue
		}
		if f.Near != nil && domain.DistanceKM(*f.Near, v.Geom) > f.RadiusKM {
			continue
		}
		matched = append(matched, s.project(v))
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
	return page(matched, f.Limit, f.Offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	out := []T{}
	if offset >= len(items) {
		return out
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return append(out, items...)
}

func (s *Store) GetVoter(_ context.Context, orgID, voterID string) (domain.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[voterID]
	if !ok || v.OrgID != orgID {
		return domain.Voter{}, domain.NotFound("voter")
	}
	return s.project(v), nil
}

func (s *Store) CountVoters(_ context.Context, orgID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.voters {
		if v.OrgID == orgID {
			n++
		}
	}
	return n, nil
}

func (s *Store) voterByExternalID(orgID, externalID string) (domain.Voter, bool) {
	for _, v := range s.voters {
		if v.OrgID == orgID && v.ExternalID == externalID {
			return v, true
		}
	}
	return domain.Voter{}, false
}

func (s *Store) CreateVoter(_ context.Context, v domain.Voter) (domain.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[v.OrgID]; !ok {
		return v, domain.NotFound("organization")
	}
	if _, dup := s.voterByExternalID(v.OrgID, v.ExternalID); dup {
		return v, domain.Conflict("external id already exists in this organization")
	}
	now := s.Now()
	v.CreatedAt, v.UpdatedAt = now, now
	s.voters[v.ID] = v
	return s.project(v), nil
}

func (s *Store) UpdateVoter(_ context.Context, orgID, voterID string, f domain.VoterFields) (domain.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[voterID]
	if !ok || v.OrgID != orgID {
		return domain.Voter{}, domain.NotFound("voter")
	}
	f.Apply(&v)
	v.UpdatedAt = s.Now()
	s.voters[voterID] = v
	return s.project(v), nil
}

func (s *Store) UpsertVoters(ctx context.Context, orgID string, voters []domain.Voter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpserts {
		return 0, errInjected
	}
	// The batch runs in one transaction, which pgx aborts on a done context.
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := s.Now()
	for _, v := range voters {
		v.OrgID = orgID
		v.UpdatedAt = now
		if existing, ok := s.voterByExternalID(orgID, v.ExternalID); ok {
			v.ID, v.CreatedAt = existing.ID, existing.CreatedAt
		} else {
			v.CreatedAt = now
		}
		s.voters[v.ID] = v
	}
	return len(voters), nil
}

// Walk lists

func (s *Store) ListWalkLists(_ context.Context, orgID string) ([]domain.WalkList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.WalkList{}
	for _, l := range s.lists {
		if l.OrgID == orgID {
			l.VoterIDs = slices.Clone(l.VoterIDs)
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetWalkList(_ context.Context, orgID, listID string) (domain.WalkList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok || l.OrgID != orgID {
		return domain.WalkList{}, domain.NotFound("walk list")
	}
	l.VoterIDs = slices.Clone(l.VoterIDs)
	return l, nil
}

func (s *Store) CreateWalkList(_ context.Context, l domain.WalkList) (domain.WalkList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range l.VoterIDs {
		v, ok := s.voters[id]
		if !ok || v.OrgID != l.OrgID {
			return domain.WalkList{}, domain.BadRequest("voterIds contains ids that are not voters of this organization")
		}
	}
	if l.VoterIDs == nil {
		l.VoterIDs = []string{}
	}
	l.VoterIDs = slices.Clone(l.VoterIDs)
	l.CreatedAt = s.Now()
	s.lists[l.ID] = l
	return l, nil
}

// Assignments

func (s *Store) ListAssignments(_ context.Context, orgID, canvasserID string) ([]domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Assignment{}
	for _, a := range s.assignments {
		if a.OrgID == orgID && (canvasserID == "" || a.CanvasserID == canvasserID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetAssignment(_ context.Context, orgID, assignmentID string) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok || a.OrgID != orgID {
		return domain.Assignment{}, domain.NotFound("assignment")
	}
	return a, nil
}

func (s *Store) UpsertAssignment(_ context.Context, a domain.Assignment) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.lists[a.ListID]; !ok || l.OrgID != a.OrgID {
		return a, domain.NotFound("walk list")
	}
	if u, ok := s.users[a.CanvasserID]; !ok || u.OrgID != a.OrgID {
		return a, domain.NotFound("user")
	}
	now := s.Now()
	for id, existing := range s.assignments {
		if existing.OrgID == a.OrgID && existing.ListID == a.ListID {
			existing.CanvasserID = a.CanvasserID
			existing.Status = domain.AssignmentAssigned
			existing.UpdatedAt = now
			s.assignments[id] = existing
			return existing, nil
		}
	}
	a.Status = domain.AssignmentAssigned
	a.CreatedAt, a.UpdatedAt = now, now
	s.assignments[a.ID] = a
	return a, nil
}

func (s *Store) SetAssignmentStatus(_ context.Context, orgID, assignmentID string, status domain.AssignmentStatus) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok || a.OrgID != orgID {
		return domain.Assignment{}, domain.NotFound("assignment")
	}
	a.Status = status
	a.UpdatedAt = s.Now()
	s.assignments[assignmentID] = a
	return a, nil
}

// advance mirrors the SQL progression rule. Caller holds mu.
func (s *Store) advance(orgID, assignmentID string) {
	a, ok := s.assignments[assignmentID]
	if !ok || a.OrgID != orgID || a.Status == domain.AssignmentCompleted {
		return
	}
	covered := map[string]bool{}
	for _, in := range s.interactions {
		if in.OrgID == orgID && in.AssignmentID == assignmentID {
			covered[in.VoterID] = true
		}
	}
	a.Status = domain.AssignmentCompleted
	for _, id := range s.lists[a.ListID].VoterIDs {
		if !covered[id] {
			a.Status = domain.AssignmentInProgress
			break
		}
	}
	a.UpdatedAt = s.Now()
	s.assignments[assignmentID] = a
}

// Interactions

func (s *Store) InsertInteraction(_ context.Context, in domain.Interaction, entry domain.AuditLogEntry, event domain.PlatformEvent) (domain.Interaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.interactions {
		if existing.OrgID == in.OrgID && existing.ClientInteractionUUID == in.ClientInteractionUUID {
			return cloneInteraction(existing), false, nil
		}
	}
	if s.FailInteractions {
		return in, false, errInjected
	}
	if u, ok := s.users[in.UserID]; !ok || u.OrgID != in.OrgID {
		return in, false, domain.NotFound("user")
	}
	if v, ok := s.voters[in.VoterID]; !ok || v.OrgID != in.OrgID {
		return in, false, domain.NotFound("voter")
	}
	if in.AssignmentID != "" {
		if a, ok := s.assignments[in.AssignmentID]; !ok || a.OrgID != in.OrgID {
			return in, false, domain.NotFound("assignment")
		}
	}
	if s.FailTrail {
		return in, false, errInjected
	}
	in.CreatedAt = s.Now()
	in.SurveyResponses = roundTripJSON(in.SurveyResponses)
	s.interactions = append(s.interactions, cloneInteraction(in))
	if in.AssignmentID != "" {
		s.advance(in.OrgID, in.AssignmentID)
	}
	if o, ok := s.orgs[in.OrgID]; ok {
		o.LastActivityAt = in.CreatedAt
		s.orgs[in.OrgID] = o
	}
	s.audits = append(s.audits, entry)
	s.events = append(s.events, event)
	return cloneInteraction(in), true, nil
}

// roundTripJSON normalizes survey answers the way a jsonb column does.
func roundTripJSON(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return m
	}
	return out
}

func cloneInteraction(in domain.Interaction) domain.Interaction {
	in.SurveyResponses = roundTripJSON(in.SurveyResponses)
	return in
}

func (s *Store) ListInteractions(_ context.Context, orgID string, f domain.InteractionFilter) ([]domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []domain.Interaction
	for _, in := range s.interactions {
		if in.OrgID != orgID || (f.VoterID != "" && in.VoterID != f.VoterID) || (f.UserID != "" && in.UserID != f.UserID) {
			continue
		}
		matched = append(matched, cloneInteraction(in))
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return page(matched, f.Limit, f.Offset), nil
}

// Trail

func (s *Store) AppendAudit(_ context.Context, e domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTrail {
		return errInjected
	}
	s.audits = append(s.audits, e)
	return nil
}

func (s *Store) AppendEvent(_ context.Context, e domain.PlatformEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTrail {
		return errInjected
	}
	s.events = append(s.events, e)
	return nil
}

func (s *Store) Audits() []domain.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audits)
}

func (s *Store) Events() []domain.PlatformEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// AuditActions lists recorded audit actions in order.
func (s *Store) AuditActions() []string {
	var out []string
	for _, e := range s.Audits() {
		out = append(out, e.Action)
	}
	return out
}

// EventTypes lists recorded event types in order.
func (s *Store) EventTypes() []string {
	var out []string
	for _, e := range s.Events() {
		out = append(out, e.EventType)
	}
	return out
}

// Metrics

func (s *Store) OrgCounts(_ context.Context, orgID string) (domain.OrgCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := domain.OrgCounts{
		ResultsByCode:       map[domain.ResultCode]int{},
		AssignmentsByStatus: map[domain.AssignmentStatus]int{},
	}
	for _, v := range s.voters {
		if v.OrgID == orgID {
			out.Voters++
		}
	}
	for _, in := range s.interactions {
		if in.OrgID == orgID {
			out.Interactions++
			out.ResultsByCode[in.ResultCode]++
		}
	}
	for _, a := range s.assignments {
		if a.OrgID == orgID {
			out.AssignmentsByStatus[a.Status]++
		}
	}
	return out, nil
}

// Jobs and queue

func (s *Store) GetJob(_ context.Context, orgID, jobID string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.OrgID != orgID {
		return domain.Job{}, domain.NotFound("job")
	}
	return j, nil
}

func (s *Store) finish(jobID string, status domain.JobStatus, result map[string]any, reason string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return j, domain.NotFound("job")
	}
	if j.Status != domain.JobProcessing {
		return j, domain.Conflict("job is not processing")
	}
	j.Status, j.Result, j.Error = status, roundTripJSON(result), reason
	j.UpdatedAt = s.Now()
	s.jobs[jobID] = j
	return j, nil
}

func (s *Store) MarkCompleted(_ context.Context, jobID string, result map[string]any) (domain.Job, error) {
	return s.finish(jobID, domain.JobCompleted, result, "")
}

func (s *Store) MarkFailed(_ context.Context, jobID string, reason string) (domain.Job, error) {
	return s.finish(jobID, domain.JobFailed, nil, reason)
}

func (s *Store) FailStuck(_ context.Context, startedBefore time.Time, reason string) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for id, j := range s.jobs {
		if j.Status == domain.JobProcessing && j.StartedAt != nil && j.StartedAt.Before(startedBefore) {
			j.Status, j.Error = domain.JobFailed, reason
			j.UpdatedAt = s.Now()
			s.jobs[id] = j
			out = append(out, j)
		}
	}
	return out, nil
}

// SetJobStarted backdates a processing job, for reaper tests.
func (s *Store) SetJobStarted(jobID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[jobID]
	j.StartedAt = &at
	s.jobs[jobID] = j
}

func (s *Store) Enqueue(_ context.Context, name string, job domain.Job, task ports.ImportTask) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailEnqueue {
		return domain.Job{}, errInjected
	}
	if _, ok := s.jobs[job.ID]; ok {
		return domain.Job{}, domain.Conflict("job already exists")
	}
	// Payloads travel as JSON, as they do through the queue table.
	raw, err := json.Marshal(task.Source)
	if err != nil {
		return domain.Job{}, err
	}
	var src domain.ImportSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return domain.Job{}, err
	}
	now := s.Now()
	job.Status = domain.JobPending
	job.CreatedAt, job.UpdatedAt = now, now
	job.Metadata = roundTripJSON(job.Metadata)
	s.jobs[job.ID] = job

	task.JobID, task.Source = job.ID, src
	s.queue = append(s.queue, &queued{name: name, task: task})
	return job, nil
}

// claim marks q claimed and its job processing. Caller holds mu.
func (s *Store) claim(q *queued) ports.ImportTask {
	q.claimed = true
	j := s.jobs[q.task.JobID]
	now := s.Now()
	j.Status, j.StartedAt, j.UpdatedAt = domain.JobProcessing, &now, now
	s.jobs[j.ID] = j
	task := q.task
	task.OrgID, task.UserID = j.OrgID, j.UserID
	return task
}

func (s *Store) ClaimNext(_ context.Context) (ports.ImportTask, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queue {
		if !q.claimed && s.jobs[q.task.JobID].Status == domain.JobPending {
			return s.claim(q), true, nil
		}
	}
	return ports.ImportTask{}, false, nil
}

func (s *Store) Claim(_ context.Context, jobID string) (ports.ImportTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queue {
		if q.task.JobID == jobID && !q.claimed && s.jobs[jobID].Status == domain.JobPending {
			return s.claim(q), nil
		}
	}
	return ports.ImportTask{}, domain.Conflict("job is not pending")
}

// Pending reports how many queued tasks are unclaimed.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.queue {
		if !q.claimed {
			n++
		}
	}
	return n
}

// Objects

func (s *Store) Put(_ context.Context, key string, body []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = slices.Clone(body)
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, domain.NotFound("file " + key)
	}
	return slices.Clone(b), nil
}

// ObjectKeys lists stored object keys.
func (s *Store) ObjectKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
