package domain

import "time"

// Core domain models. JSON tags follow the client contract: camelCase for
// roster entities, snake_case for ledger and platform records.

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCanvasser Role = "canvasser"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleCanvasser }

type OrgStatus string

const (
	OrgActive        OrgStatus = "active"
	OrgSuspended     OrgStatus = "suspended"
	OrgPendingDelete OrgStatus = "pending_delete"
)

func (s OrgStatus) Valid() bool {
	return s == OrgActive || s == OrgSuspended || s == OrgPendingDelete
}

type Organization struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Status         OrgStatus      `json:"status"`
	PlanID         string         `json:"plan_id"`
	Limits         map[string]int `json:"limits"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Limit returns the named limit and whether it is set.
func (o Organization) Limit(name string) (int, bool) {
	v, ok := o.Limits[name]
	return v, ok
}

const (
	LimitMaxUsers  = "max_users"
	LimitMaxVoters = "max_voters"
)

// OrgPatch carries administrative changes; nil fields are left alone.
type OrgPatch struct {
	Status *OrgStatus      `json:"status,omitempty"`
	PlanID *string         `json:"plan_id,omitempty"`
	Limits *map[string]int `json:"limits,omitempty"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (g GeoPoint) Valid() bool {
	return g.Lat >= -90 && g.Lat <= 90 && g.Lng >= -180 && g.Lng <= 180
}

type User struct {
	ID           string    `json:"id"`
	OrgID        string    `json:"orgId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	Location     *GeoPoint `json:"location,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Voter struct {
	ID         string `json:"id"`
	OrgID      string `json:"orgId"`
	ExternalID string `json:"externalId"`

	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
	Suffix     string `json:"suffix,omitempty"`
	Age        *int   `json:"age,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Race       string `json:"race,omitempty"`
	Party      string `json:"party,omitempty"`

	Phone string `json:"phone,omitempty"`

	Address string   `json:"address"`
	Unit    string   `json:"unit,omitempty"`
	City    string   `json:"city,omitempty"`
	State   string   `json:"state,omitempty"`
	Zip     string   `json:"zip,omitempty"`
	Geom    GeoPoint `json:"geom"`

	// Projection over the interaction ledger, never stored on the voter row.
	LastInteractionStatus ResultCode `json:"lastInteractionStatus,omitempty"`
	LastInteractionTime   *time.Time `json:"lastInteractionTime,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VoterFields is the candidate shape accepted by manual entry and imports.
// Pointers distinguish "absent" from "empty" for partial updates.
type VoterFields struct {
	ExternalID *string   `json:"externalId,omitempty"`
	FirstName  *string   `json:"firstName,omitempty"`
	MiddleName *string   `json:"middleName,omitempty"`
	LastName   *string   `json:"lastName,omitempty"`
	Suffix     *string   `json:"suffix,omitempty"`
	Age        *int      `json:"age,omitempty"`
	Gender     *string   `json:"gender,omitempty"`
	Race       *string   `json:"race,omitempty"`
	Party      *string   `json:"party,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Address    *string   `json:"address,omitempty"`
	Unit       *string   `json:"unit,omitempty"`
	City       *string   `json:"city,omitempty"`
	State      *string   `json:"state,omitempty"`
	Zip        *string   `json:"zip,omitempty"`
	Geom       *GeoPoint `json:"geom,omitempty"`
}

type VoterFilter struct {
	Search   string
	Party    string
	City     string
	Near     *GeoPoint
	RadiusKM float64
	Limit    int
	Offset   int
}

type WalkList struct {
	ID              string    `json:"id"`
	OrgID           string    `json:"orgId"`
	Name            string    `json:"name"`
	VoterIDs        []string  `json:"voterIds"`
	CreatedByUserID string    `json:"createdByUserId"`
	CreatedAt       time.Time `json:"createdAt"`
}

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

func (s AssignmentStatus) Valid() bool {
	return s == AssignmentAssigned || s == AssignmentInProgress || s == AssignmentCompleted
}

type Assignment struct {
	ID          string           `json:"id"`
	OrgID       string           `json:"orgId"`
	ListID      string           `json:"listId"`
	CanvasserID string           `json:"canvasserId"`
	Status      AssignmentStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type ResultCode string

const (
	ResultContacted    ResultCode = "contacted"
	ResultNotHome      ResultCode = "not_home"
	ResultRefused      ResultCode = "refused"
	ResultMoved        ResultCode = "moved"
	ResultInaccessible ResultCode = "inaccessible"
	ResultDeceased     ResultCode = "deceased"
)

var ResultCodes = []ResultCode{
	ResultContacted, ResultNotHome, ResultRefused, ResultMoved, ResultInaccessible, ResultDeceased,
}

func (c ResultCode) Valid() bool {
	for _, rc := range ResultCodes {
		if c == rc {
			return true
		}
	}
	return false
}

const ChannelCanvass = "canvass"

type Interaction struct {
	ID                    string         `json:"id"`
	ClientInteractionUUID string         `json:"client_interaction_uuid"`
	OrgID                 string         `json:"org_id"`
	UserID                string         `json:"user_id"`
	VoterID               string         `json:"voter_id"`
	AssignmentID          string         `json:"assignment_id,omitempty"`
	OccurredAt            time.Time      `json:"occurred_at"`
	Channel               string         `json:"channel"`
	ResultCode            ResultCode     `json:"result_code"`
	Notes                 string         `json:"notes,omitempty"`
	SurveyResponses       map[string]any `json:"survey_responses,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
}

type InteractionFilter struct {
	VoterID string
	UserID  string
	Limit   int
	Offset  int
}

type JobType string

const (
	JobImportVoters JobType = "import_voters"
	JobExportData   JobType = "export_data"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

type Job struct {
	ID        string         `json:"id"`
	OrgID     string         `json:"org_id"`
	UserID    string         `json:"user_id"`
	Type      JobType        `json:"type"`
	Status    JobStatus      `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ImportSource is the queued payload for an import job: either inline
// records or a staged object-store key.
type ImportSource struct {
	Records  []VoterFields `json:"records,omitempty"`
	FileKey  string        `json:"file_key,omitempty"`
	FileName string        `json:"file_name,omitempty"`
}

type AuditLogEntry struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	ActorUserID string         `json:"actor_user_id"`
	TargetOrgID string         `json:"target_org_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type PlatformEvent struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	OrgID      string         `json:"org_id"`
	UserID     string         `json:"user_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// OrgCounts are the raw aggregates behind the metrics summary.
type OrgCounts struct {
	Voters              int
	Interactions        int
	ResultsByCode       map[ResultCode]int
	AssignmentsByStatus map[AssignmentStatus]int
}
