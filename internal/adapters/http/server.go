// Package httpadapter is the JSON transport: a chi router over the
// services, with bearer-token auth and request logging.
package httpadapter

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"voterfield/internal/logging"
	"voterfield/internal/ports"
	"voterfield/internal/workers/importrunner"
)

// Check is a named readiness dependency.
type Check struct {
	Name   string
	Pinger ports.Pinger
}

type Deps struct {
	Identity     Identity
	Users        Users
	Orgs         Orgs
	Voters       Voters
	Lists        Lists
	Interactions Interactions
	Imports      Imports
	Metrics      Metrics

	// Queue and Processor serve imports submitted with ?wait=true.
	Queue     ports.ImportQueue
	Processor importrunner.Processor

	Checks        []Check
	InternalToken string
	CORSOrigins   []string
	Log           *zap.Logger
}

type Server struct {
	identity      Identity
	users         Users
	orgs          Orgs
	voters        Voters
	lists         Lists
	interactions  Interactions
	imports       Imports
	metrics       Metrics
	queue         ports.ImportQueue
	processor     importrunner.Processor
	checks        []Check
	internalToken string
	corsOrigins   []string
	log           *zap.Logger
}

func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		identity:      d.Identity,
		users:         d.Users,
		orgs:          d.Orgs,
		voters:        d.Voters,
		lists:         d.Lists,
		interactions:  d.Interactions,
		imports:       d.Imports,
		metrics:       d.Metrics,
		queue:         d.Queue,
		processor:     d.Processor,
		checks:        d.Checks,
		internalToken: d.InternalToken,
		corsOrigins:   origins,
		log:           log,
	}
}

// Routes returns the full router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Internal-Token"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Get("/openapi.yaml", s.openAPI)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.login)

		r.Route("/internal", func(r chi.Router) {
			r.Use(s.requireInternalToken)
			r.Post("/orgs", s.provisionOrg)
			r.Patch("/orgs/{id}", s.updateOrg)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/auth/switch-role", s.switchRole)
			r.Get("/me", s.me)
			r.Get("/org", s.org)

			r.Get("/users", s.listUsers)
			r.Post("/users/invite", s.inviteUser)
			r.Put("/users/me/location", s.updateLocation)

			r.Get("/voters", s.listVoters)
			r.Post("/voters", s.createVoter)
			r.Get("/voters/{id}", s.getVoter)
			r.Patch("/voters/{id}", s.updateVoter)

			r.Get("/lists", s.listWalkLists)
			r.Post("/lists", s.createWalkList)
			r.Get("/lists/{id}", s.getWalkList)

			r.Get("/assignments", s.listAssignments)
			r.Post("/assignments", s.createAssignment)
			r.Patch("/assignments/{id}", s.updateAssignment)

			r.Get("/interactions", s.listInteractions)
			r.Post("/interactions", s.logInteraction)
			r.Post("/interactions/bulk", s.bulkLogInteractions)

			r.Post("/jobs/import-voters", s.submitImport)
			r.Post("/jobs/import-voters/upload", s.uploadImport)
			r.Get("/jobs/{id}", s.getJob)

			r.Get("/metrics/summary", s.metricsSummary)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

const readyTimeout = 2 * time.Second

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	for _, c := range s.checks {
		if err := c.Pinger.Ping(ctx); err != nil {
			s.log.Warn("readiness check failed", zap.String("check", c.Name), zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"error":  c.Name + ": " + err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
