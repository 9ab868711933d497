package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"voterfield/internal/domain"
	"voterfield/internal/services/lists"
	"voterfield/internal/services/voters"
)

func (s *Server) listVoters(w http.ResponseWriter, r *http.Request) {
	var (
		p   voters.ListParams
		err error
	)
	for name, dest := range map[string]*string{"search": &p.Search, "party": &p.Party, "city": &p.City} {
		if *dest, err = queryString(r, name); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	for _, q := range []struct {
		name string
		dest any
	}{
		{"near_lat", &p.NearLat},
		{"near_lng", &p.NearLng},
		{"radius_km", &p.RadiusKM},
		{"limit", &p.Limit},
		{"offset", &p.Offset},
	} {
		if err := bindQuery(r, q.name, q.dest); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	out, err := s.voters.List(r.Context(), caller(r), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getVoter(w http.ResponseWriter, r *http.Request) {
	v, err := s.voters.Get(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) createVoter(w http.ResponseWriter, r *http.Request) {
	var f domain.VoterFields
	if err := decode(w, r, &f); err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.voters.Create(r.Context(), caller(r), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) updateVoter(w http.ResponseWriter, r *http.Request) {
	var f domain.VoterFields
	if err := decode(w, r, &f); err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.voters.Update(r.Context(), caller(r), chi.URLParam(r, "id"), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) listWalkLists(w http.ResponseWriter, r *http.Request) {
	out, err := s.lists.ListWalkLists(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getWalkList(w http.ResponseWriter, r *http.Request) {
	l, err := s.lists.GetWalkList(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) createWalkList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string   `json:"name"`
		VoterIDs []string `json:"voterIds"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.lists.CreateWalkList(r.Context(), caller(r), req.Name, req.VoterIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	scope, err := queryString(r, "scope")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.lists.ListAssignments(r.Context(), caller(r), lists.Scope(scope))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListID      string `json:"listId"`
		CanvasserID string `json:"canvasserId"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.lists.CreateAssignment(r.Context(), caller(r), req.ListID, req.CanvasserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) updateAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status domain.AssignmentStatus `json:"status"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.lists.UpdateAssignmentStatus(r.Context(), caller(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
