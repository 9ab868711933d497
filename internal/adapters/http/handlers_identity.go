package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"voterfield/internal/domain"
	"voterfield/internal/services/orgs"
	"voterfield/internal/services/users"
)

// bindQuery decodes one optional form-style query parameter. dest points
// to a pointer field, which stays nil when the parameter is absent.
func bindQuery(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return domain.BadRequest("invalid %s parameter", name)
	}
	return nil
}

// queryString is bindQuery for plain strings, absent reading as "".
func queryString(r *http.Request, name string) (string, error) {
	var v *string
	if err := bindQuery(r, name, &v); err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) switchRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role domain.Role `json:"role"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.identity.SwitchRole(r.Context(), caller(r), req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	sess, err := s.identity.Me(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) org(w http.ResponseWriter, r *http.Request) {
	o, err := s.identity.Org(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	role, err := queryString(r, "role")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.users.List(r.Context(), caller(r), domain.Role(role))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) inviteUser(w http.ResponseWriter, r *http.Request) {
	var req users.Invite
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.InviteCanvasser(r.Context(), caller(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) updateLocation(w http.ResponseWriter, r *http.Request) {
	var loc domain.GeoPoint
	if err := decode(w, r, &loc); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.users.UpdateLocation(r.Context(), caller(r), loc); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) provisionOrg(w http.ResponseWriter, r *http.Request) {
	var req orgs.Provision
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, admin, err := s.orgs.Provision(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"org": o, "admin": admin})
}

func (s *Server) updateOrg(w http.ResponseWriter, r *http.Request) {
	var patch domain.OrgPatch
	if err := decode(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.orgs.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
