package httpadapter

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"voterfield/internal/domain"
	"voterfield/internal/logging"
)

// authenticate resolves the bearer token to a caller and binds it to the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.writeError(w, r, domain.Unauthenticated("Missing bearer token"))
			return
		}
		c, err := s.identity.Authenticate(r.Context(), strings.TrimSpace(token))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		logging.AddFields(r.Context(), zap.String("user_id", c.UserID), zap.String("org_id", c.OrgID))
		next.ServeHTTP(w, r.WithContext(domain.WithCaller(r.Context(), c)))
	})
}

// requireInternalToken guards provisioning endpoints with a shared key.
func (s *Server) requireInternalToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Internal-Token")
		if s.internalToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.internalToken)) != 1 {
			s.writeError(w, r, domain.Unauthenticated("Invalid internal token"))
			return
		}
		logging.AddFields(r.Context(), zap.String("actor", "internal"))
		next.ServeHTTP(w, r)
	})
}
