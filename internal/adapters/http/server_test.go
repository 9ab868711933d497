package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voterfield/internal/services/audit"
	"voterfield/internal/services/identity"
	"voterfield/internal/services/imports"
	"voterfield/internal/services/interactions"
	"voterfield/internal/services/lists"
	"voterfield/internal/services/metrics"
	"voterfield/internal/services/orgs"
	"voterfield/internal/services/users"
	"voterfield/internal/services/voters"
	"voterfield/internal/testutil"
)

const internalToken = "internal-secret"

type harness struct {
	t      *testing.T
	store  *testutil.Store
	tenant testutil.Tenant
	ident  *identity.Service
	router http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := testutil.NewStore()
	trail := audit.New(store, nil)
	ident := identity.New(store, store, trail, "test-secret", time.Hour)
	importSvc := imports.New(store, store, store, store, trail, nil, imports.Options{})
	srv := New(Deps{
		Identity:      ident,
		Users:         users.New(store, store, trail),
		Orgs:          orgs.New(store, trail),
		Voters:        voters.New(store, store, trail),
		Lists:         lists.New(store, store, store, trail),
		Interactions:  interactions.New(store, trail),
		Imports:       importSvc,
		Metrics:       metrics.New(store),
		Queue:         store,
		Processor:     importSvc,
		Checks:        []Check{{Name: "database", Pinger: store}},
		InternalToken: internalToken,
	})
	return &harness{
		t:      t,
		store:  store,
		tenant: testutil.SeedTenant(t, store, "acme"),
		ident:  ident,
		router: srv.Routes(),
	}
}

func (h *harness) adminToken() string {
	tok, err := h.ident.IssueToken(h.tenant.Admin)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) canvasserToken() string {
	tok, err := h.ident.IssueToken(h.tenant.Canvasser)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = h.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h.store.PingErr = errors.New("connection refused")
	rec = h.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "database: connection refused", body["error"])
}

func TestOpenAPIDocumentIsServed(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")
}

func TestEveryRouteIsDocumented(t *testing.T) {
	doc, err := LoadSpec(context.Background())
	require.NoError(t, err)
	h := newHarness(t)

	routes := 0
	err = chi.Walk(h.router.(chi.Router), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes++
		item := doc.Paths.Value(route)
		if assert.NotNil(t, item, "undocumented path %s", route) {
			assert.NotNil(t, item.GetOperation(method), "undocumented operation %s %s", method, route)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, doc.Paths.Len(), len(distinctPaths(t, h.router.(chi.Router))))
	assert.Positive(t, routes)
}

func distinctPaths(t *testing.T, r chi.Router) map[string]struct{} {
	t.Helper()
	out := map[string]struct{}{}
	require.NoError(t, chi.Walk(r, func(_, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out[route] = struct{}{}
		return nil
	}))
	return out
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing bearer token", decodeBody[errorBody](t, rec).Error)

	rec = h.do(http.MethodGet, "/api/v1/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": h.tenant.Admin.Email, "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": h.tenant.Admin.Email, "password": testutil.Password,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeBody[identity.Session](t, rec)
	require.NotEmpty(t, sess.Token)

	rec = h.do(http.MethodGet, "/api/v1/me", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[identity.Session](t, rec)
	assert.Equal(t, h.tenant.Admin.ID, me.User.ID)
	assert.Equal(t, h.tenant.Org.ID, me.Org.ID)
}

func TestInternalRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{
		"name":  "Parish Dems",
		"admin": map[string]string{"name": "Lee", "email": "lee@parish.test", "password": "s3cret-pass"},
	}

	rec := h.do(http.MethodPost, "/api/v1/internal/orgs", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = h.do(http.MethodPost, "/api/v1/internal/orgs", "", body, "X-Internal-Token", "guess")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/internal/orgs", "", body, "X-Internal-Token", internalToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[map[string]map[string]any](t, rec)
	assert.Equal(t, "Parish Dems", created["org"]["name"])
	assert.Equal(t, "admin", created["admin"]["role"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestVoterRoutes(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken()

	rec := h.do(http.MethodPost, "/api/v1/voters", token, map[string]any{
		"firstName": "Ana", "lastName": "Diaz", "address": "12 Elm St", "party": "DEM",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[map[string]any](t, rec)
	assert.True(t, strings.HasPrefix(created["externalId"].(string), "MAN-"))

	rec = h.do(http.MethodPost, "/api/v1/voters", token, map[string]any{"firstName": "Ana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/voters?search=diaz", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decodeBody[[]map[string]any](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, created["id"], found[0]["id"])

	rec = h.do(http.MethodGet, "/api/v1/voters?limit=lots", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid limit parameter", decodeBody[errorBody](t, rec).Error)

	rec = h.do(http.MethodGet, "/api/v1/voters/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/api/v1/voters", h.adminToken(), "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", decodeBody[errorBody](t, rec).Error)

	rec = h.do(http.MethodPost, "/api/v1/voters", h.adminToken(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body is required", decodeBody[errorBody](t, rec).Error)
}

func TestInteractionRoutes(t *testing.T) {
	h := newHarness(t)
	token := h.canvasserToken()
	vs := testutil.SeedVoters(t, h.store, h.tenant.Org.ID, 2)

	item := map[string]any{
		"client_interaction_uuid": uuid.NewString(),
		"voter_id":                vs[0].ID,
		"occurred_at":             time.Now().UTC().Format(time.RFC3339),
		"result_code":             "contacted",
	}
	first := h.do(http.MethodPost, "/api/v1/interactions", token, item)
	require.Equal(t, http.StatusCreated, first.Code)
	replay := h.do(http.MethodPost, "/api/v1/interactions", token, item)
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, decodeBody[map[string]any](t, first)["id"], decodeBody[map[string]any](t, replay)["id"])

	fresh := map[string]any{
		"client_interaction_uuid": uuid.NewString(),
		"voter_id":                vs[1].ID,
		"occurred_at":             time.Now().UTC().Format(time.RFC3339),
		"result_code":             "not_home",
	}
	bulk := `[` + mustJSON(t, fresh) + `, 42, {"voter_id": 7}, ` + mustJSON(t, item) + `]`
	rec := h.do(http.MethodPost, "/api/v1/interactions/bulk", token, bulk)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"inserted": 1}, decodeBody[map[string]int](t, rec))

	rec = h.do(http.MethodPost, "/api/v1/interactions/bulk", token, `{"not": "an array"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/interactions?mine=true&limit=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 2)

	rec = h.do(http.MethodGet, "/api/v1/interactions?mine=maybe", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestImportRoutes(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken()

	rec := h.do(http.MethodPost, "/api/v1/jobs/import-voters", token, `[{"firstName": "Ana"}]`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	queued := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "pending", queued["status"])

	rec = h.do(http.MethodGet, "/api/v1/jobs/"+queued["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/jobs/import-voters?wait=true", token, `{"voters": [{"firstName": "Bo"}, {"firstName": "Cy"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	done := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "completed", done["status"])
	assert.EqualValues(t, 2, done["result"].(map[string]any)["imported_count"])

	rec = h.do(http.MethodPost, "/api/v1/jobs/import-voters?timeout=soon", token, `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(http.MethodPost, "/api/v1/jobs/import-voters", token, `{"voters": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid voter records", decodeBody[errorBody](t, rec).Error)
}

func TestWaitedImportOutlivesTheRequest(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/import-voters?wait=true",
		strings.NewReader(mustJSON(t, voterRecords(25)))).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.adminToken())
	h.router.ServeHTTP(httptest.NewRecorder(), req)

	require.Eventually(t, func() bool {
		return slices.Contains(h.store.EventTypes(), "import.completed")
	}, 2*time.Second, 10*time.Millisecond)
	n, err := h.store.CountVoters(context.Background(), h.tenant.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.NotContains(t, h.store.EventTypes(), "import.failed")
}

func voterRecords(n int) []map[string]string {
	out := make([]map[string]string, n)
	for i := range out {
		out[i] = map[string]string{"firstName": fmt.Sprintf("Voter%d", i)}
	}
	return out
}

func TestUploadImport(t *testing.T) {
	h := newHarness(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "parish.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("first_name,last_name\nAna,Diaz\nBo,Ray\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/import-voters/upload?wait=true", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+h.adminToken())
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "completed", done["status"])
	assert.Equal(t, "parish.csv", done["metadata"].(map[string]any)["filename"])
	assert.Len(t, h.store.ObjectKeys(), 1)

	rec = h.do(http.MethodPost, "/api/v1/jobs/import-voters/upload", h.adminToken(), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsSummaryIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	testutil.SeedVoters(t, h.store, h.tenant.Org.ID, 4)

	rec := h.do(http.MethodGet, "/api/v1/metrics/summary", h.canvasserToken(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/metrics/summary", h.adminToken(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[metrics.Summary](t, rec)
	assert.Equal(t, 4, summary.TotalVoters)
	assert.Zero(t, summary.CompletionPercentage)
}
