package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/auditflow/auditflow/internal/adapter/memory"
	"github.com/auditflow/auditflow/internal/adapter/redisx"
	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/ports"
	"github.com/auditflow/auditflow/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	handler http.Handler
	store   *memory.Store
	codes   map[string]string
}

// newTestEnv serves the full API over an in-memory store seeded with a
// published template (C.1 weight 40, C.2 weight 60) and a draft template.
func newTestEnv(t *testing.T, opts Options, cfg ServerConfig) *testEnv {
	t.Helper()
	store := memory.NewStore()
	store.PutTemplate(domain.Template{ID: "tpl-pub", Code: "ISO", Name: "ISO", Version: "1", Status: domain.TemplateStatusPublished})
	store.PutTemplate(domain.Template{ID: "tpl-draft", Code: "DRAFT", Name: "Draft", Version: "1", Status: domain.TemplateStatusDraft})

	env := &testEnv{store: store, codes: map[string]string{}}
	seed := func(templateID, code string, weight float64, order int) {
		s := domain.NewStandard(templateID, code, "Control "+code)
		s.IsAuditable = true
		s.Weight = weight
		s.DisplayOrder = order
		require.NoError(t, store.WithinTx(context.Background(), func(tx ports.Repositories) error {
			return tx.Standards.Create(context.Background(), s)
		}))
		env.codes[code] = s.ID
	}
	seed("tpl-pub", "C.1", 40, 1)
	seed("tpl-pub", "C.2", 60, 2)
	seed("tpl-draft", "D.1", 50, 1)
	seed("tpl-draft", "D.2", 50, 2)

	uc := UseCases{
		Audits:    usecase.NewAuditUseCase(store, nil, nil),
		Responses: usecase.NewResponseUseCase(store, nil, nil),
		Standards: usecase.NewStandardUseCase(store, nil, nil),
		Scoring:   usecase.NewScoringUseCase(store, nil),
	}
	env.handler = NewServer(cfg, uc, opts).Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, "user-1")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env Envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

// data re-decodes the envelope payload into v
func data(t *testing.T, env Envelope, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestServer_AuditLifecycle(t *testing.T) {
	e := newTestEnv(t, Options{}, ServerConfig{})

	rec, env := e.do(t, "POST", "/api/v1/audits", map[string]string{
		"code": "AUD-1", "name": "Annual", "template_id": "tpl-pub", "organization_id": "org-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var detail usecase.AuditDetail
	data(t, env, &detail)
	auditID := detail.Audit.ID
	assert.Equal(t, "user-1", detail.Audit.CreatedBy)
	require.Len(t, detail.Responses, 2)

	rec, env = e.do(t, "POST", "/api/v1/audits/"+auditID+"/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_MEMBERS_ASSIGNED", env.Code)

	rec, _ = e.do(t, "POST", "/api/v1/audits/"+auditID+"/assignments", map[string]string{"user_id": "user-1", "role": "LEAD_AUDITOR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = e.do(t, "POST", "/api/v1/audits/"+auditID+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	scores := map[string]float64{e.codes["C.1"]: 60, e.codes["C.2"]: 45}
	for _, r := range detail.Responses {
		rec, _ = e.do(t, "PATCH", "/api/v1/responses/"+r.ID, map[string]interface{}{
			"score": scores[r.StandardID], "compliance_level": "COMPLIANT", "achieved_maturity_level": 2,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec, _ = e.do(t, "POST", "/api/v1/responses/"+r.ID+"/complete", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env = e.do(t, "GET", "/api/v1/audits/"+auditID+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary domain.ScoreSummary
	data(t, env, &summary)
	assert.Equal(t, 51.0, summary.OverallScore)
	assert.True(t, summary.Complete)

	rec, env = e.do(t, "POST", "/api/v1/audits/"+auditID+"/close", map[string]bool{"require_complete": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var closed domain.Audit
	data(t, env, &closed)
	assert.Equal(t, domain.AuditStatusClosed, closed.Status)
	assert.Equal(t, 51.0, *closed.OverallScore)

	rec, env = e.do(t, "POST", "/api/v1/audits/"+auditID+"/revisions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var revision usecase.AuditDetail
	data(t, env, &revision)
	assert.Equal(t, 1, revision.Audit.RevisionNumber)
	assert.Equal(t, "AUD-1-R1", revision.Audit.Code)

	rec, _ = e.do(t, "DELETE", "/api/v1/audits/"+auditID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env = e.do(t, "GET", "/api/v1/audits/"+auditID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "AUDIT_NOT_FOUND", env.Code)
}

func TestServer_UpdateResponseIgnoresNullFields(t *testing.T) {
	e := newTestEnv(t, Options{}, ServerConfig{})

	rec, env := e.do(t, "POST", "/api/v1/audits", map[string]string{
		"code": "AUD-2", "name": "Spot check", "template_id": "tpl-pub", "organization_id": "org-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var detail usecase.AuditDetail
	data(t, env, &detail)
	auditID := detail.Audit.ID
	responseID := detail.Responses[0].ID

	rec, _ = e.do(t, "POST", "/api/v1/audits/"+auditID+"/assignments", map[string]string{"user_id": "user-1", "role": "LEAD_AUDITOR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = e.do(t, "POST", "/api/v1/audits/"+auditID+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, "PATCH", "/api/v1/responses/"+responseID, map[string]interface{}{"assignee_id": "user-2", "notes": "first pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = e.do(t, "PATCH", "/api/v1/responses/"+responseID, map[string]interface{}{"assignee_id": nil, "notes": "second pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated domain.AuditResponse
	data(t, env, &updated)
	assert.Equal(t, "second pass", updated.Notes)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, "user-2", *updated.AssigneeID)

	rec, env = e.do(t, "POST", "/api/v1/responses/"+responseID+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reset domain.AuditResponse
	data(t, env, &reset)
	assert.Empty(t, reset.Notes)
}

func TestServer_ErrorMapping(t *testing.T) {
	e := newTestEnv(t, Options{}, ServerConfig{})

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"draft template", "POST", "/api/v1/audits", map[string]string{"code": "A", "name": "A", "template_id": "tpl-draft", "organization_id": "o"}, http.StatusConflict, "TEMPLATE_NOT_PUBLISHED"},
		{"missing fields", "POST", "/api/v1/audits", map[string]string{"template_id": "tpl-pub"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown response", "PATCH", "/api/v1/responses/nope", map[string]int{"score": 10}, http.StatusNotFound, "RESPONSE_NOT_FOUND"},
		{"published template edit", "POST", "/api/v1/templates/tpl-pub/standards", map[string]string{"code": "C.3"}, http.StatusConflict, "TEMPLATE_NOT_EDITABLE"},
		{"weight missing", "PUT", "/api/v1/standards/x/weight", map[string]string{}, http.StatusBadRequest, "INVALID_INPUT"},
		{"calculator index", "POST", "/api/v1/weights/redistribute", map[string]interface{}{"weights": []float64{50, 50}, "index": 5}, http.StatusUnprocessableEntity, "INVALID_INDEX"},
		{"calculator op", "POST", "/api/v1/weights/shuffle", map[string]interface{}{}, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := e.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, env.Status)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestServer_InvalidBody(t *testing.T) {
	e := newTestEnv(t, Options{}, ServerConfig{})
	req := httptest.NewRequest("POST", "/api/v1/audits", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request body")
}

func TestServer_StandardsAndCalculator(t *testing.T) {
	e := newTestEnv(t, Options{}, ServerConfig{})

	rec, env := e.do(t, "POST", "/api/v1/templates/tpl-draft/standards/rebalance", map[string]string{"mode": "equal"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, "PUT", "/api/v1/standards/"+e.codes["D.1"]+"/weight", map[string]float64{"weight": 70})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = e.do(t, "GET", "/api/v1/templates/tpl-draft/standards", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var standards []domain.Standard
	data(t, env, &standards)
	weights := map[string]float64{}
	for _, s := range standards {
		weights[s.Code] = s.Weight
	}
	assert.Equal(t, map[string]float64{"D.1": 70, "D.2": 30}, weights)

	rec, env = e.do(t, "POST", "/api/v1/weights/equal", map[string]int{"count": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	var result WeightResult
	data(t, env, &result)
	assert.Equal(t, []float64{33.33, 33.33, 33.34}, result.Weights)
	assert.Equal(t, 100.0, result.Sum)
	assert.True(t, result.Valid)

	rec, env = e.do(t, "POST", "/api/v1/weights/validate", map[string][]float64{"weights": {40, 50}})
	require.Equal(t, http.StatusOK, rec.Code)
	data(t, env, &result)
	assert.False(t, result.Valid)
}

func TestServer_Auth(t *testing.T) {
	verifier := NewTokenVerifier("test-secret")
	e := newTestEnv(t, Options{Verifier: verifier}, ServerConfig{AuthRequired: true})

	rec, env := e.do(t, "GET", "/api/v1/templates/tpl-draft/standards", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	rec, _ = e.do(t, "GET", "/api/v1/templates/tpl-draft/standards", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := verifier.IssueToken("user-jwt", time.Minute)
	require.NoError(t, err)
	rec, env = e.do(t, "POST", "/api/v1/audits", map[string]string{
		"code": "AUD-JWT", "name": "JWT", "template_id": "tpl-pub", "organization_id": "org-1",
	}, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var detail usecase.AuditDetail
	data(t, env, &detail)
	assert.Equal(t, "user-jwt", detail.Audit.CreatedBy, "token subject wins over X-User-ID")

	rec, _ = e.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type stubLimiter struct {
	allowed map[string]int
	limit   int
}

func (s *stubLimiter) Allow(_ context.Context, key string) (redisx.Decision, error) {
	s.allowed[key]++
	return redisx.Decision{Allowed: s.allowed[key] <= s.limit, Limit: s.limit, RetryAfter: 30 * time.Second}, nil
}

func TestServer_RateLimit(t *testing.T) {
	limiter := &stubLimiter{allowed: map[string]int{}, limit: 1}
	e := newTestEnv(t, Options{RateLimiter: limiter}, ServerConfig{})

	rec, _ := e.do(t, "POST", "/api/v1/weights/equal", map[string]int{"count": 2})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := e.do(t, "POST", "/api/v1/weights/equal", map[string]int{"count": 2})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", env.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, 2, limiter.allowed["actor:user-1"])

	rec, _ = e.do(t, "GET", "/api/v1/templates/tpl-draft/standards", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

type failingPing struct{}

func (failingPing) Ping(context.Context) error { return errors.New("connection refused") }

func TestServer_HealthAndCorrelation(t *testing.T) {
	e := newTestEnv(t, Options{Health: failingPing{}}, ServerConfig{CORSOrigins: []string{"https://app.example"}})

	rec, _ := e.do(t, "GET", "/health", nil, CorrelationIDHeader, "cid-123", "Origin", "https://app.example")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "cid-123", rec.Header().Get(CorrelationIDHeader))
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest("OPTIONS", "/api/v1/audits", nil)
	req.Header.Set("Origin", "https://app.example")
	pre := httptest.NewRecorder()
	e.handler.ServeHTTP(pre, req)
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.NotEmpty(t, pre.Header().Get(CorrelationIDHeader))
	assert.Contains(t, pre.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}
