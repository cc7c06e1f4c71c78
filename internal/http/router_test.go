package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dispute_triage/backend/internal/ai"
	"github.com/dispute_triage/backend/internal/config"
	"github.com/dispute_triage/backend/internal/db"
	"github.com/dispute_triage/backend/internal/metrics"
	"github.com/dispute_triage/backend/internal/models"
	"github.com/dispute_triage/backend/internal/service"
)

type memStore struct {
	mu       sync.Mutex
	users    map[int64]models.User
	ops      map[int64]bool
	groups   map[string][]int64
	cases    map[int64]models.DisputeCase
	analyses map[int64]models.RiskAnalysis
	messages []models.ChatMessage
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		users: map[int64]models.User{
			1: {ID: 1, Username: "alice", IsActive: true},
			2: {ID: 2, Username: "bob", IsActive: true},
			3: {ID: 3, Username: "ops_unauth", IsStaff: true, IsActive: true},
			4: {ID: 4, Username: "gone", IsActive: false},
		},
		ops:      map[int64]bool{3: true},
		groups:   map[string][]int64{"Specialist: Unauthorized Transaction": {3}},
		cases:    map[int64]models.DisputeCase{},
		analyses: map[int64]models.RiskAnalysis{},
		nextID:   100,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) GetUser(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, db.ErrNotFound
	}
	return u, nil
}

func (m *memStore) IsOpsUser(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ops[id], nil
}

func (m *memStore) ListActiveGroupMembers(_ context.Context, group string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, id := range m.groups[group] {
		if u := m.users[id]; u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) CreateCase(_ context.Context, c models.DisputeCase, a models.RiskAnalysis) (models.DisputeCase, models.RiskAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	c.CreatedAt = time.Now()
	a.ID = m.id()
	a.CaseID = c.ID
	m.cases[c.ID] = c
	m.analyses[c.ID] = a
	return c, a, nil
}

func (m *memStore) UpdateRouting(_ context.Context, id int64, fn func(models.DisputeCase, *models.RiskAnalysis) (models.DisputeCase, error)) (models.DisputeCase, error) {
	m.mu.Lock()
	c, ok := m.cases[id]
	var ap *models.RiskAnalysis
	if a, found := m.analyses[id]; found {
		ap = &a
	}
	m.mu.Unlock()
	if !ok {
		return models.DisputeCase{}, db.ErrNotFound
	}
	updated, err := fn(c, ap)
	if err != nil {
		return models.DisputeCase{}, err
	}
	m.mu.Lock()
	m.cases[id] = updated
	m.mu.Unlock()
	return updated, nil
}

func (m *memStore) GetCase(_ context.Context, id int64) (models.DisputeCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return models.DisputeCase{}, db.ErrNotFound
	}
	return c, nil
}

func (m *memStore) GetCaseDetails(ctx context.Context, id int64, includeInternal bool) (models.CaseDetails, error) {
	c, err := m.GetCase(ctx, id)
	if err != nil {
		return models.CaseDetails{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := models.CaseDetails{Case: c, Messages: []models.ChatMessage{}}
	if a, ok := m.analyses[id]; ok {
		out.Analysis = &a
	}
	for _, msg := range m.messages {
		if msg.CaseID == id && (includeInternal || !msg.IsInternalNote) {
			out.Messages = append(out.Messages, msg)
		}
	}
	return out, nil
}

func (m *memStore) ListCustomerCases(_ context.Context, customerID int64) ([]models.DisputeCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DisputeCase
	for _, c := range m.cases {
		if c.CustomerID != nil && *c.CustomerID == customerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListOpsQueue(_ context.Context, userID int64) ([]models.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QueueItem
	for id, c := range m.cases {
		a := m.analyses[id]
		mine := c.AssignedOps != nil && *c.AssignedOps == userID
		if a.RiskScore != models.RiskHigh && c.Priority != models.PriorityCritical && !mine {
			continue
		}
		out = append(out, models.QueueItem{DisputeCase: c, RiskScore: a.RiskScore, Classification: a.Classification})
	}
	return out, nil
}

func (m *memStore) AddMessage(_ context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.id()
	msg.SenderName = m.users[msg.SenderID].Username
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memStore) Insights(context.Context) (models.Insights, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := models.Insights{TotalCases: len(m.cases)}
	for _, a := range m.analyses {
		if a.RiskScore == models.RiskHigh {
			out.HighRiskCount++
		}
	}
	return out, nil
}

func (m *memStore) EnsureGroup(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[name]; ok {
		return false, nil
	}
	m.groups[name] = nil
	return true, nil
}

func (m *memStore) EnsureUser(_ context.Context, username string, isStaff bool) (models.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, false, nil
		}
	}
	u := models.User{ID: m.id(), Username: username, IsStaff: isStaff, IsActive: true}
	m.users[u.ID] = u
	return u, true, nil
}

func (m *memStore) AddUserToGroup(_ context.Context, userID int64, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.groups[group]
	if !ok {
		return fmt.Errorf("group %q: %w", group, db.ErrNotFound)
	}
	for _, id := range members {
		if id == userID {
			return nil
		}
	}
	m.groups[group] = append(members, userID)
	return nil
}

func newTestRouter(t *testing.T, store *memStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	triage := &service.TriageService{
		Store:      store,
		Classifier: ai.HeuristicClassifier{},
		Router:     &service.Router{Directory: store, Pick: func(int) int { return 0 }},
		Logger:     zerolog.Nop(),
	}
	cfg := config.Config{AdminKey: "secret", CORSAllowed: "*"}
	return Router(cfg, store, triage, ai.HeuristicClassifier{}, metrics.New("test"), zerolog.Nop())
}

func do(r *gin.Engine, method, path string, userID int64, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-User-Id", strconv.FormatInt(userID, 10))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, w.Body.String())
	}
	return env.Error.Code
}

func submit(t *testing.T, r *gin.Engine, userID int64, description string, amount float64) models.DisputeCase {
	t.Helper()
	w := do(r, http.MethodPost, "/api/disputes", userID, map[string]any{
		"description":       description,
		"amount":            amount,
		"merchant_category": "Retail",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Case     models.DisputeCase  `json:"case"`
		Analysis models.RiskAnalysis `json:"analysis"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	return resp.Case
}

func TestSubmitDisputeRoutesCriticalCase(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(t, store)

	c := submit(t, r, 1, "I did not authorize this purchase at Wal-Mart.", 45)
	if c.Priority != models.PriorityCritical {
		t.Fatalf("expected CRITICAL, got %s", c.Priority)
	}
	if c.AssignedOps == nil || *c.AssignedOps != 3 {
		t.Fatalf("expected specialist 3, got %+v", c.AssignedOps)
	}
	if c.CustomerID == nil || *c.CustomerID != 1 {
		t.Fatalf("customer not recorded: %+v", c.CustomerID)
	}
	a := store.analyses[c.ID]
	if a.Classification != string(models.ClassUnauthorized) || a.RiskScore != models.RiskHigh {
		t.Fatalf("unexpected analysis %+v", a)
	}
}

func TestSubmitDisputeAnonymous(t *testing.T) {
	r := newTestRouter(t, newMemStore())
	c := submit(t, r, 0, "Netflix charged me twice this month.", 15.99)
	if c.CustomerID != nil {
		t.Fatalf("anonymous submission must not carry a customer")
	}
	if c.Priority != models.PriorityMedium || c.Status != models.StatusAnalyzed {
		t.Fatalf("unexpected case %+v", c)
	}
}

func TestSubmitDisputeValidation(t *testing.T) {
	r := newTestRouter(t, newMemStore())

	w := do(r, http.MethodPost, "/api/disputes", 1, map[string]any{"amount": 10, "merchant_category": "Retail"})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %d %s", w.Code, w.Body.String())
	}
	w = do(r, http.MethodPost, "/api/disputes", 1, map[string]any{"description": "x", "amount": -1, "merchant_category": "Retail"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative amount must be rejected, got %d", w.Code)
	}
}

func TestAnalyzePreviewStoresNothing(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(t, store)

	w := do(r, http.MethodPost, "/api/analyze", 0, map[string]any{
		"description":       "I cancelled my subscription but was still charged.",
		"amount":            9.99,
		"merchant_category": "Digital Goods",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var v models.Verdict
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if v.Classification != models.ClassSubscription || v.RiskLevel != models.RiskLow {
		t.Fatalf("unexpected verdict %+v", v)
	}
	if len(store.cases) != 0 {
		t.Fatalf("preview must not persist")
	}
}

func TestIdentity(t *testing.T) {
	r := newTestRouter(t, newMemStore())

	if w := do(r, http.MethodGet, "/api/disputes", 0, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing user: expected 401, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/disputes", 99, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: expected 401, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/disputes", 4, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("inactive user: expected 401, got %d", w.Code)
	}
	w := do(r, http.MethodGet, "/api/disputes", 0, nil, "X-User-Id", "abc")
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "UNAUTHORIZED" {
		t.Fatalf("malformed user: expected 401, got %d", w.Code)
	}
}

func TestMyDisputesOnlyOwnCases(t *testing.T) {
	r := newTestRouter(t, newMemStore())
	submit(t, r, 1, "Food never arrived from Uber Eats.", 35.5)
	submit(t, r, 2, "The hotel room was dirty and not as described.", 250)

	w := do(r, http.MethodGet, "/api/disputes", 1, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Items []models.DisputeCase `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || *resp.Items[0].CustomerID != 1 {
		t.Fatalf("expected only alice's case, got %+v", resp.Items)
	}
}

func TestDisputeDetailsAccessAndInternalNotes(t *testing.T) {
	r := newTestRouter(t, newMemStore())
	c := submit(t, r, 1, "Refund was promised 10 days ago but never received.", 120)
	path := fmt.Sprintf("/api/disputes/%d", c.ID)

	if w := do(r, http.MethodPost, path+"/messages", 1, map[string]any{"message": "any update?"}); w.Code != http.StatusCreated {
		t.Fatalf("owner message: expected 201, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, path+"/messages", 1, map[string]any{"message": "note", "is_internal_note": true}); w.Code != http.StatusForbidden {
		t.Fatalf("customer internal note: expected 403, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, path+"/messages", 3, map[string]any{"message": "check refund ledger", "is_internal_note": true}); w.Code != http.StatusCreated {
		t.Fatalf("ops internal note: expected 201, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, path+"/messages", 2, map[string]any{"message": "hi"}); w.Code != http.StatusForbidden {
		t.Fatalf("stranger message: expected 403, got %d", w.Code)
	}

	if w := do(r, http.MethodGet, path, 2, nil); w.Code != http.StatusForbidden {
		t.Fatalf("stranger view: expected 403, got %d", w.Code)
	}

	var details models.CaseDetails
	w := do(r, http.MethodGet, path, 1, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("owner view: expected 200, got %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &details)
	if len(details.Messages) != 1 || details.Analysis == nil {
		t.Fatalf("owner must see one public message and the analysis: %+v", details)
	}

	w = do(r, http.MethodGet, path, 3, nil)
	details = models.CaseDetails{}
	_ = json.Unmarshal(w.Body.Bytes(), &details)
	if len(details.Messages) != 2 {
		t.Fatalf("ops must see internal notes, got %d messages", len(details.Messages))
	}

	if w := do(r, http.MethodGet, "/api/disputes/9999", 1, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing case: expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/disputes/abc", 1, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", w.Code)
	}
}

func TestOpsRoutesRequireOps(t *testing.T) {
	r := newTestRouter(t, newMemStore())
	submit(t, r, 1, "Netflix charged me twice this month.", 15.99)
	submit(t, r, 1, "My card was stolen and used to buy a TV.", 800)

	if w := do(r, http.MethodGet, "/api/ops/queue", 1, nil); w.Code != http.StatusForbidden || errorCode(t, w) != "FORBIDDEN" {
		t.Fatalf("customer queue: expected 403, got %d", w.Code)
	}
	w := do(r, http.MethodGet, "/api/ops/queue", 3, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ops queue: expected 200, got %d", w.Code)
	}
	var resp struct {
		Items []models.QueueItem `json:"items"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Items) != 1 || resp.Items[0].Classification != string(models.ClassUnauthorized) {
		t.Fatalf("only the critical case belongs on the queue: %+v", resp.Items)
	}

	w = do(r, http.MethodGet, "/api/ops/insights", 3, nil)
	var ins models.Insights
	_ = json.Unmarshal(w.Body.Bytes(), &ins)
	if w.Code != http.StatusOK || ins.TotalCases != 2 || ins.HighRiskCount != 1 {
		t.Fatalf("unexpected insights %d %+v", w.Code, ins)
	}
}

func TestReroute(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(t, store)

	c := submit(t, r, 1, "I cancelled my subscription but was still charged.", 9.99)
	if c.AssignedOps != nil {
		t.Fatalf("no subscription pool yet")
	}
	store.users[5] = models.User{ID: 5, Username: "ops_sub", IsStaff: true, IsActive: true}
	store.groups["Specialist: Subscription Confusion"] = []int64{5}

	w := do(r, http.MethodPost, fmt.Sprintf("/api/ops/disputes/%d/reroute", c.ID), 3, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reroute: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated models.DisputeCase
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.AssignedOps == nil || *updated.AssignedOps != 5 || updated.RoutingReason != service.ReasonSpecialistAssigned {
		t.Fatalf("unexpected reroute result %+v", updated)
	}

	bare := models.NewDisputeCase(nil, "x", 1, "Retail")
	bare.ID = 7
	store.cases[7] = bare
	if w := do(r, http.MethodPost, "/api/ops/disputes/7/reroute", 3, nil); w.Code != http.StatusConflict {
		t.Fatalf("no analysis: expected 409, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/ops/disputes/9999/reroute", 3, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing case: expected 404, got %d", w.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(t, store)

	if w := do(r, http.MethodPost, "/api/admin/seed", 0, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing admin key: expected 401, got %d", w.Code)
	}
	w := do(r, http.MethodPost, "/api/admin/seed", 0, nil, "X-Admin-Key", "secret")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"created":10`) {
		t.Fatalf("seed: %d %s", w.Code, w.Body.String())
	}
	if len(store.cases) != 10 {
		t.Fatalf("expected 10 seeded cases, got %d", len(store.cases))
	}

	w = do(r, http.MethodPost, "/api/admin/specialists", 0, nil, "X-Admin-Key", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("specialists: %d %s", w.Code, w.Body.String())
	}
	var report service.SetupReport
	_ = json.Unmarshal(w.Body.Bytes(), &report)
	if len(report.UsersCreated) != 2 {
		t.Fatalf("ops_unauth already exists, expected 2 new users, got %+v", report)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, newMemStore())

	w := do(r, http.MethodGet, "/healthz", 0, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a generated request id")
	}
	submit(t, r, 0, "my card was stolen", 90)

	w = do(r, http.MethodGet, "/metrics", 0, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "dispute_http_requests_total") || !strings.Contains(body, `dispute_triage_cases_total{priority="CRITICAL"`) {
		t.Fatalf("unexpected exposition:\n%s", body)
	}
}
