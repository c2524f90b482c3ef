package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coursehub/subscription-service/internal/app"
	"github.com/coursehub/subscription-service/internal/domain"
	"github.com/coursehub/subscription-service/internal/store"
)

const (
	testJWTSecret   = "test-secret"
	testInternalKey = "internal-key"
)

// apiRepoStub implements app.Repository with just enough behavior for the
// routes under test; everything else reports not found.
type apiRepoStub struct {
	plans []domain.Plan
	sub   *domain.Subscription
}

func (r *apiRepoStub) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	if r.sub != nil && r.sub.ID == id {
		return r.sub, nil
	}
	return nil, store.ErrSubscriptionNotFound
}

func (r *apiRepoStub) GetSubscriptionByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	if r.sub != nil && r.sub.UserID == userID {
		return r.sub, nil
	}
	return nil, store.ErrSubscriptionNotFound
}

func (r *apiRepoStub) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	r.sub = sub
	return nil
}

func (r *apiRepoStub) UpdateSubscription(ctx context.Context, id string, mutate func(*domain.Subscription) error) (*domain.Subscription, error) {
	if r.sub == nil || r.sub.ID != id {
		return nil, store.ErrSubscriptionNotFound
	}
	copied := *r.sub
	if err := mutate(&copied); err != nil {
		return nil, err
	}
	*r.sub = copied
	return &copied, nil
}

func (r *apiRepoStub) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	for i := range r.plans {
		if r.plans[i].ID == id {
			return &r.plans[i], nil
		}
	}
	return nil, store.ErrPlanNotFound
}

func (r *apiRepoStub) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return r.plans, nil
}

func (r *apiRepoStub) CreatePlan(ctx context.Context, plan *domain.Plan) error {
	r.plans = append(r.plans, *plan)
	return nil
}

func (r *apiRepoStub) UpdatePlan(ctx context.Context, plan *domain.Plan) error {
	return store.ErrPlanNotFound
}

func (r *apiRepoStub) SoftDeletePlan(ctx context.Context, id string) error {
	return store.ErrPlanNotFound
}

func (r *apiRepoStub) NextPlanSortOrder(ctx context.Context) (int, error) {
	return len(r.plans) + 1, nil
}

func (r *apiRepoStub) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return nil, store.ErrPaymentNotFound
}

func (r *apiRepoStub) CreatePayment(ctx context.Context, p *domain.Payment) error { return nil }

func (r *apiRepoStub) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	return store.ErrPaymentNotFound
}

func newTestServer(repo *apiRepoStub) *httptest.Server {
	service := app.NewService(repo)
	handler := NewHandler(service)
	return httptest.NewServer(NewRouter(handler, testJWTSecret, testInternalKey))
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return "Bearer " + signed
}

func TestListPlansIsPublic(t *testing.T) {
	repo := &apiRepoStub{plans: []domain.Plan{
		{ID: "p1", Name: "Starter", Slug: "starter", BillingCycle: domain.CycleMonthly, Price: 999, Active: true},
	}}
	server := newTestServer(repo)
	defer server.Close()

	resp, err := http.Get(server.URL + "/plans")
	if err != nil {
		t.Fatalf("GET /plans: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var plans []domain.Plan
	if err := json.NewDecoder(resp.Body).Decode(&plans); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plans) != 1 || plans[0].Slug != "starter" {
		t.Fatalf("unexpected plans payload: %v", plans)
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	server := newTestServer(&apiRepoStub{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGetStatusWithValidToken(t *testing.T) {
	endsAt := time.Now().Add(10 * 24 * time.Hour)
	repo := &apiRepoStub{sub: &domain.Subscription{
		ID: "sub-1", UserID: "user-1", PlanID: "p1",
		Status: domain.StatusActive, EndsAt: &endsAt, AutoRenew: true,
	}}
	server := newTestServer(repo)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/status", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var view domain.SubscriptionStatusView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !view.IsActive {
		t.Fatal("expected an active subscription view")
	}
	if view.DaysRemaining == nil || *view.DaysRemaining != 10 {
		t.Fatalf("days_remaining = %v, want 10", view.DaysRemaining)
	}
}

func TestCancelConflictMapsTo409(t *testing.T) {
	cancelledAt := time.Now()
	repo := &apiRepoStub{sub: &domain.Subscription{
		ID: "sub-1", UserID: "user-1", PlanID: "p1",
		Status: domain.StatusCancelled, CancelledAt: &cancelledAt,
	}}
	server := newTestServer(repo)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/cancel",
		strings.NewReader(`{"reason":"done"}`))
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /cancel: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409 for a terminal-state conflict", resp.StatusCode)
	}
}

func TestPlanAdminRequiresInternalKey(t *testing.T) {
	server := newTestServer(&apiRepoStub{})
	defer server.Close()

	body := `{"name":"Pro","billing_cycle":"monthly","price":4999,"active":true}`

	resp, err := http.Post(server.URL+"/plans", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /plans: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/plans", strings.NewReader(body))
	req.Header.Set("X-Internal-Api-Key", testInternalKey)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /plans with key: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status with key = %d, want 201", resp.StatusCode)
	}
}

func TestCreatePlanValidationMapsTo400(t *testing.T) {
	server := newTestServer(&apiRepoStub{})
	defer server.Close()

	// custom cycle without duration_days is rejected at creation time
	body := `{"name":"Workshop","billing_cycle":"custom","price":1500}`
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/plans", strings.NewReader(body))
	req.Header.Set("X-Internal-Api-Key", testInternalKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /plans: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(payload["error"], "duration_days") {
		t.Fatalf("error should name the invalid field, got %q", payload["error"])
	}
}

// Guard against the stub drifting from the real interface.
var _ app.Repository = (*apiRepoStub)(nil)
