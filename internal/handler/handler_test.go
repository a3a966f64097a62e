package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mzunguko/config"
	"mzunguko/internal/auth"
	"mzunguko/internal/domain"
	"mzunguko/internal/middleware"
	"mzunguko/internal/service"
	"mzunguko/internal/storage/memory"

	"github.com/gin-gonic/gin"
)

var jwtCfg = config.JWTConfig{
	AccessSecret: "test-secret",
	AccessExpiry: time.Hour,
	Issuer:       "mzunguko-test",
}

// testRouter wires the handlers against the in-memory store, mirroring the
// production route table.
func testRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	notif := service.NewNotificationService(store, nil, nil)
	circleSvc := service.NewCircleService(store, notif)
	contributionSvc := service.NewContributionService(store, notif)
	payoutSvc := service.NewPayoutService(store, notif)
	overrideSvc := service.NewOverrideService(store, notif)

	circleHandler := NewCircleHandler(circleSvc, store)
	contributionHandler := NewContributionHandler(contributionSvc)
	payoutHandler := NewPayoutHandler(payoutSvc)
	adminHandler := NewAdminHandler(overrideSvc)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired(&jwtCfg))
	api.POST("/circles", circleHandler.Create)
	api.GET("/circles/:id", circleHandler.Get)
	api.GET("/circles/:id/grid", circleHandler.Grid)
	api.POST("/circles/:id/join", circleHandler.Join)
	api.POST("/circles/:id/members/:userId/approve", circleHandler.Approve)
	api.POST("/circles/:id/activate", circleHandler.Activate)
	api.POST("/circles/:id/contributions", contributionHandler.MarkPaid)
	api.POST("/circles/:id/payouts", payoutHandler.Issue)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.AdminRequired())
	adminGroup.POST("/circles/:id/freeze", adminHandler.Freeze)

	return r, store
}

func token(t *testing.T, userID uint, role string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(&jwtCfg, userID, fmt.Sprintf("user%d", userID), role)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, r *gin.Engine, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/circles/1", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/circles/1", "not-a-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", w.Code)
	}
}

func TestCreateAndFetchCircle(t *testing.T) {
	r, _ := testRouter(t)
	tok := token(t, 1, domain.RoleMember)

	w := doJSON(t, r, http.MethodPost, "/api/v1/circles", tok, gin.H{
		"name":         "chama",
		"amount_cents": 10000,
		"frequency":    "WEEKLY",
		"capacity":     3,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", w.Code, w.Body.String())
	}
	var created struct {
		CircleID uint   `json:"circle_id"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != domain.CircleRecruiting {
		t.Errorf("status = %s, want RECRUITING", created.Status)
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/circles/%d", created.CircleID), tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/circles/999", tok, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing circle: status = %d, want 404", w.Code)
	}
}

func TestCreateCircleValidation(t *testing.T) {
	r, _ := testRouter(t)
	tok := token(t, 1, domain.RoleMember)

	w := doJSON(t, r, http.MethodPost, "/api/v1/circles", tok, gin.H{
		"name":         "chama",
		"amount_cents": 10000,
		"frequency":    "DAILY", // unsupported
		"capacity":     3,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad frequency: status = %d, want 400", w.Code)
	}
}

func TestFullLifecycleOverHTTP(t *testing.T) {
	r, _ := testRouter(t)
	adminTok := token(t, 1, domain.RoleMember)
	memberTok := token(t, 2, domain.RoleMember)
	thirdTok := token(t, 3, domain.RoleMember)

	w := doJSON(t, r, http.MethodPost, "/api/v1/circles", adminTok, gin.H{
		"name": "chama", "amount_cents": 10000, "frequency": "WEEKLY", "capacity": 3,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var snap struct {
		CircleID uint `json:"circle_id"`
	}
	json.Unmarshal(w.Body.Bytes(), &snap)
	base := fmt.Sprintf("/api/v1/circles/%d", snap.CircleID)

	for userID, tok := range map[uint]string{2: memberTok, 3: thirdTok} {
		if w := doJSON(t, r, http.MethodPost, base+"/join", tok, gin.H{}); w.Code != http.StatusOK {
			t.Fatalf("join %d: %d %s", userID, w.Code, w.Body.String())
		}
		if w := doJSON(t, r, http.MethodPost, fmt.Sprintf("%s/members/%d/approve", base, userID), adminTok, nil); w.Code != http.StatusOK {
			t.Fatalf("approve %d: %d %s", userID, w.Code, w.Body.String())
		}
	}

	if w := doJSON(t, r, http.MethodPost, base+"/activate", adminTok, gin.H{"order": []uint{1, 2, 3}}); w.Code != http.StatusOK {
		t.Fatalf("activate: %d %s", w.Code, w.Body.String())
	}

	// Non-admin cannot issue payout.
	if w := doJSON(t, r, http.MethodPost, base+"/payouts", memberTok, gin.H{}); w.Code != http.StatusForbidden {
		t.Fatalf("member payout: %d, want 403", w.Code)
	}

	if w := doJSON(t, r, http.MethodPost, base+"/contributions", memberTok, gin.H{}); w.Code != http.StatusCreated {
		t.Fatalf("contribution: %d %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPost, base+"/payouts", adminTok, gin.H{}); w.Code != http.StatusCreated {
		t.Fatalf("payout: %d %s", w.Code, w.Body.String())
	}

	// Re-issuing the paid round surfaces as a conflict.
	if w := doJSON(t, r, http.MethodPost, base+"/payouts", adminTok, gin.H{"round": 1}); w.Code != http.StatusConflict {
		t.Fatalf("reissue: %d, want 409", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, base+"/grid", adminTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("grid: %d", w.Code)
	}
	var grid struct {
		CurrentRound int `json:"current_round"`
	}
	json.Unmarshal(w.Body.Bytes(), &grid)
	if grid.CurrentRound != 2 {
		t.Errorf("grid round = %d, want 2", grid.CurrentRound)
	}
}

func TestAdminRoutesRequirePlatformRole(t *testing.T) {
	r, _ := testRouter(t)
	memberTok := token(t, 1, domain.RoleMember)
	adminTok := token(t, 100, domain.RoleAdmin)

	w := doJSON(t, r, http.MethodPost, "/api/v1/admin/circles/1/freeze", memberTok, gin.H{"reason": "x"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("member on admin route: %d, want 403", w.Code)
	}

	// Platform admin passes the middleware; a missing circle then 404s.
	w = doJSON(t, r, http.MethodPost, "/api/v1/admin/circles/1/freeze", adminTok, gin.H{"reason": "x"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("admin freeze missing circle: %d, want 404", w.Code)
	}
}
