package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clinilab/labtrail/internal/config"
	"github.com/clinilab/labtrail/internal/model"
	"github.com/gin-gonic/gin"
)

const testSecret = "test-secret-key-for-unit-tests"

func newAuthTestRouter() *gin.Engine {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = testSecret

	r := gin.New()
	r.Use(AuthMiddleware(cfg))
	r.GET("/whoami", func(c *gin.Context) {
		actor := ActorFromContext(c)
		resp := gin.H{"role": actor.Role, "session": actor.SessionID}
		if actor.LabID != nil {
			resp["lab_id"] = *actor.LabID
		}
		if actor.UserID != nil {
			resp["user_id"] = *actor.UserID
		}
		c.JSON(http.StatusOK, resp)
	})
	return r
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	r := newAuthTestRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	r := newAuthTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("another-secret", &model.ActorClaims{LabID: 1})
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	r := newAuthTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	token, err := GenerateToken(testSecret, &model.ActorClaims{
		LabID:         7,
		ClinicAdminID: 12,
		Role:          "Admin",
		SessionID:     "s1",
	})
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	r := newAuthTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{`"lab_id":7`, `"user_id":12`, `"role":"Admin"`, `"session":"s1"`} {
		if !strings.Contains(body, want) {
			t.Errorf("response missing %s: %s", want, body)
		}
	}
}

func TestActorFromContextDegradesGracefully(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	actor := ActorFromContext(c)
	if actor.LabID != nil || actor.UserID != nil || actor.Role != "" {
		t.Fatalf("expected empty actor, got %+v", actor)
	}
}

func TestActorClaimsAdminPrecedence(t *testing.T) {
	// LabAdminId 非零时优先
	claims := &model.ActorClaims{LabID: 7, LabAdminID: 3, ClinicAdminID: 12}
	actor := claims.ToActor()
	if actor.UserID == nil || *actor.UserID != 3 {
		t.Fatalf("expected lab admin id 3, got %v", actor.UserID)
	}

	// 否则落到 ClinicAdminId
	claims = &model.ActorClaims{LabID: 7, ClinicAdminID: 12}
	actor = claims.ToActor()
	if actor.UserID == nil || *actor.UserID != 12 {
		t.Fatalf("expected clinic admin id 12, got %v", actor.UserID)
	}

	// 两者都为零时没有操作人 ID
	claims = &model.ActorClaims{LabID: 7}
	if actor := claims.ToActor(); actor.UserID != nil {
		t.Fatalf("expected nil user id, got %v", *actor.UserID)
	}
}
